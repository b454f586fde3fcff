package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-task-backend/internal/config"
	"github.com/tbourn/go-task-backend/internal/domain"
)

// routerDB opens an in-memory database named after the test, so tests that
// register the full stack never share task rows.
func routerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Task{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// routerCfg returns a config that passes validation with the limiter set
// high enough to stay out of the way; tests mutate what they care about.
func routerCfg(mutate func(*config.Config)) config.Config {
	cfg := config.Config{
		APIBasePath:    "/api/v1",
		RateRPS:        1000,
		RateBurst:      100,
		TaskNameMaxLen: 80,
		OTEL:           config.OTELConfig{ServiceName: "router-test"},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return cfg
}

func TestRegisterRoutes_OperationalEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, routerDB(t), routerCfg(func(c *config.Config) {
		c.SwaggerEnabled = true
	}))

	cases := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"swagger ui", http.MethodGet, "/swagger/index.html", http.StatusOK},
		{"unknown route", http.MethodGet, "/nope", http.StatusNotFound},
		{"wrong verb", http.MethodPost, "/health", http.StatusMethodNotAllowed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			if w.Code != tc.want {
				t.Fatalf("%s %s = %d, want %d", tc.method, tc.path, w.Code, tc.want)
			}
		})
	}
}

func TestRegisterRoutes_CORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("allow-all stamps every response", func(t *testing.T) {
		r := gin.New()
		RegisterRoutes(r, routerDB(t), routerCfg(nil))

		// No Origin header at all; plain health checks still get the header.
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Fatalf("ACAO = %q, want *", got)
		}
	})

	t.Run("allowlist echoes matching origin", func(t *testing.T) {
		r := gin.New()
		RegisterRoutes(r, routerDB(t), routerCfg(func(c *config.Config) {
			c.CORS.AllowedOrigins = []string{"http://example.com"}
		}))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://example.com")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
			t.Fatalf("ACAO = %q, want the origin echoed", got)
		}
		varies := false
		for _, v := range w.Header().Values("Vary") {
			if strings.Contains(v, "Origin") {
				varies = true
			}
		}
		if !varies {
			t.Fatalf("Vary = %q, want Origin listed", w.Header().Values("Vary"))
		}
	})

	t.Run("allowlist rejects unknown origin", func(t *testing.T) {
		r := gin.New()
		RegisterRoutes(r, routerDB(t), routerCfg(func(c *config.Config) {
			c.CORS.AllowedOrigins = []string{"http://example.com"}
		}))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://evil.example")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", w.Code)
		}
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Fatalf("ACAO = %q for disallowed origin, want empty", got)
		}
	})
}

func TestRegisterRoutes_MiddlewareStack(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, routerDB(t), routerCfg(nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("X-Request-ID missing; RequestID middleware not wired")
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q; security headers not wired", got)
	}

	// A client advertising gzip gets a compressed response.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)
	if enc := w.Header().Get("Content-Encoding"); enc != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", enc)
	}

	// The scrape endpoint emits a body.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics = %d with %d bytes", w.Code, w.Body.Len())
	}
}

func Test_limitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	for _, tc := range []struct {
		name string
		body string
		want int
	}{
		{"under cap", "tiny", http.StatusOK},
		{"over cap", "0123456789AB", http.StatusRequestEntityTooLarge},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(tc.body)))
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	say := func(s string) gin.HandlerFunc {
		return func(c *gin.Context) { c.String(http.StatusOK, s) }
	}
	groupWithPrefix(r, "/").GET("/root-slash", say("a"))
	groupWithPrefix(r, "").GET("/root-empty", say("b"))
	groupWithPrefix(r, "/api").GET("/ping", say("pong"))

	for _, tc := range []struct{ path, want string }{
		{"/root-slash", "a"},
		{"/root-empty", "b"},
		{"/api/ping", "pong"},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if w.Code != http.StatusOK || w.Body.String() != tc.want {
			t.Fatalf("GET %s = %d %q, want 200 %q", tc.path, w.Code, w.Body.String(), tc.want)
		}
	}
}

func Test_taskRepoShim_Proxies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := routerDB(t)

	shim := taskRepoShim{}
	ctx := context.Background()

	t1, err := shim.CreateTask(ctx, db, "shim-a")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if t1 == nil || t1.ID == 0 || t1.Name != "shim-a" {
		t.Fatalf("CreateTask returned bad task: %+v", t1)
	}

	all, err := shim.ListTasks(ctx, db)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(all) < 1 {
		t.Fatalf("ListTasks expected >=1, got %d", len(all))
	}

	got, err := shim.GetTask(ctx, db, t1.ID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.ID != t1.ID || got.Name != "shim-a" {
		t.Fatalf("GetTask mismatch: got=%+v want id=%d", got, t1.ID)
	}

	// Two more rows so the pagination window has something to cut.
	if _, err := shim.CreateTask(ctx, db, "shim-b"); err != nil {
		t.Fatalf("CreateTask shim-b: %v", err)
	}
	if _, err := shim.CreateTask(ctx, db, "shim-c"); err != nil {
		t.Fatalf("CreateTask shim-c: %v", err)
	}

	n, err := shim.CountTasks(ctx, db)
	if err != nil {
		t.Fatalf("CountTasks: %v", err)
	}
	if n != 3 {
		t.Fatalf("CountTasks = %d, want 3", n)
	}

	page, err := shim.ListTasksPage(ctx, db, 0, 2)
	if err != nil {
		t.Fatalf("ListTasksPage: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("ListTasksPage expected 2, got %d", len(page))
	}

	if err := shim.DeleteTask(ctx, db, t1.ID); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if _, err := shim.GetTask(ctx, db, t1.ID); err == nil {
		t.Fatal("GetTask succeeded after delete")
	}
}

// End-to-end pass through the fully wired stack: create, conflict, list with
// ETag revalidation, fetch, delete, and post-delete 404.
func TestRegisterRoutes_TaskLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, routerDB(t), routerCfg(nil))

	// Create
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewBufferString(`{"task_name":"write the report"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d body=%s", w.Code, w.Body.String())
	}
	var created domain.Task
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("create json: %v", err)
	}
	if created.ID == 0 || created.Name != "write the report" {
		t.Fatalf("unexpected created task: %+v", created)
	}

	// Duplicate name → 409
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/tasks", bytes.NewBufferString(`{"task_name":"write the report"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate = %d body=%s", w.Code, w.Body.String())
	}

	// List → one element, ETag present
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d body=%s", w.Code, w.Body.String())
	}
	var listed []domain.Task
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("list json: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("unexpected list: %+v", listed)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("ETag header missing on list")
	}

	// Conditional list → 304
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("If-None-Match", etag)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional list = %d, want 304", w.Code)
	}

	// Fetch by id
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/tasks/%d", created.ID), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d body=%s", w.Code, w.Body.String())
	}

	// Delete
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/v1/tasks/%d", created.ID), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("delete = %d body=%s", w.Code, w.Body.String())
	}

	// Gone
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/tasks/%d", created.ID), nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("post-delete get = %d, want 404", w.Code)
	}
}
