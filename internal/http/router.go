// Package httpapi assembles the HTTP surface of the task service: global
// middleware, operational endpoints (/health, /metrics, /swagger) and the
// versioned task API. All dependencies are injected here, so the package
// also owns the small shim binding the repository's free functions to the
// interface the service layer consumes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/tbourn/go-task-backend/internal/config"
	"github.com/tbourn/go-task-backend/internal/domain"
	"github.com/tbourn/go-task-backend/internal/http/handlers"
	"github.com/tbourn/go-task-backend/internal/http/middleware"
	"github.com/tbourn/go-task-backend/internal/repo"
	"github.com/tbourn/go-task-backend/internal/services"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

// taskRepoShim satisfies services.TaskRepo with the repo package's free
// functions, keeping the dependency arrow pointing transport -> service ->
// storage instead of letting services import repo directly.
type taskRepoShim struct{}

func (taskRepoShim) CreateTask(ctx context.Context, db *gorm.DB, name string) (*domain.Task, error) {
	return repo.CreateTask(ctx, db, name)
}

func (taskRepoShim) ListTasks(ctx context.Context, db *gorm.DB) ([]domain.Task, error) {
	return repo.ListTasks(ctx, db)
}

func (taskRepoShim) CountTasks(ctx context.Context, db *gorm.DB) (int64, error) {
	return repo.CountTasks(ctx, db)
}

func (taskRepoShim) ListTasksPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Task, error) {
	return repo.ListTasksPage(ctx, db, offset, limit)
}

func (taskRepoShim) GetTask(ctx context.Context, db *gorm.DB, id uint) (*domain.Task, error) {
	return repo.GetTask(ctx, db, id)
}

func (taskRepoShim) DeleteTask(ctx context.Context, db *gorm.DB, id uint) error {
	return repo.DeleteTask(ctx, db, id)
}

// RegisterRoutes installs middleware and routes on r. The order is
// load-bearing: tracing wraps everything, the request id must exist before
// the loggers run, recovery sits inside the logger so panics are logged
// with request context, and the rate limiter runs inside metrics so
// rejected requests still show up in the counters. CORS and the security
// headers come last, closest to the handlers.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())

	// Cap request bodies well above any legal task payload.
	r.Use(limitBody(1 << 20))

	// Prometheus negotiates its own scrape encoding, so /metrics stays out
	// of the gzip path.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	installCORS(r, cfg.CORS)

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Unmatched requests still answer in the error envelope.
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	taskSvc := services.NewTaskService(db, taskRepoShim{})
	taskSvc.NameMaxLen = cfg.TaskNameMaxLen
	h := handlers.New(taskSvc)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/tasks", h.ListTasks)
		api.POST("/tasks", h.CreateTask)
		api.GET("/tasks/:id", h.GetTask)
		api.DELETE("/tasks/:id", h.DeleteTask)
	}
}

// installCORS applies the browser cross-origin policy. With no allowlist
// the API is public: every response carries Access-Control-Allow-Origin *,
// including responses to requests that sent no Origin at all. With an
// allowlist, matching origins are echoed back together with Vary: Origin
// so shared caches keep the variants apart. Credentials stay off in both
// modes.
func installCORS(r *gin.Engine, cfg config.CORSConfig) {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "X-Total-Count", "ETag"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(cfg.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		base.AllowAllOrigins = true
		r.Use(cors.New(base))
		return
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	r.Use(func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				h := c.Writer.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
		}
		c.Next()
	})
	base.AllowOrigins = cfg.AllowedOrigins
	r.Use(cors.New(base))
}

// limitBody wraps request bodies in http.MaxBytesReader; oversized uploads
// fail at read time inside the handler.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "" and "/" as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
