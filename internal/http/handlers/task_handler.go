// Task HTTP handlers.
//
// This file exposes REST endpoints for task resources:
//   - GET    /tasks        (list, optional pagination, ETag support)
//   - POST   /tasks        (create)
//   - GET    /tasks/{id}   (fetch one)
//   - DELETE /tasks/{id}   (delete)
//
// Handlers are transport-thin: they validate input, call the application
// service, and translate results into HTTP responses (including conditional
// responses). Duplicate names are never pre-checked here or in the service;
// the unique index reports the collision and it surfaces as 409.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-task-backend/internal/domain"
	"github.com/tbourn/go-task-backend/internal/repo"
	"github.com/tbourn/go-task-backend/internal/services"
	"github.com/tbourn/go-task-backend/internal/utils"
)

//
// Service contract (context-aware)
//

// TaskService is the slice of the service layer the handlers call. Gin runs
// handlers concurrently, so implementations must tolerate concurrent calls
// and respect ctx cancellation.
type TaskService interface {
	// Create stores a new task with a unique name.
	Create(ctx context.Context, name string) (*domain.Task, error)
	// List returns every task in insertion order (non-paginated).
	List(ctx context.Context) ([]domain.Task, error)
	// ListPage returns a page of tasks and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Task, int64, error)
	// Get fetches a single task by id.
	Get(ctx context.Context, id uint) (*domain.Task, error)
	// Delete removes a task by id.
	Delete(ctx context.Context, id uint) error
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for task resources. It depends on an
// abstract service interface to keep transport concerns separate from
// business logic.
type Handlers struct {
	taskSvc TaskService
}

// New constructs and returns a Handlers instance bound to the given service.
func New(taskSvc TaskService) *Handlers {
	return &Handlers{taskSvc: taskSvc}
}

//
// DTOs
//

// CreateTaskRequest is the JSON payload for creating a task.
type CreateTaskRequest struct {
	// Name is the unique task label (1-80 chars by default).
	Name string `json:"task_name" binding:"required" example:"walk the dog"`
}

// DeleteTaskResponse confirms a successful deletion.
type DeleteTaskResponse struct {
	// Message echoes the deleted task id.
	Message string `json:"message" example:"task 7 deleted"`
}

//
// Helpers
//

// clampPagination reads page and page_size from the query string and forces
// them into range: page >= 1, 1 <= pageSize <= 100, defaults 1 and 20.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// parseTaskID parses the {id} path parameter as a positive integer.
func parseTaskID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// discoverNameMaxLen inspects the concrete TaskService for a configured
// name-length limit. If unavailable, it returns a conservative fallback.
func discoverNameMaxLen(taskSvc TaskService) int {
	const fallback = 80
	if ts, ok := taskSvc.(*services.TaskService); ok {
		if ts.NameMaxLen > 0 {
			return ts.NameMaxLen
		}
	}
	return fallback
}

//
// Handlers
//

// ListTasks godoc
// @ID          listTasks
// @Summary     List tasks
// @Description Returns all tasks in insertion order as a plain JSON array.
// @Description Supports weak ETag via If-None-Match and may return 304. When page or
// @Description page_size is supplied, the same array shape is returned for that window
// @Description and X-Total-Count carries the overall total.
// @Tags        Tasks
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"tasks:3:1712345678\")
// @Param       page           query   int     false "Page number"                  minimum(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100)
//
// @Success     200  {array}  domain.Task
// @Header      200  {string} ETag           "Weak ETag for the current list state"
// @Header      200  {string} X-Total-Count  "Total number of tasks (paged requests)"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /tasks [get]
func (h *Handlers) ListTasks(c *gin.Context) {
	ctx := c.Request.Context()

	// Probe for a conditional-request hit before loading rows. Any stats
	// error just means no ETag this time.
	var db *gorm.DB
	if svc, ok := h.taskSvc.(*services.TaskService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.TasksStats(ctx, db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"tasks:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	// Paged window on request; the body stays a plain array either way.
	if c.Query("page") != "" || c.Query("page_size") != "" {
		page, pageSize := clampPagination(c)
		items, total, err := h.taskSvc.ListPage(ctx, page, pageSize)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
			return
		}
		if items == nil {
			items = []domain.Task{} // JSON [] rather than null
		}
		c.Header("X-Total-Count", strconv.FormatInt(total, 10))
		ok(c, http.StatusOK, items)
		return
	}

	items, err := h.taskSvc.List(ctx)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if items == nil {
		items = []domain.Task{} // JSON [] rather than null
	}
	ok(c, http.StatusOK, items)
}

// CreateTask godoc
// @ID          createTask
// @Summary     Create a new task
// @Description Creates a task with a unique name and returns the stored resource.
// @Description A name collision is reported by the database constraint and surfaces
// @Description as 409; there is no pre-insert lookup.
// @Tags        Tasks
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateTaskRequest  true  "Create task payload"
//
// @Success     201  {object}  domain.Task
// @Failure     400  {object}  handlers.ErrorResponse  "Missing or invalid task_name"
// @Failure     409  {object}  handlers.ErrorResponse  "Task already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tasks [post]
func (h *Handlers) CreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "task_name required")
		return
	}

	t, err := h.taskSvc.Create(c.Request.Context(), req.Name)
	if err != nil {
		switch err {
		case services.ErrNameRequired:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "task_name required")
		case services.ErrNameTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest,
				fmt.Sprintf("task_name too long: max %d characters", discoverNameMaxLen(h.taskSvc)))
		case services.ErrDuplicateName:
			fail(c, http.StatusConflict, ErrCodeConflict, "task already exists")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, t)
}

// GetTask godoc
// @ID          getTask
// @Summary     Fetch a single task
// @Description Returns the task identified by the given id.
// @Tags        Tasks
// @Produce     json
//
// @Param       id  path  int  true  "Task ID"  minimum(1) example(7)
//
// @Success     200  {object}  domain.Task
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed task id"
// @Failure     404  {object}  handlers.ErrorResponse  "Task not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tasks/{id} [get]
func (h *Handlers) GetTask(c *gin.Context) {
	id, okID := parseTaskID(c)
	if !okID {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "task id must be a positive integer")
		return
	}

	t, err := h.taskSvc.Get(c.Request.Context(), id)
	if err != nil {
		switch err {
		case services.ErrTaskNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "task not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, t)
}

// DeleteTask godoc
// @ID          deleteTask
// @Summary     Delete a task
// @Description Hard-deletes the task identified by the given id, freeing its name
// @Description for reuse, and returns a confirmation message.
// @Tags        Tasks
// @Produce     json
//
// @Param       id  path  int  true  "Task ID"  minimum(1) example(7)
//
// @Success     200  {object}  handlers.DeleteTaskResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed task id"
// @Failure     404  {object}  handlers.ErrorResponse  "Task not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /tasks/{id} [delete]
func (h *Handlers) DeleteTask(c *gin.Context) {
	id, okID := parseTaskID(c)
	if !okID {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "task id must be a positive integer")
		return
	}

	if err := h.taskSvc.Delete(c.Request.Context(), id); err != nil {
		switch err {
		case services.ErrTaskNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "task not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, DeleteTaskResponse{Message: fmt.Sprintf("task %d deleted", id)})
}
