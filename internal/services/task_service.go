// TaskService owns the application-level lifecycle of tasks. It validates
// task names and coordinates the repository for create, list (plain and
// paginated), fetch, and delete; storage failures map onto the service-level
// sentinels declared in errors.go.
//
// Uniqueness is deliberately left to the database: Create attempts the insert
// and translates the unique-constraint violation into ErrDuplicateName rather
// than running a look-before-you-leap query.
//
// All public methods are OpenTelemetry-instrumented; spans carry task
// identifiers and pagination parameters where applicable.

package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-task-backend/internal/domain"
	"github.com/tbourn/go-task-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TaskRepo defines the repository contract required by TaskService.
// Implementations are responsible for persistence of task rows.
type TaskRepo interface {
	// CreateTask inserts a new task row. It returns repo.ErrDuplicate when
	// the name collides with an existing one.
	CreateTask(ctx context.Context, db *gorm.DB, name string) (*domain.Task, error)

	// ListTasks returns all tasks in insertion order (non-paginated).
	ListTasks(ctx context.Context, db *gorm.DB) ([]domain.Task, error)

	// CountTasks returns the total number of tasks for pagination.
	CountTasks(ctx context.Context, db *gorm.DB) (int64, error)

	// ListTasksPage returns a page of tasks in insertion order.
	ListTasksPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Task, error)

	// GetTask fetches a task by ID.
	GetTask(ctx context.Context, db *gorm.DB, id uint) (*domain.Task, error)

	// DeleteTask hard-deletes a task by ID.
	DeleteTask(ctx context.Context, db *gorm.DB, id uint) error
}

// TaskService provides task-level operations such as creating, listing,
// fetching, and deleting tasks. It enforces name rules and translates
// repository errors into the service-level sentinels.
type TaskService struct {
	// DB is the connection handle handed to every repository call.
	DB *gorm.DB
	// Repo is the persistence implementation; tests swap in fakes here.
	Repo TaskRepo

	// NameMaxLen caps task names by rune length.
	NameMaxLen int
}

// NewTaskService constructs a TaskService with the default name cap matching
// the task_name column width.
func NewTaskService(db *gorm.DB, r TaskRepo) *TaskService {
	return &TaskService{
		DB:         db,
		Repo:       r,
		NameMaxLen: 80,
	}
}

// Create inserts a new task with the provided name. The name is trimmed
// before validation and stored as-is otherwise. It returns ErrNameRequired
// for blank names, ErrNameTooLong when the trimmed name exceeds NameMaxLen
// runes, and ErrDuplicateName when the name is already taken.
func (s *TaskService) Create(ctx context.Context, name string) (*domain.Task, error) {
	tr := otel.Tracer("services/TaskService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("task.name", name)),
	)
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if s.NameMaxLen > 0 && utf8.RuneCountInString(name) > s.NameMaxLen {
		return nil, ErrNameTooLong
	}

	t, err := s.Repo.CreateTask(ctx, s.DB, name)
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return t, nil
}

// List returns all tasks in insertion order, unpaginated. Once the table
// grows past a screenful, ListPage is the better call.
func (s *TaskService) List(ctx context.Context) ([]domain.Task, error) {
	tr := otel.Tracer("services/TaskService")
	ctx, span := tr.Start(ctx, "List")
	defer span.End()

	return s.Repo.ListTasks(ctx, s.DB)
}

// ListPage returns a page of tasks (paginated) together with the total count.
// It applies defaults for invalid page/pageSize.
func (s *TaskService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Task, int64, error) {
	tr := otel.Tracer("services/TaskService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountTasks(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Task{}, 0, nil
	}

	items, err := s.Repo.ListTasksPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// Get fetches a single task by ID. It returns ErrTaskNotFound when the task
// does not exist.
func (s *TaskService) Get(ctx context.Context, id uint) (*domain.Task, error) {
	tr := otel.Tracer("services/TaskService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.Int64("task.id", int64(id))),
	)
	defer span.End()

	t, err := s.Repo.GetTask(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return t, nil
}

// Delete removes a task by ID. The row is hard-deleted, so the name becomes
// available for reuse. It returns ErrTaskNotFound when the task does not
// exist.
func (s *TaskService) Delete(ctx context.Context, id uint) error {
	tr := otel.Tracer("services/TaskService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.Int64("task.id", int64(id))),
	)
	defer span.End()

	if err := s.Repo.DeleteTask(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrTaskNotFound
		}
		return err
	}
	return nil
}
