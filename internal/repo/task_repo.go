// Package repo is the persistence layer: GORM repositories over SQLite plus
// the aggregate queries built on top of them. This file holds the repository
// functions for the Task model.
//
// Every function takes a context.Context and an explicit *gorm.DB, so a
// transaction handle works exactly like the root connection. The layer stays
// deliberately thin: it persists and queries, and leaves validation and error
// translation to the services package.
//
// Error semantics:
//   - A lookup that matches no row returns ErrNotFound, an alias for
//     gorm.ErrRecordNotFound.
//   - An insert that collides with the unique task_name index returns
//     ErrDuplicate. There is no pre-insert existence check; the database
//     constraint is the single source of truth.
//   - Anything else (connectivity, missing schema) propagates as the raw
//     gorm error.
//
// Typical call site:
//
//	task, err := repo.CreateTask(ctx, db, "walk the dog")
//	if errors.Is(err, repo.ErrDuplicate) {
//	    // name already taken
//	} else if err != nil {
//	    // storage failure
//	}
//
// services.TaskService wraps these functions, adding name validation and
// the mapping onto service-level sentinels.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-task-backend/internal/domain"
)

// ErrNotFound reports a lookup that matched no row. It is an alias for
// gorm.ErrRecordNotFound, so errors.Is accepts either name.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a task with the same name already exists.
var ErrDuplicate = errors.New("duplicate")

// CreateTask inserts a new Task row with the given name. Both timestamps are
// set to the same UTC instant. The row id is assigned by SQLite.
//
// On a unique violation it returns ErrDuplicate; on other failures the DB
// error is returned as-is.
func CreateTask(ctx context.Context, db *gorm.DB, name string) (*domain.Task, error) {
	now := time.Now().UTC()
	t := &domain.Task{
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(t).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return t, nil
}

// ListTasks returns every task ordered by id ascending, which matches
// insertion order.
func ListTasks(ctx context.Context, db *gorm.DB) ([]domain.Task, error) {
	var out []domain.Task
	err := db.WithContext(ctx).
		Order("id asc").
		Find(&out).Error
	return out, err
}

// CountTasks returns the total number of tasks.
func CountTasks(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Task{}).
		Count(&total).Error
	return total, err
}

// ListTasksPage returns one window of the task list, ordered by id ascending.
// Offset and limit arrive precomputed; the service derives them from page and
// page size. CountTasks supplies the total that goes with the window.
func ListTasksPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Task, error) {
	var out []domain.Task
	err := db.WithContext(ctx).
		Order("id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetTask fetches a single task by id, returning ErrNotFound when the row
// does not exist.
func GetTask(ctx context.Context, db *gorm.DB, id uint) (*domain.Task, error) {
	var t domain.Task
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DeleteTask hard-deletes the task identified by id, which frees the name
// for reuse. Deleting a task that is already gone returns ErrNotFound.
func DeleteTask(ctx context.Context, db *gorm.DB, id uint) error {
	res := db.WithContext(ctx).Delete(&domain.Task{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
