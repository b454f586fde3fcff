// Package domain defines the persistence model for tasks. The type is mapped
// with GORM and forms the core data layer of the task list application.
package domain

import (
	"time"
)

// Task represents a single to-do item. Task names are unique across the
// whole table, so inserting a duplicate name fails at the database layer.
// Rows are hard-deleted, which frees the name for reuse.
//
// Fields:
//   - ID: auto-incremented integer primary key.
//   - Name: unique task label, stored in the task_name column (varchar(80)).
//   - CreatedAt: insertion timestamp, stored as date_created.
//   - UpdatedAt: last-modification timestamp, stored as date_modified.
type Task struct {
	ID        uint      `json:"id"            gorm:"primaryKey"`
	Name      string    `json:"task_name"     gorm:"column:task_name;type:varchar(80);not null;uniqueIndex:ux_tasks_name"`
	CreatedAt time.Time `json:"date_created"  gorm:"column:date_created"`
	UpdatedAt time.Time `json:"date_modified" gorm:"column:date_modified"`
}

// TableName returns the database table name for Task.
func (Task) TableName() string { return "tasks" }
