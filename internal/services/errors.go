// Package services defines the business logic for the task list.
//
// This file holds the sentinel errors the service layer returns. Callers
// check them with errors.Is; translating them into HTTP statuses and
// user-facing messages is the handlers' job.
package services

import "errors"

// Task-related errors.
var (
	// ErrTaskNotFound indicates that the requested task does not exist.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNameRequired is returned when a request to create a task carries
	// an empty or whitespace-only name.
	ErrNameRequired = errors.New("task name is required")

	// ErrNameTooLong is returned when a task name exceeds the configured
	// maximum length limit.
	ErrNameTooLong = errors.New("task name too long")

	// ErrDuplicateName is returned when a task with the same name already
	// exists. Uniqueness is enforced by the database constraint, not by a
	// pre-insert lookup.
	ErrDuplicateName = errors.New("task already exists")
)
