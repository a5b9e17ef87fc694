package domain

import "errors"

var (
	// ErrNotFound is returned when a task or one of its children does not exist,
	// or does not belong to the task it was addressed through.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation such as a taken subtask position.
	ErrConflict = errors.New("conflict")
	// ErrInvalid wraps input validation failures.
	ErrInvalid = errors.New("invalid input")
)
