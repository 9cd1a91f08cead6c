package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a request failed validation before persistence.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict indicates a write lost against concurrent state.
	ErrConflict = errors.New("conflict")
)
