package shared

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the request payload failed validation.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInvalidStatus indicates a rental lifecycle transition was rejected.
	ErrInvalidStatus = errors.New("invalid status transition")
	// ErrConflict indicates the operation conflicts with current state.
	ErrConflict = errors.New("conflict")
	// ErrExternal indicates the accounting system call failed.
	ErrExternal = errors.New("external system error")
	// ErrNotConfigured indicates the accounting integration is not configured.
	ErrNotConfigured = errors.New("integration not configured")
)
