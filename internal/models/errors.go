package models

import "errors"

var (
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a record or request failed a business rule.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState indicates a workflow transition not allowed from the current state.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrConflict indicates a uniqueness rule was violated.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrOutOfRange indicates a check-in outside every allowed office radius.
	ErrOutOfRange = errors.New("outside allowed office radius")
)
