package execq

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("execq: no store configured")
	ErrStoreClosed = errors.New("execq: store closed")

	// Not found errors.
	ErrJobNotFound = errors.New("execq: job not found")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("execq: job already exists")

	// Validation errors.
	ErrEmptyCommand = errors.New("execq: command must not be empty")

	// State errors.
	ErrInvalidTransition = errors.New("execq: invalid state transition")
	ErrVersionConflict   = errors.New("execq: job version conflict")
)
