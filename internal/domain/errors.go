package domain

import "errors"

// Business-rule outcomes returned synchronously to the caller. These are
// matched with errors.Is; transient storage errors propagate unchanged.
var (
	ErrNotFound          = errors.New("taskradar: not found")
	ErrAlreadyTaken      = errors.New("taskradar: job already taken")
	ErrDeadlinePassed    = errors.New("taskradar: acceptance deadline passed")
	ErrUnauthorized      = errors.New("taskradar: actor not allowed")
	ErrDuplicateBid      = errors.New("taskradar: bid already submitted for this job")
	ErrInvalidTransition = errors.New("taskradar: invalid state transition")
	ErrValidation        = errors.New("taskradar: invalid input")
	ErrDuplicateEmail    = errors.New("taskradar: email already registered")
)
