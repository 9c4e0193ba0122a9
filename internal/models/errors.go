package models

import "errors"

var (
	// ErrNotFound means the referenced record vanished before a task ran.
	// Callers treat it as a successful no-op, not a failure.
	ErrNotFound = errors.New("record not found")

	// ErrNotActive means a status precondition failed: the alert was
	// acknowledged, dismissed, or already escalated before the task ran.
	// This is the cooperative cancellation signal.
	ErrNotActive = errors.New("alert is not active")

	// ErrInvalidTransition means a status change violates the state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
)
