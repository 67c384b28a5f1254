package entity

import "errors"

var (
	// ErrLineTransition is returned when a line status change is not legal
	// from the line's current status.
	ErrLineTransition = errors.New("illegal approval line transition")

	// ErrInvariantViolation is returned when a document's line list breaks
	// the activation ordering invariant. This indicates corrupted persisted
	// state and is unrecoverable for that document.
	ErrInvariantViolation = errors.New("line activation invariant violated")

	// ErrNoLines is returned when a document is created without approval lines.
	ErrNoLines = errors.New("document requires at least one approval line")

	// ErrLineNotFound is returned when a referenced line does not belong to
	// the document.
	ErrLineNotFound = errors.New("approval line not found")
)
