package entity

import (
	"fmt"
	"time"
)

// LineType classifies how an approval line participates in the chain
type LineType string

const (
	LineTypeSequential LineType = "SEQUENTIAL"
	LineTypeParallel   LineType = "PARALLEL"
	LineTypeArbitrary  LineType = "ARBITRARY"
)

var validLineTypes = map[LineType]bool{
	LineTypeSequential: true,
	LineTypeParallel:   true,
	LineTypeArbitrary:  true,
}

// IsValid returns true if the line type is a known type
func (t LineType) IsValid() bool {
	return validLineTypes[t]
}

// String returns the string representation of the line type
func (t LineType) String() string {
	return string(t)
}

// LineStatus represents the state of a single approval line
type LineStatus string

const (
	LineStatusWaiting  LineStatus = "WAITING"
	LineStatusActive   LineStatus = "ACTIVE"
	LineStatusApproved LineStatus = "APPROVED"
	LineStatusRejected LineStatus = "REJECTED"
	LineStatusSkipped  LineStatus = "SKIPPED"
)

var terminalLineStatuses = map[LineStatus]bool{
	LineStatusApproved: true,
	LineStatusRejected: true,
	LineStatusSkipped:  true,
}

// IsTerminal returns true if the line has been resolved (approved, rejected
// or skipped); a terminal line never changes again except through a
// return-to-draft reset of the whole document.
func (s LineStatus) IsTerminal() bool {
	return terminalLineStatuses[s]
}

// String returns the string representation of the line status
func (s LineStatus) String() string {
	return string(s)
}

// ApprovalLine is a single step in a document's approval chain. Lines sharing
// a sequence number form a group: a parallel group when any of them is
// PARALLEL, otherwise a set of mutually exclusive approvers of which only the
// first (in stored order) is activated.
type ApprovalLine struct {
	ID           int64      `json:"id"`
	DocumentID   int64      `json:"document_id"`
	Sequence     int        `json:"sequence"`
	LineType     LineType   `json:"line_type"`
	Status       LineStatus `json:"status"`
	ApproverID   string     `json:"approver_id"`
	ApproverName string     `json:"approver_name"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Activate moves a waiting line to ACTIVE and records the activation time.
func (l *ApprovalLine) Activate(now time.Time) error {
	if l.Status != LineStatusWaiting {
		return fmt.Errorf("%w: cannot activate line %d in status %s", ErrLineTransition, l.ID, l.Status)
	}
	l.Status = LineStatusActive
	l.ActivatedAt = &now
	return nil
}

// Approve completes an active line with an approval decision.
func (l *ApprovalLine) Approve(now time.Time) error {
	if l.Status != LineStatusActive {
		return fmt.Errorf("%w: cannot approve line %d in status %s", ErrLineTransition, l.ID, l.Status)
	}
	l.Status = LineStatusApproved
	l.CompletedAt = &now
	return nil
}

// Reject completes an active line with a rejection decision.
func (l *ApprovalLine) Reject(now time.Time) error {
	if l.Status != LineStatusActive {
		return fmt.Errorf("%w: cannot reject line %d in status %s", ErrLineTransition, l.ID, l.Status)
	}
	l.Status = LineStatusRejected
	l.CompletedAt = &now
	return nil
}

// Skip resolves a waiting line without a decision. Only fired by an
// arbitrary approval terminating the remaining chain.
func (l *ApprovalLine) Skip() error {
	if l.Status != LineStatusWaiting {
		return fmt.Errorf("%w: cannot skip line %d in status %s", ErrLineTransition, l.ID, l.Status)
	}
	l.Status = LineStatusSkipped
	return nil
}

// Reset puts the line back to WAITING, clearing the activation and decision
// timestamps. The approver assignment is kept; re-resolving approvers is the
// line template's job, not ours.
func (l *ApprovalLine) Reset() {
	l.Status = LineStatusWaiting
	l.ActivatedAt = nil
	l.CompletedAt = nil
}

// Completed returns true if the line has been resolved.
func (l *ApprovalLine) Completed() bool {
	return l.Status.IsTerminal()
}
