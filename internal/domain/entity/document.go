package entity

import (
	"fmt"
	"time"
)

// ApprovalDocument is the aggregate root of an approval chain. It owns its
// ordered line list; lines have no lifecycle of their own. All state changes
// go through the workflow engine, which consults the transition table and
// calls back into the activation methods below.
type ApprovalDocument struct {
	ID          int64  `json:"id"`
	TenantID    string `json:"tenant_id"`
	DocNumber   string `json:"doc_number"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	DocType     string `json:"doc_type"`
	RefType     string `json:"ref_type"`
	RefID       string `json:"ref_id"`
	DrafterID   string `json:"drafter_id"`
	DrafterName string `json:"drafter_name"`
	Status      Status `json:"status"`

	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DeadlineAt  *time.Time `json:"deadline_at,omitempty"`
	Escalated   bool       `json:"escalated"`
	ReturnCount int        `json:"return_count"`

	// Version is the optimistic concurrency counter enforced by the store.
	Version int64 `json:"version"`

	Lines []*ApprovalLine `json:"lines"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDocument creates a draft document with a fully populated line list.
// Line resolution (who approves at which step) happens upstream; by the time
// a document exists every line carries a concrete approver.
func NewDocument(tenantID, docNumber, title, content, docType, refType, refID, drafterID, drafterName string, deadlineAt *time.Time, lines []*ApprovalLine) (*ApprovalDocument, error) {
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	for i, line := range lines {
		if line.Sequence < 1 {
			return nil, fmt.Errorf("line %d: sequence must be positive, got %d", i, line.Sequence)
		}
		if !line.LineType.IsValid() {
			return nil, fmt.Errorf("line %d: invalid line type %q", i, line.LineType)
		}
		if line.ApproverID == "" {
			return nil, fmt.Errorf("line %d: approver is required", i)
		}
		line.Status = LineStatusWaiting
	}

	return &ApprovalDocument{
		TenantID:    tenantID,
		DocNumber:   docNumber,
		Title:       title,
		Content:     content,
		DocType:     docType,
		RefType:     refType,
		RefID:       refID,
		DrafterID:   drafterID,
		DrafterName: drafterName,
		Status:      StatusDraft,
		DeadlineAt:  deadlineAt,
		Lines:       lines,
	}, nil
}

// LineByID returns the owned line with the given ID, or nil.
func (d *ApprovalDocument) LineByID(lineID int64) *ApprovalLine {
	for _, line := range d.Lines {
		if line.ID == lineID {
			return line
		}
	}
	return nil
}

// LinesAt returns all lines sharing a sequence number, preserving stored order.
func (d *ApprovalDocument) LinesAt(sequence int) []*ApprovalLine {
	var group []*ApprovalLine
	for _, line := range d.Lines {
		if line.Sequence == sequence {
			group = append(group, line)
		}
	}
	return group
}

// ActivateNextLines wakes up the group at fromSeq+1. Waiting lines at that
// sequence form the candidate set, in stored order:
//   - if any candidate is PARALLEL, every candidate is activated and the whole
//     group must resolve before the chain advances;
//   - otherwise only the first candidate is activated, even when several
//     mutually exclusive approvers share the sequence.
//
// An empty candidate set is a no-op; callers check HasNextLine or
// AllLinesCompleted before advancing.
func (d *ApprovalDocument) ActivateNextLines(fromSeq int, now time.Time) ([]*ApprovalLine, error) {
	nextSeq := fromSeq + 1

	var candidates []*ApprovalLine
	parallel := false
	for _, line := range d.Lines {
		if line.Sequence == nextSeq && line.Status == LineStatusWaiting {
			candidates = append(candidates, line)
			if line.LineType == LineTypeParallel {
				parallel = true
			}
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	if !parallel {
		candidates = candidates[:1]
	}
	for _, line := range candidates {
		if err := line.Activate(now); err != nil {
			return nil, err
		}
	}
	return candidates, nil
}

// HasNextLine reports whether a waiting line exists at fromSeq+1.
func (d *ApprovalDocument) HasNextLine(fromSeq int) bool {
	for _, line := range d.Lines {
		if line.Sequence == fromSeq+1 && line.Status == LineStatusWaiting {
			return true
		}
	}
	return false
}

// AllLinesCompleted reports whether nothing is left to activate beyond
// fromSeq: no waiting line with a sequence greater than fromSeq exists.
// Waiting lines at fromSeq itself do not count; a sequential tie leaves the
// unchosen siblings waiting forever.
func (d *ApprovalDocument) AllLinesCompleted(fromSeq int) bool {
	for _, line := range d.Lines {
		if line.Sequence >= fromSeq+1 && line.Status == LineStatusWaiting {
			return false
		}
	}
	return true
}

// SkipWaitingAfter marks every waiting line beyond the given sequence as
// SKIPPED. Implements the arbitrary-approval final sign-off.
func (d *ApprovalDocument) SkipWaitingAfter(sequence int) int {
	skipped := 0
	for _, line := range d.Lines {
		if line.Sequence > sequence && line.Status == LineStatusWaiting {
			if err := line.Skip(); err == nil {
				skipped++
			}
		}
	}
	return skipped
}

// ReturnToDraft resets the chain for redrafting: every line goes back to
// WAITING with its timestamps cleared, the submission and completion marks
// are dropped, and the return counter is incremented. The document status
// itself is set by the engine from the transition table.
func (d *ApprovalDocument) ReturnToDraft() {
	for _, line := range d.Lines {
		line.Reset()
	}
	d.SubmittedAt = nil
	d.CompletedAt = nil
	d.ReturnCount++
}

// ActiveLines returns all lines currently holding ACTIVE.
func (d *ApprovalDocument) ActiveLines() []*ApprovalLine {
	var active []*ApprovalLine
	for _, line := range d.Lines {
		if line.Status == LineStatusActive {
			active = append(active, line)
		}
	}
	return active
}

// ActiveApproverIDs returns the approver IDs of all ACTIVE lines.
func (d *ApprovalDocument) ActiveApproverIDs() []string {
	var ids []string
	for _, line := range d.ActiveLines() {
		ids = append(ids, line.ApproverID)
	}
	return ids
}

// CheckLineInvariant verifies the activation ordering invariant for the
// document's current status:
//   - DRAFT: every line is WAITING;
//   - IN_PROGRESS: only the group at the minimum unresolved sequence may hold
//     ACTIVE, everything below it is resolved, everything above it is WAITING;
//   - any other status: no line is ACTIVE.
//
// A violation means prior persistence corrupted the document; it is surfaced,
// never repaired.
func (d *ApprovalDocument) CheckLineInvariant() error {
	switch d.Status {
	case StatusDraft:
		for _, line := range d.Lines {
			if line.Status != LineStatusWaiting {
				return fmt.Errorf("%w: draft document %d has line %d in status %s", ErrInvariantViolation, d.ID, line.ID, line.Status)
			}
		}
	case StatusInProgress:
		minSeq := 0
		for _, line := range d.Lines {
			if line.Status.IsTerminal() {
				continue
			}
			if minSeq == 0 || line.Sequence < minSeq {
				minSeq = line.Sequence
			}
		}
		if minSeq == 0 {
			return fmt.Errorf("%w: in-progress document %d has no unresolved lines", ErrInvariantViolation, d.ID)
		}
		for _, line := range d.Lines {
			switch {
			case line.Sequence < minSeq:
				// Resolved by definition of minSeq.
			case line.Sequence == minSeq:
				// WAITING, ACTIVE and resolved can legally coexist within
				// the current group (sequential ties stay WAITING).
			default:
				if line.Status != LineStatusWaiting {
					return fmt.Errorf("%w: document %d line %d at sequence %d is %s while sequence %d is unresolved", ErrInvariantViolation, d.ID, line.ID, line.Sequence, line.Status, minSeq)
				}
			}
		}
	default:
		for _, line := range d.Lines {
			if line.Status == LineStatusActive {
				return fmt.Errorf("%w: document %d in status %s has active line %d", ErrInvariantViolation, d.ID, d.Status, line.ID)
			}
		}
	}
	return nil
}
