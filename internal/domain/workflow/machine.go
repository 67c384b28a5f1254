package workflow

import (
	"time"

	"github.com/hrsuite/approval-engine/internal/domain/entity"
)

// Result describes the outcome of firing an event against a document.
// Accepted=false means the event is not defined for the current status; the
// document is untouched and the caller presents it as a validation failure,
// not an error.
type Result struct {
	Accepted bool
	Internal bool
	Previous entity.Status
	Current  entity.Status
}

// Fire evaluates one event against one document snapshot. The triggering
// line may be nil for document-level events (SUBMIT, RECALL, CANCEL).
//
// Fire mutates the snapshot in memory only; persisting or discarding it is
// the caller's responsibility, in a single all-or-nothing commit.
func (t *Table) Fire(doc *entity.ApprovalDocument, event Event, line *entity.ApprovalLine, now time.Time) (Result, error) {
	tr, ok := t.Lookup(doc.Status, event)
	if !ok {
		return Result{Accepted: false, Previous: doc.Status, Current: doc.Status}, nil
	}

	// A failed guard consumes the event without running the action: the
	// line's own completion stands, the chain simply does not advance until
	// the rest of its group resolves.
	if tr.Guard != nil && !tr.Guard(doc, line) {
		return Result{Accepted: true, Internal: true, Previous: doc.Status, Current: doc.Status}, nil
	}

	previous := doc.Status
	if tr.Action != nil {
		if err := tr.Action(doc, line, now); err != nil {
			return Result{}, err
		}
	}
	if !tr.Internal {
		doc.Status = tr.Target
	}

	return Result{Accepted: true, Internal: tr.Internal, Previous: previous, Current: doc.Status}, nil
}
