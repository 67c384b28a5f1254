package workflow

import (
	"time"

	"github.com/hrsuite/approval-engine/internal/domain/entity"
)

// GuardFunc evaluates whether a transition's action may run. A failed guard
// on an internal transition consumes the event without advancing the chain.
type GuardFunc func(doc *entity.ApprovalDocument, line *entity.ApprovalLine) bool

// ActionFunc mutates the document in memory when a transition is taken.
type ActionFunc func(doc *entity.ApprovalDocument, line *entity.ApprovalLine, now time.Time) error

// Transition is one row of the table: where the event leads and what runs on
// the way. Internal transitions leave the document status untouched.
type Transition struct {
	Target   entity.Status
	Internal bool
	Guard    GuardFunc
	Action   ActionFunc
}

type transitionKey struct {
	From  entity.Status
	Event Event
}

// Table is the declarative document state machine: a static map consulted by
// Fire. State lives entirely in the persisted document; the table itself is
// immutable and shared.
type Table struct {
	strictParallel bool
	transitions    map[transitionKey]Transition
}

// Option configures the transition table
type Option func(*Table)

// WithStrictParallelCompletion makes a parallel group resolve only on
// APPROVED or SKIPPED siblings; a REJECTED sibling keeps the group open.
// The default counts any resolved sibling, so a group with a rejection in a
// recovered history can never deadlock the chain.
func WithStrictParallelCompletion() Option {
	return func(t *Table) {
		t.strictParallel = true
	}
}

// NewTable builds the transition table for approval documents.
func NewTable(opts ...Option) *Table {
	t := &Table{}
	for _, opt := range opts {
		opt(t)
	}

	t.transitions = map[transitionKey]Transition{
		{entity.StatusDraft, EventSubmit}:      {Target: entity.StatusInProgress, Action: ActivateFirstLine},
		{entity.StatusDraft, EventCancel}:      {Target: entity.StatusCanceled},
		{entity.StatusInProgress, EventRejectLine}: {Target: entity.StatusRejected, Action: RejectDocument},
		{entity.StatusInProgress, EventComplete}:   {Target: entity.StatusApproved, Action: CompleteApproval},
		{entity.StatusInProgress, EventArbitraryApprove}: {Target: entity.StatusApproved, Action: ProcessArbitraryApproval},
		{entity.StatusInProgress, EventApproveLine}: {
			Target:   entity.StatusInProgress,
			Internal: true,
			Guard:    t.groupGuard(),
			Action:   ActivateNextLine,
		},
		{entity.StatusInProgress, EventAgreeLine}:  {Target: entity.StatusInProgress, Internal: true},
		{entity.StatusInProgress, EventReturnLine}: {Target: entity.StatusDraft, Action: ReturnToDraft},
		{entity.StatusInProgress, EventRecall}:     {Target: entity.StatusRecalled},
		{entity.StatusPending, EventRecall}:        {Target: entity.StatusRecalled},
		{entity.StatusPending, EventCancel}:        {Target: entity.StatusCanceled},
	}

	return t
}

func (t *Table) groupGuard() GuardFunc {
	return func(doc *entity.ApprovalDocument, line *entity.ApprovalLine) bool {
		return ParallelGroupCompleted(doc, line, t.strictParallel)
	}
}

// Lookup returns the transition for (from, event), if one is defined.
func (t *Table) Lookup(from entity.Status, event Event) (Transition, bool) {
	tr, ok := t.transitions[transitionKey{From: from, Event: event}]
	return tr, ok
}

// GroupResolved reports whether the completed line's group permits advancing
// under this table's parallel-completion semantics. Callers use it together
// with AllLinesCompleted to choose COMPLETE over APPROVE_LINE.
func (t *Table) GroupResolved(doc *entity.ApprovalDocument, line *entity.ApprovalLine) bool {
	return ParallelGroupCompleted(doc, line, t.strictParallel)
}
