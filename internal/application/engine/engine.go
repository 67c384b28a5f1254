package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hrsuite/approval-engine/internal/application/dispatcher"
	"github.com/hrsuite/approval-engine/internal/application/port"
	"github.com/hrsuite/approval-engine/internal/domain/entity"
	"github.com/hrsuite/approval-engine/internal/domain/event"
	"github.com/hrsuite/approval-engine/internal/domain/workflow"
)

// ErrDocumentNotFound is returned when the referenced document does not exist
var ErrDocumentNotFound = errors.New("document not found")

// ErrUnknownDecision is returned for a line decision outside APPROVE/REJECT/AGREE
var ErrUnknownDecision = errors.New("unknown line decision")

// Decision is an approver's verdict on an active line
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
	DecisionAgree   Decision = "AGREE"
)

// Engine is the single entry point mutating document and line state. It is
// stateless: each call loads a snapshot, derives the workflow event from the
// caller's intent, fires it against the transition table and commits the
// result atomically. A losing concurrent writer is retried against a fresh
// snapshot; nothing else is ever retried.
type Engine struct {
	docRepo     port.DocumentRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	table       *workflow.Table
	logger      *zap.Logger
	maxRetries  int
	now         func() time.Time
}

// Option configures the engine
type Option func(*Engine)

// WithDispatcher sets the event dispatcher for emitting document events
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(e *Engine) {
		e.dispatcher = d
	}
}

// WithTable replaces the default transition table
func WithTable(t *workflow.Table) Option {
	return func(e *Engine) {
		e.table = t
	}
}

// WithMaxRetries sets how many times a version-conflicted commit is retried
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		e.maxRetries = n
	}
}

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates a workflow engine
func New(
	docRepo port.DocumentRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		docRepo:     docRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		table:       workflow.NewTable(),
		logger:      logger,
		maxRetries:  3,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// deriveFunc inspects a fresh document snapshot and produces the workflow
// event to fire plus the triggering line, possibly mutating the line first
// (recording the approver's decision). It runs again on every retry so the
// decision is always re-evaluated against current state.
type deriveFunc func(doc *entity.ApprovalDocument) (workflow.Event, *entity.ApprovalLine, error)

// Submit moves a draft document into its approval chain.
func (e *Engine) Submit(ctx context.Context, documentID int64, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
	return e.execute(ctx, documentID, actor, func(doc *entity.ApprovalDocument) (workflow.Event, *entity.ApprovalLine, error) {
		return workflow.EventSubmit, nil, nil
	})
}

// Decide records an approver's decision on a line and fires the matching
// event: ARBITRARY_APPROVE for an approved arbitrary line, COMPLETE when
// nothing is left to activate and the line's group has resolved, APPROVE_LINE
// otherwise. REJECT maps to REJECT_LINE, AGREE to the internal AGREE_LINE.
func (e *Engine) Decide(ctx context.Context, documentID, lineID int64, decision Decision, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
	return e.execute(ctx, documentID, actor, func(doc *entity.ApprovalDocument) (workflow.Event, *entity.ApprovalLine, error) {
		line := doc.LineByID(lineID)
		if line == nil {
			return "", nil, fmt.Errorf("%w: line %d in document %d", entity.ErrLineNotFound, lineID, documentID)
		}

		// Outside IN_PROGRESS no decision event is defined; let the table
		// report "not accepted" instead of failing on the line transition.
		if doc.Status != entity.StatusInProgress {
			return decisionEvent(decision), line, nil
		}

		now := e.now()
		switch decision {
		case DecisionApprove:
			if err := line.Approve(now); err != nil {
				return "", nil, err
			}
			if workflow.IsArbitraryApproval(line) {
				return workflow.EventArbitraryApprove, line, nil
			}
			if workflow.AllLinesCompleted(doc, line) && e.table.GroupResolved(doc, line) {
				return workflow.EventComplete, line, nil
			}
			return workflow.EventApproveLine, line, nil

		case DecisionReject:
			if err := line.Reject(now); err != nil {
				return "", nil, err
			}
			return workflow.EventRejectLine, line, nil

		case DecisionAgree:
			if err := line.Approve(now); err != nil {
				return "", nil, err
			}
			return workflow.EventAgreeLine, line, nil

		default:
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownDecision, decision)
		}
	})
}

// Return sends an in-progress document back to its drafter.
func (e *Engine) Return(ctx context.Context, documentID, lineID int64, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
	return e.execute(ctx, documentID, actor, func(doc *entity.ApprovalDocument) (workflow.Event, *entity.ApprovalLine, error) {
		line := doc.LineByID(lineID)
		if line == nil {
			return "", nil, fmt.Errorf("%w: line %d in document %d", entity.ErrLineNotFound, lineID, documentID)
		}
		return workflow.EventReturnLine, line, nil
	})
}

// Recall withdraws a document at the drafter's request.
func (e *Engine) Recall(ctx context.Context, documentID int64, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
	return e.execute(ctx, documentID, actor, func(doc *entity.ApprovalDocument) (workflow.Event, *entity.ApprovalLine, error) {
		return workflow.EventRecall, nil, nil
	})
}

// Cancel discards a document that never entered (or was held out of) its chain.
func (e *Engine) Cancel(ctx context.Context, documentID int64, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
	return e.execute(ctx, documentID, actor, func(doc *entity.ApprovalDocument) (workflow.Event, *entity.ApprovalLine, error) {
		return workflow.EventCancel, nil, nil
	})
}

func (e *Engine) execute(ctx context.Context, documentID int64, actor string, derive deriveFunc) (*entity.ApprovalDocument, workflow.Result, error) {
	for attempt := 0; ; attempt++ {
		doc, err := e.docRepo.GetByID(ctx, documentID)
		if err != nil {
			return nil, workflow.Result{}, fmt.Errorf("load document %d: %w", documentID, err)
		}
		if doc == nil {
			return nil, workflow.Result{}, fmt.Errorf("%w: %d", ErrDocumentNotFound, documentID)
		}

		if err := doc.CheckLineInvariant(); err != nil {
			e.logger.Error("Document failed invariant check",
				zap.Int64("document_id", documentID),
				zap.Error(err))
			return nil, workflow.Result{}, err
		}

		ev, line, err := derive(doc)
		if err != nil {
			return nil, workflow.Result{}, err
		}

		res, err := e.table.Fire(doc, ev, line, e.now())
		if err != nil {
			return nil, workflow.Result{}, err
		}
		if !res.Accepted {
			e.logger.Info("Transition not accepted",
				zap.Int64("document_id", documentID),
				zap.String("event", ev.String()),
				zap.String("status", doc.Status.String()))
			return doc, res, nil
		}

		err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := e.docRepo.Save(txCtx, doc); err != nil {
				return err
			}
			record := &entity.TransitionRecord{
				DocumentID:     doc.ID,
				ActorID:        actor,
				PreviousStatus: res.Previous,
				NewStatus:      res.Current,
				Event:          ev.String(),
				Timestamp:      e.now(),
			}
			return e.historyRepo.Create(txCtx, record)
		})

		if errors.Is(err, port.ErrVersionConflict) {
			if attempt >= e.maxRetries {
				return nil, workflow.Result{}, fmt.Errorf("document %d: %w after %d attempts", documentID, port.ErrVersionConflict, attempt+1)
			}
			e.logger.Warn("Version conflict, re-evaluating against fresh snapshot",
				zap.Int64("document_id", documentID),
				zap.String("event", ev.String()),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, workflow.Result{}, fmt.Errorf("commit transition for document %d: %w", documentID, err)
		}

		e.emit(ctx, doc, ev, res)
		return doc, res, nil
	}
}

// emit dispatches a document-summary event for externally visible outcomes.
// Internal transitions stay internal.
func (e *Engine) emit(ctx context.Context, doc *entity.ApprovalDocument, ev workflow.Event, res workflow.Result) {
	if e.dispatcher == nil || res.Internal {
		return
	}

	var eventType event.Type
	switch {
	case ev == workflow.EventSubmit:
		eventType = event.TypeDocumentSubmitted
	case res.Current == entity.StatusApproved:
		eventType = event.TypeDocumentApproved
	case res.Current == entity.StatusRejected:
		eventType = event.TypeDocumentRejected
	case ev == workflow.EventReturnLine:
		eventType = event.TypeDocumentReturned
	case res.Current == entity.StatusRecalled:
		eventType = event.TypeDocumentRecalled
	case res.Current == entity.StatusCanceled:
		eventType = event.TypeDocumentCanceled
	default:
		return
	}

	e.dispatcher.DispatchAsync(ctx, event.FromDocument(eventType, doc))
}

func decisionEvent(decision Decision) workflow.Event {
	switch decision {
	case DecisionReject:
		return workflow.EventRejectLine
	case DecisionAgree:
		return workflow.EventAgreeLine
	default:
		return workflow.EventApproveLine
	}
}
