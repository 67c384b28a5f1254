package port

import (
	"context"
	"errors"
	"time"

	"github.com/hrsuite/approval-engine/internal/domain/entity"
)

// ErrVersionConflict is returned by Save when the document changed underneath
// the writer. Recoverable: re-read the document and re-evaluate the event.
var ErrVersionConflict = errors.New("document version conflict")

// DocumentRepository defines persistence operations for ApprovalDocument.
// Documents load and save as whole aggregates, lines included.
type DocumentRepository interface {
	// Create persists a new draft document and its lines.
	Create(ctx context.Context, doc *entity.ApprovalDocument) error

	// GetByID loads a document with its lines. Returns nil when not found.
	GetByID(ctx context.Context, id int64) (*entity.ApprovalDocument, error)

	// GetByNumber loads a document by tenant and document number.
	GetByNumber(ctx context.Context, tenantID, docNumber string) (*entity.ApprovalDocument, error)

	// Save writes the whole aggregate guarded by the document's version
	// counter. Returns ErrVersionConflict when a concurrent writer won.
	Save(ctx context.Context, doc *entity.ApprovalDocument) error

	// List retrieves a tenant's documents, newest first.
	List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.ApprovalDocument, error)

	// FindOverdueActive returns documents whose deadline has passed and that
	// are neither terminal nor already escalated.
	FindOverdueActive(ctx context.Context, now time.Time, limit int) ([]*entity.ApprovalDocument, error)

	// MarkEscalated sets the escalation flag only. Deliberately not version
	// guarded: the flag is safe to apply against a stale read because it
	// never touches line state or status.
	MarkEscalated(ctx context.Context, id int64) error
}

// HistoryRepository defines persistence operations for the transition audit trail
type HistoryRepository interface {
	Create(ctx context.Context, record *entity.TransitionRecord) error
	GetByDocumentID(ctx context.Context, documentID int64) ([]*entity.TransitionRecord, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
