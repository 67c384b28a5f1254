package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hrsuite/approval-engine/internal/application/port"
	"github.com/hrsuite/approval-engine/internal/domain/entity"
	"github.com/hrsuite/approval-engine/internal/infrastructure/persistence/sqlite"
)

// DocumentRepository implements port.DocumentRepository on SQLite.
// Documents load and save as whole aggregates with their lines.
type DocumentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sql.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

const documentColumns = `id, tenant_id, doc_number, title, content, doc_type,
	ref_type, ref_id, drafter_id, drafter_name, status,
	submitted_at, completed_at, deadline_at, escalated, return_count,
	version, created_at, updated_at`

const lineColumns = `id, document_id, sequence, line_type, status,
	approver_id, approver_name, activated_at, completed_at,
	created_at, updated_at`

// Create persists a new draft document and its lines
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.ApprovalDocument) error {
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.Version = 1

	query := `
		INSERT INTO approval_documents (
			tenant_id, doc_number, title, content, doc_type,
			ref_type, ref_id, drafter_id, drafter_name, status,
			submitted_at, completed_at, deadline_at, escalated, return_count,
			version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		doc.TenantID,
		doc.DocNumber,
		doc.Title,
		doc.Content,
		doc.DocType,
		doc.RefType,
		doc.RefID,
		doc.DrafterID,
		doc.DrafterName,
		doc.Status,
		doc.SubmittedAt,
		doc.CompletedAt,
		doc.DeadlineAt,
		doc.Escalated,
		doc.ReturnCount,
		doc.Version,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create document", zap.Error(err))
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	doc.ID = id

	lineQuery := `
		INSERT INTO approval_lines (
			document_id, sequence, line_type, status,
			approver_id, approver_name, activated_at, completed_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, line := range doc.Lines {
		line.DocumentID = doc.ID
		line.CreatedAt = now
		line.UpdatedAt = now

		res, err := r.getExecutor(ctx).ExecContext(ctx, lineQuery,
			line.DocumentID,
			line.Sequence,
			line.LineType,
			line.Status,
			line.ApproverID,
			line.ApproverName,
			line.ActivatedAt,
			line.CompletedAt,
			line.CreatedAt,
			line.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create approval line", zap.Int64("document_id", doc.ID), zap.Error(err))
			return fmt.Errorf("failed to create approval line: %w", err)
		}
		lineID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get line insert id: %w", err)
		}
		line.ID = lineID
	}

	return nil
}

// GetByID loads a document with its lines. Returns nil when not found.
func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_documents WHERE id = ?`, documentColumns)

	doc, err := r.scanDocument(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get document by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if err := r.loadLines(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetByNumber loads a document by tenant and document number
func (r *DocumentRepository) GetByNumber(ctx context.Context, tenantID, docNumber string) (*entity.ApprovalDocument, error) {
	query := fmt.Sprintf(`SELECT %s FROM approval_documents WHERE tenant_id = ? AND doc_number = ?`, documentColumns)

	doc, err := r.scanDocument(r.getExecutor(ctx).QueryRowContext(ctx, query, tenantID, docNumber))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get document by number",
			zap.String("tenant_id", tenantID),
			zap.String("doc_number", docNumber),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if err := r.loadLines(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Save writes the whole aggregate guarded by the document's version counter.
// A concurrent writer that committed first makes the guarded UPDATE match
// zero rows, which surfaces as port.ErrVersionConflict.
func (r *DocumentRepository) Save(ctx context.Context, doc *entity.ApprovalDocument) error {
	doc.UpdatedAt = time.Now()

	query := `
		UPDATE approval_documents SET
			title = ?, content = ?, status = ?,
			submitted_at = ?, completed_at = ?, deadline_at = ?,
			escalated = ?, return_count = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		doc.Title,
		doc.Content,
		doc.Status,
		doc.SubmittedAt,
		doc.CompletedAt,
		doc.DeadlineAt,
		doc.Escalated,
		doc.ReturnCount,
		doc.UpdatedAt,
		doc.ID,
		doc.Version,
	)
	if err != nil {
		r.logger.Error("Failed to save document", zap.Int64("id", doc.ID), zap.Error(err))
		return fmt.Errorf("failed to save document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("document %d version %d: %w", doc.ID, doc.Version, port.ErrVersionConflict)
	}
	doc.Version++

	lineQuery := `
		UPDATE approval_lines SET
			status = ?, activated_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`
	for _, line := range doc.Lines {
		line.UpdatedAt = doc.UpdatedAt
		_, err := r.getExecutor(ctx).ExecContext(ctx, lineQuery,
			line.Status,
			line.ActivatedAt,
			line.CompletedAt,
			line.UpdatedAt,
			line.ID,
		)
		if err != nil {
			r.logger.Error("Failed to save approval line",
				zap.Int64("document_id", doc.ID),
				zap.Int64("line_id", line.ID),
				zap.Error(err))
			return fmt.Errorf("failed to save approval line: %w", err)
		}
	}

	return nil
}

// List retrieves a tenant's documents with pagination, newest first
func (r *DocumentRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.ApprovalDocument, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM approval_documents
		WHERE tenant_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, documentColumns)

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list documents", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs, err := r.scanDocuments(rows)
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if err := r.loadLines(ctx, doc); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// FindOverdueActive returns documents whose deadline has passed and that are
// neither terminal nor already escalated
func (r *DocumentRepository) FindOverdueActive(ctx context.Context, now time.Time, limit int) ([]*entity.ApprovalDocument, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM approval_documents
		WHERE deadline_at IS NOT NULL
			AND deadline_at < ?
			AND escalated = 0
			AND status NOT IN ('APPROVED', 'REJECTED', 'CANCELED', 'RECALLED')
		ORDER BY deadline_at ASC
		LIMIT ?
	`, documentColumns)

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, now, limit)
	if err != nil {
		r.logger.Error("Failed to find overdue documents", zap.Error(err))
		return nil, fmt.Errorf("failed to find overdue documents: %w", err)
	}
	defer rows.Close()

	docs, err := r.scanDocuments(rows)
	if err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if err := r.loadLines(ctx, doc); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// MarkEscalated sets the escalation flag only. Not version guarded: the flag
// never touches line state or status, so a stale read cannot corrupt anything.
func (r *DocumentRepository) MarkEscalated(ctx context.Context, id int64) error {
	query := `UPDATE approval_documents SET escalated = 1, updated_at = ? WHERE id = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to mark document escalated", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark document escalated: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *DocumentRepository) scanDocument(row rowScanner) (*entity.ApprovalDocument, error) {
	var doc entity.ApprovalDocument
	var submittedAt, completedAt, deadlineAt sql.NullTime

	err := row.Scan(
		&doc.ID,
		&doc.TenantID,
		&doc.DocNumber,
		&doc.Title,
		&doc.Content,
		&doc.DocType,
		&doc.RefType,
		&doc.RefID,
		&doc.DrafterID,
		&doc.DrafterName,
		&doc.Status,
		&submittedAt,
		&completedAt,
		&deadlineAt,
		&doc.Escalated,
		&doc.ReturnCount,
		&doc.Version,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if submittedAt.Valid {
		doc.SubmittedAt = &submittedAt.Time
	}
	if completedAt.Valid {
		doc.CompletedAt = &completedAt.Time
	}
	if deadlineAt.Valid {
		doc.DeadlineAt = &deadlineAt.Time
	}

	return &doc, nil
}

func (r *DocumentRepository) scanDocuments(rows *sql.Rows) ([]*entity.ApprovalDocument, error) {
	var docs []*entity.ApprovalDocument
	for rows.Next() {
		doc, err := r.scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// loadLines loads a document's lines ordered by sequence then insertion order.
// The ordering matters: sequential tie-break activates the first stored line.
func (r *DocumentRepository) loadLines(ctx context.Context, doc *entity.ApprovalDocument) error {
	query := fmt.Sprintf(`
		SELECT %s FROM approval_lines
		WHERE document_id = ?
		ORDER BY sequence ASC, id ASC
	`, lineColumns)

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, doc.ID)
	if err != nil {
		r.logger.Error("Failed to load approval lines", zap.Int64("document_id", doc.ID), zap.Error(err))
		return fmt.Errorf("failed to load approval lines: %w", err)
	}
	defer rows.Close()

	var lines []*entity.ApprovalLine
	for rows.Next() {
		var line entity.ApprovalLine
		var activatedAt, completedAt sql.NullTime

		err := rows.Scan(
			&line.ID,
			&line.DocumentID,
			&line.Sequence,
			&line.LineType,
			&line.Status,
			&line.ApproverID,
			&line.ApproverName,
			&activatedAt,
			&completedAt,
			&line.CreatedAt,
			&line.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to scan approval line: %w", err)
		}

		if activatedAt.Valid {
			line.ActivatedAt = &activatedAt.Time
		}
		if completedAt.Valid {
			line.CompletedAt = &completedAt.Time
		}

		lines = append(lines, &line)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	doc.Lines = lines
	return nil
}

// getExecutor returns appropriate executor based on context
func (r *DocumentRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.DocumentRepository = (*DocumentRepository)(nil)
