package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/hrsuite/approval-engine/internal/application/port"
	"github.com/hrsuite/approval-engine/internal/domain/entity"
	"github.com/hrsuite/approval-engine/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository on SQLite
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a transition record to the audit trail
func (r *HistoryRepository) Create(ctx context.Context, record *entity.TransitionRecord) error {
	query := `
		INSERT INTO approval_transitions (
			document_id, actor_id, previous_status, new_status,
			event, detail, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		record.DocumentID,
		record.ActorID,
		record.PreviousStatus,
		record.NewStatus,
		record.Event,
		record.Detail,
		record.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create transition record",
			zap.Int64("document_id", record.DocumentID),
			zap.Error(err))
		return fmt.Errorf("failed to create transition record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	record.ID = id

	return nil
}

// GetByDocumentID retrieves a document's transition records in order
func (r *HistoryRepository) GetByDocumentID(ctx context.Context, documentID int64) ([]*entity.TransitionRecord, error) {
	query := `
		SELECT id, document_id, actor_id, previous_status, new_status,
			event, detail, timestamp
		FROM approval_transitions
		WHERE document_id = ?
		ORDER BY timestamp ASC, id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, documentID)
	if err != nil {
		r.logger.Error("Failed to get transition records",
			zap.Int64("document_id", documentID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get transition records: %w", err)
	}
	defer rows.Close()

	var records []*entity.TransitionRecord
	for rows.Next() {
		var record entity.TransitionRecord
		err := rows.Scan(
			&record.ID,
			&record.DocumentID,
			&record.ActorID,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.Event,
			&record.Detail,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition record: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// getExecutor returns appropriate executor based on context
func (r *HistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
