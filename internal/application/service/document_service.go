package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hrsuite/approval-engine/internal/application/engine"
	"github.com/hrsuite/approval-engine/internal/application/port"
	"github.com/hrsuite/approval-engine/internal/domain/entity"
	"github.com/hrsuite/approval-engine/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// LineInput describes one approval line at drafting time. Approvers are
// already resolved to concrete IDs by the caller.
type LineInput struct {
	Sequence     int             `json:"sequence"`
	LineType     entity.LineType `json:"line_type"`
	ApproverID   string          `json:"approver_id"`
	ApproverName string          `json:"approver_name"`
}

// CreateDocumentInput carries everything needed to draft a document
type CreateDocumentInput struct {
	TenantID    string      `json:"tenant_id"`
	DocNumber   string      `json:"doc_number"`
	Title       string      `json:"title"`
	Content     string      `json:"content"`
	DocType     string      `json:"doc_type"`
	RefType     string      `json:"ref_type"`
	RefID       string      `json:"ref_id"`
	DrafterID   string      `json:"drafter_id"`
	DrafterName string      `json:"drafter_name"`
	DeadlineAt  *time.Time  `json:"deadline_at,omitempty"`
	Lines       []LineInput `json:"lines"`
}

// DocumentService manages approval documents: drafting and reads here,
// transitions delegated to the workflow engine.
type DocumentService interface {
	Create(ctx context.Context, input CreateDocumentInput) (*entity.ApprovalDocument, error)
	Get(ctx context.Context, id int64) (*entity.ApprovalDocument, error)
	GetByNumber(ctx context.Context, tenantID, docNumber string) (*entity.ApprovalDocument, error)
	List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.ApprovalDocument, error)
	History(ctx context.Context, documentID int64) ([]*entity.TransitionRecord, error)

	Submit(ctx context.Context, id int64, actor string) (*entity.ApprovalDocument, workflow.Result, error)
	ProcessLineDecision(ctx context.Context, id, lineID int64, decision engine.Decision, actor string) (*entity.ApprovalDocument, workflow.Result, error)
	ReturnDocument(ctx context.Context, id, lineID int64, actor string) (*entity.ApprovalDocument, workflow.Result, error)
	Recall(ctx context.Context, id int64, actor string) (*entity.ApprovalDocument, workflow.Result, error)
	Cancel(ctx context.Context, id int64, actor string) (*entity.ApprovalDocument, workflow.Result, error)
}

type documentServiceImpl struct {
	docRepo     port.DocumentRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	engine      *engine.Engine
	logger      Logger
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	docRepo port.DocumentRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	wfEngine *engine.Engine,
	logger Logger,
) DocumentService {
	return &documentServiceImpl{
		docRepo:     docRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		engine:      wfEngine,
		logger:      logger,
	}
}

// Create drafts a new document with its full line list
func (s *documentServiceImpl) Create(ctx context.Context, input CreateDocumentInput) (*entity.ApprovalDocument, error) {
	if input.TenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if input.DocNumber == "" {
		return nil, fmt.Errorf("doc_number is required")
	}
	if input.DrafterID == "" {
		return nil, fmt.Errorf("drafter_id is required")
	}

	// Document numbers are unique per tenant (idempotency).
	existing, err := s.docRepo.GetByNumber(ctx, input.TenantID, input.DocNumber)
	if err != nil {
		return nil, fmt.Errorf("check existing document: %w", err)
	}
	if existing != nil {
		s.logger.Info("Document already exists", "tenant_id", input.TenantID, "doc_number", input.DocNumber, "id", existing.ID)
		return existing, nil
	}

	lines := make([]*entity.ApprovalLine, 0, len(input.Lines))
	for _, li := range input.Lines {
		lines = append(lines, &entity.ApprovalLine{
			Sequence:     li.Sequence,
			LineType:     li.LineType,
			ApproverID:   li.ApproverID,
			ApproverName: li.ApproverName,
		})
	}

	doc, err := entity.NewDocument(
		input.TenantID, input.DocNumber, input.Title, input.Content,
		input.DocType, input.RefType, input.RefID,
		input.DrafterID, input.DrafterName,
		input.DeadlineAt, lines,
	)
	if err != nil {
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.docRepo.Create(txCtx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}

		record := &entity.TransitionRecord{
			DocumentID:     doc.ID,
			ActorID:        input.DrafterID,
			PreviousStatus: "",
			NewStatus:      entity.StatusDraft,
			Event:          "CREATE",
			Detail:         "Document drafted",
			Timestamp:      time.Now(),
		}
		if err := s.historyRepo.Create(txCtx, record); err != nil {
			return fmt.Errorf("create history: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create document", "error", err, "tenant_id", input.TenantID, "doc_number", input.DocNumber)
		return nil, err
	}

	s.logger.Info("Document created", "id", doc.ID, "tenant_id", doc.TenantID, "doc_number", doc.DocNumber, "lines", len(doc.Lines))
	return doc, nil
}

// Get retrieves a document by ID
func (s *documentServiceImpl) Get(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get document", "error", err, "id", id)
		return nil, err
	}
	return doc, nil
}

// GetByNumber retrieves a document by tenant and document number
func (s *documentServiceImpl) GetByNumber(ctx context.Context, tenantID, docNumber string) (*entity.ApprovalDocument, error) {
	doc, err := s.docRepo.GetByNumber(ctx, tenantID, docNumber)
	if err != nil {
		s.logger.Error("Failed to get document by number", "error", err, "tenant_id", tenantID, "doc_number", docNumber)
		return nil, err
	}
	return doc, nil
}

// List retrieves a tenant's documents with pagination
func (s *documentServiceImpl) List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.ApprovalDocument, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.docRepo.List(ctx, tenantID, limit, offset)
}

// History retrieves a document's transition audit trail
func (s *documentServiceImpl) History(ctx context.Context, documentID int64) ([]*entity.TransitionRecord, error) {
	return s.historyRepo.GetByDocumentID(ctx, documentID)
}

// Submit delegates to the engine
func (s *documentServiceImpl) Submit(ctx context.Context, id int64, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
	return s.engine.Submit(ctx, id, actor)
}

// ProcessLineDecision delegates to the engine
func (s *documentServiceImpl) ProcessLineDecision(ctx context.Context, id, lineID int64, decision engine.Decision, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
	return s.engine.Decide(ctx, id, lineID, decision, actor)
}

// ReturnDocument delegates to the engine
func (s *documentServiceImpl) ReturnDocument(ctx context.Context, id, lineID int64, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
	return s.engine.Return(ctx, id, lineID, actor)
}

// Recall delegates to the engine
func (s *documentServiceImpl) Recall(ctx context.Context, id int64, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
	return s.engine.Recall(ctx, id, actor)
}

// Cancel delegates to the engine
func (s *documentServiceImpl) Cancel(ctx context.Context, id int64, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
	return s.engine.Cancel(ctx, id, actor)
}
