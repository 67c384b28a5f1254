package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hrsuite/approval-engine/internal/application/port"
	"github.com/hrsuite/approval-engine/internal/domain/entity"
)

// Mock repositories
type mockDocRepo struct {
	createFunc            func(ctx context.Context, doc *entity.ApprovalDocument) error
	getByIDFunc           func(ctx context.Context, id int64) (*entity.ApprovalDocument, error)
	getByNumberFunc       func(ctx context.Context, tenantID, docNumber string) (*entity.ApprovalDocument, error)
	saveFunc              func(ctx context.Context, doc *entity.ApprovalDocument) error
	listFunc              func(ctx context.Context, tenantID string, limit, offset int) ([]*entity.ApprovalDocument, error)
	findOverdueActiveFunc func(ctx context.Context, now time.Time, limit int) ([]*entity.ApprovalDocument, error)
	markEscalatedFunc     func(ctx context.Context, id int64) error

	saveCalls int
}

func (m *mockDocRepo) Create(ctx context.Context, doc *entity.ApprovalDocument) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, doc)
	}
	doc.ID = 1
	return nil
}

func (m *mockDocRepo) GetByID(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockDocRepo) GetByNumber(ctx context.Context, tenantID, docNumber string) (*entity.ApprovalDocument, error) {
	if m.getByNumberFunc != nil {
		return m.getByNumberFunc(ctx, tenantID, docNumber)
	}
	return nil, nil
}

func (m *mockDocRepo) Save(ctx context.Context, doc *entity.ApprovalDocument) error {
	m.saveCalls++
	if m.saveFunc != nil {
		return m.saveFunc(ctx, doc)
	}
	return nil
}

func (m *mockDocRepo) List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.ApprovalDocument, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, tenantID, limit, offset)
	}
	return nil, nil
}

func (m *mockDocRepo) FindOverdueActive(ctx context.Context, now time.Time, limit int) ([]*entity.ApprovalDocument, error) {
	if m.findOverdueActiveFunc != nil {
		return m.findOverdueActiveFunc(ctx, now, limit)
	}
	return nil, nil
}

func (m *mockDocRepo) MarkEscalated(ctx context.Context, id int64) error {
	if m.markEscalatedFunc != nil {
		return m.markEscalatedFunc(ctx, id)
	}
	return nil
}

type mockHistoryRepo struct {
	createFunc func(ctx context.Context, record *entity.TransitionRecord) error
	records    []*entity.TransitionRecord
}

func (m *mockHistoryRepo) Create(ctx context.Context, record *entity.TransitionRecord) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, record)
	}
	m.records = append(m.records, record)
	return nil
}

func (m *mockHistoryRepo) GetByDocumentID(ctx context.Context, documentID int64) ([]*entity.TransitionRecord, error) {
	return m.records, nil
}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func draftDocument() *entity.ApprovalDocument {
	return &entity.ApprovalDocument{
		ID:       1,
		TenantID: "t1",
		Status:   entity.StatusDraft,
		Version:  1,
		Lines: []*entity.ApprovalLine{
			{ID: 10, Sequence: 1, LineType: entity.LineTypeSequential, Status: entity.LineStatusWaiting, ApproverID: "a1"},
			{ID: 11, Sequence: 2, LineType: entity.LineTypeSequential, Status: entity.LineStatusWaiting, ApproverID: "a2"},
		},
	}
}

func inProgressDocument() *entity.ApprovalDocument {
	doc := draftDocument()
	doc.Status = entity.StatusInProgress
	doc.Lines[0].Status = entity.LineStatusActive
	return doc
}

func newTestEngine(docRepo *mockDocRepo, historyRepo *mockHistoryRepo, opts ...Option) *Engine {
	return New(docRepo, historyRepo, &mockTxManager{}, zap.NewNop(), opts...)
}

func TestEngine_Submit(t *testing.T) {
	doc := draftDocument()
	docRepo := &mockDocRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
			return doc, nil
		},
	}
	historyRepo := &mockHistoryRepo{}
	e := newTestEngine(docRepo, historyRepo)

	got, res, err := e.Submit(context.Background(), 1, "drafter")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !res.Accepted {
		t.Fatal("submit should be accepted from DRAFT")
	}
	if got.Status != entity.StatusInProgress {
		t.Errorf("status = %v, want IN_PROGRESS", got.Status)
	}
	if got.Lines[0].Status != entity.LineStatusActive {
		t.Errorf("first line status = %v, want ACTIVE", got.Lines[0].Status)
	}
	if docRepo.saveCalls != 1 {
		t.Errorf("save calls = %d, want 1", docRepo.saveCalls)
	}
	if len(historyRepo.records) != 1 {
		t.Fatalf("history records = %d, want 1", len(historyRepo.records))
	}
	rec := historyRepo.records[0]
	if rec.Event != "SUBMIT" || rec.ActorID != "drafter" || rec.NewStatus != entity.StatusInProgress {
		t.Errorf("unexpected history record: %+v", rec)
	}
}

func TestEngine_SubmitNotFound(t *testing.T) {
	docRepo := &mockDocRepo{}
	e := newTestEngine(docRepo, &mockHistoryRepo{})

	_, _, err := e.Submit(context.Background(), 99, "drafter")
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("error = %v, want ErrDocumentNotFound", err)
	}
}

func TestEngine_DecideApproveAdvances(t *testing.T) {
	doc := inProgressDocument()
	docRepo := &mockDocRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
			return doc, nil
		},
	}
	e := newTestEngine(docRepo, &mockHistoryRepo{})

	got, res, err := e.Decide(context.Background(), 1, 10, DecisionApprove, "a1")
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if !res.Accepted || !res.Internal {
		t.Fatalf("result = %+v, want accepted internal advance", res)
	}
	if got.Lines[0].Status != entity.LineStatusApproved {
		t.Errorf("decided line status = %v, want APPROVED", got.Lines[0].Status)
	}
	if got.Lines[1].Status != entity.LineStatusActive {
		t.Errorf("next line status = %v, want ACTIVE", got.Lines[1].Status)
	}
	if got.Status != entity.StatusInProgress {
		t.Errorf("status = %v, want IN_PROGRESS", got.Status)
	}
}

func TestEngine_DecideFinalApprovalCompletes(t *testing.T) {
	doc := inProgressDocument()
	doc.Lines[0].Status = entity.LineStatusApproved
	doc.Lines[1].Status = entity.LineStatusActive
	docRepo := &mockDocRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
			return doc, nil
		},
	}
	e := newTestEngine(docRepo, &mockHistoryRepo{})

	got, res, err := e.Decide(context.Background(), 1, 11, DecisionApprove, "a2")
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if !res.Accepted || res.Internal {
		t.Fatalf("result = %+v, want accepted external completion", res)
	}
	if got.Status != entity.StatusApproved {
		t.Errorf("status = %v, want APPROVED", got.Status)
	}
}

func TestEngine_DecideRejectTerminates(t *testing.T) {
	doc := inProgressDocument()
	docRepo := &mockDocRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
			return doc, nil
		},
	}
	e := newTestEngine(docRepo, &mockHistoryRepo{})

	got, res, err := e.Decide(context.Background(), 1, 10, DecisionReject, "a1")
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if !res.Accepted {
		t.Fatal("rejection should be accepted")
	}
	if got.Status != entity.StatusRejected {
		t.Errorf("status = %v, want REJECTED", got.Status)
	}
	if got.Lines[1].Status != entity.LineStatusWaiting {
		t.Error("unreached lines stay WAITING after rejection")
	}
}

func TestEngine_DecideOnDraftNotAccepted(t *testing.T) {
	doc := draftDocument()
	docRepo := &mockDocRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
			return doc, nil
		},
	}
	e := newTestEngine(docRepo, &mockHistoryRepo{})

	got, res, err := e.Decide(context.Background(), 1, 10, DecisionApprove, "a1")
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if res.Accepted {
		t.Fatal("decision on a DRAFT document should not be accepted")
	}
	if got.Lines[0].Status != entity.LineStatusWaiting {
		t.Error("line must stay untouched when the event is not accepted")
	}
	if docRepo.saveCalls != 0 {
		t.Errorf("save calls = %d, want 0 when not accepted", docRepo.saveCalls)
	}
}

func TestEngine_DecideUnknownLine(t *testing.T) {
	doc := inProgressDocument()
	docRepo := &mockDocRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
			return doc, nil
		},
	}
	e := newTestEngine(docRepo, &mockHistoryRepo{})

	_, _, err := e.Decide(context.Background(), 1, 999, DecisionApprove, "a1")
	if !errors.Is(err, entity.ErrLineNotFound) {
		t.Fatalf("error = %v, want ErrLineNotFound", err)
	}
}

func TestEngine_VersionConflictRetries(t *testing.T) {
	conflicts := 2
	docRepo := &mockDocRepo{}
	docRepo.getByIDFunc = func(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
		// Fresh snapshot on every attempt, as a real store would return.
		return draftDocument(), nil
	}
	docRepo.saveFunc = func(ctx context.Context, doc *entity.ApprovalDocument) error {
		if docRepo.saveCalls <= conflicts {
			return port.ErrVersionConflict
		}
		return nil
	}
	e := newTestEngine(docRepo, &mockHistoryRepo{})

	_, res, err := e.Submit(context.Background(), 1, "drafter")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !res.Accepted {
		t.Fatal("submit should eventually be accepted")
	}
	if docRepo.saveCalls != conflicts+1 {
		t.Errorf("save calls = %d, want %d", docRepo.saveCalls, conflicts+1)
	}
}

func TestEngine_VersionConflictExhausted(t *testing.T) {
	docRepo := &mockDocRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
			return draftDocument(), nil
		},
		saveFunc: func(ctx context.Context, doc *entity.ApprovalDocument) error {
			return port.ErrVersionConflict
		},
	}
	e := newTestEngine(docRepo, &mockHistoryRepo{}, WithMaxRetries(2))

	_, _, err := e.Submit(context.Background(), 1, "drafter")
	if !errors.Is(err, port.ErrVersionConflict) {
		t.Fatalf("error = %v, want ErrVersionConflict after retries", err)
	}
	if docRepo.saveCalls != 3 {
		t.Errorf("save calls = %d, want 3 (initial + 2 retries)", docRepo.saveCalls)
	}
}

func TestEngine_InvariantViolationIsFatal(t *testing.T) {
	doc := draftDocument()
	doc.Lines[0].Status = entity.LineStatusActive // corrupt: active line in DRAFT
	docRepo := &mockDocRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
			return doc, nil
		},
	}
	e := newTestEngine(docRepo, &mockHistoryRepo{})

	_, _, err := e.Submit(context.Background(), 1, "drafter")
	if !errors.Is(err, entity.ErrInvariantViolation) {
		t.Fatalf("error = %v, want ErrInvariantViolation", err)
	}
	if docRepo.saveCalls != 0 {
		t.Error("a corrupt document must never be saved")
	}
}

func TestEngine_RecallAndCancel(t *testing.T) {
	t.Run("recall in progress", func(t *testing.T) {
		doc := inProgressDocument()
		docRepo := &mockDocRepo{
			getByIDFunc: func(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
				return doc, nil
			},
		}
		e := newTestEngine(docRepo, &mockHistoryRepo{})

		got, res, err := e.Recall(context.Background(), 1, "drafter")
		if err != nil {
			t.Fatalf("Recall() error = %v", err)
		}
		if !res.Accepted || got.Status != entity.StatusRecalled {
			t.Errorf("status = %v, accepted = %v, want RECALLED", got.Status, res.Accepted)
		}
	})

	t.Run("cancel draft", func(t *testing.T) {
		doc := draftDocument()
		docRepo := &mockDocRepo{
			getByIDFunc: func(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
				return doc, nil
			},
		}
		e := newTestEngine(docRepo, &mockHistoryRepo{})

		got, res, err := e.Cancel(context.Background(), 1, "drafter")
		if err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
		if !res.Accepted || got.Status != entity.StatusCanceled {
			t.Errorf("status = %v, accepted = %v, want CANCELED", got.Status, res.Accepted)
		}
	})

	t.Run("cancel in progress rejected by table", func(t *testing.T) {
		doc := inProgressDocument()
		docRepo := &mockDocRepo{
			getByIDFunc: func(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
				return doc, nil
			},
		}
		e := newTestEngine(docRepo, &mockHistoryRepo{})

		got, res, err := e.Cancel(context.Background(), 1, "drafter")
		if err != nil {
			t.Fatalf("Cancel() error = %v", err)
		}
		if res.Accepted {
			t.Error("CANCEL from IN_PROGRESS should not be accepted")
		}
		if got.Status != entity.StatusInProgress {
			t.Errorf("status = %v, want IN_PROGRESS preserved", got.Status)
		}
	})
}

func TestEngine_ReturnResetsDocument(t *testing.T) {
	doc := inProgressDocument()
	docRepo := &mockDocRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
			return doc, nil
		},
	}
	historyRepo := &mockHistoryRepo{}
	e := newTestEngine(docRepo, historyRepo)

	got, res, err := e.Return(context.Background(), 1, 10, "a1")
	if err != nil {
		t.Fatalf("Return() error = %v", err)
	}
	if !res.Accepted || got.Status != entity.StatusDraft {
		t.Fatalf("status = %v, accepted = %v, want DRAFT", got.Status, res.Accepted)
	}
	if got.ReturnCount != 1 {
		t.Errorf("ReturnCount = %d, want 1", got.ReturnCount)
	}
	for _, l := range got.Lines {
		if l.Status != entity.LineStatusWaiting {
			t.Errorf("line %d status = %v, want WAITING", l.ID, l.Status)
		}
	}
}
