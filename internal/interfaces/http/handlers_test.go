package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hrsuite/approval-engine/internal/application/engine"
	"github.com/hrsuite/approval-engine/internal/application/service"
	"github.com/hrsuite/approval-engine/internal/domain/entity"
	"github.com/hrsuite/approval-engine/internal/domain/workflow"
	"github.com/hrsuite/approval-engine/internal/export"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

// mockDocumentService lets each test stub exactly the calls it expects.
type mockDocumentService struct {
	getFunc    func(ctx context.Context, id int64) (*entity.ApprovalDocument, error)
	submitFunc func(ctx context.Context, id int64, actor string) (*entity.ApprovalDocument, workflow.Result, error)
	decideFunc func(ctx context.Context, id, lineID int64, decision engine.Decision, actor string) (*entity.ApprovalDocument, workflow.Result, error)

	decideCalls int
}

func (m *mockDocumentService) Create(ctx context.Context, input service.CreateDocumentInput) (*entity.ApprovalDocument, error) {
	return nil, nil
}

func (m *mockDocumentService) Get(ctx context.Context, id int64) (*entity.ApprovalDocument, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockDocumentService) GetByNumber(ctx context.Context, tenantID, docNumber string) (*entity.ApprovalDocument, error) {
	return nil, nil
}

func (m *mockDocumentService) List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.ApprovalDocument, error) {
	return nil, nil
}

func (m *mockDocumentService) History(ctx context.Context, documentID int64) ([]*entity.TransitionRecord, error) {
	return nil, nil
}

func (m *mockDocumentService) Submit(ctx context.Context, id int64, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, id, actor)
	}
	return nil, workflow.Result{}, nil
}

func (m *mockDocumentService) ProcessLineDecision(ctx context.Context, id, lineID int64, decision engine.Decision, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
	m.decideCalls++
	if m.decideFunc != nil {
		return m.decideFunc(ctx, id, lineID, decision, actor)
	}
	return nil, workflow.Result{}, nil
}

func (m *mockDocumentService) ReturnDocument(ctx context.Context, id, lineID int64, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
	return nil, workflow.Result{}, nil
}

func (m *mockDocumentService) Recall(ctx context.Context, id int64, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
	return nil, workflow.Result{}, nil
}

func (m *mockDocumentService) Cancel(ctx context.Context, id int64, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
	return nil, workflow.Result{}, nil
}

func newTestServer(svc service.DocumentService) *Server {
	return NewServer(DefaultServerConfig(), svc, export.NewRegisterWriter(zap.NewNop()), nopLogger{})
}

func postJSON(t *testing.T, srv *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestDecideLine_NotAcceptedIsConflict(t *testing.T) {
	doc := &entity.ApprovalDocument{ID: 1, Status: entity.StatusDraft}
	svc := &mockDocumentService{
		decideFunc: func(ctx context.Context, id, lineID int64, decision engine.Decision, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
			return doc, workflow.Result{Accepted: false, Previous: entity.StatusDraft, Current: entity.StatusDraft}, nil
		},
	}
	srv := newTestServer(svc)

	w := postJSON(t, srv, "/api/v1/documents/1/lines/10/decision",
		map[string]string{"decision": "APPROVE", "actor_id": "u1"})

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "not allowed while document is DRAFT")
}

func TestDecideLine_UnknownDecisionRejectedBeforeService(t *testing.T) {
	svc := &mockDocumentService{}
	srv := newTestServer(svc)

	w := postJSON(t, srv, "/api/v1/documents/1/lines/10/decision",
		map[string]string{"decision": "MAYBE", "actor_id": "u1"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, svc.decideCalls)
}

func TestSubmitDocument_NotFound(t *testing.T) {
	svc := &mockDocumentService{
		submitFunc: func(ctx context.Context, id int64, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
			return nil, workflow.Result{}, fmt.Errorf("%w: %d", engine.ErrDocumentNotFound, id)
		},
	}
	srv := newTestServer(svc)

	w := postJSON(t, srv, "/api/v1/documents/42/submit", map[string]string{"actor_id": "u1"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitDocument_Accepted(t *testing.T) {
	doc := &entity.ApprovalDocument{ID: 7, DocNumber: "DOC-2024-007", Status: entity.StatusInProgress}
	svc := &mockDocumentService{
		submitFunc: func(ctx context.Context, id int64, actor string) (*entity.ApprovalDocument, workflow.Result, error) {
			return doc, workflow.Result{Accepted: true, Previous: entity.StatusDraft, Current: entity.StatusInProgress}, nil
		},
	}
	srv := newTestServer(svc)

	w := postJSON(t, srv, "/api/v1/documents/7/submit", map[string]string{"actor_id": "u1"})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool             `json:"success"`
		Data    DocumentResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "IN_PROGRESS", resp.Data.Status)
	assert.Equal(t, "DOC-2024-007", resp.Data.DocNumber)
}

func TestSubmitDocument_MissingActor(t *testing.T) {
	svc := &mockDocumentService{}
	srv := newTestServer(svc)

	w := postJSON(t, srv, "/api/v1/documents/7/submit", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
