package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hrsuite/approval-engine/internal/application/engine"
	"github.com/hrsuite/approval-engine/internal/application/port"
	"github.com/hrsuite/approval-engine/internal/application/service"
	"github.com/hrsuite/approval-engine/internal/domain/entity"
	"github.com/hrsuite/approval-engine/internal/domain/workflow"
	"github.com/hrsuite/approval-engine/internal/export"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	documentService service.DocumentService
	registerWriter  *export.RegisterWriter
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(documentService service.DocumentService, registerWriter *export.RegisterWriter, logger Logger) *Handlers {
	return &Handlers{
		documentService: documentService,
		registerWriter:  registerWriter,
		logger:          logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// LineResponse represents an approval line in API responses
type LineResponse struct {
	ID           int64   `json:"id"`
	Sequence     int     `json:"sequence"`
	LineType     string  `json:"line_type"`
	Status       string  `json:"status"`
	ApproverID   string  `json:"approver_id"`
	ApproverName string  `json:"approver_name"`
	ActivatedAt  *string `json:"activated_at,omitempty"`
	CompletedAt  *string `json:"completed_at,omitempty"`
}

// DocumentResponse represents an approval document in API responses
type DocumentResponse struct {
	ID          int64          `json:"id"`
	TenantID    string         `json:"tenant_id"`
	DocNumber   string         `json:"doc_number"`
	Title       string         `json:"title"`
	Content     string         `json:"content,omitempty"`
	DocType     string         `json:"doc_type,omitempty"`
	RefType     string         `json:"ref_type,omitempty"`
	RefID       string         `json:"ref_id,omitempty"`
	DrafterID   string         `json:"drafter_id"`
	DrafterName string         `json:"drafter_name"`
	Status      string         `json:"status"`
	SubmittedAt *string        `json:"submitted_at,omitempty"`
	CompletedAt *string        `json:"completed_at,omitempty"`
	DeadlineAt  *string        `json:"deadline_at,omitempty"`
	Escalated   bool           `json:"escalated"`
	ReturnCount int            `json:"return_count"`
	Version     int64          `json:"version"`
	Lines       []LineResponse `json:"lines"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// TransitionResponse represents one audit trail entry in API responses
type TransitionResponse struct {
	ID             int64  `json:"id"`
	ActorID        string `json:"actor_id"`
	PreviousStatus string `json:"previous_status,omitempty"`
	NewStatus      string `json:"new_status"`
	Event          string `json:"event"`
	Detail         string `json:"detail,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// ListDocumentsRequest represents query parameters for listing documents
type ListDocumentsRequest struct {
	TenantID string `form:"tenant_id" binding:"required"`
	Limit    int    `form:"limit"`
	Offset   int    `form:"offset"`
}

// DecisionRequest carries an approver's verdict on a line
type DecisionRequest struct {
	Decision string `json:"decision" binding:"required"`
	ActorID  string `json:"actor_id" binding:"required"`
}

// ActorRequest carries the acting user for a document-level trigger
type ActorRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// CreateDocument handles POST /api/v1/documents
func (h *Handlers) CreateDocument(c *gin.Context) {
	var input service.CreateDocumentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Error("Invalid create request", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}

	doc, err := h.documentService.Create(c.Request.Context(), input)
	if err != nil {
		h.logger.Error("Failed to create document", "error", err)
		c.JSON(statusForError(err), Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toDocumentResponse(doc),
	})
}

// ListDocuments handles GET /api/v1/documents
func (h *Handlers) ListDocuments(c *gin.Context) {
	var req ListDocumentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "tenant_id is required",
		})
		return
	}

	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	docs, err := h.documentService.List(c.Request.Context(), req.TenantID, req.Limit, req.Offset)
	if err != nil {
		h.logger.Error("Failed to list documents", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve documents",
		})
		return
	}

	responseDocs := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		responseDocs = append(responseDocs, toDocumentResponse(doc))
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    responseDocs,
	})
}

// GetDocument handles GET /api/v1/documents/:id
func (h *Handlers) GetDocument(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	doc, err := h.documentService.Get(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get document", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve document",
		})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "document not found",
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toDocumentResponse(doc),
	})
}

// GetHistory handles GET /api/v1/documents/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}

	records, err := h.documentService.History(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get history", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve history",
		})
		return
	}

	responseRecords := make([]TransitionResponse, 0, len(records))
	for _, rec := range records {
		responseRecords = append(responseRecords, TransitionResponse{
			ID:             rec.ID,
			ActorID:        rec.ActorID,
			PreviousStatus: rec.PreviousStatus.String(),
			NewStatus:      rec.NewStatus.String(),
			Event:          rec.Event,
			Detail:         rec.Detail,
			Timestamp:      rec.Timestamp.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    responseRecords,
	})
}

// SubmitDocument handles POST /api/v1/documents/:id/submit
func (h *Handlers) SubmitDocument(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}
	actor, ok := h.bindActor(c)
	if !ok {
		return
	}

	doc, res, err := h.documentService.Submit(c.Request.Context(), id, actor)
	h.writeTransition(c, doc, res, err, "SUBMIT")
}

// RecallDocument handles POST /api/v1/documents/:id/recall
func (h *Handlers) RecallDocument(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}
	actor, ok := h.bindActor(c)
	if !ok {
		return
	}

	doc, res, err := h.documentService.Recall(c.Request.Context(), id, actor)
	h.writeTransition(c, doc, res, err, "RECALL")
}

// CancelDocument handles POST /api/v1/documents/:id/cancel
func (h *Handlers) CancelDocument(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}
	actor, ok := h.bindActor(c)
	if !ok {
		return
	}

	doc, res, err := h.documentService.Cancel(c.Request.Context(), id, actor)
	h.writeTransition(c, doc, res, err, "CANCEL")
}

// DecideLine handles POST /api/v1/documents/:id/lines/:lineID/decision
func (h *Handlers) DecideLine(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}
	lineID, ok := h.lineID(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "decision and actor_id are required",
		})
		return
	}

	decision := engine.Decision(req.Decision)
	switch decision {
	case engine.DecisionApprove, engine.DecisionReject, engine.DecisionAgree:
	default:
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   fmt.Sprintf("unknown decision %q", req.Decision),
		})
		return
	}

	doc, res, err := h.documentService.ProcessLineDecision(c.Request.Context(), id, lineID, decision, req.ActorID)
	h.writeTransition(c, doc, res, err, req.Decision)
}

// ReturnDocument handles POST /api/v1/documents/:id/lines/:lineID/return
func (h *Handlers) ReturnDocument(c *gin.Context) {
	id, ok := h.documentID(c)
	if !ok {
		return
	}
	lineID, ok := h.lineID(c)
	if !ok {
		return
	}
	actor, ok := h.bindActor(c)
	if !ok {
		return
	}

	doc, res, err := h.documentService.ReturnDocument(c.Request.Context(), id, lineID, actor)
	h.writeTransition(c, doc, res, err, "RETURN")
}

// ExportRegister handles GET /api/v1/documents/export
func (h *Handlers) ExportRegister(c *gin.Context) {
	var req ListDocumentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "tenant_id is required",
		})
		return
	}
	if req.Limit <= 0 || req.Limit > 1000 {
		req.Limit = 500
	}

	docs, err := h.documentService.List(c.Request.Context(), req.TenantID, req.Limit, req.Offset)
	if err != nil {
		h.logger.Error("Failed to list documents for export", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to retrieve documents",
		})
		return
	}

	buf, err := h.registerWriter.Write(docs)
	if err != nil {
		h.logger.Error("Failed to build approval register", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to build register",
		})
		return
	}

	filename := fmt.Sprintf("approval-register-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		buf.Bytes())
}

// writeTransition maps an engine outcome to an HTTP response. A transition
// the table did not accept is a conflict with the document's current state,
// not a server fault.
func (h *Handlers) writeTransition(c *gin.Context, doc *entity.ApprovalDocument, res workflow.Result, err error, trigger string) {
	if err != nil {
		h.logger.Error("Transition failed", "trigger", trigger, "error", err)
		c.JSON(statusForError(err), Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	if !res.Accepted {
		c.JSON(http.StatusConflict, Response{
			Success: false,
			Error: fmt.Sprintf("%s not allowed while document is %s",
				trigger, doc.Status),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toDocumentResponse(doc),
	})
}

// statusForError translates known sentinel errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, engine.ErrDocumentNotFound),
		errors.Is(err, entity.ErrLineNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrLineTransition),
		errors.Is(err, port.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, engine.ErrUnknownDecision),
		errors.Is(err, entity.ErrNoLines):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrInvariantViolation):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) documentID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid document ID",
		})
		return 0, false
	}
	return id, true
}

func (h *Handlers) lineID(c *gin.Context) (int64, bool) {
	idStr := c.Param("lineID")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid line ID",
		})
		return 0, false
	}
	return id, true
}

func (h *Handlers) bindActor(c *gin.Context) (string, bool) {
	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "actor_id is required",
		})
		return "", false
	}
	return req.ActorID, true
}

// toDocumentResponse converts domain entity to API response
func toDocumentResponse(doc *entity.ApprovalDocument) DocumentResponse {
	resp := DocumentResponse{
		ID:          doc.ID,
		TenantID:    doc.TenantID,
		DocNumber:   doc.DocNumber,
		Title:       doc.Title,
		Content:     doc.Content,
		DocType:     doc.DocType,
		RefType:     doc.RefType,
		RefID:       doc.RefID,
		DrafterID:   doc.DrafterID,
		DrafterName: doc.DrafterName,
		Status:      doc.Status.String(),
		SubmittedAt: formatTimePtr(doc.SubmittedAt),
		CompletedAt: formatTimePtr(doc.CompletedAt),
		DeadlineAt:  formatTimePtr(doc.DeadlineAt),
		Escalated:   doc.Escalated,
		ReturnCount: doc.ReturnCount,
		Version:     doc.Version,
		CreatedAt:   doc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   doc.UpdatedAt.Format(time.RFC3339),
	}

	resp.Lines = make([]LineResponse, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			ID:           line.ID,
			Sequence:     line.Sequence,
			LineType:     string(line.LineType),
			Status:       string(line.Status),
			ApproverID:   line.ApproverID,
			ApproverName: line.ApproverName,
			ActivatedAt:  formatTimePtr(line.ActivatedAt),
			CompletedAt:  formatTimePtr(line.CompletedAt),
		})
	}

	return resp
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
