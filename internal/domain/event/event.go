package event

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hrsuite/approval-engine/internal/domain/entity"
)

// Event is a document-summary domain event. External systems (notification,
// audit feeds) consume these; the engine never waits on them.
type Event struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	DocumentID int64                  `json:"document_id"`
	TenantID   string                 `json:"tenant_id"`
	Payload    map[string]interface{} `json:"payload"`
	Timestamp  time.Time              `json:"timestamp"`
}

// NewEvent creates a new domain event with an auto-generated ID and timestamp
func NewEvent(eventType Type, documentID int64, tenantID string, payload map[string]interface{}) *Event {
	return &Event{
		ID:         generateID(),
		Type:       eventType,
		DocumentID: documentID,
		TenantID:   tenantID,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
}

// FromDocument builds the standard document-summary event: identity, status,
// drafter and whoever currently holds an active line.
func FromDocument(eventType Type, doc *entity.ApprovalDocument) *Event {
	payload := map[string]interface{}{
		"doc_number":   doc.DocNumber,
		"title":        doc.Title,
		"doc_type":     doc.DocType,
		"status":       doc.Status.String(),
		"drafter_id":   doc.DrafterID,
		"drafter_name": doc.DrafterName,
	}
	if approvers := doc.ActiveApproverIDs(); len(approvers) > 0 {
		payload["active_approvers"] = approvers
	}
	return NewEvent(eventType, doc.ID, doc.TenantID, payload)
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// generateID creates a unique ID using timestamp and random bytes
func generateID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("evt-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("evt-%d-%s", time.Now().UnixNano(), hex.EncodeToString(b))
}
