package entity

import "time"

// TransitionRecord is one entry in a document's audit trail. Every accepted
// transition appends a record; documents are never deleted, so the trail is
// complete for the document's whole life including redraft cycles.
type TransitionRecord struct {
	ID             int64     `json:"id"`
	DocumentID     int64     `json:"document_id"`
	ActorID        string    `json:"actor_id"`
	PreviousStatus Status    `json:"previous_status"`
	NewStatus      Status    `json:"new_status"`
	Event          string    `json:"event"`
	Detail         string    `json:"detail"`
	Timestamp      time.Time `json:"timestamp"`
}
