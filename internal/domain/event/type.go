package event

// Type identifies a kind of domain event
type Type string

const (
	TypeDocumentSubmitted Type = "document.submitted"
	TypeDocumentApproved  Type = "document.approved"
	TypeDocumentRejected  Type = "document.rejected"
	TypeDocumentReturned  Type = "document.returned"
	TypeDocumentRecalled  Type = "document.recalled"
	TypeDocumentCanceled  Type = "document.canceled"
	TypeDocumentEscalated Type = "document.escalated"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}
