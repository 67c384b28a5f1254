package entity

// Status represents the lifecycle state of an approval document
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusInProgress Status = "IN_PROGRESS"
	StatusPending    Status = "PENDING"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
	StatusCanceled   Status = "CANCELED"
	StatusRecalled   Status = "RECALLED"
)

var validStatuses = map[Status]bool{
	StatusDraft:      true,
	StatusInProgress: true,
	StatusPending:    true,
	StatusApproved:   true,
	StatusRejected:   true,
	StatusCanceled:   true,
	StatusRecalled:   true,
}

var terminalStatuses = map[Status]bool{
	StatusApproved: true,
	StatusRejected: true,
	StatusCanceled: true,
	StatusRecalled: true,
}

// IsTerminal returns true if the status is terminal (no further transitions allowed)
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsValid returns true if the status is a valid document status
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}
