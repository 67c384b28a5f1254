package workflow

// Event represents an occurrence that can cause a document transition
type Event string

const (
	EventSubmit           Event = "SUBMIT"
	EventApproveLine      Event = "APPROVE_LINE"
	EventAgreeLine        Event = "AGREE_LINE"
	EventRejectLine       Event = "REJECT_LINE"
	EventComplete         Event = "COMPLETE"
	EventArbitraryApprove Event = "ARBITRARY_APPROVE"
	EventReturnLine       Event = "RETURN_LINE"
	EventRecall           Event = "RECALL"
	EventCancel           Event = "CANCEL"
)

// String returns the string representation of the event
func (e Event) String() string {
	return string(e)
}
