package workflow

import (
	"time"

	"github.com/hrsuite/approval-engine/internal/domain/entity"
)

// Actions mutate the document aggregate in memory when their transition is
// taken. They never persist anything; the surrounding transaction commits or
// discards the whole snapshot.

// ActivateFirstLine wakes the first group and stamps the submission time.
func ActivateFirstLine(doc *entity.ApprovalDocument, _ *entity.ApprovalLine, now time.Time) error {
	if _, err := doc.ActivateNextLines(0, now); err != nil {
		return err
	}
	doc.SubmittedAt = &now
	return nil
}

// ActivateNextLine advances the chain past the completed line's group.
func ActivateNextLine(doc *entity.ApprovalDocument, line *entity.ApprovalLine, now time.Time) error {
	_, err := doc.ActivateNextLines(line.Sequence, now)
	return err
}

// CompleteApproval stamps the completion time. The final line's approval has
// already happened by the time this fires.
func CompleteApproval(doc *entity.ApprovalDocument, _ *entity.ApprovalLine, now time.Time) error {
	doc.CompletedAt = &now
	return nil
}

// RejectDocument stamps the completion time on a rejection.
func RejectDocument(doc *entity.ApprovalDocument, _ *entity.ApprovalLine, now time.Time) error {
	doc.CompletedAt = &now
	return nil
}

// ProcessArbitraryApproval skips every waiting line after the signing line
// and stamps the completion time.
func ProcessArbitraryApproval(doc *entity.ApprovalDocument, line *entity.ApprovalLine, now time.Time) error {
	doc.SkipWaitingAfter(line.Sequence)
	doc.CompletedAt = &now
	return nil
}

// ReturnToDraft resets the document for redrafting.
func ReturnToDraft(doc *entity.ApprovalDocument, _ *entity.ApprovalLine, _ time.Time) error {
	doc.ReturnToDraft()
	return nil
}
