package workflow

import "github.com/hrsuite/approval-engine/internal/domain/entity"

// ParallelGroupCompleted reports whether the group of the completed line has
// fully resolved. A non-parallel line's completion always permits advancing.
// For a parallel line, every PARALLEL sibling at the same sequence must be
// resolved; with strict set, only APPROVED and SKIPPED siblings count and a
// REJECTED sibling keeps the group open.
func ParallelGroupCompleted(doc *entity.ApprovalDocument, line *entity.ApprovalLine, strict bool) bool {
	if line == nil || line.LineType != entity.LineTypeParallel {
		return true
	}
	for _, sibling := range doc.LinesAt(line.Sequence) {
		if sibling.LineType != entity.LineTypeParallel {
			continue
		}
		if strict {
			if sibling.Status != entity.LineStatusApproved && sibling.Status != entity.LineStatusSkipped {
				return false
			}
		} else if !sibling.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// IsArbitraryApproval reports whether the completed line carries final
// sign-off authority: an approved ARBITRARY line terminates the chain.
func IsArbitraryApproval(line *entity.ApprovalLine) bool {
	return line != nil && line.LineType == entity.LineTypeArbitrary && line.Status == entity.LineStatusApproved
}

// HasNextLine reports whether a waiting line exists in the group after the
// completed line's.
func HasNextLine(doc *entity.ApprovalDocument, line *entity.ApprovalLine) bool {
	return doc.HasNextLine(line.Sequence)
}

// AllLinesCompleted reports whether nothing is left to activate beyond the
// completed line's group.
func AllLinesCompleted(doc *entity.ApprovalDocument, line *entity.ApprovalLine) bool {
	return doc.AllLinesCompleted(line.Sequence)
}
