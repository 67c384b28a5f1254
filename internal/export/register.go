package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/hrsuite/approval-engine/internal/domain/entity"
)

const sheetName = "Approvals"

var headers = []string{
	"ID", "Doc Number", "Title", "Type", "Status",
	"Drafter", "Submitted At", "Completed At", "Deadline",
	"Escalated", "Returns", "Lines", "Active Approvers",
}

// RegisterWriter renders approval documents into an xlsx register,
// one row per document.
type RegisterWriter struct {
	logger *zap.Logger
}

// NewRegisterWriter creates a new register writer
func NewRegisterWriter(logger *zap.Logger) *RegisterWriter {
	return &RegisterWriter{logger: logger}
}

// Write builds the register workbook and returns it as a buffer ready to
// stream to the client.
func (w *RegisterWriter) Write(docs []*entity.ApprovalDocument) (*bytes.Buffer, error) {
	file := excelize.NewFile()
	defer file.Close()

	index, err := file.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	file.SetActiveSheet(index)
	if err := file.DeleteSheet("Sheet1"); err != nil {
		w.logger.Warn("Failed to remove default sheet", zap.Error(err))
	}

	headerStyle, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve header cell: %w", err)
		}
		if err := file.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := file.SetCellStyle(sheetName, "A1", lastHeader, headerStyle); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for rowIdx, doc := range docs {
		row := rowIdx + 2
		values := []interface{}{
			doc.ID,
			doc.DocNumber,
			doc.Title,
			doc.DocType,
			doc.Status.String(),
			doc.DrafterName,
			formatTime(doc.SubmittedAt),
			formatTime(doc.CompletedAt),
			formatTime(doc.DeadlineAt),
			doc.Escalated,
			doc.ReturnCount,
			len(doc.Lines),
			joinApprovers(doc),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve cell: %w", err)
			}
			if err := file.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	// Widen the text-heavy columns
	if err := file.SetColWidth(sheetName, "B", "C", 28); err != nil {
		w.logger.Warn("Failed to set column width", zap.Error(err))
	}
	if err := file.SetColWidth(sheetName, "G", "I", 20); err != nil {
		w.logger.Warn("Failed to set column width", zap.Error(err))
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	w.logger.Info("Approval register exported", zap.Int("documents", len(docs)))
	return buf, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func joinApprovers(doc *entity.ApprovalDocument) string {
	var out string
	for _, line := range doc.ActiveLines() {
		if out != "" {
			out += ", "
		}
		out += line.ApproverName
	}
	return out
}
