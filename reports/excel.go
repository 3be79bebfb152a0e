package reports

import (
	"fmt"
	"time"

	"Gin_postgres_redis_loan_tracker/models"

	"github.com/xuri/excelize/v2"
)

type sheetSpec struct {
	name   string
	title  string
	header []any
	widths []float64
}

func writeSheet(spec sheetSpec, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", spec.name); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: spec.title, Creator: "loan-tracker"}); err != nil {
		return nil, fmt.Errorf("doc props: %w", err)
	}
	if err := f.SetSheetRow(spec.name, "A1", &spec.header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DCE4F0"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(spec.header), 1)
	if err := f.SetCellStyle(spec.name, "A1", last, bold); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}
	for i, w := range spec.widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(spec.name, col, col, w); err != nil {
			return nil, fmt.Errorf("column width: %w", err)
		}
	}

	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(spec.name, cell, &rows[i]); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// LoansExcel writes one row per loan.
func LoansExcel(loans []models.Loan) ([]byte, error) {
	rows := make([][]any, 0, len(loans))
	for _, l := range loans {
		user, item := "Unknown", "Unknown"
		if l.User != nil {
			user = l.User.Name
		}
		if l.Item != nil {
			item = l.Item.Name
		}
		rows = append(rows, []any{l.ID, user, item, string(l.Status), l.RequestDate.UTC().Format(timestampLayout)})
	}
	return writeSheet(sheetSpec{
		name:   "Loans",
		title:  "Loans",
		header: []any{"ID", "User", "Item", "Status", "Request Date"},
		widths: []float64{38, 28, 32, 12, 18},
	}, rows)
}

// UserActivityExcel writes the audit trail for the window [from, to].
func UserActivityExcel(logs []models.AuditLog, from, to time.Time) ([]byte, error) {
	rows := make([][]any, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, []any{l.ActionDate.UTC().Format(timestampLayout), l.ActionBy, l.Action, l.Table, l.Description})
	}
	title := "User activity"
	if !from.IsZero() && !to.IsZero() {
		title = fmt.Sprintf("User activity %s to %s", from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"))
	}
	return writeSheet(sheetSpec{
		name:   "Activity",
		title:  title,
		header: []any{"Date", "User", "Action", "Table", "Description"},
		widths: []float64{18, 30, 14, 12, 50},
	}, rows)
}
