// Package reports renders already-loaded data into PDF and XLSX payloads.
package reports

import (
	"bytes"
	"fmt"
	"time"

	"Gin_postgres_redis_loan_tracker/models"

	"github.com/go-pdf/fpdf"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

const timestampLayout = "2006-01-02 15:04"

type column struct {
	title string
	width float64
}

func newDocument(title string, at time.Time) (*fpdf.Fpdf, func(string) string) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator("loan-tracker", true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 6, "Generated "+at.UTC().Format(timestampLayout)+" UTC", "", 1, "L", false, 0, "")
	pdf.Ln(4)
	return pdf, tr
}

func tableHeader(pdf *fpdf.Fpdf, cols []column) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(220, 228, 240)
	for _, c := range cols {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// ItemsPDF lists the catalog as a table.
func ItemsPDF(items []models.Item, at time.Time) ([]byte, error) {
	pdf, tr := newDocument("Item Catalog", at)

	if len(items) == 0 {
		pdf.CellFormat(0, 8, "No items registered.", "", 1, "L", false, 0, "")
		return output(pdf)
	}

	cols := []column{{"Code", 25}, {"Name", 60}, {"Category", 35}, {"Status", 30}, {"Location", 40}}
	tableHeader(pdf, cols)
	for _, it := range items {
		row := []string{it.Code, it.Name, it.Category, string(it.Status), it.Location}
		for i, c := range cols {
			pdf.CellFormat(c.width, 6, tr(truncate(row[i], int(c.width/2))), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total items: %d", len(items)), "", 1, "L", false, 0, "")
	return output(pdf)
}

// InventorySummary is the input of the inventory status report.
type InventorySummary struct {
	GeneratedAt  time.Time
	TotalItems   int64
	ByStatus     map[models.ItemStatus]int64
	TotalLoans   int64
	ActiveLoans  int64
	PendingLoans int64
}

// Percent of all items in status s, 0 when there are no items.
func (s InventorySummary) Percent(st models.ItemStatus) float64 {
	if s.TotalItems == 0 {
		return 0
	}
	return float64(s.ByStatus[st]) * 100 / float64(s.TotalItems)
}

func InventoryStatusPDF(sum InventorySummary) ([]byte, error) {
	pdf, _ := newDocument("Inventory Status", sum.GeneratedAt)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Items by status", "", 1, "L", false, 0, "")
	if sum.TotalItems == 0 {
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 8, "No items registered.", "", 1, "L", false, 0, "")
	} else {
		cols := []column{{"Status", 60}, {"Count", 30}, {"Share", 30}}
		tableHeader(pdf, cols)
		for _, st := range models.ItemStatuses {
			pdf.CellFormat(60, 6, string(st), "1", 0, "L", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%d", sum.ByStatus[st]), "1", 0, "R", false, 0, "")
			pdf.CellFormat(30, 6, fmt.Sprintf("%.1f%%", sum.Percent(st)), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(60, 6, "Total", "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%d", sum.TotalItems), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, "100.0%", "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Loans", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, line := range [][2]string{
		{"Total loans", fmt.Sprintf("%d", sum.TotalLoans)},
		{"Active (delivered)", fmt.Sprintf("%d", sum.ActiveLoans)},
		{"Pending approval", fmt.Sprintf("%d", sum.PendingLoans)},
	} {
		pdf.CellFormat(60, 6, line[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, line[1], "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	return output(pdf)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
