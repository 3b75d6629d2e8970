package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/joelkehle/normanpd/internal/incident"
)

const (
	IncidentsSheet = "Incidents"
	CategorySheet  = "By Category"
)

// ExportXLSX writes every record plus the category breakdown to a workbook.
func ExportXLSX(path string, records []incident.Record, counts []incident.CategoryCount) error {
	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet instead of leaving an empty "Sheet1" behind.
	if err := f.SetSheetName(f.GetSheetName(0), IncidentsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(CategorySheet); err != nil {
		return err
	}

	headers := []string{"Date / Time", "Incident Number", "Location", "Nature", "Incident ORI"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(IncidentsSheet, cell, h)
	}
	for row, r := range records {
		values := []any{r.Timestamp, r.CaseNumber, r.Location, incident.DisplayCategory(r.Category), r.AgencyCode}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(IncidentsSheet, cell, v)
		}
	}
	_ = f.SetColWidth(IncidentsSheet, "A", "A", 20)
	_ = f.SetColWidth(IncidentsSheet, "B", "B", 16)
	_ = f.SetColWidth(IncidentsSheet, "C", "C", 36)
	_ = f.SetColWidth(IncidentsSheet, "D", "D", 28)
	_ = f.SetColWidth(IncidentsSheet, "E", "E", 14)

	_ = f.SetCellValue(CategorySheet, "A1", "Nature")
	_ = f.SetCellValue(CategorySheet, "B1", "Count")
	for i, c := range counts {
		_ = f.SetCellValue(CategorySheet, fmt.Sprintf("A%d", i+2), incident.DisplayCategory(c.Category))
		_ = f.SetCellValue(CategorySheet, fmt.Sprintf("B%d", i+2), c.Count)
	}
	_ = f.SetColWidth(CategorySheet, "A", "A", 36)

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}
