package report

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Prices"

var xlsxHeaders = []string{"Target", "Title", "Price", "Currency", "Amount", "Source", "Extracted", "Error"}

// XLSX renders the run as a single-sheet workbook.
func XLSX(r *Run) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	for i, h := range xlsxHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	for i, e := range r.Entries {
		row := i + 2
		values := []any{e.Target, e.Title, e.Price, e.Currency, nil, e.Source, e.ExtractedAt.Format("2006-01-02 15:04:05"), e.Error}
		if e.Amount != "" {
			if d, err := decimal.NewFromString(e.Amount); err == nil {
				values[4] = d.InexactFloat64()
			}
		}
		for col, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}
	_ = f.SetColWidth(sheetName, "A", "A", 60)
	_ = f.SetColWidth(sheetName, "B", "B", 40)
	_ = f.SetColWidth(sheetName, "C", "F", 16)
	_ = f.SetColWidth(sheetName, "G", "G", 20)
	_ = f.SetColWidth(sheetName, "H", "H", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: write: %w", err)
	}
	return buf.Bytes(), nil
}
