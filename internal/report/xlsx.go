package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// xlsxSheet is the sheet name of exported reports.
const xlsxSheet = "日報"

// WriteXLSX returns the report as an XLSX workbook: a title row, the header
// row, one row per order and the total row.
func WriteXLSX(r *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), xlsxSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	write := func(col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(xlsxSheet, cell, v)
	}

	if err := write(1, 1, r.Title()); err != nil {
		return nil, fmt.Errorf("failed to write title: %w", err)
	}

	row := 2
	for i, c := range r.Columns {
		if err := write(i+1, row, c); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for _, line := range r.Cells() {
		row++
		for i, v := range line {
			if err := write(i+1, row, v); err != nil {
				return nil, fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	row++
	for i, v := range r.TotalCells() {
		if v == "" {
			continue
		}
		if err := write(i+1, row, v); err != nil {
			return nil, fmt.Errorf("failed to write total row: %w", err)
		}
	}

	if len(r.Columns) > 0 {
		last, _ := excelize.ColumnNumberToName(len(r.Columns))
		_ = f.SetColWidth(xlsxSheet, "A", last, 16)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
