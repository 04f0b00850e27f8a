// =============================================================================
// Order Report Generator - Workbook Reader
// =============================================================================
//
// This module reads an uploaded order export into a raw table. The first row
// of the data sheet holds the column names; every following non-empty row
// becomes one raw row keyed by those names.
//
// SHEET RESOLUTION:
//   Platforms rename their export tabs from time to time, so the data sheet
//   is picked in this order:
//     1. the sheet named exactly as requested
//     2. the first sheet whose name contains the marker text
//     3. the first sheet of the workbook
//
// CELL VALUES:
//   Number cells become float64, number cells with a date format become
//   "YYYY/MM/DD[ hh:mm:ss]" strings, text stays text and empty cells become
//   nil.
//
// =============================================================================

package workbook

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/order-report/internal/types"
)

// ErrNoSheets is returned for a workbook without any sheet.
var ErrNoSheets = errors.New("workbook has no sheets")

// ErrUnsupportedFormat is returned for files that are neither XLSX nor CSV.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Sheet is a raw table together with the sheet it was read from.
type Sheet struct {
	Name  string
	Table *types.Table
}

// ResolveSheet picks the data sheet out of a workbook's sheet names.
//
// PARAMETERS:
//   - names: The sheet names in workbook order.
//   - desired: The expected sheet name.
//   - marker: Text contained in every data sheet name; empty disables step 2.
//
// RETURNS:
//   - The chosen sheet name.
//   - ErrNoSheets if names is empty.
func ResolveSheet(names []string, desired, marker string) (string, error) {
	if len(names) == 0 {
		return "", ErrNoSheets
	}
	for _, n := range names {
		if n == desired {
			return n, nil
		}
	}
	if marker != "" {
		for _, n := range names {
			if strings.Contains(n, marker) {
				return n, nil
			}
		}
	}
	return names[0], nil
}

// ReadXLSX reads the data sheet of an XLSX workbook.
//
// PARAMETERS:
//   - r: The workbook content.
//   - desired: The expected sheet name.
//   - marker: The fallback marker text.
//
// RETURNS:
//   - The resolved sheet and its raw table.
//   - An error if the workbook cannot be opened or read.
func ReadXLSX(r io.Reader, desired, marker string) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	name, err := ResolveSheet(f.GetSheetList(), desired, marker)
	if err != nil {
		return nil, err
	}

	table, err := readSheet(f, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}

	return &Sheet{Name: name, Table: table}, nil
}

// readSheet turns one sheet into a raw table.
func readSheet(f *excelize.File, sheet string) (*types.Table, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	table := &types.Table{}
	dates := newDateStyles(f)

	var header []string
	for i, cells := range rows {
		if isRowEmpty(cells) {
			continue
		}
		if header == nil {
			header = cleanHeaders(cells)
			table.Columns = namedColumns(header)
			continue
		}

		rowNum := i + 1
		table.Rows = append(table.Rows, buildRow(header, cells, func(col int, raw string) any {
			if strings.TrimSpace(raw) == "" {
				return nil
			}
			cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
			if err != nil {
				return raw
			}
			return numericCell(f, dates, sheet, cell, raw)
		}))
	}

	return table, nil
}

// numericCell converts the raw value of a number cell to float64, or to a
// date string when the cell has a date format. Text cells stay strings so
// identifiers such as "000123" keep their leading zeros.
func numericCell(f *excelize.File, dates *dateStyles, sheet, cell, raw string) any {
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return raw
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula, excelize.CellTypeBool, excelize.CellTypeError:
		return raw
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return raw
	}
	if dates.isDate(sheet, cell) {
		return excelSerialDate(n)
	}
	return n
}

// excelSerialDate renders a date serial as YYYY/MM/DD, with the time of day
// when it has one.
func excelSerialDate(serial float64) any {
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return serial
	}
	t = t.Round(time.Second)
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006/01/02")
	}
	return t.Format("2006/01/02 15:04:05")
}

// dateStyles remembers which cell styles carry a date number format.
type dateStyles struct {
	f     *excelize.File
	cache map[int]bool
}

func newDateStyles(f *excelize.File) *dateStyles {
	return &dateStyles{f: f, cache: make(map[int]bool)}
}

func (d *dateStyles) isDate(sheet, cell string) bool {
	idx, err := d.f.GetCellStyle(sheet, cell)
	if err != nil || idx == 0 {
		return false
	}
	if v, ok := d.cache[idx]; ok {
		return v
	}

	isDate := false
	if style, err := d.f.GetStyle(idx); err == nil && style != nil {
		isDate = isDateFormat(style.NumFmt, style.CustomNumFmt)
	}
	d.cache[idx] = isDate
	return isDate
}

// isDateFormat reports whether a number format displays a date.
// Built-in formats 14-22 and 45-47 are dates and times; custom formats are
// dates when they use a year or day token outside quoted text.
func isDateFormat(numFmt int, custom *string) bool {
	if custom != nil && *custom != "" {
		inQuote := false
		for _, r := range strings.ToLower(*custom) {
			switch {
			case r == '"':
				inQuote = !inQuote
			case inQuote:
			case r == 'y' || r == 'd':
				return true
			}
		}
		return false
	}
	return (numFmt >= 14 && numFmt <= 22) || (numFmt >= 45 && numFmt <= 47)
}

// buildRow keys a row's cells by header name. Unnamed columns are skipped.
func buildRow(header, cells []string, convert func(col int, raw string) any) types.Row {
	row := make(types.Row, len(header))
	for i, c := range header {
		if c == "" {
			continue
		}
		if i < len(cells) {
			row[c] = convert(i, cells[i])
		} else {
			row[c] = nil
		}
	}
	return row
}

// namedColumns returns the non-empty header names in order.
func namedColumns(header []string) []string {
	columns := make([]string, 0, len(header))
	for _, h := range header {
		if h != "" {
			columns = append(columns, h)
		}
	}
	return columns
}

// cleanHeaders trims header names and drops duplicates after the first.
func cleanHeaders(headers []string) []string {
	seen := make(map[string]bool, len(headers))
	cleaned := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		cleaned[i] = h
	}
	return cleaned
}

// isRowEmpty reports whether every cell of a row is blank.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Format identifies an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// DetectFormat returns the format of a file from its extension.
func DetectFormat(fileName string) (Format, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(fileName))
	}
}
