// =============================================================================
// Order Report Generator - CSV Export Reader
// =============================================================================
//
// Some platforms hand out CSV instead of XLSX. A CSV export has a single
// table, so there is no sheet resolution; the header row and first data row
// come from the platform's CSV settings.
//
// Values are kept as text. Empty cells become nil.
//
// =============================================================================

package workbook

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/ginjaninja78/order-report/internal/config"
	"github.com/ginjaninja78/order-report/internal/types"
)

// csvSheetName is the sheet name reported for CSV exports.
const csvSheetName = "csv"

// ReadCSV reads a CSV export.
//
// PARAMETERS:
//   - r: The file content.
//   - settings: The CSV layout.
//
// RETURNS:
//   - The raw table.
//   - An error if the content is not valid CSV or has no header row.
func ReadCSV(r io.Reader, settings config.CSVSettings) (*Sheet, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	configureReader(reader, settings)

	allRows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	headerIdx := settings.HeaderRow - 1
	if headerIdx < 0 {
		headerIdx = 0
	}
	if len(allRows) <= headerIdx {
		return nil, fmt.Errorf("CSV has no header row %d", headerIdx+1)
	}

	header := cleanHeaders(allRows[headerIdx])
	table := &types.Table{Columns: namedColumns(header)}

	start := settings.DataStartRow - 1
	if start <= headerIdx {
		start = headerIdx + 1
	}
	for i := start; i < len(allRows); i++ {
		if isRowEmpty(allRows[i]) {
			continue
		}
		table.Rows = append(table.Rows, buildRow(header, allRows[i], func(_ int, raw string) any {
			if strings.TrimSpace(raw) == "" {
				return nil
			}
			return raw
		}))
	}

	return &Sheet{Name: csvSheetName, Table: table}, nil
}

// configureReader applies the delimiter setting and relaxes quoting.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// Read reads an export of either format. For XLSX the data sheet is resolved
// from desired and marker; for CSV the settings apply.
func Read(r io.Reader, format Format, desired, marker string, settings config.CSVSettings) (*Sheet, error) {
	switch format {
	case FormatXLSX:
		return ReadXLSX(r, desired, marker)
	case FormatCSV:
		return ReadCSV(r, settings)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
