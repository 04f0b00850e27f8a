// =============================================================================
// Order Report Generator - Report Builder
// =============================================================================
//
// BuildReport selects the rows of the chosen dates from a normalized table
// and shapes them into a report:
//   - FILTER:  keep rows whose date is one of the selected dates
//   - SORT:    most recent date first, ties keep their original order
//   - PROJECT: keep the profile's output columns that the table has
//   - TOTAL:   sum the amount column over the kept rows
//
// An empty selection is an error (ErrNoMatchingRows). Malformed amounts are
// counted as zero.
//
// =============================================================================

package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/order-report/internal/platform"
	"github.com/ginjaninja78/order-report/internal/types"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrNoMatchingRows is returned when no row carries any of the selected dates.
var ErrNoMatchingRows = errors.New("no rows match the selected dates")

// TotalLabel is the text of the first cell of the total row.
const TotalLabel = "總計"

// =============================================================================
// REPORT STRUCTURE
// =============================================================================

// Report is the filtered, projected and totalled view of one upload.
type Report struct {
	// Profile is the platform the report was built for.
	Profile *platform.Profile

	// Dates are the selected dates in caller order.
	Dates []string

	// Columns are the projected columns in output order.
	Columns []string

	// Rows are the projected rows, most recent date first.
	Rows []types.Row

	// Total is the sum of the amount column over the selected rows.
	Total decimal.Decimal
}

// Title is the platform title built from the first selected date.
func (r *Report) Title() string {
	first := ""
	if len(r.Dates) > 0 {
		first = r.Dates[0]
	}
	return r.Profile.Title(ShortDate(first))
}

// OrderCount is the number of report rows.
func (r *Report) OrderCount() int {
	return len(r.Rows)
}

// AmountIndex returns the position of the amount column among the projected
// columns, or -1 when it was not projected.
func (r *Report) AmountIndex() int {
	for i, c := range r.Columns {
		if c == r.Profile.AmountColumn {
			return i
		}
	}
	return -1
}

// =============================================================================
// BUILDER
// =============================================================================

// BuildReport filters, sorts, projects and totals a normalized table.
//
// PARAMETERS:
//   - table: The normalized table produced by Remap.
//   - selectedDates: The YYYY/MM/DD dates to include (set membership).
//   - profile: The platform profile of the table.
//
// RETURNS:
//   - The report.
//   - ErrNoMatchingRows (wrapped) if no row has a selected date.
func BuildReport(table *types.Table, selectedDates []string, profile *platform.Profile) (*Report, error) {
	selected := make(map[string]bool, len(selectedDates))
	for _, d := range selectedDates {
		selected[d] = true
	}

	var filtered []types.Row
	if table != nil {
		for _, row := range table.Rows {
			if d, ok := row[profile.DateColumn].(string); ok && selected[d] {
				filtered = append(filtered, row)
			}
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatchingRows, strings.Join(selectedDates, ", "))
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return dateOf(filtered[i], profile.DateColumn) > dateOf(filtered[j], profile.DateColumn)
	})

	present := columnSet(table)
	columns := make([]string, 0, len(profile.OutputColumns))
	for _, c := range profile.OutputColumns {
		if present[c] {
			columns = append(columns, c)
		}
	}

	rows := make([]types.Row, len(filtered))
	total := decimal.Zero
	for i, src := range filtered {
		row := make(types.Row, len(columns))
		for _, c := range columns {
			row[c] = src[c]
		}
		rows[i] = row

		if amount, ok := ToNumber(src[profile.AmountColumn]); ok {
			total = total.Add(amount)
		}
	}

	return &Report{
		Profile: profile,
		Dates:   append([]string(nil), selectedDates...),
		Columns: columns,
		Rows:    rows,
		Total:   total,
	}, nil
}

func dateOf(row types.Row, column string) string {
	d, _ := row[column].(string)
	return d
}

// =============================================================================
// AMOUNT HELPERS
// =============================================================================

// ToNumber coerces a cell value to a decimal.
// Empty, NaN and non-numeric values return ok == false.
func ToNumber(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case float32:
		return ToNumber(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt32(v), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		return ToNumber(v.String())
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// FormatAmount renders an amount rounded to a whole number with thousands
// separators, e.g. 1234567.5 -> "1,234,568".
func FormatAmount(d decimal.Decimal) string {
	return humanize.Comma(d.RoundBank(0).IntPart())
}
