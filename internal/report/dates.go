package report

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/ginjaninja78/order-report/internal/types"
)

// DateLayout is the layout of every normalized date (YYYY/MM/DD).
const DateLayout = "2006/01/02"

// maxDateTextLen is how much of a textual date the fixed layouts look at.
// Longer values (fractional seconds, zones) are cut before matching.
const maxDateTextLen = 19

// compactDateLayout is the one all-digit form accepted as a date.
const compactDateLayout = "20060102"

// dateLayouts are tried in order; the first one that parses wins.
// Single-digit month, day and hour are accepted.
var dateLayouts = []string{
	"2006/1/2",
	"2006-1-2",
	"2006/1/2 15:04:05",
	"2006-1-2 15:04:05",
	"2006/1/2 15:04",
	"2006-1-2 15:04",
}

// ParseDate normalizes a raw cell value into a YYYY/MM/DD string.
//
// It never fails: empty, NaN, bare numbers and unparseable values return
// ok == false and the caller keeps the row with an empty date. A result is
// always a fixed point: ParseDate of it returns it again.
func ParseDate(value any) (string, bool) {
	var text string

	switch v := value.(type) {
	case nil:
		return "", false
	case time.Time:
		if v.IsZero() {
			return "", false
		}
		return v.Format(DateLayout), true
	case *time.Time:
		if v == nil || v.IsZero() {
			return "", false
		}
		return v.Format(DateLayout), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", false
		}
		text = strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		text = v
	default:
		text = formatScalar(v)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	head := text
	if r := []rune(head); len(r) > maxDateTextLen {
		head = string(r[:maxDateTextLen])
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, head); err == nil {
			return t.Format(DateLayout), true
		}
	}

	// Bare numbers are amounts, counts or serials, not dates. Only a compact
	// YYYYMMDD is taken as a date.
	if _, err := strconv.ParseFloat(text, 64); err == nil {
		if len(text) != len(compactDateLayout) {
			return "", false
		}
		t, err := time.Parse(compactDateLayout, text)
		if err != nil {
			return "", false
		}
		return formatDate(t)
	}

	t, err := dateparse.ParseAny(text)
	if err != nil {
		return "", false
	}
	return formatDate(t)
}

// formatDate rejects years that do not fit the four-digit layout.
func formatDate(t time.Time) (string, bool) {
	if t.Year() < 0 || t.Year() > 9999 {
		return "", false
	}
	return t.Format(DateLayout), true
}

// AvailableDates returns the distinct non-empty dates of a column, most
// recent first.
func AvailableDates(table *types.Table, dateColumn string) []string {
	if table == nil {
		return []string{}
	}

	seen := make(map[string]bool)
	dates := make([]string, 0)
	for _, row := range table.Rows {
		d, ok := row[dateColumn].(string)
		if !ok || d == "" || seen[d] {
			continue
		}
		seen[d] = true
		dates = append(dates, d)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates
}

// ShortDate turns "YYYY/MM/DD" into "MM/DD". Anything else is returned as is.
func ShortDate(date string) string {
	parts := strings.Split(date, "/")
	if len(parts) != 3 {
		return date
	}
	return parts[1] + "/" + parts[2]
}
