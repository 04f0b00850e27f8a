// =============================================================================
// Order Report Generator - Shared Types
// =============================================================================
//
// This package contains the tabular types shared by the workbook reader, the
// report pipeline and the session store. Keeping them here avoids import
// cycles between:
//   - workbook
//   - report
//   - session
//
// =============================================================================

package types

// =============================================================================
// TABLE TYPES
// =============================================================================

// Row is a single record keyed by column name.
//
// Values are scalars as read from the source sheet: string, float64, int,
// time.Time or nil. A missing key and a nil value both mean "empty cell".
type Row map[string]any

// Table is an ordered collection of rows sharing a column set.
type Table struct {
	// Columns lists the column names in display order.
	Columns []string `json:"columns"`

	// Rows holds the records. Each row may omit columns it has no value for.
	Rows []Row `json:"rows"`
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}
