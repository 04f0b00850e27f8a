// =============================================================================
// Order Report Generator - Column Remapper
// =============================================================================
//
// Remap turns a raw export table into the platform's canonical table:
//   1. Every canonical column of the profile is created.
//   2. Each is filled from its source column when the export has it,
//      otherwise it is left empty for every row.
//   3. The date column is rebuilt from the date source column through
//      ParseDate.
//
// Source columns the profile does not mention are dropped. A differently
// shaped export is a data quality problem, never an error.
//
// =============================================================================

package report

import (
	"github.com/ginjaninja78/order-report/internal/platform"
	"github.com/ginjaninja78/order-report/internal/types"
)

// Remap builds the normalized table for a profile from a raw table.
func Remap(raw *types.Table, profile *platform.Profile) *types.Table {
	out := &types.Table{
		Columns: profile.CanonicalColumns(),
		Rows:    make([]types.Row, 0, raw.Len()),
	}
	if raw == nil {
		return out
	}

	present := columnSet(raw)
	hasDateSource := present[profile.DateSourceColumn]

	for _, src := range raw.Rows {
		row := make(types.Row, len(out.Columns))

		for _, m := range profile.ColumnMapping {
			if present[m.Source] {
				row[m.Canonical] = src[m.Source]
			} else {
				row[m.Canonical] = nil
			}
		}

		if hasDateSource {
			if d, ok := ParseDate(src[profile.DateSourceColumn]); ok {
				row[profile.DateColumn] = d
			} else {
				row[profile.DateColumn] = nil
			}
		}

		out.Rows = append(out.Rows, row)
	}

	return out
}

// columnSet collects the declared columns of a table plus any key that
// appears in its rows.
func columnSet(t *types.Table) map[string]bool {
	set := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		set[c] = true
	}
	for _, row := range t.Rows {
		for k := range row {
			set[k] = true
		}
	}
	return set
}
