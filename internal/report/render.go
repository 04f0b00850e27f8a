// =============================================================================
// Order Report Generator - HTML Renderer
// =============================================================================
//
// Render produces the daily report as a self-contained HTML fragment: an
// inline stylesheet, the title and one table with a header row, a body row
// per order and a closing total row.
//
// TOTAL ROW:
//   | 總計 |   |   | 12,345 |   |
//   The label always takes the first cell; the total sits under the amount
//   column; every other cell is empty.
//
// =============================================================================

package report

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"time"
)

// reportTemplate is the report markup. Cell values are escaped by html/template.
var reportTemplate = template.Must(template.New("report").Parse(`<style>
    .report-container { font-family: 'Microsoft JhengHei', Arial, sans-serif; background: white; padding: 15px; }
    .report-title { text-align: center; border-bottom: 1px solid #000; padding-bottom: 8px; margin-bottom: 10px; }
    .report-title h2 { font-size: 1.2em; margin: 0; text-decoration: underline; }
    .report-table { width: 100%; border-collapse: collapse; font-size: 12px; border: 1px solid #8ea9db; }
    .report-table th { background: #4472c4; color: white; padding: 8px 6px; text-align: center; font-weight: bold; border: 1px solid #8ea9db; font-size: 11px; }
    .report-table td { padding: 6px; border: 1px solid #d9e2f3; text-align: center; }
    .report-table tbody tr:nth-child(odd) { background: #d9e2f3; }
    .report-table tbody tr:nth-child(even) { background: white; }
    .total-row { background: white !important; font-weight: bold; }
    .total-row td { border-top: 2px solid #4472c4; padding-top: 10px; }
    .total-label { color: #c00000; text-align: right; padding-right: 15px; }
    .total-value { color: #c00000; }
</style>
<div class="report-container">
    <div class="report-title">
        <h2>{{.Title}}</h2>
    </div>
    <table class="report-table">
        <thead>
            <tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr>
        </thead>
        <tbody>
{{- range .Rows}}
            <tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
            <tr class="total-row">{{range .Total}}<td{{with .Class}} class="{{.}}"{{end}}>{{.Text}}</td>{{end}}</tr>
        </tbody>
    </table>
</div>
`))

type totalCell struct {
	Text  string
	Class string
}

type templateData struct {
	Title   string
	Columns []string
	Rows    [][]string
	Total   []totalCell
}

// Render returns the report as HTML.
func Render(r *Report) (string, error) {
	data := templateData{
		Title:   r.Title(),
		Columns: r.Columns,
		Rows:    r.Cells(),
		Total:   totalRow(r),
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}

// Cells returns the report body as display strings, one slice per row in
// column order.
func (r *Report) Cells() [][]string {
	cells := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		line := make([]string, len(r.Columns))
		for j, c := range r.Columns {
			line[j] = FormatCell(row[c])
		}
		cells[i] = line
	}
	return cells
}

// TotalCells returns the total row as display strings.
func (r *Report) TotalCells() []string {
	cells := totalRow(r)
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.Text
	}
	return out
}

func totalRow(r *Report) []totalCell {
	amountIdx := r.AmountIndex()
	cells := make([]totalCell, len(r.Columns))
	for i := range r.Columns {
		switch {
		case i == 0:
			cells[i] = totalCell{Text: TotalLabel, Class: "total-label"}
		case i == amountIdx:
			cells[i] = totalCell{Text: FormatAmount(r.Total), Class: "total-value"}
		}
	}
	return cells
}

// FormatCell renders a cell value for display. Empty values render as "".
func FormatCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format("2006/01/02 15:04:05")
	default:
		return formatScalar(v)
	}
}

func formatScalar(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}
