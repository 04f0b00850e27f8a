package report

import "github.com/ginjaninja78/order-report/internal/platform"

// Summary is the serializable view of a report used by the JSON API and the
// CLI.
type Summary struct {
	Platform     platform.ID `json:"platform"`
	Title        string      `json:"title"`
	Dates        []string    `json:"dates"`
	Columns      []string    `json:"columns"`
	Rows         [][]string  `json:"rows"`
	OrderCount   int         `json:"order_count"`
	Total        float64     `json:"total"`
	TotalDisplay string      `json:"total_display"`
}

// Summarize flattens a report into its display form.
func (r *Report) Summarize() Summary {
	total, _ := r.Total.Float64()
	return Summary{
		Platform:     r.Profile.ID,
		Title:        r.Title(),
		Dates:        r.Dates,
		Columns:      r.Columns,
		Rows:         r.Cells(),
		OrderCount:   r.OrderCount(),
		Total:        total,
		TotalDisplay: "NT$ " + FormatAmount(r.Total),
	}
}
