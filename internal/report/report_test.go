package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/order-report/internal/platform"
	"github.com/ginjaninja78/order-report/internal/types"
)

func mustProfile(t *testing.T, id platform.ID) *platform.Profile {
	t.Helper()
	p, err := platform.Lookup(string(id))
	require.NoError(t, err)
	return p
}

// fullRawTable builds a one-row export holding every mapped source column.
func fullRawTable(p *platform.Profile) *types.Table {
	raw := &types.Table{Rows: []types.Row{{}}}
	for _, m := range p.ColumnMapping {
		raw.Columns = append(raw.Columns, m.Source)
		raw.Rows[0][m.Source] = "v:" + m.Source
	}
	raw.Rows[0][p.DateSourceColumn] = "2025/06/01"
	raw.Columns = append(raw.Columns, "extra column")
	raw.Rows[0]["extra column"] = "ignored"
	return raw
}

func TestRemap_AllColumnsPresent(t *testing.T) {
	for _, p := range platform.All() {
		t.Run(string(p.ID), func(t *testing.T) {
			raw := fullRawTable(p)
			out := Remap(raw, p)

			require.Len(t, out.Rows, 1)
			assert.Equal(t, p.CanonicalColumns(), out.Columns)
			assert.Len(t, out.Rows[0], len(p.CanonicalColumns()))

			for _, m := range p.ColumnMapping {
				assert.Equal(t, raw.Rows[0][m.Source], out.Rows[0][m.Canonical], "column %s", m.Canonical)
			}
			assert.NotContains(t, out.Rows[0], "extra column")
		})
	}
}

func TestRemap_MissingColumn(t *testing.T) {
	for _, p := range platform.All() {
		for _, m := range p.ColumnMapping {
			if m.Source == p.DateSourceColumn {
				continue
			}
			t.Run(string(p.ID)+"/"+m.Source, func(t *testing.T) {
				raw := fullRawTable(p)
				raw.Rows = append(raw.Rows, types.Row{})
				for k, v := range raw.Rows[0] {
					raw.Rows[1][k] = v
				}
				for i, c := range raw.Columns {
					if c == m.Source {
						raw.Columns = append(raw.Columns[:i], raw.Columns[i+1:]...)
						break
					}
				}
				for _, row := range raw.Rows {
					delete(row, m.Source)
				}

				out := Remap(raw, p)
				require.Len(t, out.Rows, 2)
				for _, row := range out.Rows {
					v, ok := row[m.Canonical]
					assert.True(t, ok)
					assert.Nil(t, v)
				}
			})
		}
	}
}

func TestRemap_UnparseableDateKeepsRow(t *testing.T) {
	p := mustProfile(t, platform.Shopee)
	raw := &types.Table{
		Columns: []string{"訂單編號", "訂單成立日期"},
		Rows: []types.Row{
			{"訂單編號": "A1", "訂單成立日期": "soon"},
			{"訂單編號": "A2", "訂單成立日期": "2025-06-02 09:15:00"},
		},
	}

	out := Remap(raw, p)
	require.Len(t, out.Rows, 2)
	assert.Nil(t, out.Rows[0]["訂單日期"])
	assert.Equal(t, "2025/06/02", out.Rows[1]["訂單日期"])
	assert.Equal(t, []string{"2025/06/02"}, AvailableDates(out, p.DateColumn))
}

func TestRemap_NilTable(t *testing.T) {
	p := mustProfile(t, platform.Momo)
	out := Remap(nil, p)
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, p.CanonicalColumns(), out.Columns)
}

func TestBuildReport_TotalCoercesAmounts(t *testing.T) {
	p := mustProfile(t, platform.Momo)
	table := &types.Table{
		Columns: p.CanonicalColumns(),
		Rows: []types.Row{
			{"訂單編號": "1", "末端售價": 100, "轉單日": "2025/06/01"},
			{"訂單編號": "2", "末端售價": "200", "轉單日": "2025/06/01"},
			{"訂單編號": "3", "末端售價": nil, "轉單日": "2025/06/01"},
			{"訂單編號": "4", "末端售價": "abc", "轉單日": "2025/06/01"},
			{"訂單編號": "5", "末端售價": 999, "轉單日": "2025/05/31"},
		},
	}

	rep, err := BuildReport(table, []string{"2025/06/01"}, p)
	require.NoError(t, err)
	assert.True(t, rep.Total.Equal(decimal.NewFromInt(300)), "total = %s", rep.Total)
	assert.Equal(t, 4, rep.OrderCount())
}

func TestBuildReport_MissingAmountColumn(t *testing.T) {
	p := mustProfile(t, platform.Momo)
	table := &types.Table{
		Columns: []string{"訂單編號", "轉單日"},
		Rows:    []types.Row{{"訂單編號": "1", "轉單日": "2025/06/01"}},
	}

	rep, err := BuildReport(table, []string{"2025/06/01"}, p)
	require.NoError(t, err)
	assert.True(t, rep.Total.IsZero())
	assert.Equal(t, []string{"訂單編號", "轉單日"}, rep.Columns)
	assert.Equal(t, -1, rep.AmountIndex())
}

func TestBuildReport_NoMatchingRows(t *testing.T) {
	p := mustProfile(t, platform.Official)
	table := Remap(fullRawTable(p), p)

	_, err := BuildReport(table, []string{"1999/01/01"}, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMatchingRows)

	_, err = BuildReport(table, nil, p)
	assert.ErrorIs(t, err, ErrNoMatchingRows)
}

func TestBuildReport_SortsByDateDescendingStable(t *testing.T) {
	p := mustProfile(t, platform.Shopee)
	table := &types.Table{
		Columns: p.CanonicalColumns(),
		Rows: []types.Row{
			{"訂單編號": "a", "訂單日期": "2025/06/01"},
			{"訂單編號": "b", "訂單日期": "2025/06/02"},
			{"訂單編號": "c", "訂單日期": "2025/06/01"},
			{"訂單編號": "d", "訂單日期": "2025/06/02"},
			{"訂單編號": "e", "訂單日期": nil},
		},
	}

	rep, err := BuildReport(table, []string{"2025/06/01", "2025/06/02"}, p)
	require.NoError(t, err)

	var ids []string
	for _, row := range rep.Rows {
		ids = append(ids, row["訂單編號"].(string))
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
}

func TestBuildReport_ProjectsOutputColumns(t *testing.T) {
	p := mustProfile(t, platform.Official)
	table := Remap(fullRawTable(p), p)

	rep, err := BuildReport(table, []string{"2025/06/01"}, p)
	require.NoError(t, err)
	assert.Equal(t, p.OutputColumns, rep.Columns)
	for _, row := range rep.Rows {
		assert.Len(t, row, len(p.OutputColumns))
	}
}

func TestEndToEnd_Shopee(t *testing.T) {
	p := mustProfile(t, platform.Shopee)
	raw := &types.Table{
		Columns: []string{"訂單編號", "買家總支付金額", "訂單成立日期"},
		Rows: []types.Row{
			{"訂單編號": "A1", "買家總支付金額": 500.0, "訂單成立日期": "2025/06/01"},
			{"訂單編號": "A2", "買家總支付金額": 300.0, "訂單成立日期": "2025/06/02"},
		},
	}

	normalized := Remap(raw, p)
	assert.Equal(t, []string{"2025/06/02", "2025/06/01"}, AvailableDates(normalized, p.DateColumn))

	rep, err := BuildReport(normalized, []string{"2025/06/02"}, p)
	require.NoError(t, err)
	require.Len(t, rep.Rows, 1)
	assert.Equal(t, "A2", rep.Rows[0]["訂單編號"])
	assert.True(t, rep.Total.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, "06/02 蝦皮訂單", rep.Title())

	html, err := Render(rep)
	require.NoError(t, err)
	assert.Contains(t, html, "<h2>06/02 蝦皮訂單</h2>")
	assert.Contains(t, html, "<td>A2</td>")
	assert.NotContains(t, html, "A1")
}

func TestRender_EmptyCellsAndTotalRow(t *testing.T) {
	p := mustProfile(t, platform.Momo)
	table := &types.Table{
		Columns: p.CanonicalColumns(),
		Rows: []types.Row{
			{"訂單編號": "M1", "收件人姓名": nil, "末端售價": 1234567.5, "轉單日": "2025/06/03"},
		},
	}

	rep, err := BuildReport(table, []string{"2025/06/03"}, p)
	require.NoError(t, err)

	html, err := Render(rep)
	require.NoError(t, err)
	assert.NotContains(t, html, "null")
	assert.NotContains(t, html, "None")
	assert.NotContains(t, html, "&lt;nil&gt;")
	assert.Contains(t, html, "<td></td>")
	assert.NotContains(t, html, `class=""`)
	assert.Contains(t, html, `<td class="total-label">總計</td>`)
	assert.Contains(t, html, `<td class="total-value">1,234,568</td>`)

	total := rep.TotalCells()
	require.Len(t, total, len(rep.Columns))
	for i, cell := range total {
		switch {
		case i == 0:
			assert.Equal(t, TotalLabel, cell)
		case i == rep.AmountIndex():
			assert.Equal(t, "1,234,568", cell)
		default:
			assert.Empty(t, cell)
		}
	}
}

func TestRender_TitleUsesFirstSelectedDate(t *testing.T) {
	p := mustProfile(t, platform.Official)
	table := &types.Table{
		Columns: p.CanonicalColumns(),
		Rows: []types.Row{
			{"訂單編號": "1", "訂單日期": "2025/06/01"},
			{"訂單編號": "2", "訂單日期": "2025/06/05"},
		},
	}

	rep, err := BuildReport(table, []string{"2025/06/01", "2025/06/05"}, p)
	require.NoError(t, err)
	assert.Equal(t, "官網每日訂單報表06/01", rep.Title())

	rep.Dates = []string{"yesterday"}
	assert.Equal(t, "官網每日訂單報表yesterday", rep.Title())
}

func TestRender_EscapesCellValues(t *testing.T) {
	p := mustProfile(t, platform.Momo)
	table := &types.Table{
		Columns: p.CanonicalColumns(),
		Rows:    []types.Row{{"訂單編號": "<b>x</b>", "轉單日": "2025/06/03"}},
	}

	rep, err := BuildReport(table, []string{"2025/06/03"}, p)
	require.NoError(t, err)
	html, err := Render(rep)
	require.NoError(t, err)
	assert.NotContains(t, html, "<b>x</b>")
	assert.True(t, strings.Contains(html, "&lt;b&gt;x&lt;/b&gt;"))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", FormatAmount(decimal.Zero))
	assert.Equal(t, "300", FormatAmount(decimal.NewFromInt(300)))
	assert.Equal(t, "12,346", FormatAmount(decimal.RequireFromString("12345.6")))
	assert.Equal(t, "-1,000", FormatAmount(decimal.NewFromInt(-1000)))
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		in     any
		want   string
		wantOK bool
	}{
		{100, "100", true},
		{"200", "200", true},
		{" 12.5 ", "12.5", true},
		{7.25, "7.25", true},
		{nil, "0", false},
		{"abc", "0", false},
		{"", "0", false},
		{true, "0", false},
	}
	for _, tt := range tests {
		got, ok := ToNumber(tt.in)
		assert.Equal(t, tt.wantOK, ok, "%v", tt.in)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%v -> %s", tt.in, got)
	}
}

func TestWriteXLSX(t *testing.T) {
	p := mustProfile(t, platform.Shopee)
	table := &types.Table{
		Columns: p.CanonicalColumns(),
		Rows: []types.Row{
			{"訂單編號": "A1", "訂單總金額 (單)": 1500.0, "訂單日期": "2025/06/02"},
		},
	}
	rep, err := BuildReport(table, []string{"2025/06/02"}, p)
	require.NoError(t, err)

	data, err := WriteXLSX(rep)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "06/02 蝦皮訂單", rows[0][0])
	assert.Equal(t, rep.Columns, rows[1])
	assert.Equal(t, "A1", rows[2][0])
	assert.Equal(t, TotalLabel, rows[3][0])
	assert.Equal(t, "1,500", rows[3][rep.AmountIndex()])
}

func TestEncode(t *testing.T) {
	p := mustProfile(t, platform.Shopee)
	table := &types.Table{
		Columns: p.CanonicalColumns(),
		Rows:    []types.Row{{"訂單編號": "A1", "訂單總金額 (單)": 1234.0, "訂單日期": "2025/06/02"}},
	}
	rep, err := BuildReport(table, []string{"2025/06/02"}, p)
	require.NoError(t, err)

	for _, name := range []string{"", "HTML", "json", "xlsx"} {
		f, err := ParseFormat(name)
		require.NoError(t, err, name)
		body, err := Encode(rep, f)
		require.NoError(t, err, name)
		assert.NotEmpty(t, body, name)
		assert.NotEmpty(t, f.ContentType())
	}

	body, err := Encode(rep, FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"total_display": "NT$ 1,234"`)
	assert.Contains(t, string(body), `"order_count": 1`)
	assert.Contains(t, string(body), `"title": "06/02 蝦皮訂單"`)

	_, err = ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
