// =============================================================================
// Order Report Generator - Platform Profiles
// =============================================================================
//
// This package holds the static configuration for every supported sales
// platform. A profile describes how a platform's order export maps onto the
// canonical report columns:
//   - which source column feeds which canonical column
//   - which canonical columns appear in the report, and in what order
//   - which column carries the order date and which the amount
//   - which sheet of the uploaded workbook holds the data
//   - how the report title is phrased
//
// The profile table is closed: platforms are added by extending the table
// below, never at runtime. Every entry is validated once at startup.
//
// =============================================================================

package platform

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrUnrecognizedPlatform is returned when a platform identifier has no profile.
var ErrUnrecognizedPlatform = errors.New("unrecognized platform")

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ID identifies a sales platform.
type ID string

const (
	Official ID = "official"
	Shopee   ID = "shopee"
	Momo     ID = "momo"
)

// SheetMarker is the text shared by every platform's data sheet name.
// The workbook reader falls back to the first sheet containing it.
const SheetMarker = "前日交易數據"

// =============================================================================
// PROFILE STRUCTURE
// =============================================================================

// Mapping pairs a source export column with its canonical report column.
type Mapping struct {
	Source    string `json:"source"`
	Canonical string `json:"canonical"`
}

// Profile is the immutable per-platform configuration record.
type Profile struct {
	// ID is the platform identifier used by callers.
	ID ID `json:"id"`

	// DisplayName is the human label of the platform.
	DisplayName string `json:"display_name"`

	// DateColumn is the canonical column holding the per-row order date.
	DateColumn string `json:"date_column"`

	// AmountColumn is the canonical column summed into the report total.
	AmountColumn string `json:"amount_column"`

	// SourceSheetName is the expected tab name in the uploaded workbook.
	SourceSheetName string `json:"source_sheet"`

	// ColumnMapping maps source columns to canonical columns.
	// Its order is the default column order of the normalized table.
	ColumnMapping []Mapping `json:"column_mapping"`

	// OutputColumns is the ordered column list of the rendered report.
	OutputColumns []string `json:"output_columns"`

	// DateSourceColumn is the source column carrying the raw date value.
	DateSourceColumn string `json:"date_source_column"`

	// TitleTemplate is the report title; "{date}" is replaced by the MM/DD
	// form of the first selected date.
	TitleTemplate string `json:"title_template"`
}

// CanonicalColumns returns the canonical columns in mapping order, without
// duplicates.
func (p *Profile) CanonicalColumns() []string {
	seen := make(map[string]bool, len(p.ColumnMapping))
	columns := make([]string, 0, len(p.ColumnMapping))
	for _, m := range p.ColumnMapping {
		if seen[m.Canonical] {
			continue
		}
		seen[m.Canonical] = true
		columns = append(columns, m.Canonical)
	}
	return columns
}

// Title renders the title template with the given short date.
func (p *Profile) Title(shortDate string) string {
	return strings.ReplaceAll(p.TitleTemplate, "{date}", shortDate)
}

// Validate checks the profile invariants:
//   - the date and amount columns are reachable through the column mapping
//   - every output column is a canonical column
//   - the date source column is set
func (p *Profile) Validate() error {
	canonical := make(map[string]bool, len(p.ColumnMapping))
	for _, m := range p.ColumnMapping {
		if m.Source == "" || m.Canonical == "" {
			return fmt.Errorf("platform %s: empty column mapping entry", p.ID)
		}
		canonical[m.Canonical] = true
	}

	if p.DateSourceColumn == "" {
		return fmt.Errorf("platform %s: date source column is not set", p.ID)
	}
	if !canonical[p.DateColumn] {
		return fmt.Errorf("platform %s: date column %q is not a mapped column", p.ID, p.DateColumn)
	}
	if !canonical[p.AmountColumn] {
		return fmt.Errorf("platform %s: amount column %q is not a mapped column", p.ID, p.AmountColumn)
	}
	for _, col := range p.OutputColumns {
		if !canonical[col] {
			return fmt.Errorf("platform %s: output column %q is not a mapped column", p.ID, col)
		}
	}
	if !strings.Contains(p.TitleTemplate, "{date}") {
		return fmt.Errorf("platform %s: title template has no {date} placeholder", p.ID)
	}

	return nil
}

// =============================================================================
// PROFILE TABLE
// =============================================================================

var profiles = map[ID]*Profile{
	Official: {
		ID:              Official,
		DisplayName:     "官網",
		DateColumn:      "訂單日期",
		AmountColumn:    "折扣後金額",
		SourceSheetName: "官網前日交易數據",
		ColumnMapping: []Mapping{
			{"商品料號", "商品原廠編號"},
			{"商品選項", "商品選項"},
			{"數量", "數量"},
			{"收件人", "收件人"},
			{"主單編號", "訂單編號"},
			{"銷售金額(折扣後)", "折扣後金額"},
			{"通路商", "通路"},
			{"門市", "門市"},
			{"付款方式", "付款方式"},
			{"訂單狀態", "訂單狀態"},
			{"轉單日期時間", "訂單日期"},
		},
		OutputColumns: []string{
			"商品原廠編號", "商品選項", "數量", "收件人", "訂單編號",
			"折扣後金額", "通路", "門市", "付款方式", "訂單狀態", "訂單日期",
		},
		DateSourceColumn: "轉單日期時間",
		TitleTemplate:    "官網每日訂單報表{date}",
	},
	Shopee: {
		ID:              Shopee,
		DisplayName:     "蝦皮",
		DateColumn:      "訂單日期",
		AmountColumn:    "訂單總金額 (單)",
		SourceSheetName: "蝦皮前日交易數據",
		ColumnMapping: []Mapping{
			{"訂單編號", "訂單編號"},
			{"商品總價", "商品總價"},
			{"買家總支付金額", "訂單總金額 (單)"},
			{"商品名稱", "商品名稱 (品)"},
			{"主商品貨號", "主商品貨號"},
			{"商品選項名稱", "商品選項名稱 (品)"},
			{"商品活動價格", "商品活動價格 (品)"},
			{"數量", "數量"},
			{"寄送方式", "寄送方式 (單)"},
			{"付款方式", "付款方式 (單)"},
			{"訂單狀態", "訂單狀態"},
			{"訂單成立日期", "訂單日期"},
		},
		OutputColumns: []string{
			"訂單編號", "商品總價", "訂單總金額 (單)", "商品名稱 (品)",
			"主商品貨號", "商品選項名稱 (品)", "商品活動價格 (品)",
			"數量", "寄送方式 (單)", "付款方式 (單)", "訂單狀態", "訂單日期",
		},
		DateSourceColumn: "訂單成立日期",
		TitleTemplate:    "{date} 蝦皮訂單",
	},
	Momo: {
		ID:              Momo,
		DisplayName:     "MOMO",
		DateColumn:      "轉單日",
		AmountColumn:    "末端售價",
		SourceSheetName: "MOMO前日交易數據(未出貨)",
		ColumnMapping: []Mapping{
			{"訂單編號", "訂單編號"},
			{"收件人姓名", "收件人姓名"},
			{"商品原廠編號", "商品原廠編號"},
			{"單品詳細", "單品詳細"},
			{"數量", "數量"},
			{"售價(含稅)", "售價(含稅)"},
			{"末端售價", "末端售價"},
			{"轉單日", "轉單日"},
			{"訂單類別", "訂單狀態"},
		},
		OutputColumns: []string{
			"訂單編號", "收件人姓名", "商品原廠編號", "單品詳細",
			"數量", "售價(含稅)", "末端售價", "轉單日", "訂單狀態",
		},
		DateSourceColumn: "轉單日",
		TitleTemplate:    "{date} MOMO訂單",
	},
}

// =============================================================================
// LOOKUP FUNCTIONS
// =============================================================================

// Lookup returns the profile for a platform identifier.
// Identifiers are matched case-insensitively after trimming.
func Lookup(id string) (*Profile, error) {
	key := ID(strings.ToLower(strings.TrimSpace(id)))
	p, ok := profiles[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnrecognizedPlatform, id)
	}
	return p, nil
}

// All returns every profile ordered by identifier.
func All() []*Profile {
	all := make([]*Profile, 0, len(profiles))
	for _, p := range profiles {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

// ValidateAll validates every profile in the table.
// It is called once at startup; any error is fatal.
func ValidateAll() error {
	for _, p := range All() {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
