package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFormat is returned for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown report format")

// Format is a report output format.
type Format string

const (
	FormatHTML Format = "html"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat parses a format name. Empty means HTML.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatHTML, nil
	case FormatHTML, FormatJSON, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/html; charset=utf-8"
	}
}

// Ext is the file extension of the format, without the dot.
func (f Format) Ext() string {
	if f == "" {
		return string(FormatHTML)
	}
	return string(f)
}

// Encode renders the report in the given format.
func Encode(r *Report, f Format) ([]byte, error) {
	switch f {
	case FormatHTML, "":
		html, err := Render(r)
		if err != nil {
			return nil, err
		}
		return []byte(html), nil
	case FormatJSON:
		b, err := json.MarshalIndent(r.Summarize(), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode report: %w", err)
		}
		return b, nil
	case FormatXLSX:
		return WriteXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}
