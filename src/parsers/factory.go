// backend/src/parsers/factory.go
package parsers

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
)

// Format names returned by DetectFormat.
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatKeyValue = "keyvalue"
	FormatAuto     = "auto"
)

func GetParser(format string) Parser {
	switch format {
	case FormatJSON:
		return NewJSONParser()
	case FormatKeyValue:
		return NewKeyValueParser()
	case FormatAuto:
		return &autoParser{}
	default:
		return NewCSVParser()
	}
}

// DetectFormat picks a format from the file name and declared content type.
// Anything unrecognised is sniffed from content by the auto parser.
func DetectFormat(filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	ct := strings.ToLower(contentType)
	switch {
	case ext == ".csv" || strings.Contains(ct, "csv"):
		return FormatCSV
	case ext == ".json" || strings.Contains(ct, "json"):
		return FormatJSON
	default:
		return FormatAuto
	}
}

// ParsePaymentFile detects the format of content and parses it.
func ParsePaymentFile(filename, contentType string, content []byte) (*Table, string, error) {
	format := DetectFormat(filename, contentType)
	table, err := GetParser(format).Parse(bytes.NewReader(content))
	return table, format, err
}

// autoParser sniffs JSON and "key: value" text, otherwise reads CSV and falls back
// to key/value when the CSV has no data rows.
type autoParser struct{}

func (p *autoParser) Parse(file io.Reader) (*Table, error) {
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(content)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return NewJSONParser().Parse(bytes.NewReader(trimmed))
	}
	if looksLikeKeyValue(string(content)) {
		return NewKeyValueParser().Parse(bytes.NewReader(content))
	}

	table, err := NewCSVParser().Parse(bytes.NewReader(content))
	if err == nil && len(table.Records) > 0 {
		return table, nil
	}
	return NewKeyValueParser().Parse(bytes.NewReader(content))
}

// looksLikeKeyValue is true when every non-blank line has a colon before any comma.
func looksLikeKeyValue(text string) bool {
	lines := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines++
		colon := strings.Index(line, ":")
		if colon <= 0 {
			return false
		}
		if comma := strings.Index(line, ","); comma >= 0 && comma < colon {
			return false
		}
	}
	return lines > 0
}
