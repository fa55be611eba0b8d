// backend/src/parsers/json_parser.go
package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/username/commissioncalc/backend/src/models"
)

// JSONParser reads either an array of objects or a single object. Object key
// order is preserved; non-string values are kept as their JSON text.
type JSONParser struct{}

func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

func (p *JSONParser) Parse(file io.Reader) (*Table, error) {
	dec := json.NewDecoder(file)
	dec.UseNumber()

	tok, err := dec.Token()
	if err == io.EOF {
		return &Table{Headers: []string{}, Records: []*models.PaymentRow{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrParsingFailed, err)
	}

	table := &Table{Headers: []string{}, Records: []*models.PaymentRow{}}
	switch tok {
	case json.Delim('['):
		for dec.More() {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("%w: invalid JSON array element %d: %v", ErrParsingFailed, len(table.Records)+1, err)
			}
			row, err := rowFromRawObject(raw)
			if err != nil {
				return nil, err
			}
			table.Records = append(table.Records, row)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("%w: unterminated JSON array: %v", ErrParsingFailed, err)
		}
	case json.Delim('{'):
		row, err := readObjectBody(dec)
		if err != nil {
			return nil, err
		}
		table.Records = append(table.Records, row)
	default:
		return nil, fmt.Errorf("%w: JSON payment data must be an object or an array of objects", ErrParsingFailed)
	}
	return table, nil
}

// rowFromRawObject converts one array element. Anything but an object becomes
// an empty row, which later fails field detection on its own.
func rowFromRawObject(raw json.RawMessage) (*models.PaymentRow, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return models.NewPaymentRow(), nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	return readObjectBody(dec)
}

// readObjectBody consumes key/value pairs after an opening '{' up to the closing '}'.
func readObjectBody(dec *json.Decoder) (*models.PaymentRow, error) {
	row := models.NewPaymentRow()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected object key, got %v", ErrParsingFailed, keyTok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: invalid value for %q: %v", ErrParsingFailed, key, err)
		}
		row.Set(key, rawToCell(value))
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: unterminated JSON object: %v", ErrParsingFailed, err)
	}
	return row, nil
}

func rawToCell(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err == nil {
		return compact.String()
	}
	return strings.TrimSpace(string(trimmed))
}
