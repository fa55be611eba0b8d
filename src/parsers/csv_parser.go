// backend/src/parsers/csv_parser.go
package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/username/commissioncalc/backend/src/models"
)

const utf8BOM = "\ufeff"

type CSVParser struct{}

func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse reads a header row followed by records. Quoted fields may contain commas,
// newlines and doubled quotes; CRLF, LF and a lone CR all end a record. Records
// whose cells are all blank are dropped. Values are never coerced.
func (p *CSVParser) Parse(file io.Reader) (*Table, error) {
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	text := string(content)
	// encoding/csv only splits on LF.
	if !strings.Contains(text, "\n") {
		text = strings.ReplaceAll(text, "\r", "\n")
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	table := &Table{Headers: []string{}, Records: []*models.PaymentRow{}}
	if len(rows) == 0 {
		return table, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		headers[i] = strings.TrimSpace(h)
	}
	table.Headers = headers

	for _, record := range rows[1:] {
		if isBlankRecord(record) {
			continue
		}
		row := models.NewPaymentRow()
		for idx, header := range headers {
			key := columnKey(header, idx)
			value := ""
			if idx < len(record) {
				value = record[idx]
			}
			row.Set(key, value)
		}
		table.Records = append(table.Records, row)
	}

	return table, nil
}

// columnKey names a header cell; blank headers become col_N (1-based).
func columnKey(header string, idx int) string {
	if header == "" {
		return fmt.Sprintf("col_%d", idx+1)
	}
	return header
}

func isBlankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ParseCSVString is a convenience wrapper for in-memory text.
func ParseCSVString(text string) (*Table, error) {
	return NewCSVParser().Parse(strings.NewReader(text))
}
