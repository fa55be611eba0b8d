package parsers

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/username/commissioncalc/backend/src/models"
)

// KeyValueParser reads a single record written as "key: value" lines. Lines
// without a colon are kept under generated field_N keys.
type KeyValueParser struct{}

func NewKeyValueParser() *KeyValueParser {
	return &KeyValueParser{}
}

func (p *KeyValueParser) Parse(file io.Reader) (*Table, error) {
	row := models.NewPaymentRow()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if idx := strings.Index(line, ":"); idx > 0 {
			row.Set(strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]))
		} else {
			row.Set(fmt.Sprintf("field_%d", row.Len()+1), line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	table := &Table{Headers: []string{}, Records: []*models.PaymentRow{}}
	if row.Len() > 0 {
		table.Records = append(table.Records, row)
	}
	return table, nil
}
