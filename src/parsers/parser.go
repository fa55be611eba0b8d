// backend/src/parsers/parser.go
package parsers

import (
	"errors"
	"io"

	"github.com/username/commissioncalc/backend/src/models"
)

// ErrParsingFailed wraps every error a Parser returns for malformed input.
var ErrParsingFailed = errors.New("failed to parse payment data")

// Table is a parsed payment file. Headers is empty for formats without a header row.
type Table struct {
	Headers []string
	Records []*models.PaymentRow
}

// Parser turns a payment data file into ordered rows.
type Parser interface {
	Parse(file io.Reader) (*Table, error)
}
