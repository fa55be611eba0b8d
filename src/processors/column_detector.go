package processors

import (
	"math"
	"strconv"
	"strings"

	"github.com/username/commissioncalc/backend/src/models"
)

// Field is a canonical payment field a column can map to.
type Field string

const (
	FieldAmount                Field = "amount_usd"
	FieldUser                  Field = "user"
	FieldOriginator            Field = "originator"
	FieldContext               Field = "context"
	FieldOwnOriginationPercent Field = "own_origination_percent"
)

// ColumnRule maps a column to a field when Match accepts its normalized
// (trimmed, lower-cased) name. Rules are tried in slice order per field; within
// one rule the row's columns are tried in source order. The first hit wins.
type ColumnRule struct {
	Name  string
	Field Field
	Match func(key string) bool
}

func containsAny(needles ...string) func(string) bool {
	return func(key string) bool {
		for _, n := range needles {
			if strings.Contains(key, n) {
				return true
			}
		}
		return false
	}
}

func equalsAny(names ...string) func(string) bool {
	lowered := make([]string, len(names))
	for i, n := range names {
		lowered[i] = strings.ToLower(n)
	}
	return func(key string) bool {
		for _, n := range lowered {
			if key == n {
				return true
			}
		}
		return false
	}
}

// HeuristicColumnRules detect fields in free-form payment files.
var HeuristicColumnRules = []ColumnRule{
	{Name: "amount_usd", Field: FieldAmount, Match: containsAny("amount_usd")},
	{Name: "amount-like", Field: FieldAmount, Match: containsAny("amount", "fee", "revenue", "collected", "settlement", "total")},
	{Name: "user", Field: FieldUser, Match: containsAny("user")},
	{Name: "person-like", Field: FieldUser, Match: containsAny("attorney", "lawyer", "employee", "assigned")},
	{Name: "originator", Field: FieldOriginator, Match: containsAny("originator")},
	{Name: "origination-like", Field: FieldOriginator, Match: containsAny("originating", "origination", "source")},
	{Name: "context", Field: FieldContext, Match: containsAny("context")},
	{Name: "notes-like", Field: FieldContext, Match: containsAny("notes", "note", "matter", "case", "practice", "team", "exception")},
	{Name: "own_origination_percent", Field: FieldOwnOriginationPercent, Match: containsAny("own_origination_percent")},
	{Name: "percent-like", Field: FieldOwnOriginationPercent, Match: containsAny("own origination", "origination percent", "originator percent", "origination %", "originator %")},
}

// ExactColumnRules accept only the fixed column names of the batch upload format.
var ExactColumnRules = []ColumnRule{
	{Name: "amount", Field: FieldAmount, Match: equalsAny("amount_usd", "amount", "amountUSD")},
	{Name: "user", Field: FieldUser, Match: equalsAny("user", "user_name", "attorney", "attorney_name")},
	{Name: "originator", Field: FieldOriginator, Match: equalsAny("originator", "originator_name")},
	{Name: "context", Field: FieldContext, Match: equalsAny("context", "notes", "matter", "case")},
	{Name: "own_origination_percent", Field: FieldOwnOriginationPercent, Match: equalsAny("own_origination_percent", "ownOriginationPercent", "originator_percent", "originatorPercent")},
}

// amountFallback is applied when the matched amount column does not hold a number.
var amountFallback = containsAny("amount", "fee", "revenue", "collected", "total")

// ColumnDetector infers DetectedFields from a PaymentRow.
type ColumnDetector struct {
	rules         []ColumnRule
	scanForAmount bool
	defaultToUser bool
}

// NewHeuristicDetector detects by substring rules and scans amount-like columns
// for a number when the first match is not numeric.
func NewHeuristicDetector() *ColumnDetector {
	return &ColumnDetector{rules: HeuristicColumnRules, scanForAmount: true, defaultToUser: true}
}

// NewExactDetector detects by the fixed batch column names only.
func NewExactDetector() *ColumnDetector {
	return &ColumnDetector{rules: ExactColumnRules, defaultToUser: true}
}

func NewColumnDetector(rules []ColumnRule) *ColumnDetector {
	return &ColumnDetector{rules: rules, defaultToUser: true}
}

func (d *ColumnDetector) Rules() []ColumnRule {
	out := make([]ColumnRule, len(d.rules))
	copy(out, d.rules)
	return out
}

// Detect never fails; an unusable row is reported by IsCalculable.
func (d *ColumnDetector) Detect(row *models.PaymentRow) models.DetectedFields {
	keys := row.Keys()
	normalized := make([]string, len(keys))
	for i, k := range keys {
		normalized[i] = strings.ToLower(strings.TrimSpace(k))
	}

	value := func(column string) string {
		if column == "" {
			return ""
		}
		v, _ := row.Get(column)
		return v
	}

	out := models.DetectedFields{
		AmountColumn:                d.findColumn(FieldAmount, keys, normalized),
		UserColumn:                  d.findColumn(FieldUser, keys, normalized),
		OriginatorColumn:            d.findColumn(FieldOriginator, keys, normalized),
		ContextColumn:               d.findColumn(FieldContext, keys, normalized),
		OwnOriginationPercentColumn: d.findColumn(FieldOwnOriginationPercent, keys, normalized),
	}

	out.Amount = ParseLenientNumber(value(out.AmountColumn))
	if !isFinite(out.Amount) && d.scanForAmount {
		for i, k := range keys {
			if !amountFallback(normalized[i]) {
				continue
			}
			if n := ParseLenientNumber(value(k)); isFinite(n) {
				out.Amount = n
				out.AmountColumn = k
				break
			}
		}
	}

	out.User = strings.TrimSpace(value(out.UserColumn))
	out.Originator = strings.TrimSpace(value(out.OriginatorColumn))
	if out.Originator == "" && d.defaultToUser {
		out.Originator = out.User
	}
	out.Context = strings.TrimSpace(value(out.ContextColumn))

	out.OwnOriginationPercent = ParseLenientNumber(value(out.OwnOriginationPercentColumn))
	if !isFinite(out.OwnOriginationPercent) {
		out.OwnOriginationPercent = math.NaN()
	}
	return out
}

func (d *ColumnDetector) findColumn(field Field, keys, normalized []string) string {
	for _, rule := range d.rules {
		if rule.Field != field {
			continue
		}
		for i, k := range normalized {
			if rule.Match(k) {
				return keys[i]
			}
		}
	}
	return ""
}

// IsCalculable reports whether a row has a finite non-negative amount and a user.
func IsCalculable(f models.DetectedFields) bool {
	return isFinite(f.Amount) && f.Amount >= 0 && f.User != ""
}

// ParseLenientNumber drops every character other than digits, '.' and '-' and
// parses the rest, so "$12,000.50" reads as 12000.5. Blank or unparseable
// input yields NaN.
func ParseLenientNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return math.NaN()
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return math.NaN()
	}
	return n
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
