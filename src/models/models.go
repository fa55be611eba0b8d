package models

import (
	"bytes"
	"encoding/json"
	"math"
)

// PaymentRow is one input record: column name -> raw cell text. Column order is
// kept from the source so that "first matching column" rules are deterministic.
type PaymentRow struct {
	keys   []string
	values map[string]string
}

func NewPaymentRow() *PaymentRow {
	return &PaymentRow{values: make(map[string]string)}
}

// PaymentRowFrom builds a row from parallel key/value slices.
func PaymentRowFrom(keys, values []string) *PaymentRow {
	row := NewPaymentRow()
	for i, k := range keys {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		row.Set(k, v)
	}
	return row
}

// Set assigns a value. A repeated key keeps its first position and takes the last value.
func (r *PaymentRow) Set(key, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

func (r *PaymentRow) Get(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the column names in source order.
func (r *PaymentRow) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r *PaymentRow) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// MarshalJSON writes the row as an object with keys in source order.
func (r *PaymentRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DetectedFields are the canonical values inferred from one PaymentRow.
type DetectedFields struct {
	Amount                float64 `json:"amount"`
	User                  string  `json:"user"`
	Originator            string  `json:"originator"`
	Context               string  `json:"context,omitempty"`
	OwnOriginationPercent float64 `json:"-"` // NaN when the row has no usable value

	// Source columns, for diagnostics. Empty when nothing matched.
	AmountColumn                string `json:"amount_column,omitempty"`
	UserColumn                  string `json:"user_column,omitempty"`
	OriginatorColumn            string `json:"originator_column,omitempty"`
	ContextColumn               string `json:"context_column,omitempty"`
	OwnOriginationPercentColumn string `json:"own_origination_percent_column,omitempty"`
}

// HasOwnOriginationPercent reports whether a finite origination percent was found.
func (d DetectedFields) HasOwnOriginationPercent() bool {
	return !math.IsNaN(d.OwnOriginationPercent) && !math.IsInf(d.OwnOriginationPercent, 0)
}

// UserCalculationResult is the outcome of the rule-matching step.
type UserCalculationResult struct {
	AmountUSD   float64 `json:"amount_usd"`
	User        string  `json:"user"`
	Originator  string  `json:"originator"`
	RuleApplied string  `json:"rule_applied"`
	Percentage  float64 `json:"percentage"`
	UserPayment float64 `json:"user_payment"`
	Calculation string  `json:"calculation"`
	Warning     string  `json:"warning,omitempty"`
}

// OriginatorCalculationResult is the outcome of the originator step.
type OriginatorCalculationResult struct {
	UserPayment           float64 `json:"user_payment"`
	User                  string  `json:"user"`
	Originator            string  `json:"originator"`
	OwnOriginationPercent float64 `json:"own_origination_percent"`
	OriginatorPayment     float64 `json:"originator_payment"`
	Calculation           string  `json:"calculation"`
	Warning               string  `json:"warning,omitempty"`
}
