package services

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// modelNumber accepts a JSON number or a numeric string. Anything else,
// including a missing field, reads as NaN.
type modelNumber struct {
	value float64
	set   bool
}

func (n *modelNumber) UnmarshalJSON(b []byte) error {
	n.set = true
	n.value = math.NaN()

	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		n.value = f
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			n.value = v
		}
	}
	return nil
}

func (n modelNumber) Float() float64 {
	if !n.set {
		return math.NaN()
	}
	return n.value
}

// modelText renders any JSON value as text: strings verbatim, null as "",
// everything else as compact JSON.
type modelText string

func (t *modelText) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		*t = modelText(s)
		return nil
	}
	*t = modelText(trimmed)
	return nil
}

// modelFlag is true for JSON true, a non-zero number (0.0 and 0e0 are zero)
// or a non-empty string other than "false".
type modelFlag bool

func (f *modelFlag) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	switch trimmed {
	case "", "null", "false", `""`, `"false"`:
		*f = false
		return nil
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		*f = n != 0
		return nil
	}
	*f = true
	return nil
}

type userPaymentReply struct {
	Error        modelFlag   `json:"error"`
	ErrorMessage modelText   `json:"error_message"`
	RuleApplied  modelText   `json:"rule_applied"`
	Percentage   modelNumber `json:"percentage"`
	AmountUSD    modelNumber `json:"amount_usd"`
	UserPayment  modelNumber `json:"user_payment"`
	Calculation  modelText   `json:"calculation"`
}

type originatorPaymentReply struct {
	OriginatorPayment modelNumber `json:"originator_payment"`
	Calculation       modelText   `json:"calculation"`
}
