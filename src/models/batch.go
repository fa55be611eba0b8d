package models

import (
	"strings"
	"time"
)

// RowState is the terminal state a row reached in the pipeline.
type RowState string

const (
	RowFailed                     RowState = "failed"
	RowFinalNoOriginator          RowState = "final"
	RowFinalWithOriginator        RowState = "final_with_originator"
	RowFinalWithOriginatorWarning RowState = "final_with_originator_warning"
)

// RowResult is one line of a batch report. Pointer fields are nil when the
// column is blank for that row.
type RowResult struct {
	RowNumber             int      `json:"row_number"`
	State                 RowState `json:"state"`
	Error                 bool     `json:"error"`
	ErrorMessage          string   `json:"error_message,omitempty"`
	AmountUSD             *float64 `json:"amount_usd,omitempty"`
	User                  string   `json:"user,omitempty"`
	Originator            string   `json:"originator,omitempty"`
	RuleApplied           string   `json:"rule_applied,omitempty"`
	Percentage            *float64 `json:"percentage,omitempty"`
	UserPayment           *float64 `json:"user_payment,omitempty"`
	UserCalculation       string   `json:"user_calculation,omitempty"`
	OwnOriginationPercent *float64 `json:"own_origination_percent,omitempty"`
	OriginatorPayment     *float64 `json:"originator_payment,omitempty"`
	OriginatorCalculation string   `json:"originator_calculation,omitempty"`
	Warning               string   `json:"warning,omitempty"`
}

func FailedRow(rowNumber int, message string) RowResult {
	return RowResult{
		RowNumber:    rowNumber,
		State:        RowFailed,
		Error:        true,
		ErrorMessage: message,
	}
}

// AddWarning appends w to the row's warning list.
func (r *RowResult) AddWarning(w string) {
	w = strings.TrimSpace(w)
	if w == "" {
		return
	}
	if r.Warning == "" {
		r.Warning = w
		return
	}
	r.Warning += " " + w
}

// BatchMode distinguishes the fixed-column batch upload from the free-form flow run.
type BatchMode string

const (
	ModeBatch BatchMode = "batch"
	ModeFlow  BatchMode = "flow"
)

// BatchReport is the ordered result of one batch or flow run.
type BatchReport struct {
	ID           string      `json:"batch_id"`
	Mode         BatchMode   `json:"mode"`
	RulesVersion string      `json:"rules_version"`
	Results      []RowResult `json:"results"`
	CreatedAt    time.Time   `json:"created_at"`
}

func (b *BatchReport) ResultsCount() int {
	return len(b.Results)
}

func (b *BatchReport) FailedCount() int {
	n := 0
	for _, r := range b.Results {
		if r.Error {
			n++
		}
	}
	return n
}

// FirstSuccess returns the first row that did not fail, or nil.
func (b *BatchReport) FirstSuccess() *RowResult {
	for i := range b.Results {
		if !b.Results[i].Error {
			return &b.Results[i]
		}
	}
	return nil
}

// BatchRun is the persisted summary of a BatchReport.
type BatchRun struct {
	ID           string    `json:"batch_id"`
	Mode         BatchMode `json:"mode"`
	RulesVersion string    `json:"rules_version"`
	ResultsCount int       `json:"results_count"`
	FailedCount  int       `json:"failed_count"`
	CSV          string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
