package services

import (
	"strconv"

	"github.com/username/commissioncalc/backend/src/models"
	"github.com/username/commissioncalc/backend/src/parsers"
	"github.com/username/commissioncalc/backend/src/processors"
	"github.com/username/commissioncalc/backend/src/security/validation"
)

// ResultCSVHeader is the fixed column order of every batch report.
var ResultCSVHeader = []string{
	"row_number",
	"error",
	"error_message",
	"amount_usd",
	"user",
	"originator",
	"rule_applied",
	"percentage",
	"user_payment",
	"user_calculation",
	"own_origination_percent",
	"originator_payment",
	"originator_calculation",
	"warning",
}

// RenderReportCSV serializes results under ResultCSVHeader. Free-text cells
// are guarded against spreadsheet formula injection; numbers are not.
func RenderReportCSV(results []models.RowResult) (string, error) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			strconv.Itoa(r.RowNumber),
			strconv.FormatBool(r.Error),
			text(r.ErrorMessage),
			number(r.AmountUSD),
			text(r.User),
			text(r.Originator),
			text(r.RuleApplied),
			number(r.Percentage),
			number(r.UserPayment),
			text(r.UserCalculation),
			number(r.OwnOriginationPercent),
			number(r.OriginatorPayment),
			text(r.OriginatorCalculation),
			text(r.Warning),
		})
	}
	return parsers.WriteCSV(ResultCSVHeader, rows)
}

func text(s string) string {
	return validation.SanitizeForFormulaInjection(s)
}

func number(f *float64) string {
	if f == nil {
		return ""
	}
	return processors.FormatNumber(*f)
}
