package services

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/username/commissioncalc/backend/src/models"
	"github.com/username/commissioncalc/backend/src/processors"
)

const (
	maxRowValueLen   = 200
	maxPromptDataLen = 24000
	truncationMarker = "\n... (truncated)"
)

const userSystemPrompt = "You are AI #1: the user commission calculator. You must follow the provided Rules Sheet exactly. " +
	"Return ONLY valid JSON (no markdown, no extra text). If the rules are missing/ambiguous, return JSON with error=true and a clear message."

const userSystemPromptWithRow = "You are AI #1: the user commission calculator. You must follow the provided Rules Sheet exactly. " +
	"You MUST examine ALL fields in the provided payment row data when selecting the best matching rule. " +
	"Return ONLY valid JSON (no markdown, no extra text). If the rules are missing/ambiguous, return JSON with error=true and a clear message."

const userTaskAndSchema = `TASK:
1) Select the single best matching rule from the Rules Sheet.
2) Identify the commission percentage for the USER (as a decimal, e.g. 0.35 for 35%).
3) Compute user_payment = amount_usd * percentage.
4) Output JSON with numeric fields as numbers (not strings).

OUTPUT JSON SCHEMA:
{
  "error": boolean,
  "error_message": string | null,
  "rule_applied": string,
  "percentage": number,
  "amount_usd": number,
  "user_payment": number,
  "calculation": string
}`

const originatorSystemPrompt = "You are AI #2: the originator commission calculator. Return ONLY valid JSON (no markdown, no extra text). " +
	"Compute originator_payment from the provided user_payment and own origination percent."

const originatorTaskAndSchema = `TASK:
Compute originator_payment = user_payment_usd * (own_origination_other_work_percent / 100).
Return JSON with numbers as numbers (not strings).

OUTPUT JSON SCHEMA:
{
  "originator_payment": number,
  "calculation": string
}`

// buildUserPrompt returns the system and user messages for the rule-matching step.
// With row data present the whole row is embedded; otherwise the optional
// reference text and context are.
func buildUserPrompt(in UserPaymentInput) (string, string) {
	var b strings.Builder
	b.WriteString("RULES SHEET (authoritative):\n")
	b.WriteString(in.RulesText)
	b.WriteString("\n\n")

	system := userSystemPrompt
	header := "INPUT:\n"
	if in.RowData != nil {
		system = userSystemPromptWithRow
		header = "INPUT (canonicalized):\n"
		b.WriteString("PAYMENT ROW DATA (all columns; use this to match rules):\n")
		b.WriteString(capPromptData(compactRowData(in.RowData)))
		b.WriteString("\n\n")
	} else if in.ReferenceData != "" {
		b.WriteString("ATTORNEY DATA (reference; may help match rules):\n")
		b.WriteString(capPromptData(in.ReferenceData))
		b.WriteString("\n\n")
	}

	originator := in.OriginatorName
	if originator == "" {
		originator = "(not provided)"
	}
	b.WriteString(header)
	b.WriteString("- amount_usd: " + processors.FormatNumber(in.Amount) + "\n")
	b.WriteString("- user: " + in.UserName + "\n")
	b.WriteString("- originator: " + originator + "\n")
	if in.RowData == nil && in.Context != "" {
		b.WriteString("- context: " + in.Context + "\n")
	}
	b.WriteString("\n")
	b.WriteString(userTaskAndSchema)
	return system, b.String()
}

func buildOriginatorPrompt(in OriginatorPaymentInput) (string, string) {
	var b strings.Builder
	b.WriteString("INPUT:\n")
	b.WriteString("- user_payment_usd: " + processors.FormatNumber(in.UserPayment) + "\n")
	b.WriteString("- own_origination_other_work_percent: " + processors.FormatNumber(in.OwnOriginationPercent) + "\n")
	b.WriteString("- user: " + in.UserName + "\n")
	b.WriteString("- originator: " + in.OriginatorName + "\n\n")
	b.WriteString(originatorTaskAndSchema)
	return originatorSystemPrompt, b.String()
}

// compactRowData renders the row as indented JSON with each value cut to
// maxRowValueLen runes.
func compactRowData(row *models.PaymentRow) string {
	keys := row.Keys()
	values := make([]string, len(keys))
	for i, k := range keys {
		v, _ := row.Get(k)
		values[i] = truncateRunes(v, maxRowValueLen, "…")
	}
	compact, err := json.Marshal(models.PaymentRowFrom(keys, values))
	if err != nil {
		return ""
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return string(compact)
	}
	return out.String()
}

func capPromptData(s string) string {
	if len(s) <= maxPromptDataLen {
		return s
	}
	cut := maxPromptDataLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}

func truncateRunes(s string, max int, suffix string) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + suffix
}
