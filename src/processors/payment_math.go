package processors

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DriftTolerance is the largest difference accepted between a model-reported
// amount and the locally computed one.
const DriftTolerance = 0.01

// SamePersonCalculation is the calculation text for a zero originator payment.
const SamePersonCalculation = "same person => 0"

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeName trims, collapses internal whitespace and lower-cases a name.
func NormalizeName(name string) string {
	return strings.ToLower(whitespaceRun.ReplaceAllString(strings.TrimSpace(name), " "))
}

// SamePerson compares two names after normalization.
func SamePerson(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}

// VerifyOrReplace returns reported when it is within tolerance of expected,
// otherwise expected and replaced=true. A non-finite reported value is always replaced.
func VerifyOrReplace(reported, expected, tolerance float64) (value float64, replaced bool) {
	if math.IsNaN(reported) || math.IsInf(reported, 0) {
		return expected, true
	}
	if math.Abs(reported-expected) > tolerance {
		return expected, true
	}
	return reported, false
}

// DeterministicOriginatorPayment computes userPayment * pct/100 and a readable
// formula for it.
func DeterministicOriginatorPayment(userPayment, ownOriginationPercent float64) (float64, string) {
	pct := ownOriginationPercent / 100
	return userPayment * pct, FormatNumber(userPayment) + " * " + FormatNumber(pct)
}

// DeterministicUserPayment computes amount * percentage and a readable formula for it.
func DeterministicUserPayment(amount, percentage float64) (float64, string) {
	return amount * percentage, FormatNumber(amount) + " * " + FormatNumber(percentage)
}

// FormatNumber renders f in the shortest form that reads back to the same value.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
