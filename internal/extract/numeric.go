package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dat-tracker/treasury-cli/internal/resilience"
)

var (
	groupedRe = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)
	plainRe   = regexp.MustCompile(`^\d+(\.\d+)?$`)
)

// ParseAmount parses a disclosed figure strictly. Commas are accepted only
// as well-formed thousands separators; anything ambiguous (European-style
// "1.234,56", stray grouping like "12,34") is a ParseError, never a guess.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.Decimal{}, &resilience.ParseError{Input: s, Reason: "empty amount"}
	}

	switch {
	case plainRe.MatchString(cleaned):
		// no separators
	case groupedRe.MatchString(cleaned):
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	default:
		return decimal.Decimal{}, &resilience.ParseError{Input: s, Reason: "ambiguous separators"}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, &resilience.ParseError{Input: s, Reason: err.Error()}
	}
	return d, nil
}

var (
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
	trillion = decimal.NewFromInt(1_000_000_000_000)
)

// applyScale expands a "million"/"billion" qualifier following a figure.
func applyScale(d decimal.Decimal, word string) decimal.Decimal {
	switch strings.ToLower(word) {
	case "million":
		return d.Mul(million)
	case "billion":
		return d.Mul(billion)
	case "trillion":
		return d.Mul(trillion)
	default:
		return d
	}
}
