package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FactKind identifies which extraction pattern produced a fact.
type FactKind string

const (
	FactHoldings     FactKind = "holdings"
	FactATMShares    FactKind = "atm_shares_sold"
	FactATMProceeds  FactKind = "atm_net_proceeds"
	FactCapitalEvent FactKind = "capital_event"
	FactCash         FactKind = "cash_reserves"
	FactDebt         FactKind = "total_debt"
	FactPreferred    FactKind = "preferred_equity"
	FactShares       FactKind = "shares_outstanding"
)

// SourceClass ranks where a fact came from. Precedence, not recency,
// decides merge conflicts between classes.
type SourceClass string

const (
	SourceFiling   SourceClass = "sec-filing"
	SourceXBRL     SourceClass = "xbrl-companyfacts"
	SourceEstimate SourceClass = "estimate"
)

// Rank returns the precedence of a source class; higher wins.
// Unknown classes rank lowest.
func (s SourceClass) Rank() int {
	switch s {
	case SourceFiling:
		return 3
	case SourceXBRL:
		return 2
	case SourceEstimate:
		return 1
	default:
		return 0
	}
}

// Provenance ties an extracted value back to the text that produced it.
type Provenance struct {
	SourceURL string `json:"source_url"`
	// Excerpt is a verbatim slice of the normalized document text around
	// the match, at most 200 characters.
	Excerpt string `json:"excerpt"`
}

// ExtractedFact is one typed value pulled out of a filing or feed.
// Facts are never mutated after creation; a correction is a new fact
// with a later AsOf.
type ExtractedFact struct {
	Kind   FactKind        `json:"kind"`
	Ticker string          `json:"ticker"`
	AsOf   time.Time       `json:"as_of"`
	Value  decimal.Decimal `json:"value"`
	Unit   string          `json:"unit"` // "shares", "USD", asset symbol, ...
	Source SourceClass     `json:"source"`
	// Backfill marks out-of-order historical loads so precedence rules can
	// rank them below live facts of the same source class.
	Backfill   bool       `json:"backfill,omitempty"`
	Provenance Provenance `json:"provenance"`
}

// Field is the canonical snapshot column this fact feeds.
func (f ExtractedFact) Field() string {
	return string(f.Kind)
}
