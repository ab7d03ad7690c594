// Package xbrl parses XBRL JSON-LD fact data from EDGAR company-facts feeds.
package xbrl

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/dat-tracker/treasury-cli/internal/model"
)

// CompanyFacts represents the EDGAR company facts JSON-LD structure.
type CompanyFacts struct {
	CIK        int               `json:"cik"`
	EntityName string            `json:"entityName"`
	Facts      map[string]FactNS `json:"facts"`
}

// FactNS groups facts by namespace (e.g., "us-gaap", "dei").
type FactNS map[string]Fact

// Fact is a single XBRL concept with its units and values.
type Fact struct {
	Label       string                 `json:"label"`
	Description string                 `json:"description"`
	Units       map[string][]FactValue `json:"units"`
}

// FactValue is a single data point for a concept. Val stays raw because the
// feed mixes numbers and footnote strings.
type FactValue struct {
	End   string          `json:"end"`
	Val   json.RawMessage `json:"val"`
	Accn  string          `json:"accn"`
	FY    int             `json:"fy"`
	FP    string          `json:"fp"`
	Form  string          `json:"form"`
	Filed string          `json:"filed"`
	Frame string          `json:"frame,omitempty"`
}

// numericValue parses a raw fact value into a decimal, unwrapping quoted
// numbers. Non-numeric payloads return false.
func numericValue(raw json.RawMessage) (decimal.Decimal, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseCompanyFacts parses an EDGAR company-facts document.
func ParseCompanyFacts(raw []byte) (*CompanyFacts, error) {
	var facts CompanyFacts
	if err := json.Unmarshal(raw, &facts); err != nil {
		return nil, eris.Wrap(err, "xbrl: parse company facts")
	}
	return &facts, nil
}

// ExtractTreasuryFacts flattens the treasury-relevant concepts into
// ExtractedFact records, one per reported period, tagged with the
// company-facts feed as provenance. Values that do not parse as numbers
// are skipped; the feed occasionally carries footnote strings.
func ExtractTreasuryFacts(facts *CompanyFacts, ticker, sourceURL string) []model.ExtractedFact {
	if facts == nil || len(facts.Facts) == 0 {
		return nil
	}

	var out []model.ExtractedFact
	for _, ns := range []string{"us-gaap", "dei"} {
		nsMap, ok := facts.Facts[ns]
		if !ok {
			continue
		}
		for concept, kind := range TreasuryConcepts {
			fact, ok := nsMap[concept]
			if !ok {
				continue
			}
			for unit, values := range fact.Units {
				for _, v := range values {
					if v.End == "" {
						continue
					}
					asOf, err := time.Parse("2006-01-02", v.End)
					if err != nil {
						continue
					}
					val, ok := numericValue(v.Val)
					if !ok {
						continue
					}
					out = append(out, model.ExtractedFact{
						Kind:   kind,
						Ticker: ticker,
						AsOf:   asOf,
						Value:  val,
						Unit:   unit,
						Source: model.SourceXBRL,
						Provenance: model.Provenance{
							SourceURL: sourceURL,
							Excerpt:   concept + " " + v.End + " (" + v.Form + " filed " + v.Filed + ")",
						},
					})
				}
			}
		}
	}
	return out
}

// LatestPerKind keeps only the most recent fact for each kind, which is what
// the merger wants from a point-in-time balance-sheet feed.
func LatestPerKind(facts []model.ExtractedFact) []model.ExtractedFact {
	latest := make(map[model.FactKind]model.ExtractedFact)
	for _, f := range facts {
		cur, ok := latest[f.Kind]
		if !ok || f.AsOf.After(cur.AsOf) {
			latest[f.Kind] = f
		}
	}
	out := make([]model.ExtractedFact, 0, len(latest))
	for _, f := range latest {
		out = append(out, f)
	}
	return out
}
