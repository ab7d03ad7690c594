package extract

import (
	"regexp"
	"strings"

	"github.com/dat-tracker/treasury-cli/internal/model"
)

// assetKeywords maps treasury asset symbols to the disclosure terms that
// precede or follow a holdings count. Symbol matching is word-bound to keep
// "SOL" out of "solution".
var assetKeywords = map[string][]string{
	"BTC":  {"bitcoins", "bitcoin", "BTC"},
	"ETH":  {"ethereum", "ether", "ETH"},
	"SOL":  {"solana", "SOL"},
	"HYPE": {"HYPE"},
	"BNB":  {"BNB"},
	"TAO":  {"TAO"},
	"LTC":  {"litecoin", "LTC"},
	"SUI":  {"SUI"},
	"DOGE": {"dogecoin", "DOGE"},
	"AVAX": {"AVAX"},
}

// holdingsVerbs are the disclosure contexts that make a count a holdings
// figure rather than a price or a purchase.
var holdingsVerbs = `(?:holds?|held|holdings?\s+of|owns?|acquired\s+a\s+total\s+of|aggregate\s+of)`

// ExtractHoldings finds the company's treasury holdings count: a number in
// a disclosure-verb context immediately before the asset keyword.
func ExtractHoldings(doc Document) ([]model.ExtractedFact, error) {
	keywords := assetKeywords[strings.ToUpper(doc.Asset)]
	if len(keywords) == 0 {
		keywords = []string{doc.Asset}
	}

	var facts []model.ExtractedFact
	for _, kw := range keywords {
		re, err := regexp.Compile(`(?i)` + holdingsVerbs + `\s+(?:approximately\s+)?([\d,]+(?:\.\d+)?)\s+` + regexp.QuoteMeta(kw) + `\b`)
		if err != nil {
			continue
		}
		m := re.FindStringSubmatchIndex(doc.Text)
		if m == nil {
			continue
		}
		val, err := ParseAmount(doc.Text[m[2]:m[3]])
		if err != nil {
			return nil, err
		}
		facts = append(facts, model.ExtractedFact{
			Kind:   model.FactHoldings,
			Value:  val,
			Unit:   strings.ToUpper(doc.Asset),
			Source: model.SourceFiling,
			Provenance: model.Provenance{
				SourceURL: doc.URL,
				Excerpt:   excerptAround(doc.Text, m[0], m[1]),
			},
		})
		break
	}
	return facts, nil
}
