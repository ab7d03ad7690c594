package extract

import (
	"regexp"

	"github.com/dat-tracker/treasury-cli/internal/model"
)

// capitalRe matches purchase/raise disclosures with an aggregate dollar
// amount: "purchased 3,459 BTC for approximately $285.5 million",
// "aggregate purchase price of $1.1 billion", "raised $250 million".
var capitalRe = regexp.MustCompile(
	`(?i)(?:purchased|purchase\s+price\s+of|raised|gross\s+proceeds\s+of|aggregate\s+(?:amount|consideration)\s+of)[^.$]{0,80}?\$([\d,]+(?:\.\d+)?)\s*(million|billion)?`)

// ExtractCapitalEvents collects every capital event disclosed in the
// document. Multiple purchases in one filing yield multiple facts.
func ExtractCapitalEvents(doc Document) ([]model.ExtractedFact, error) {
	matches := capitalRe.FindAllStringSubmatchIndex(doc.Text, -1)
	if len(matches) == 0 {
		return nil, nil
	}

	var facts []model.ExtractedFact
	for _, m := range matches {
		val, err := ParseAmount(doc.Text[m[2]:m[3]])
		if err != nil {
			return nil, err
		}
		if m[4] >= 0 {
			val = applyScale(val, doc.Text[m[4]:m[5]])
		}
		facts = append(facts, model.ExtractedFact{
			Kind:   model.FactCapitalEvent,
			Value:  val,
			Unit:   "USD",
			Source: model.SourceFiling,
			Provenance: model.Provenance{
				SourceURL: doc.URL,
				Excerpt:   excerptAround(doc.Text, m[0], m[1]),
			},
		})
	}
	return facts, nil
}
