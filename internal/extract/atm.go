package extract

import (
	"regexp"
	"strings"

	"github.com/dat-tracker/treasury-cli/internal/model"
)

// atmAnchors are the labeled-paragraph headings that open an ATM disclosure.
var atmAnchors = []string{"atm update", "atm updates", "atm program summary"}

// atmWindow is how far past the anchor the disclosure table runs.
const atmWindow = 500

var (
	atmSharesRe   = regexp.MustCompile(`(?i)([\d,]+)\s+(?:[A-Z]{3,5}\s+)?shares`)
	atmProceedsRe = regexp.MustCompile(`(?i)\$([\d,]+(?:\.\d+)?)\s*(million|billion)?\s*(?:in\s+)?(?:of\s+)?net\s+proceeds`)
	atmDollarRe   = regexp.MustCompile(`(?i)\$([\d,]+(?:\.\d+)?)\s*(million|billion)`)
)

// ExtractATMSale pulls shares sold and net proceeds out of an "ATM Update"
// disclosure. The at-the-market table always follows the anchor heading;
// shares sold and proceeds become two facts sharing the same excerpt window.
func ExtractATMSale(doc Document) ([]model.ExtractedFact, error) {
	lower := strings.ToLower(doc.Text)

	anchorIdx := -1
	for _, a := range atmAnchors {
		if i := strings.Index(lower, a); i >= 0 && (anchorIdx == -1 || i < anchorIdx) {
			anchorIdx = i
		}
	}
	if anchorIdx < 0 {
		return nil, nil
	}

	end := anchorIdx + atmWindow
	if end > len(doc.Text) {
		end = len(doc.Text)
	}
	window := doc.Text[anchorIdx:end]

	var facts []model.ExtractedFact

	if m := atmSharesRe.FindStringSubmatchIndex(window); m != nil {
		val, err := ParseAmount(window[m[2]:m[3]])
		if err != nil {
			return nil, err
		}
		facts = append(facts, model.ExtractedFact{
			Kind:   model.FactATMShares,
			Value:  val,
			Unit:   "shares",
			Source: model.SourceFiling,
			Provenance: model.Provenance{
				SourceURL: doc.URL,
				Excerpt:   excerptAround(doc.Text, anchorIdx, anchorIdx+m[1]),
			},
		})
	}

	// Prefer an amount labeled "net proceeds"; fall back to the first
	// scaled dollar figure in the window, as the table layouts vary.
	pm := atmProceedsRe.FindStringSubmatchIndex(window)
	if pm == nil {
		pm = atmDollarRe.FindStringSubmatchIndex(window)
	}
	if pm != nil {
		val, err := ParseAmount(window[pm[2]:pm[3]])
		if err != nil {
			return nil, err
		}
		if pm[4] >= 0 {
			val = applyScale(val, window[pm[4]:pm[5]])
		}
		facts = append(facts, model.ExtractedFact{
			Kind:   model.FactATMProceeds,
			Value:  val,
			Unit:   "USD",
			Source: model.SourceFiling,
			Provenance: model.Provenance{
				SourceURL: doc.URL,
				Excerpt:   excerptAround(doc.Text, anchorIdx, anchorIdx+pm[1]),
			},
		})
	}

	return facts, nil
}
