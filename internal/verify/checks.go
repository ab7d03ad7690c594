package verify

import (
	"strings"

	"github.com/dat-tracker/treasury-cli/internal/model"
)

// KnownIssueCodes is the closed set of codes the pipeline emits, used to
// lint loaded policies. Prefixed codes appear with a representative value.
var KnownIssueCodes = []string{
	"missing_asOf",
	"ticker_mismatch",
	"missing_holdings_asof",
	"missing_holdings_source",
	"invalid_holdings_amount",
	"missing_cash_asof",
	"missing_debt_asof",
	"missing_preferred_asof",
	"missing_shares_asof",
	"low_quality_evidence:holdings",
	"low_quality_evidence:cash",
	"low_quality_evidence:debt",
	"low_quality_evidence:preferred",
	"low_quality_evidence:shares",
	"read_failed",
	"schemaVersion_unsupported",
}

// evidenceFields maps snapshot fields to the short names used in
// low_quality_evidence codes.
var evidenceFields = map[string]string{
	string(model.FactHoldings):  "holdings",
	string(model.FactCash):      "cash",
	string(model.FactDebt):      "debt",
	string(model.FactPreferred): "preferred",
	string(model.FactShares):    "shares",
}

// CheckSnapshot inspects a company's merged rows and emits issue codes.
// Codes are facts about the dataset; the policy decides which ones block.
func CheckSnapshot(company model.Company, rows []model.SnapshotRow) []string {
	var issues []string

	if len(rows) == 0 {
		return []string{"missing_asOf"}
	}

	for _, r := range rows {
		if r.Ticker != company.Ticker {
			issues = append(issues, "ticker_mismatch")
			break
		}
	}

	// Latest row per field; rows arrive date-ascending from the store.
	latest := make(map[string]model.SnapshotRow)
	for _, r := range rows {
		latest[r.Field] = r
	}

	usLike := company.CIK != ""

	if holdings, ok := latest[string(model.FactHoldings)]; !ok {
		issues = append(issues, "missing_holdings_asof")
	} else {
		if !holdings.Value.IsPositive() {
			issues = append(issues, "invalid_holdings_amount")
		}
		if holdings.SourceURL == "" {
			issues = append(issues, "missing_holdings_source")
		}
	}

	for field, code := range map[string]string{
		string(model.FactCash):      "missing_cash_asof",
		string(model.FactDebt):      "missing_debt_asof",
		string(model.FactPreferred): "missing_preferred_asof",
		string(model.FactShares):    "missing_shares_asof",
	} {
		if _, ok := latest[field]; !ok {
			issues = append(issues, code)
		}
	}

	for field, short := range evidenceFields {
		row, ok := latest[field]
		if !ok {
			continue
		}
		if lowQualityEvidenceURL(row.SourceURL, usLike) {
			issues = append(issues, "low_quality_evidence:"+short)
		}
	}

	return issues
}

// lowQualityEvidenceURL flags provenance URLs too vague to audit. Index
// and landing pages never qualify; for US-listed companies only direct
// SEC filing document links count as evidence.
func lowQualityEvidenceURL(url string, usLike bool) bool {
	if url == "" {
		return false
	}
	s := strings.ToLower(url)

	if strings.Contains(s, "cgi-bin/browse-edgar") ||
		strings.HasSuffix(s, "/investors") ||
		strings.Contains(s, "/investor-relations") {
		return true
	}
	if !usLike {
		return false
	}

	for _, allow := range []string{
		"sec.gov/archives/edgar/data/",
		"sec.gov/ixviewer",
	} {
		if strings.Contains(s, allow) {
			return false
		}
	}
	// Other sec.gov pages (browse pages, query endpoints) are too vague.
	return strings.Contains(s, "sec.gov")
}
