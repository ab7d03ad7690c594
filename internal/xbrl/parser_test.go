package xbrl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dat-tracker/treasury-cli/internal/model"
)

const sampleCompanyFacts = `{
  "cik": 1050446,
  "entityName": "Strategy Inc",
  "facts": {
    "us-gaap": {
      "CashAndCashEquivalentsAtCarryingValue": {
        "label": "Cash and Cash Equivalents",
        "units": {
          "USD": [
            {"end": "2025-03-31", "val": 60300000, "accn": "0001050446-25-000071", "fy": 2025, "fp": "Q1", "form": "10-Q", "filed": "2025-05-05"},
            {"end": "2025-06-30", "val": 68100000, "accn": "0001050446-25-000105", "fy": 2025, "fp": "Q2", "form": "10-Q", "filed": "2025-08-05"}
          ]
        }
      },
      "CryptoAssetFairValue": {
        "label": "Crypto Asset, Fair Value",
        "units": {
          "USD": [
            {"end": "2025-06-30", "val": 64360000000, "accn": "0001050446-25-000105", "fy": 2025, "fp": "Q2", "form": "10-Q", "filed": "2025-08-05"}
          ]
        }
      },
      "Revenues": {
        "label": "Revenues",
        "units": {
          "USD": [
            {"end": "2025-06-30", "val": 114500000, "accn": "0001050446-25-000105", "fy": 2025, "fp": "Q2", "form": "10-Q", "filed": "2025-08-05"}
          ]
        }
      },
      "LongTermDebt": {
        "label": "Long-term Debt",
        "units": {
          "USD": [
            {"end": "2025-06-30", "val": "footnote only", "accn": "0001050446-25-000105", "fy": 2025, "fp": "Q2", "form": "10-Q", "filed": "2025-08-05"}
          ]
        }
      }
    },
    "dei": {
      "EntityCommonStockSharesOutstanding": {
        "label": "Entity Common Stock, Shares Outstanding",
        "units": {
          "shares": [
            {"end": "2025-07-28", "val": 256789123, "accn": "0001050446-25-000105", "fy": 2025, "fp": "Q2", "form": "10-Q", "filed": "2025-08-05"}
          ]
        }
      }
    }
  }
}`

func TestParseCompanyFacts(t *testing.T) {
	facts, err := ParseCompanyFacts([]byte(sampleCompanyFacts))
	require.NoError(t, err)
	assert.Equal(t, 1050446, facts.CIK)
	assert.Equal(t, "Strategy Inc", facts.EntityName)
	assert.Contains(t, facts.Facts, "us-gaap")
	assert.Contains(t, facts.Facts, "dei")
}

func TestParseCompanyFactsInvalid(t *testing.T) {
	_, err := ParseCompanyFacts([]byte("not json"))
	assert.Error(t, err)
}

func TestExtractTreasuryFacts(t *testing.T) {
	facts, err := ParseCompanyFacts([]byte(sampleCompanyFacts))
	require.NoError(t, err)

	sourceURL := "https://data.sec.gov/api/xbrl/companyfacts/CIK0001050446.json"
	out := ExtractTreasuryFacts(facts, "MSTR", sourceURL)

	byKind := make(map[model.FactKind][]model.ExtractedFact)
	for _, f := range out {
		assert.Equal(t, "MSTR", f.Ticker)
		assert.Equal(t, model.SourceXBRL, f.Source)
		assert.Equal(t, sourceURL, f.Provenance.SourceURL)
		assert.NotEmpty(t, f.Provenance.Excerpt)
		byKind[f.Kind] = append(byKind[f.Kind], f)
	}

	// Revenues is not a treasury concept; the footnote-string debt value is skipped.
	assert.NotContains(t, byKind, model.FactKind("Revenues"))
	assert.NotContains(t, byKind, model.FactDebt)

	require.Len(t, byKind[model.FactCash], 2)
	require.Len(t, byKind[model.FactHoldings], 1)
	assert.Equal(t, "64360000000", byKind[model.FactHoldings][0].Value.String())
	assert.Equal(t, "USD", byKind[model.FactHoldings][0].Unit)

	require.Len(t, byKind[model.FactShares], 1)
	assert.Equal(t, "shares", byKind[model.FactShares][0].Unit)
	assert.Equal(t, time.Date(2025, 7, 28, 0, 0, 0, 0, time.UTC), byKind[model.FactShares][0].AsOf)
}

func TestLatestPerKind(t *testing.T) {
	facts, err := ParseCompanyFacts([]byte(sampleCompanyFacts))
	require.NoError(t, err)

	latest := LatestPerKind(ExtractTreasuryFacts(facts, "MSTR", "url"))

	byKind := make(map[model.FactKind]model.ExtractedFact)
	for _, f := range latest {
		byKind[f.Kind] = f
	}
	// The newer of the two cash periods wins.
	require.Contains(t, byKind, model.FactCash)
	assert.Equal(t, "68100000", byKind[model.FactCash].Value.String())
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), byKind[model.FactCash].AsOf)
}
