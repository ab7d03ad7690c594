package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dat-tracker/treasury-cli/internal/model"
)

func TestExtractHoldings(t *testing.T) {
	tests := []struct {
		name  string
		asset string
		text  string
		want  string
	}{
		{
			name:  "btc keyword",
			asset: "BTC",
			text:  "As of June 30, 2025, the Company held 10,644 bitcoins in its treasury.",
			want:  "10644",
		},
		{
			name:  "symbol keyword",
			asset: "ETH",
			text:  "Following the purchase, the Company holds 566,776 ETH.",
			want:  "566776",
		},
		{
			name:  "approximately",
			asset: "SOL",
			text:  "The Company owns approximately 2,095,748 SOL as of the date hereof.",
			want:  "2095748",
		},
		{
			name:  "aggregate of",
			asset: "BTC",
			text:  "bringing its holdings to an aggregate of 638,460 bitcoins acquired for $47.2 billion.",
			want:  "638460",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Document{URL: "https://www.sec.gov/doc.htm", Text: tt.text, Asset: tt.asset}
			facts, err := ExtractHoldings(doc)
			require.NoError(t, err)
			require.Len(t, facts, 1)

			f := facts[0]
			assert.Equal(t, model.FactHoldings, f.Kind)
			assert.Equal(t, tt.want, f.Value.String())
			assert.Equal(t, tt.asset, f.Unit)
			assert.Equal(t, model.SourceFiling, f.Source)
			assert.LessOrEqual(t, len(f.Provenance.Excerpt), 200)
			assert.NotEmpty(t, f.Provenance.Excerpt)
		})
	}
}

func TestExtractHoldingsNoMatch(t *testing.T) {
	doc := Document{
		Text:  "The Company announced a new software solution for enterprise customers.",
		Asset: "SOL",
	}
	facts, err := ExtractHoldings(doc)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestExtractHoldingsSymbolWordBound(t *testing.T) {
	// "SOL" inside "solution" must not count as a holdings keyword.
	doc := Document{
		Text:  "The Company holds 5 solution patents and other intangibles.",
		Asset: "SOL",
	}
	facts, err := ExtractHoldings(doc)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestExtractHoldingsUnknownAsset(t *testing.T) {
	// Assets without a curated keyword set fall back to the raw symbol.
	doc := Document{
		Text:  "The Company held 1,000 XYZ as of year end.",
		Asset: "XYZ",
	}
	facts, err := ExtractHoldings(doc)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "1000", facts[0].Value.String())
	assert.Equal(t, "XYZ", facts[0].Unit)
}
