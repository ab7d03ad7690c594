package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dat-tracker/treasury-cli/internal/model"
)

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()
	assert.ElementsMatch(t, []Kind{KindATMSale, KindHoldings, KindCapitalEvent}, r.Kinds())
}

func TestRegistryExtract(t *testing.T) {
	r := NewRegistry()
	doc := Document{
		URL:   "https://www.sec.gov/doc.htm",
		Text:  "The Company held 10,644 bitcoins as of quarter end.",
		Asset: "BTC",
	}

	facts, err := r.Extract(KindHoldings, doc)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, model.FactHoldings, facts[0].Kind)
}

func TestRegistryUnknownKind(t *testing.T) {
	r := NewRegistry()
	_, err := r.Extract(Kind("dividends"), Document{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dividends")
}

func TestRegistryRegisterReplaces(t *testing.T) {
	r := NewRegistry()
	r.Register(KindHoldings, func(Document) ([]model.ExtractedFact, error) {
		return []model.ExtractedFact{{Kind: model.FactHoldings, Unit: "TEST"}}, nil
	})

	facts, err := r.Extract(KindHoldings, Document{})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "TEST", facts[0].Unit)
}

func TestNewDocumentNormalizes(t *testing.T) {
	doc := NewDocument("https://www.sec.gov/doc.htm", []byte("<p>held&nbsp;1,000&nbsp;BTC</p>"), "btc")
	assert.Equal(t, "held 1,000 BTC", doc.Text)
	assert.Equal(t, "btc", doc.Asset)
}
