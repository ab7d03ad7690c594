package xbrl

import "github.com/dat-tracker/treasury-cli/internal/model"

// TreasuryConcepts maps the US-GAAP/DEI concepts we extract for
// digital-asset-treasury companies to their canonical fact kinds.
// Crypto holdings appear under either the dedicated crypto-asset concept
// (post-2024 fair-value accounting) or the older indefinite-lived
// intangibles bucket.
var TreasuryConcepts = map[string]model.FactKind{
	"CashAndCashEquivalentsAtCarryingValue":            model.FactCash,
	"LongTermDebt":                                     model.FactDebt,
	"PreferredStockValue":                              model.FactPreferred,
	"CommonStockSharesOutstanding":                     model.FactShares,
	"EntityCommonStockSharesOutstanding":               model.FactShares,
	"CryptoAssetFairValue":                             model.FactHoldings,
	"IndefiniteLivedIntangibleAssetsExcludingGoodwill": model.FactHoldings,
}
