// Package model defines the domain types shared across the ingestion pipeline.
package model

// Company is one tracked digital-asset-treasury company.
type Company struct {
	Ticker string `json:"ticker" yaml:"ticker" mapstructure:"ticker"`
	Name   string `json:"name" yaml:"name" mapstructure:"name"`
	// Asset is the treasury asset symbol (BTC, ETH, SOL, ...).
	Asset string `json:"asset" yaml:"asset" mapstructure:"asset"`
	// CIK is the normalized 10-digit EDGAR identifier.
	CIK string `json:"cik" yaml:"cik" mapstructure:"cik"`
}
