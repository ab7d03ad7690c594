package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotRow is one merged canonical value: the authoritative figure for
// (ticker, date, field), plus the provenance of the fact that last set it.
// Rows are strictly ordered by date per ticker with no duplicate dates for
// the same field; a conflicting duplicate becomes a Discrepancy.
type SnapshotRow struct {
	ID        string          `json:"id"`
	Ticker    string          `json:"ticker"`
	Date      time.Time       `json:"date"`
	Field     string          `json:"field"`
	Value     decimal.Decimal `json:"value"`
	Unit      string          `json:"unit"`
	Source    SourceClass     `json:"source"`
	SourceURL string          `json:"source_url"`
	Excerpt   string          `json:"excerpt,omitempty"`
	Backfill  bool            `json:"backfill,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// DiscrepancyStatus is the lifecycle state of a merge conflict.
type DiscrepancyStatus string

const (
	DiscrepancyOpen     DiscrepancyStatus = "open"
	DiscrepancyResolved DiscrepancyStatus = "resolved"
)

// Discrepancy records a merge conflict: a candidate value disagreed with
// the stored one and neither took precedence. The existing value stays
// authoritative until an operator resolves the discrepancy; the pipeline
// never auto-resolves.
type Discrepancy struct {
	ID              string            `json:"id"`
	Ticker          string            `json:"ticker"`
	Field           string            `json:"field"`
	Date            time.Time         `json:"date"`
	ExistingValue   decimal.Decimal   `json:"existing_value"`
	CandidateValue  decimal.Decimal   `json:"candidate_value"`
	ExistingSource  string            `json:"existing_source"`
	CandidateSource string            `json:"candidate_source"`
	Status          DiscrepancyStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	ResolvedAt      *time.Time        `json:"resolved_at,omitempty"`
}
