// Package store persists the canonical treasury dataset: merged snapshot
// cells, open discrepancies, dead-lettered failures, and verification
// outcomes. Two backends implement the same interface, Postgres via
// pgxpool and SQLite via modernc.org/sqlite.
package store

import (
	"context"
	"time"

	"github.com/dat-tracker/treasury-cli/internal/model"
)

// DiscrepancyFilter specifies criteria for listing discrepancies.
type DiscrepancyFilter struct {
	Ticker string                  `json:"ticker,omitempty"`
	Status model.DiscrepancyStatus `json:"status,omitempty"`
	Limit  int                     `json:"limit,omitempty"`
}

// DLQFilter specifies criteria for listing dead-lettered items.
type DLQFilter struct {
	Kind   string `json:"kind,omitempty"`
	Ticker string `json:"ticker,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// Store defines the persistence interface for the ingestion pipeline.
// The merger is the only writer of snapshot cells.
type Store interface {
	// Snapshot cells, keyed (ticker, date, field)
	GetSnapshotCell(ctx context.Context, ticker, field string, date time.Time) (*model.SnapshotRow, error)
	PutSnapshotCell(ctx context.Context, row *model.SnapshotRow) error
	ListSnapshotRows(ctx context.Context, ticker string) ([]model.SnapshotRow, error)

	// Discrepancies
	CreateDiscrepancy(ctx context.Context, d *model.Discrepancy) error
	ListDiscrepancies(ctx context.Context, filter DiscrepancyFilter) ([]model.Discrepancy, error)
	ResolveDiscrepancy(ctx context.Context, id string) error

	// Dead letters. PushDLQ appends; when dedupe is set, an existing item
	// with the same (kind, ticker, mode) suppresses the append. Returns
	// whether an item was written.
	PushDLQ(ctx context.Context, item *model.DLQItem, dedupe bool) (bool, error)
	ListDLQ(ctx context.Context, filter DLQFilter) ([]model.DLQItem, error)

	// Verification outcomes, latest per ticker
	SaveVerificationResults(ctx context.Context, results []model.VerificationResult) error
	ListVerificationResults(ctx context.Context) ([]model.VerificationResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
