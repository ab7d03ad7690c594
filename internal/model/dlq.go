package model

import (
	"encoding/json"
	"time"
)

// DLQItem is one dead-lettered failure awaiting operator review.
// Items are append-only; for kinds on the dedupe allow-list, repeated
// pushes with the same (Kind, Ticker, Mode) collapse into one item.
type DLQItem struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Ticker string `json:"ticker,omitempty"`
	// Mode distinguishes variants of the same kind (e.g. which extractor
	// or feed produced the failure). Empty when not applicable.
	Mode     string          `json:"mode,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	LoggedAt time.Time       `json:"logged_at"`
}

// DLQSchemaVersion identifies the DLQDocument export layout.
const DLQSchemaVersion = "0.1"

// DLQDocument is the operator-facing export shape of the dead-letter store.
type DLQDocument struct {
	SchemaVersion string    `json:"schemaVersion"`
	Items         []DLQItem `json:"items"`
}

// NewDLQDocument wraps items in the current export envelope. A nil slice
// serializes as an empty items array.
func NewDLQDocument(items []DLQItem) *DLQDocument {
	if items == nil {
		items = []DLQItem{}
	}
	return &DLQDocument{SchemaVersion: DLQSchemaVersion, Items: items}
}

// DLQ kinds produced by the pipeline.
const (
	DLQKindPrimaryDocumentMissing = "primary_document_missing"
	DLQKindCompanyFacts404        = "sec_companyfacts_404"
	DLQKindFetchFailed            = "fetch_failed"
	DLQKindExtractNoMatch         = "extract_no_match"
	DLQKindExtractParse           = "extract_parse_failed"
	DLQKindExtractStale           = "extract_stale"
)
