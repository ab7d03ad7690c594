package model

import "time"

// Filing identifies one EDGAR filing submission. Immutable once located;
// unique by (CIK, Accession).
type Filing struct {
	CIK        string    `json:"cik"`
	Accession  string    `json:"accession"` // dash-free
	FormType   string    `json:"form_type"`
	FilingDate time.Time `json:"filing_date"`
	// PrimaryDocument is the document filename from the submissions feed,
	// when present. The locator resolves the full URL from the accession index.
	PrimaryDocument    string `json:"primary_document,omitempty"`
	PrimaryDocumentURL string `json:"primary_document_url,omitempty"`
}
