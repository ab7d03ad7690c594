package model

import "time"

// VerificationResult is the outcome of evaluating one company's dataset
// against a verifier policy. Verified is true iff Hard is empty.
type VerificationResult struct {
	Ticker        string    `json:"ticker"`
	Verified      bool      `json:"verified"`
	Hard          []string  `json:"hard"`
	Warn          []string  `json:"warn"`
	PolicyVersion string    `json:"policy_version"`
	RunID         string    `json:"run_id"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
}

// VerifiedState is the artifact consumed read-only by the serving layer.
// It always reflects the last successfully completed evaluation per ticker;
// a company with no successful run has no entry.
type VerifiedState struct {
	SchemaVersion string               `json:"schemaVersion"`
	PolicyVersion string               `json:"policyVersion"`
	GeneratedAt   time.Time            `json:"generatedAt"`
	RunID         string               `json:"runId"`
	Total         int                  `json:"total"`
	OKCount       int                  `json:"okCount"`
	FailCount     int                  `json:"failCount"`
	Results       []VerificationResult `json:"results"`
}
