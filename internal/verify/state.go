package verify

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/dat-tracker/treasury-cli/internal/model"
)

// StateSchemaVersion identifies the verified-state document layout.
const StateSchemaVersion = "0.1"

// BuildVerifiedState assembles the artifact from the latest evaluation
// per ticker.
func BuildVerifiedState(results []model.VerificationResult, policyVersion, runID string) *model.VerifiedState {
	ok := 0
	for _, r := range results {
		if r.Verified {
			ok++
		}
	}
	return &model.VerifiedState{
		SchemaVersion: StateSchemaVersion,
		PolicyVersion: policyVersion,
		GeneratedAt:   time.Now().UTC(),
		RunID:         runID,
		Total:         len(results),
		OKCount:       ok,
		FailCount:     len(results) - ok,
		Results:       results,
	}
}

// WriteState persists the artifact atomically so a reader never observes
// a partial document.
func WriteState(path string, state *model.VerifiedState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return eris.Wrap(err, "verify: marshal state")
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "verify: create state dir for %s", path)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "verify: write state %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrapf(err, "verify: replace state %s", path)
	}
	return nil
}

// ReadState loads a previously written artifact. Failures come back as
// issue codes in the policy's vocabulary (read_failed:*,
// schemaVersion_*) so callers can classify them instead of guessing at
// error strings; a nil state always has at least one code.
func ReadState(path string) (*model.VerifiedState, []string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []string{"read_failed:" + err.Error()}
	}

	var state model.VerifiedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, []string{"read_failed:" + err.Error()}
	}
	if state.SchemaVersion != StateSchemaVersion {
		return nil, []string{"schemaVersion_" + state.SchemaVersion + "_unsupported"}
	}
	return &state, nil
}
