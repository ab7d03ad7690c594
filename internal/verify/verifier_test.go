package verify

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dat-tracker/treasury-cli/internal/model"
	"github.com/dat-tracker/treasury-cli/internal/store"
)

func newTestVerifier(t *testing.T) (*Verifier, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return NewVerifier(st, PolicyV0()), st
}

func TestVerifyCompanyNoData(t *testing.T) {
	v, _ := newTestVerifier(t)

	res := v.VerifyCompany(context.Background(), checkCompany, "run-1")
	assert.False(t, res.Verified)
	assert.Equal(t, []string{"missing_asOf"}, res.Hard)
	assert.Equal(t, "v0", res.PolicyVersion)
	assert.Equal(t, "run-1", res.RunID)
	assert.False(t, res.EvaluatedAt.IsZero())
}

func TestVerifyCompanyFullDataset(t *testing.T) {
	v, st := newTestVerifier(t)
	ctx := context.Background()

	for _, row := range fullRows("MSTR") {
		r := row
		require.NoError(t, st.PutSnapshotCell(ctx, &r))
	}

	res := v.VerifyCompany(ctx, checkCompany, "run-1")
	assert.True(t, res.Verified)
	assert.Empty(t, res.Hard)
	assert.Empty(t, res.Warn)
}

func TestVerifierRunPersistsAndAccumulates(t *testing.T) {
	v, st := newTestVerifier(t)
	ctx := context.Background()

	for _, row := range fullRows("MSTR") {
		r := row
		require.NoError(t, st.PutSnapshotCell(ctx, &r))
	}

	state, err := v.Run(ctx, []model.Company{checkCompany}, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StateSchemaVersion, state.SchemaVersion)
	assert.Equal(t, "v0", state.PolicyVersion)
	assert.Equal(t, 1, state.Total)
	assert.Equal(t, 1, state.OKCount)
	assert.Equal(t, 0, state.FailCount)

	// A later run over a different company keeps the earlier entry.
	bmnr := model.Company{Ticker: "BMNR", Name: "Bitmine", Asset: "ETH", CIK: "0001829311"}
	state, err = v.Run(ctx, []model.Company{bmnr}, "run-2")
	require.NoError(t, err)
	assert.Equal(t, 2, state.Total)
	assert.Equal(t, 1, state.OKCount)
	assert.Equal(t, 1, state.FailCount)
	assert.Equal(t, "run-2", state.RunID)

	results, err := st.ListVerificationResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "run-2", results[0].RunID) // BMNR
	assert.Equal(t, "run-1", results[1].RunID) // MSTR
}

func TestStateWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "infra", "latest-verified.json")

	state := BuildVerifiedState([]model.VerificationResult{
		{Ticker: "MSTR", Verified: true, Hard: []string{}, Warn: []string{}, PolicyVersion: "v0", RunID: "run-1"},
	}, "v0", "run-1")
	require.NoError(t, WriteState(path, state))

	got, issues := ReadState(path)
	require.Empty(t, issues)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Total)
	assert.Equal(t, "MSTR", got.Results[0].Ticker)

	// No stray temp file left behind.
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestReadStateFailures(t *testing.T) {
	dir := t.TempDir()

	state, issues := ReadState(filepath.Join(dir, "absent.json"))
	assert.Nil(t, state)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "read_failed:")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o644))
	state, issues = ReadState(bad)
	assert.Nil(t, state)
	assert.Contains(t, issues[0], "read_failed:")

	old := filepath.Join(dir, "old.json")
	require.NoError(t, os.WriteFile(old, []byte(`{"schemaVersion":"0.0"}`), 0o644))
	state, issues = ReadState(old)
	assert.Nil(t, state)
	assert.Equal(t, []string{"schemaVersion_0.0_unsupported"}, issues)

	// Both failure shapes classify as hard under v0.
	p := PolicyV0()
	for _, code := range []string{"read_failed:open absent.json", "schemaVersion_0.0_unsupported"} {
		assert.True(t, p.IsHard(code))
	}
}
