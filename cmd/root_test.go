package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dat-tracker/treasury-cli/internal/config"
	"github.com/dat-tracker/treasury-cli/internal/model"
	"github.com/dat-tracker/treasury-cli/internal/store"
	"github.com/dat-tracker/treasury-cli/internal/verify"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"ingest", "verify", "status", "dlq", "discrepancies", "migrate"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "treasury-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestIngestCommand_Flags(t *testing.T) {
	flag := ingestCmd.Flags().Lookup("tickers")
	require.NotNil(t, flag, "ingest command should have --tickers flag")

	backfill := ingestCmd.Flags().Lookup("backfill")
	require.NotNil(t, backfill, "ingest command should have --backfill flag")
	assert.Equal(t, "false", backfill.DefValue)
}

func TestDLQCommand_Flags(t *testing.T) {
	for _, name := range []string{"kind", "ticker", "limit"} {
		assert.NotNil(t, dlqCmd.Flags().Lookup(name), "dlq should have --%s flag", name)
	}
	assert.Equal(t, "100", dlqCmd.Flags().Lookup("limit").DefValue)
}

func TestDiscrepanciesCommand_Flags(t *testing.T) {
	for _, name := range []string{"ticker", "status", "limit", "resolve"} {
		assert.NotNil(t, discrepanciesCmd.Flags().Lookup(name), "discrepancies should have --%s flag", name)
	}
	assert.Equal(t, "open", discrepanciesCmd.Flags().Lookup("status").DefValue)
}

func TestSelectCompanies(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })
	cfg = &config.Config{Companies: []model.Company{
		{Ticker: "MSTR", Asset: "BTC", CIK: "0001050446"},
		{Ticker: "BMNR", Asset: "ETH", CIK: "0001829311"},
	}}

	all, err := selectCompanies(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := selectCompanies([]string{"BMNR"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "BMNR", some[0].Ticker)

	_, err = selectCompanies([]string{"NOPE"})
	assert.ErrorContains(t, err, "NOPE")

	cfg = &config.Config{}
	_, err = selectCompanies(nil)
	assert.ErrorContains(t, err, "no companies configured")
}

func TestStatusCommand_Output(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "latest-verified.json")
	require.NoError(t, verify.WriteState(statePath, &model.VerifiedState{
		SchemaVersion: verify.StateSchemaVersion,
		PolicyVersion: "v0",
		GeneratedAt:   time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
		RunID:         "run-1",
		Total:         2,
		OKCount:       1,
		FailCount:     1,
		Results: []model.VerificationResult{
			{Ticker: "BMNR", Verified: false, Hard: []string{"missing_asOf"}, Warn: []string{}},
			{Ticker: "MSTR", Verified: true, Hard: []string{}, Warn: []string{"missing_debt_asof"}},
		},
	}))

	orig := cfg
	t.Cleanup(func() { cfg = orig })
	cfg = &config.Config{Verify: config.VerifyConfig{StatePath: statePath}}

	var out bytes.Buffer
	statusCmd.SetOut(&out)
	err := runStatus(statusCmd, nil)
	assert.ErrorContains(t, err, "1 of 2 companies failed")
	assert.Contains(t, out.String(), "BMNR")
	assert.Contains(t, out.String(), "missing_asOf")
	assert.Contains(t, out.String(), "warn: missing_debt_asof")
}

func TestDLQCommand_EmitsDocument(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "treasury.db")

	ctx := context.Background()
	st, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	_, err = st.PushDLQ(ctx, &model.DLQItem{
		Kind:    model.DLQKindCompanyFacts404,
		Ticker:  "BMNR",
		Mode:    "xbrl",
		Payload: json.RawMessage(`{"url":"https://data.sec.gov/api/xbrl/companyfacts/CIK0001829311.json"}`),
	}, false)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	orig := cfg
	t.Cleanup(func() { cfg = orig })
	cfg = &config.Config{Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: dbPath}}

	var out bytes.Buffer
	dlqCmd.SetOut(&out)
	dlqCmd.SetContext(ctx)
	require.NoError(t, runDLQ(dlqCmd, nil))

	var doc model.DLQDocument
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, model.DLQSchemaVersion, doc.SchemaVersion)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, model.DLQKindCompanyFacts404, doc.Items[0].Kind)
	assert.Equal(t, "BMNR", doc.Items[0].Ticker)
}

func TestStatusCommand_MissingState(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })
	cfg = &config.Config{Verify: config.VerifyConfig{StatePath: filepath.Join(t.TempDir(), "absent.json")}}

	var out bytes.Buffer
	statusCmd.SetOut(&out)
	err := runStatus(statusCmd, nil)
	assert.ErrorContains(t, err, "cannot read")
}
