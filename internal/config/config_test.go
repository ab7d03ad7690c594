package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dat-tracker/treasury-cli/internal/model"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://data.sec.gov", cfg.Edgar.SubmissionsHost)
	assert.Equal(t, "https://www.sec.gov", cfg.Edgar.ArchiveHost)
	assert.Equal(t, 24, cfg.Edgar.CacheTTLHours)
	assert.Equal(t, 10, cfg.Edgar.RatePerSec)
	assert.Contains(t, cfg.Edgar.UserAgent, "@")
	assert.Equal(t, 4, cfg.Ingest.MaxConcurrentCompanies)
	assert.Equal(t, 30, cfg.Ingest.MaxFilings)
	assert.Equal(t, 548, cfg.Ingest.MaxFactAgeDays)
	assert.Contains(t, cfg.Ingest.DLQDedupeKinds, model.DLQKindCompanyFacts404)
	assert.Contains(t, cfg.Ingest.DLQDedupeKinds, model.DLQKindExtractNoMatch)
	assert.False(t, cfg.Ingest.Backfill)
	assert.Equal(t, "infra/latest-verified.json", cfg.Verify.StatePath)
	assert.Empty(t, cfg.Companies)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/treasury
log:
  level: debug
  format: console
edgar:
  user_agent: "Example Research ops@example.com"
  cache_ttl_hours: 6
ingest:
  max_concurrent_companies: 2
companies:
  - ticker: MSTR
    name: Strategy
    asset: BTC
    cik: "0001050446"
  - ticker: BMNR
    name: Bitmine Immersion
    asset: ETH
    cik: "0001829311"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "Example Research ops@example.com", cfg.Edgar.UserAgent)
	assert.Equal(t, 6, cfg.Edgar.CacheTTLHours)
	assert.Equal(t, 2, cfg.Ingest.MaxConcurrentCompanies)
	// Unset keys keep defaults.
	assert.Equal(t, 30, cfg.Ingest.MaxFilings)

	require.Len(t, cfg.Companies, 2)
	assert.Equal(t, model.Company{Ticker: "MSTR", Name: "Strategy", Asset: "BTC", CIK: "0001050446"}, cfg.Companies[0])
	assert.Equal(t, "ETH", cfg.Companies[1].Asset)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	err := InitLogger(LogConfig{Level: "not-a-level"})
	assert.Error(t, err)
}
