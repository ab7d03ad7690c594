package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dat-tracker/treasury-cli/internal/model"
)

// Config holds the full application configuration. It is built once at
// startup and passed explicitly into every constructor; no package reads
// ambient globals.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Edgar     EdgarConfig     `yaml:"edgar" mapstructure:"edgar"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Verify    VerifyConfig    `yaml:"verify" mapstructure:"verify"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Companies []model.Company `yaml:"companies" mapstructure:"companies"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// EdgarConfig configures the SEC EDGAR source client.
type EdgarConfig struct {
	// UserAgent must name the requesting service and a contact method;
	// EDGAR rejects unidentified clients.
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
	SubmissionsHost string `yaml:"submissions_host" mapstructure:"submissions_host"`
	ArchiveHost     string `yaml:"archive_host" mapstructure:"archive_host"`
	CacheDir        string `yaml:"cache_dir" mapstructure:"cache_dir"`
	CacheTTLHours   int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec      int    `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// IngestConfig configures the per-company ingestion runs.
type IngestConfig struct {
	MaxConcurrentCompanies int `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies"`
	// MaxFilings caps how many recent filings are examined per company.
	MaxFilings int `yaml:"max_filings" mapstructure:"max_filings"`
	SinceDays  int `yaml:"since_days" mapstructure:"since_days"`
	// MaxFactAgeDays is the staleness ceiling for XBRL facts; older facts
	// are dead-lettered instead of merged.
	MaxFactAgeDays int `yaml:"max_fact_age_days" mapstructure:"max_fact_age_days"`
	// Backfill marks filing-derived facts as historical backfill, which
	// ranks them below live facts of the same source class when merging.
	Backfill bool `yaml:"backfill" mapstructure:"backfill"`
	// DLQDedupeKinds lists the DLQ kinds deduplicated on (kind, ticker, mode).
	DLQDedupeKinds []string `yaml:"dlq_dedupe_kinds" mapstructure:"dlq_dedupe_kinds"`
}

// VerifyConfig configures the policy engine.
type VerifyConfig struct {
	// PolicyFile optionally overrides the built-in v0 policy.
	PolicyFile string `yaml:"policy_file" mapstructure:"policy_file"`
	// StatePath is where the verified-state artifact is written.
	StatePath string `yaml:"state_path" mapstructure:"state_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TREASURY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "treasury.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("edgar.user_agent", "DAT-Tracker/1.0 (https://dattracker.com; admin@dattracker.com)")
	v.SetDefault("edgar.submissions_host", "https://data.sec.gov")
	v.SetDefault("edgar.archive_host", "https://www.sec.gov")
	v.SetDefault("edgar.cache_dir", ".cache/edgar")
	v.SetDefault("edgar.cache_ttl_hours", 24)
	v.SetDefault("edgar.timeout_secs", 30)
	v.SetDefault("edgar.rate_per_sec", 10)
	v.SetDefault("ingest.max_concurrent_companies", 4)
	v.SetDefault("ingest.max_filings", 30)
	v.SetDefault("ingest.since_days", 90)
	v.SetDefault("ingest.max_fact_age_days", 548)
	v.SetDefault("ingest.dlq_dedupe_kinds", []string{
		model.DLQKindCompanyFacts404,
		model.DLQKindPrimaryDocumentMissing,
		model.DLQKindExtractNoMatch,
		model.DLQKindExtractStale,
	})
	v.SetDefault("verify.state_path", "infra/latest-verified.json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
