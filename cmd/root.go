package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dat-tracker/treasury-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "treasury-cli",
	Short: "Digital-asset treasury filing pipeline",
	Long:  "Ingests SEC EDGAR filings and XBRL feeds for digital-asset treasury companies, merges extracted facts into canonical snapshots, and verifies them against a versioned policy.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
