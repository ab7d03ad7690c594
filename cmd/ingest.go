package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dat-tracker/treasury-cli/internal/pipeline"
)

var (
	ingestTickers  []string
	ingestBackfill bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest filings and XBRL feeds for the configured companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		companies, err := selectCompanies(ingestTickers)
		if err != nil {
			return err
		}

		if ingestBackfill {
			cfg.Ingest.Backfill = true
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		runner, err := pipeline.NewRunner(cfg, st)
		if err != nil {
			return err
		}

		summary, err := runner.RunAll(ctx, companies)
		if err != nil {
			return eris.Wrap(err, "ingest run")
		}

		zap.L().Info("ingest complete",
			zap.String("run_id", summary.RunID),
			zap.Int("companies", len(summary.Companies)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestTickers, "tickers", nil, "restrict the run to these tickers (default: all configured)")
	ingestCmd.Flags().BoolVar(&ingestBackfill, "backfill", false, "mark filing-derived facts as historical backfill")
	rootCmd.AddCommand(ingestCmd)
}
