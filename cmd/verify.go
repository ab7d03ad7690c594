package main

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dat-tracker/treasury-cli/internal/verify"
)

var verifyTickers []string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-verify stored snapshots without ingesting",
	Long:  "Evaluates the canonical snapshots against the verifier policy and rewrites the verified-state artifact. No filings are fetched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		companies, err := selectCompanies(verifyTickers)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		policy, err := verify.LoadPolicy(cfg.Verify.PolicyFile)
		if err != nil {
			return err
		}

		state, err := verify.NewVerifier(st, policy).Run(ctx, companies, uuid.New().String())
		if err != nil {
			return eris.Wrap(err, "verify run")
		}
		if err := verify.WriteState(cfg.Verify.StatePath, state); err != nil {
			return err
		}

		zap.L().Info("verification complete",
			zap.String("policy", state.PolicyVersion),
			zap.Int("ok", state.OKCount),
			zap.Int("fail", state.FailCount),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	},
}

func init() {
	verifyCmd.Flags().StringSliceVar(&verifyTickers, "tickers", nil, "restrict verification to these tickers (default: all configured)")
	rootCmd.AddCommand(verifyCmd)
}
