package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dat-tracker/treasury-cli/internal/model"
	"github.com/dat-tracker/treasury-cli/internal/store"
)

var (
	discTicker  string
	discStatus  string
	discLimit   int
	discResolve string
)

var discrepanciesCmd = &cobra.Command{
	Use:   "discrepancies",
	Short: "List or resolve merge discrepancies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if discResolve != "" {
			if err := st.ResolveDiscrepancy(ctx, discResolve); err != nil {
				return eris.Wrap(err, "resolve discrepancy")
			}
			zap.L().Info("discrepancy resolved", zap.String("id", discResolve))
			return nil
		}

		items, err := st.ListDiscrepancies(ctx, store.DiscrepancyFilter{
			Ticker: discTicker,
			Status: model.DiscrepancyStatus(discStatus),
			Limit:  discLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list discrepancies")
		}

		enc := json.NewEncoder(os.Stdout)
		for _, item := range items {
			if err := enc.Encode(item); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	discrepanciesCmd.Flags().StringVar(&discTicker, "ticker", "", "filter by ticker")
	discrepanciesCmd.Flags().StringVar(&discStatus, "status", "open", "filter by status (open, resolved)")
	discrepanciesCmd.Flags().IntVar(&discLimit, "limit", 100, "maximum items to list")
	discrepanciesCmd.Flags().StringVar(&discResolve, "resolve", "", "mark the discrepancy with this ID resolved")
	rootCmd.AddCommand(discrepanciesCmd)
}
