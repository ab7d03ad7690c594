package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/dat-tracker/treasury-cli/internal/model"
	"github.com/dat-tracker/treasury-cli/internal/store"
)

var (
	dlqKind   string
	dlqTicker string
	dlqLimit  int
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "List dead-lettered ingestion failures",
	RunE:  runDLQ,
}

func runDLQ(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return eris.Wrap(err, "migrate store")
	}

	items, err := st.ListDLQ(ctx, store.DLQFilter{
		Kind:   dlqKind,
		Ticker: dlqTicker,
		Limit:  dlqLimit,
	})
	if err != nil {
		return eris.Wrap(err, "list dead letters")
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(model.NewDLQDocument(items))
}

func init() {
	dlqCmd.Flags().StringVar(&dlqKind, "kind", "", "filter by failure kind")
	dlqCmd.Flags().StringVar(&dlqTicker, "ticker", "", "filter by ticker")
	dlqCmd.Flags().IntVar(&dlqLimit, "limit", 100, "maximum items to list")
	rootCmd.AddCommand(dlqCmd)
}
