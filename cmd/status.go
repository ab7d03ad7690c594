package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/dat-tracker/treasury-cli/internal/verify"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the verified-state artifact",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	state, issues := verify.ReadState(cfg.Verify.StatePath)
	if state == nil {
		return eris.Errorf("cannot read %s: %s", cfg.Verify.StatePath, strings.Join(issues, ", "))
	}

	fmt.Fprintf(out, "Run:    %s (policy %s, generated %s)\n",
		state.RunID, state.PolicyVersion, state.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(out, "Result: %d companies, %d verified, %d failed\n",
		state.Total, state.OKCount, state.FailCount)

	for _, r := range state.Results {
		mark := "ok"
		if !r.Verified {
			mark = "FAIL"
		}
		fmt.Fprintf(out, "  %-6s %-4s", r.Ticker, mark)
		if len(r.Hard) > 0 {
			fmt.Fprintf(out, " hard: %s", strings.Join(r.Hard, ", "))
		}
		if len(r.Warn) > 0 {
			fmt.Fprintf(out, " warn: %s", strings.Join(r.Warn, ", "))
		}
		fmt.Fprintln(out)
	}

	if state.FailCount > 0 {
		return eris.Errorf("%d of %d companies failed verification", state.FailCount, state.Total)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
