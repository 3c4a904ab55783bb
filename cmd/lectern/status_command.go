package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lectern/internal/api"
	"lectern/internal/ledger"
)

const (
	ansiBlue  = "\x1b[34m"
	ansiReset = "\x1b[0m"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <item-id>",
		Short: "Show variant processing status for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *api.Engine) error {
				status, err := engine.ItemStatus(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				headline := fmt.Sprintf("%d pending, %d processing, %d ready, %d failed",
					status.Counts.Pending, status.Counts.Processing, status.Counts.Ready, status.Counts.Failed)
				if shouldColorize(out) {
					headline = ansiBlue + headline + ansiReset
				}
				fmt.Fprintln(out, headline)

				if len(status.Entries) == 0 {
					fmt.Fprintln(out, "No variants recorded. Run `lectern work` first.")
					return nil
				}

				rows := make([][]string, 0, len(status.Entries))
				for _, entry := range status.Entries {
					rows = append(rows, []string{
						string(entry.Type),
						string(entry.Tier),
						string(entry.Status),
						variantSize(entry),
						variantQuality(entry),
						entry.ErrorMsg,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Variant", "Tier", "Status", "Size", "Quality", "Error"},
					rows, 3, 4,
				))
				return nil
			})
		},
	}
	return cmd
}

func variantSize(entry *ledger.Variant) string {
	kb, ok := entry.BandwidthEstimateKB()
	if !ok {
		return "-"
	}
	return humanize.IBytes(uint64(kb) * 1024)
}

func variantQuality(entry *ledger.Variant) string {
	score, ok := entry.QualityScore()
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%d", score)
}
