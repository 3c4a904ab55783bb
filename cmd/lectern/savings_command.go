package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lectern/internal/api"
	"lectern/internal/content"
)

func newSavingsCommand(ctx *commandContext) *cobra.Command {
	var tier string

	cmd := &cobra.Command{
		Use:   "savings <item-id>",
		Short: "Estimate bandwidth savings for a network tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedTier, ok := content.ParseNetworkTier(tier)
			if !ok {
				return fmt.Errorf("unknown network tier %q", tier)
			}
			return ctx.withEngine(func(engine *api.Engine) error {
				est, err := engine.EstimateSavings(cmd.Context(), args[0], parsedTier)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				rows := [][]string{
					{"Original", humanize.IBytes(uint64(est.OriginalKB) * 1024)},
					{"Optimized", humanize.IBytes(uint64(est.OptimizedKB) * 1024)},
					{"Savings", fmt.Sprintf("%.1f%%", est.SavingsPercent)},
				}
				if est.RecommendedVariant != nil {
					rows = append(rows, []string{
						"Recommended",
						fmt.Sprintf("%s@%s", est.RecommendedVariant.Type, est.RecommendedVariant.Tier),
					})
				} else {
					rows = append(rows, []string{"Recommended", "(estimate: nothing ready yet)"})
				}
				fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tier, "tier", "wifi", "Client network tier")
	return cmd
}
