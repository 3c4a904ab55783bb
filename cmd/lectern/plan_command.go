package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lectern/internal/api"
	"lectern/internal/content"
	"lectern/internal/planner"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var (
		tier            string
		maxKB           int64
		textAlternative bool
	)

	cmd := &cobra.Command{
		Use:   "plan <item-id>",
		Short: "Preview the optimization plan for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := planner.Options{
				MaxFileSizeKB:       maxKB,
				WantTextAlternative: textAlternative,
			}
			if tier != "" {
				parsed, ok := content.ParseNetworkTier(tier)
				if !ok {
					return fmt.Errorf("unknown network tier %q", tier)
				}
				opts.TargetTier = parsed
			}
			return ctx.withEngine(func(engine *api.Engine) error {
				result, err := engine.PlanContent(cmd.Context(), args[0], opts)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, warning := range result.Warnings {
					fmt.Fprintf(out, "warning: %s\n", warning)
				}
				if len(result.Requests) == 0 {
					fmt.Fprintln(out, "Nothing to optimize.")
					return nil
				}
				rows := make([][]string, 0, len(result.Requests))
				for _, request := range result.Requests {
					rows = append(rows, []string{
						string(request.Type),
						string(request.Tier),
						formatParams(request.Params),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Variant", "Tier", "Parameters"}, rows))
				if result.HasTextAlternative {
					fmt.Fprintln(out, "A text alternative was derived and stored on the item.")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tier, "tier", "", "Target network tier (2g, 3g, 4g, 5g, wifi)")
	cmd.Flags().Int64Var(&maxKB, "max-kb", 0, "Drop variants projected above this size")
	cmd.Flags().BoolVar(&textAlternative, "text-alternative", false, "Force a text_only variant and persist the derived text")

	return cmd
}

func formatParams(params content.EncodeParams) string {
	parts := make([]string, 0, 4)
	if params.Codec != "" {
		parts = append(parts, params.Codec)
	}
	if params.BitrateKbps > 0 {
		parts = append(parts, fmt.Sprintf("%dkbps", params.BitrateKbps))
	}
	if params.MaxWidth > 0 || params.MaxHeight > 0 {
		parts = append(parts, fmt.Sprintf("%dx%d", params.MaxWidth, params.MaxHeight))
	}
	if params.Quality > 0 {
		parts = append(parts, fmt.Sprintf("q%d", params.Quality))
	}
	if params.MaxDurationSeconds > 0 {
		parts = append(parts, fmt.Sprintf("%ds", params.MaxDurationSeconds))
	}
	if params.MaxPages > 0 {
		parts = append(parts, fmt.Sprintf("%dp", params.MaxPages))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
