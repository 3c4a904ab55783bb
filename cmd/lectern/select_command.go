package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"lectern/internal/api"
	"lectern/internal/content"
	"lectern/internal/selector"
)

func newSelectCommand(ctx *commandContext) *cobra.Command {
	var (
		tier    string
		quality string
		maxKB   int64
	)

	cmd := &cobra.Command{
		Use:   "select <item-id>",
		Short: "Pick the best ready variant for a delivery context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedTier, ok := content.ParseNetworkTier(tier)
			if !ok {
				return fmt.Errorf("unknown network tier %q", tier)
			}
			pref, ok := content.ParseQualityPreference(quality)
			if !ok {
				return fmt.Errorf("unknown quality preference %q", quality)
			}
			return ctx.withEngine(func(engine *api.Engine) error {
				variant, err := engine.SelectVariant(cmd.Context(), args[0], parsedTier, pref, selector.Options{
					MaxBandwidthKB: maxKB,
				})
				if errors.Is(err, selector.ErrNoVariants) {
					return fmt.Errorf("no ready variants for %s; run `lectern work %s` first", args[0], args[0])
				}
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				rows := [][]string{
					{"Variant", string(variant.Type)},
					{"Tier", string(variant.Tier)},
					{"Mime type", variant.MimeType},
					{"Size", variantSize(variant)},
					{"Quality", variantQuality(variant)},
				}
				switch {
				case variant.FileRef != "":
					rows = append(rows, []string{"File", variant.FileRef})
				case variant.ExternalURL != "":
					rows = append(rows, []string{"URL", variant.ExternalURL})
				case variant.InlineText != "":
					rows = append(rows, []string{"Inline", truncate(variant.InlineText, 60)})
				}
				fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tier, "tier", "wifi", "Client network tier")
	cmd.Flags().StringVar(&quality, "quality", "auto", "Quality preference (auto, low, medium, high)")
	cmd.Flags().Int64Var(&maxKB, "max-kb", 0, "Bandwidth budget in kilobytes")

	return cmd
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
