package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"lectern/internal/api"
	"lectern/internal/content"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var accessibility bool

	cmd := &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show a content item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *api.Engine) error {
				item, err := engine.GetItem(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("content item %s not found", args[0])
				}

				out := cmd.OutOrStdout()
				rows := [][]string{
					{"ID", item.ID},
					{"Title", item.Title},
					{"Category", string(item.Category)},
					{"Status", string(item.Status)},
					{"Language", item.Language},
				}
				if item.DurationSeconds > 0 {
					rows = append(rows, []string{"Duration", fmt.Sprintf("%.0fs", item.DurationSeconds)})
				}
				if item.ByteSize > 0 {
					rows = append(rows, []string{"Size", humanize.IBytes(uint64(item.ByteSize))})
				}
				if item.PageCount > 0 {
					rows = append(rows, []string{"Pages", fmt.Sprintf("%d", item.PageCount)})
				}
				if item.SourceRef != "" {
					rows = append(rows, []string{"Source", item.SourceRef})
				}
				if item.ExternalURL != "" {
					rows = append(rows, []string{"URL", item.ExternalURL})
				}
				rows = append(rows,
					[]string{"Captions", yesNo(item.HasCaptions)},
					[]string{"Transcript", yesNo(item.Transcript != "")},
					[]string{"Text alternative", yesNo(item.HasTextAlternative)},
				)
				fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows))

				if accessibility {
					report, err := engine.CheckAccessibility(cmd.Context(), item.ID)
					if err != nil {
						return err
					}
					if report.Accessible() && len(report.Issues) == 0 {
						fmt.Fprintln(out, "No accessibility findings.")
					}
					for _, issue := range report.Issues {
						fmt.Fprintf(out, "issue: %s\n", issue)
					}
					for _, missing := range report.Missing {
						fmt.Fprintf(out, "missing: %s\n", missing)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&accessibility, "accessibility", false, "Include accessibility findings")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List content items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter content.Category
			if category != "" {
				parsed, ok := content.ParseCategory(category)
				if !ok {
					return fmt.Errorf("unknown category %q (one of: %s)", category, categoryNames())
				}
				filter = parsed
			}
			return ctx.withEngine(func(engine *api.Engine) error {
				items, err := engine.ListItems(cmd.Context(), filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No content items.")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						item.ID,
						item.Title,
						string(item.Category),
						string(item.Status),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Title", "Category", "Status"}, rows))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	return cmd
}
