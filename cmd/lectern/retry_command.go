package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lectern/internal/api"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <item-id>",
		Short: "Reset failed variants to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(func(engine *api.Engine) error {
				reset, err := engine.RetryFailed(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if reset == 0 {
					fmt.Fprintln(out, "No failed variants to retry.")
					return nil
				}
				fmt.Fprintf(out, "Reset %d failed variant(s) to pending. Run `lectern work %s` to process them.\n", reset, args[0])
				return nil
			})
		},
	}
}
