package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"lectern/internal/api"
	"lectern/internal/content"
	"lectern/internal/planner"
	"lectern/internal/transcode"
)

func newWorkCommand(ctx *commandContext) *cobra.Command {
	var (
		tier     string
		priority string
		watch    bool
	)

	cmd := &cobra.Command{
		Use:   "work [item-id...]",
		Short: "Queue and process transcoding jobs",
		Long: "Plans the given items, records ledger entries, and runs the worker pool " +
			"until every queued job finishes. With --watch the pool keeps running and " +
			"picks up pending ledger entries until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !watch {
				return errors.New("provide item ids to process, or --watch to run continuously")
			}

			opts := transcode.QueueOptions{Priority: transcode.Priority(priority)}
			if tier != "" {
				parsed, ok := content.ParseNetworkTier(tier)
				if !ok {
					return fmt.Errorf("unknown network tier %q", tier)
				}
				opts.Plan = planner.Options{TargetTier: parsed}
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock := flock.New(filepath.Join(cfg.Paths.LogDir, "lectern-worker.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire worker lock: %w", err)
			}
			if !locked {
				return errors.New("another lectern worker is already running")
			}
			defer lock.Unlock()

			return ctx.withEngine(func(engine *api.Engine) error {
				out := cmd.OutOrStdout()
				for _, id := range args {
					status, err := engine.QueueAndProcess(cmd.Context(), id, opts)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s: %d ready, %d failed\n", id, status.Counts.Ready, status.Counts.Failed)
				}
				if !watch {
					return nil
				}

				runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				engine.StartWorkers(runCtx)
				fmt.Fprintln(out, "Worker pool running; press Ctrl-C to stop.")
				<-runCtx.Done()
				engine.StopWorkers()
				fmt.Fprintln(out, "Worker pool stopped.")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tier, "tier", "", "Restrict planning to one network tier")
	cmd.Flags().StringVar(&priority, "priority", string(transcode.PriorityNormal), "Job priority (high, normal, low)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep the worker pool running until interrupted")

	return cmd
}
