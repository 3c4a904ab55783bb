package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"lectern/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand())
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, path, existed, err := config.Load(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if existed {
				fmt.Fprintf(out, "# loaded from %s\n", path)
			} else {
				fmt.Fprintf(out, "# defaults (no file at %s)\n", path)
			}
			rows := [][]string{
				{"paths.data_dir", cfg.Paths.DataDir},
				{"paths.log_dir", cfg.Paths.LogDir},
				{"log.level", cfg.Log.Level},
				{"log.format", cfg.Log.Format},
				{"workflow.workers", fmt.Sprintf("%d", cfg.Workflow.Workers)},
				{"workflow.queue_poll_interval", fmt.Sprintf("%ds", cfg.Workflow.QueuePollInterval)},
				{"workflow.heartbeat_interval", fmt.Sprintf("%ds", cfg.Workflow.HeartbeatInterval)},
				{"workflow.heartbeat_timeout", fmt.Sprintf("%ds", cfg.Workflow.HeartbeatTimeout)},
				{"delivery.max_text_length", fmt.Sprintf("%d", cfg.Delivery.MaxTextLength)},
				{"delivery.preview_seconds", fmt.Sprintf("%d", cfg.Delivery.PreviewSeconds)},
				{"delivery.document_preview_pages", fmt.Sprintf("%d", cfg.Delivery.DocumentPreview)},
				{"delivery.default_language", cfg.Delivery.DefaultLanguage},
				{"delivery.text_alternatives", yesNo(cfg.Delivery.TextAlternatives)},
			}
			fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, rows))
			return nil
		},
	}
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				target = config.DefaultPath()
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.WriteSample(target, overwrite); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}
