package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/92Bilal26/ai-junior-bilal/internal/app"
	"github.com/92Bilal26/ai-junior-bilal/services/orchestrator/config"
)

var claudeCmd = &cobra.Command{
	Use:   "claude",
	Short: "Inspect or control the assistant process",
}

func init() {
	claudeCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether the assistant is running",
		RunE: withApp(func(cmd *cobra.Command, a *app.App) error {
			return printJSON(cmd.OutOrStdout(), a.Supervisor.Status())
		}),
	})
	claudeCmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start the assistant unless it is already running",
		RunE: withApp(func(cmd *cobra.Command, a *app.App) error {
			return printJSON(cmd.OutOrStdout(), a.Supervisor.Start(cmd.Context()))
		}),
	})
	claudeCmd.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "Stop the assistant recorded in the runner state",
		RunE: withApp(func(cmd *cobra.Command, a *app.App) error {
			return printJSON(cmd.OutOrStdout(), a.Supervisor.Stop())
		}),
	})
}

// withApp builds the pipeline for a one-shot command and closes it after.
func withApp(fn func(cmd *cobra.Command, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg := config.Load(viper.GetViper())
		logger := buildLogger(cfg.LogLevel, "orchestrator")
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := app.Build(ctx, cfg.App, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
