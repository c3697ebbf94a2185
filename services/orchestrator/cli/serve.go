package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/92Bilal26/ai-junior-bilal/internal/app"
	"github.com/92Bilal26/ai-junior-bilal/internal/version"
	"github.com/92Bilal26/ai-junior-bilal/pkg/telemetry"
	"github.com/92Bilal26/ai-junior-bilal/services/orchestrator"
	"github.com/92Bilal26/ai-junior-bilal/services/orchestrator/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the polling loops",
	Long: `Run the planner, approvals, executor, file-drop and watchdog loops.

With --once every selected loop runs a single time and the command exits.
With Redis configured, each loop iteration takes a lease first so several
orchestrators can share one vault.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Bool("once", false, "run each loop once and exit")
	serveCmd.Flags().StringSlice("components", nil, "loops to run (default: all of planner,approvals,executor,filedrop,watchdog)")
	serveCmd.Flags().Duration("planner-interval", orchestrator.DefaultIntervals.Planner, "planner loop period")
	serveCmd.Flags().Duration("approvals-interval", orchestrator.DefaultIntervals.Approvals, "approval executor loop period")
	serveCmd.Flags().Duration("executor-interval", orchestrator.DefaultIntervals.Executor, "task executor loop period")
	serveCmd.Flags().Duration("filedrop-interval", orchestrator.DefaultIntervals.FileDrop, "file drop watcher period")
	serveCmd.Flags().Duration("watchdog-interval", orchestrator.DefaultIntervals.Watchdog, "assistant watchdog period")
	serveCmd.Flags().String("metrics-addr", ":9096", "Prometheus metrics server address; empty disables")
	serveCmd.Flags().String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")

	bindFlag("components", serveCmd.Flags(), "components")
	bindFlag("planner_interval", serveCmd.Flags(), "planner-interval")
	bindFlag("approvals_interval", serveCmd.Flags(), "approvals-interval")
	bindFlag("executor_interval", serveCmd.Flags(), "executor-interval")
	bindFlag("filedrop_interval", serveCmd.Flags(), "filedrop-interval")
	bindFlag("watchdog_interval", serveCmd.Flags(), "watchdog-interval")
	bindFlag("metrics_addr", serveCmd.Flags(), "metrics-addr")
	bindFlag("otel_endpoint", serveCmd.Flags(), "otel-endpoint")
	_ = viper.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load(viper.GetViper())
	once, _ := cmd.Flags().GetBool("once")
	instanceID := "orchestrator-" + uuid.New().String()[:8]
	logger := buildLogger(cfg.LogLevel, "orchestrator").With(slog.String("instance_id", instanceID))

	shutdownTracer, err := telemetry.InitTracer(context.Background(), telemetry.TraceConfig{
		Service:     "orchestrator",
		Instance:    instanceID,
		Version:     version.Version,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	a, err := app.Build(context.Background(), cfg.App, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	loops, err := orchestrator.Standard(a, orchestrator.Intervals{
		Planner:   cfg.PlannerInterval,
		Approvals: cfg.ApprovalsInterval,
		Executor:  cfg.ExecutorInterval,
		FileDrop:  cfg.FileDropInterval,
		Watchdog:  cfg.WatchdogInterval,
	}, cfg.Components)
	if err != nil {
		return err
	}

	var opts []orchestrator.Option
	if a.Redis != nil {
		opts = append(opts, orchestrator.WithLocker(func(loop string, ttl time.Duration) orchestrator.Locker {
			return a.Lease("orchestrator:"+loop+":"+a.Layout.Vault, instanceID, ttl)
		}))
	}
	orch := orchestrator.New(logger, loops, opts...)

	if once {
		return orch.RunOnce(context.Background())
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	telemetry.StartMetricsServer(runCtx, cfg.MetricsAddr, logger, a.Checks...)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-quit
		logger.Info("shutting down...")
		runCancel()
	}()

	names := make([]string, len(loops))
	for i, l := range loops {
		names[i] = l.Name
	}
	logger.Info("orchestrator starting",
		slog.String("vault", a.Layout.Vault),
		slog.Any("loops", names),
	)
	orch.Run(runCtx)
	logger.Info("stopped")
	return nil
}
