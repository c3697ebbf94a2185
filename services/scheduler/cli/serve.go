package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/92Bilal26/ai-junior-bilal/internal/app"
	"github.com/92Bilal26/ai-junior-bilal/internal/eventlog"
	"github.com/92Bilal26/ai-junior-bilal/internal/version"
	"github.com/92Bilal26/ai-junior-bilal/pkg/telemetry"
	"github.com/92Bilal26/ai-junior-bilal/services/scheduler"
	"github.com/92Bilal26/ai-junior-bilal/services/scheduler/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scheduler",
	Long: `Fire the jobs in the jobs file on their cron schedules.

With Redis configured, instances elect a leader through a lease and only
the leader fires jobs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Bool("once", false, "run one tick and exit")
	serveCmd.Flags().Duration("check-interval", scheduler.DefaultCheckInterval, "how often due jobs are looked for")
	serveCmd.Flags().Duration("leader-ttl", 30*time.Second, "leader lease TTL (Redis only)")
	serveCmd.Flags().String("metrics-addr", ":9097", "Prometheus metrics server address; empty disables")
	serveCmd.Flags().String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")

	bindFlag("check_interval", serveCmd.Flags(), "check-interval")
	bindFlag("leader_ttl", serveCmd.Flags(), "leader-ttl")
	bindFlag("metrics_addr", serveCmd.Flags(), "metrics-addr")
	bindFlag("otel_endpoint", serveCmd.Flags(), "otel-endpoint")
	_ = viper.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load(viper.GetViper())
	once, _ := cmd.Flags().GetBool("once")
	instanceID := "scheduler-" + uuid.New().String()[:8]
	logger := buildLogger(cfg.LogLevel, "scheduler").With(slog.String("instance_id", instanceID))

	shutdownTracer, err := telemetry.InitTracer(context.Background(), telemetry.TraceConfig{
		Service:     "scheduler",
		Instance:    instanceID,
		Version:     version.Version,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer()

	a, jobs, err := build(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var opts []scheduler.Option
	if a.Redis != nil {
		ttl := cfg.LeaderTTL
		if ttl <= 0 {
			ttl = 30 * time.Second
		}
		opts = append(opts, scheduler.WithLeader(a.Lease("scheduler:"+a.Layout.Vault, instanceID, ttl)))
	}
	sched := newScheduler(a, jobs, opts...)

	if once {
		_, err := sched.Tick(context.Background())
		return err
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

	logger.Info("scheduler starting",
		slog.String("vault", a.Layout.Vault),
		slog.Int("jobs", len(jobs)),
		slog.Duration("check_interval", cfg.CheckInterval),
	)
	sched.Run(runCtx, cfg.CheckInterval)
	logger.Info("stopped")
	return nil
}

// build wires the app and loads the jobs file.
func build(cfg config.Config, logger *slog.Logger) (*app.App, []scheduler.Job, error) {
	a, err := app.Build(context.Background(), cfg.App, logger)
	if err != nil {
		return nil, nil, err
	}
	jobs, err := scheduler.LoadJobs(jobsPath(cfg, a))
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, jobs, nil
}

func newScheduler(a *app.App, jobs []scheduler.Job, opts ...scheduler.Option) *scheduler.Scheduler {
	return scheduler.New(jobs, a.Store, statePath(a), a.Logger(eventlog.Scheduler), opts...)
}

func jobsPath(cfg config.Config, a *app.App) string {
	if cfg.JobsFile != "" {
		return cfg.JobsFile
	}
	return filepath.Join(a.Layout.Root, "scheduler_jobs.yaml")
}

func statePath(a *app.App) string {
	return filepath.Join(a.Layout.State, "scheduler.json")
}
