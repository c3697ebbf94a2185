package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/92Bilal26/ai-junior-bilal/internal/app"
	"github.com/92Bilal26/ai-junior-bilal/internal/eventlog"
	"github.com/92Bilal26/ai-junior-bilal/internal/version"
	"github.com/92Bilal26/ai-junior-bilal/pkg/telemetry"
	"github.com/92Bilal26/ai-junior-bilal/services/dashboard"
	"github.com/92Bilal26/ai-junior-bilal/services/dashboard/config"
	"github.com/92Bilal26/ai-junior-bilal/services/dashboard/handler"
	"github.com/92Bilal26/ai-junior-bilal/services/orchestrator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	Long: `Serve the dashboard JSON API, plus /healthz, /readyz and /metrics.

The watchdog, orchestrator and executor loops can run in the background
(--watchdog, --orchestrator-autorun, --executor-autorun). They share this
process's handle on the assistant, so prompts reach the process it started.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "listen host (env DASHBOARD_HOST)")
	serveCmd.Flags().Int("port", 8787, "listen port (env DASHBOARD_PORT)")
	serveCmd.Flags().Bool("claude-autoload", false, "prompt the assistant when an app task is queued (env CLAUDE_AUTOLOAD)")
	serveCmd.Flags().Bool("claude-autostart", false, "start the assistant with the server")
	serveCmd.Flags().Bool("watchdog", false, "keep the assistant running")
	serveCmd.Flags().String("watchdog-interval", "10", "watchdog period, seconds or a duration (min 5s)")
	serveCmd.Flags().Bool("orchestrator-autorun", false, "run the planner in the background")
	serveCmd.Flags().String("orchestrator-interval", "60", "planner period, seconds or a duration (min 10s)")
	serveCmd.Flags().Bool("executor-autorun", false, "run the task executor in the background")
	serveCmd.Flags().String("executor-interval", "30", "executor period, seconds or a duration (min 10s)")
	serveCmd.Flags().String("otel-endpoint", "", "OTLP HTTP endpoint for tracing (e.g. localhost:4318); empty disables tracing")

	bindFlag("dashboard_host", serveCmd.Flags(), "host")
	bindFlag("dashboard_port", serveCmd.Flags(), "port")
	bindFlag("claude_autoload", serveCmd.Flags(), "claude-autoload")
	bindFlag("dashboard_claude_autostart", serveCmd.Flags(), "claude-autostart")
	bindFlag("dashboard_claude_watchdog", serveCmd.Flags(), "watchdog")
	bindFlag("dashboard_claude_watchdog_interval", serveCmd.Flags(), "watchdog-interval")
	bindFlag("dashboard_orchestrator_autorun", serveCmd.Flags(), "orchestrator-autorun")
	bindFlag("dashboard_orchestrator_interval", serveCmd.Flags(), "orchestrator-interval")
	bindFlag("dashboard_executor_autorun", serveCmd.Flags(), "executor-autorun")
	bindFlag("dashboard_executor_interval", serveCmd.Flags(), "executor-interval")
	bindFlag("otel_endpoint", serveCmd.Flags(), "otel-endpoint")
	_ = viper.BindEnv("otel_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := config.Load(viper.GetViper())
	instanceID := "dashboard-" + uuid.New().String()[:8]
	logger := buildLogger(cfg.LogLevel, "dashboard").With(slog.String("instance_id", instanceID))

	shutdownTracer, err := telemetry.InitTracer(context.Background(), telemetry.TraceConfig{
		Service:     "dashboard",
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
	dashLog := a.Logger(eventlog.Dashboard)

	api := handler.NewAPI(dashboard.Deps(a, cfg.ClaudeAutoload), dashLog)
	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:      handler.NewRouter(api, telemetry.Handler(a.Checks...), logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	if cfg.ClaudeAutostart {
		if res := a.Supervisor.Start(runCtx); !res.OK {
			dashLog.Warn("Claude autostart failed: " + res.Error)
		}
	}

	loops := dashboard.Loops(a, cfg.Autorun)
	loopsDone := make(chan struct{})
	go func() {
		defer close(loopsDone)
		if len(loops) > 0 {
			orchestrator.New(logger, loops).Run(runCtx)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 1)
	go func() {
		dashLog.Info("Dashboard running at http://" + srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-quit:
		logger.Info("shutting down...")
	case err := <-errCh:
		runCancel()
		<-loopsDone
		return fmt.Errorf("dashboard server: %w", err)
	}
	runCancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown error", slog.String("error", err.Error()))
	}
	<-loopsDone
	logger.Info("stopped")
	return nil
}
