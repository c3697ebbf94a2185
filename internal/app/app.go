// Package app assembles the pipeline components from configuration so every
// service wires them the same way.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/92Bilal26/ai-junior-bilal/internal/approval"
	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/internal/eventlog"
	"github.com/92Bilal26/ai-junior-bilal/internal/executor"
	"github.com/92Bilal26/ai-junior-bilal/internal/handlers"
	"github.com/92Bilal26/ai-junior-bilal/internal/kafka"
	"github.com/92Bilal26/ai-junior-bilal/internal/lifecycle"
	"github.com/92Bilal26/ai-junior-bilal/internal/paths"
	"github.com/92Bilal26/ai-junior-bilal/internal/planner"
	"github.com/92Bilal26/ai-junior-bilal/internal/postgres"
	redisstore "github.com/92Bilal26/ai-junior-bilal/internal/redis"
	"github.com/92Bilal26/ai-junior-bilal/internal/supervisor"
	"github.com/92Bilal26/ai-junior-bilal/internal/vault"
	"github.com/92Bilal26/ai-junior-bilal/internal/watcher"
	"github.com/92Bilal26/ai-junior-bilal/pkg/telemetry"
)

// Settings is the configuration shared by every service.
type Settings struct {
	Paths paths.Overrides

	ClaudeCommand      string
	ClaudeArgs         []string
	ClaudeForceRestart bool

	ExecutorTimeout     time.Duration
	DispatchRetryBase   time.Duration
	DispatchMaxAttempts int

	AttendanceURL     string
	AttendanceCommand string
	AttendanceTimeout time.Duration

	SMTP            handlers.EmailConfig
	EmailRateLimit  int
	EmailRateWindow time.Duration

	KafkaBrokers string
	KafkaTopic   string
	RedisAddr    string
	PostgresDSN  string
}

// App holds the wired components. Optional backends are nil when not
// configured.
type App struct {
	Layout     paths.Layout
	Store      *vault.Store
	Machine    *lifecycle.Machine
	Supervisor *supervisor.Supervisor
	Planner    *planner.Planner
	Executor   *executor.Executor
	Approvals  *approval.Executor
	FileDrop   *watcher.FileDrop

	Redis   *goredis.Client
	History postgres.TransitionRepository
	Checks  []telemetry.ReadyCheck

	base    *slog.Logger
	closers []func()
}

// Build resolves the layout, opens the vault and connects the configured
// backends. Call Close when done.
func Build(ctx context.Context, s Settings, base *slog.Logger) (*App, error) {
	layout, err := paths.Resolve(s.Paths)
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	store, err := vault.Open(layout.Vault)
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	a := &App{Layout: layout, Store: store, base: base}
	a.Checks = append(a.Checks, telemetry.ReadyCheck{Name: "vault", Probe: func(context.Context) error {
		_, err := os.Stat(store.Root())
		return err
	}})

	var sinks []lifecycle.Sink
	if brokers := splitList(s.KafkaBrokers); len(brokers) > 0 {
		pub := kafka.NewPublisher(kafka.NewProducer(brokers), s.KafkaTopic)
		a.closers = append(a.closers, func() { _ = pub.Close() })
		sinks = append(sinks, pub)
	}
	if s.PostgresDSN != "" {
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := postgres.NewPool(initCtx, s.PostgresDSN)
		cancel()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		a.History = postgres.NewRepository(pool)
		a.Checks = append(a.Checks, telemetry.ReadyCheck{Name: "postgres", Probe: pool.Ping})
		sinks = append(sinks, a.History)
	}
	if s.RedisAddr != "" {
		a.Redis = redisstore.NewClient(s.RedisAddr)
		a.closers = append(a.closers, func() { _ = a.Redis.Close() })
		a.Checks = append(a.Checks, telemetry.ReadyCheck{Name: "redis", Probe: redisstore.Ping(a.Redis)})
	}

	a.Machine = lifecycle.New(store, base, lifecycle.WithSink(lifecycle.Multi(sinks...)))

	a.Supervisor = supervisor.New(supervisor.Config{
		Command:      s.ClaudeCommand,
		Args:         s.ClaudeArgs,
		WorkDir:      layout.Root,
		StatePath:    filepath.Join(layout.State, "claude_runner.json"),
		OutputLog:    filepath.Join(layout.Logs, "claude_cli.log"),
		ForceRestart: s.ClaudeForceRestart,
	}, a.Logger(eventlog.ClaudeRunner))

	a.Planner = planner.New(store, a.Machine, a.Logger(eventlog.Orchestrator))

	policy := domain.RetryPolicy{MaxAttempts: s.DispatchMaxAttempts, BaseDelay: s.DispatchRetryBase}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = 30 * time.Second
	}
	execOpts := []executor.Option{executor.WithRetryPolicy(policy), executor.WithTimeout(s.ExecutorTimeout)}
	a.Executor = executor.New(store, a.Machine, a.Supervisor.Send, layout.Apps, a.Logger(eventlog.TaskExecutor), execOpts...)

	approvalLog := a.Logger(eventlog.ApprovalExecutor)
	a.Approvals = approval.New(store, a.Machine, a.handlerSet(s, approvalLog), approvalLog)

	a.FileDrop = watcher.NewFileDrop(store, layout.Drop, filepath.Join(layout.State, "file_drop_watcher.json"),
		a.Logger(eventlog.FileDropWatcher))

	return a, nil
}

func (a *App) handlerSet(s Settings, logger *slog.Logger) handlers.Set {
	var svc handlers.AttendanceService
	switch {
	case s.AttendanceURL != "":
		svc = handlers.NewHTTPAttendanceService(s.AttendanceURL, s.AttendanceTimeout)
	case s.AttendanceCommand != "":
		svc = handlers.NewCommandAttendanceService(s.AttendanceCommand)
	}

	var emailOpts []handlers.EmailOption
	if a.Redis != nil && s.EmailRateLimit > 0 {
		window := s.EmailRateWindow
		if window <= 0 {
			window = time.Hour
		}
		emailOpts = append(emailOpts, handlers.WithLimiter(redisstore.NewRateLimiter(a.Redis, s.EmailRateLimit, window)))
	}

	return handlers.Set{
		Attendance: handlers.NewAttendanceHandler(svc, logger),
		Email:      handlers.NewEmailHandler(s.SMTP, logger, emailOpts...),
	}
}

// Logger returns a logger writing both the base stream and the component's
// file in the logs directory.
func (a *App) Logger(component string) *slog.Logger {
	return eventlog.NewLogger(a.base, a.Layout.Logs, component)
}

// Lease returns a Redis lease on name, or nil without Redis.
func (a *App) Lease(name, owner string, ttl time.Duration) *redisstore.Lease {
	if a.Redis == nil {
		return nil
	}
	return redisstore.NewLease(a.Redis, name, owner, ttl)
}

// Close releases backend connections in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
