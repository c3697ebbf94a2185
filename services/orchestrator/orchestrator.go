// Package orchestrator runs the pipeline's polling loops.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/92Bilal26/ai-junior-bilal/internal/app"
	"github.com/92Bilal26/ai-junior-bilal/internal/supervisor"
	"github.com/92Bilal26/ai-junior-bilal/pkg/telemetry"
)

// Loop names.
const (
	LoopPlanner   = "planner"
	LoopApprovals = "approvals"
	LoopExecutor  = "executor"
	LoopFileDrop  = "filedrop"
	LoopWatchdog  = "watchdog"
)

// Loop is one periodic job. Run returns how many items it handled.
type Loop struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int, error)
}

// Locker guards one loop iteration across processes.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
}

// LockerFunc returns the locker for a loop, or nil for none.
type LockerFunc func(loop string, ttl time.Duration) Locker

// Orchestrator runs loops concurrently, each on its own ticker.
type Orchestrator struct {
	loops   []Loop
	lockFor LockerFunc
	logger  *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLocker makes every iteration take the loop's lock first. Iterations
// that do not get it are skipped.
func WithLocker(f LockerFunc) Option {
	return func(o *Orchestrator) { o.lockFor = f }
}

func New(logger *slog.Logger, loops []Loop, opts ...Option) *Orchestrator {
	o := &Orchestrator{loops: loops, logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run starts every loop and blocks until ctx is cancelled and all loops
// have returned. Each loop runs once immediately.
func (o *Orchestrator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, l := range o.loops {
		wg.Add(1)
		go func(l Loop) {
			defer wg.Done()
			o.run(ctx, l)
		}(l)
	}
	wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context, l Loop) {
	lock := o.locker(l)
	o.logger.Info("loop starting", slog.String("loop", l.Name), slog.Duration("interval", l.Interval))

	_ = o.iterate(ctx, l, lock)
	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = o.iterate(ctx, l, lock)
		}
	}
}

// RunOnce runs every loop a single time, in order.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	var errs []error
	for _, l := range o.loops {
		if err := o.iterate(ctx, l, o.locker(l)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) locker(l Loop) Locker {
	if o.lockFor == nil {
		return nil
	}
	return o.lockFor(l.Name, 2*l.Interval)
}

func (o *Orchestrator) iterate(ctx context.Context, l Loop, lock Locker) error {
	if ctx.Err() != nil {
		return nil
	}
	if lock != nil {
		ok, err := lock.Acquire(ctx)
		if err != nil {
			telemetry.LoopErrorsTotal.WithLabelValues(l.Name).Inc()
			o.logger.Error("loop lease failed", slog.String("loop", l.Name), slog.String("error", err.Error()))
			return err
		}
		if !ok {
			telemetry.LoopSkippedTotal.WithLabelValues(l.Name).Inc()
			o.logger.Debug("loop held elsewhere, skipping", slog.String("loop", l.Name))
			return nil
		}
	}

	start := time.Now()
	n, err := l.Run(ctx)
	telemetry.LoopDurationSeconds.WithLabelValues(l.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.LoopErrorsTotal.WithLabelValues(l.Name).Inc()
		o.logger.Error("loop iteration failed", slog.String("loop", l.Name), slog.String("error", err.Error()))
		return err
	}
	if n > 0 {
		o.logger.Info("loop iteration", slog.String("loop", l.Name), slog.Int("handled", n))
	}
	return nil
}

// Intervals sets each standard loop's period.
type Intervals struct {
	Planner   time.Duration
	Approvals time.Duration
	Executor  time.Duration
	FileDrop  time.Duration
	Watchdog  time.Duration
}

// DefaultIntervals are used for zero fields.
var DefaultIntervals = Intervals{
	Planner:   60 * time.Second,
	Approvals: 30 * time.Second,
	Executor:  30 * time.Second,
	FileDrop:  30 * time.Second,
	Watchdog:  10 * time.Second,
}

// AllLoops lists the standard loop names in run order.
var AllLoops = []string{LoopPlanner, LoopApprovals, LoopExecutor, LoopFileDrop, LoopWatchdog}

// Standard builds the named loops over a's components. Unknown names are
// an error.
func Standard(a *app.App, iv Intervals, names []string) ([]Loop, error) {
	all := map[string]Loop{
		LoopPlanner:   {Name: LoopPlanner, Interval: or(iv.Planner, DefaultIntervals.Planner), Run: a.Planner.Cycle},
		LoopApprovals: {Name: LoopApprovals, Interval: or(iv.Approvals, DefaultIntervals.Approvals), Run: a.Approvals.Cycle},
		LoopExecutor:  {Name: LoopExecutor, Interval: or(iv.Executor, DefaultIntervals.Executor), Run: a.Executor.Cycle},
		LoopFileDrop:  {Name: LoopFileDrop, Interval: or(iv.FileDrop, DefaultIntervals.FileDrop), Run: a.FileDrop.Check},
		LoopWatchdog:  {Name: LoopWatchdog, Interval: or(iv.Watchdog, DefaultIntervals.Watchdog), Run: Watchdog(a.Supervisor)},
	}
	return Select(all, names)
}

// Select picks loops by name, in AllLoops order. Empty names selects all.
func Select(all map[string]Loop, names []string) ([]Loop, error) {
	want := map[string]bool{}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			want[n] = true
		}
	}
	var unknown []string
	for n := range want {
		if _, ok := all[n]; !ok {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown components: %s (known: %s)", strings.Join(unknown, ", "), strings.Join(AllLoops, ", "))
	}

	var out []Loop
	for _, n := range AllLoops {
		l, ok := all[n]
		if !ok || (len(want) > 0 && !want[n]) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// Ensurer keeps the assistant process up.
type Ensurer interface {
	EnsureRunning(ctx context.Context) supervisor.Result
}

// Watchdog returns a loop body restarting the assistant when it is down.
func Watchdog(e Ensurer) func(ctx context.Context) (int, error) {
	return func(ctx context.Context) (int, error) {
		res := e.EnsureRunning(ctx)
		if !res.OK {
			if res.Error == "" {
				res.Error = res.Status
			}
			return 0, fmt.Errorf("ensure assistant running: %s", res.Error)
		}
		if res.Status == supervisor.StatusStarted {
			return 1, nil
		}
		return 0, nil
	}
}

// MinInterval raises d to floor.
func MinInterval(d, floor time.Duration) time.Duration {
	if d < floor {
		return floor
	}
	return d
}

func or(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
