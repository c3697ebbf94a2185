// Package approval executes the actions of tasks a human moved into
// Approved and files each task under Done or Rejected.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/internal/handlers"
	"github.com/92Bilal26/ai-junior-bilal/internal/lifecycle"
	"github.com/92Bilal26/ai-junior-bilal/internal/vault"
	"github.com/92Bilal26/ai-junior-bilal/pkg/telemetry"
)

// Dispatcher runs the handler for an action.
type Dispatcher interface {
	Dispatch(ctx context.Context, a domain.Action) error
}

var _ Dispatcher = handlers.Set{}

// Executor processes the Approved folder.
type Executor struct {
	store    *vault.Store
	machine  *lifecycle.Machine
	handlers Dispatcher
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New returns an Executor. logger should write approval_executor.log.
func New(store *vault.Store, machine *lifecycle.Machine, d Dispatcher, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{store: store, machine: machine, handlers: d, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cycle executes every approved task and returns how many succeeded.
func (e *Executor) Cycle(ctx context.Context) (int, error) {
	ctx, span := telemetry.Tracer("approval").Start(ctx, "approval.cycle")
	defer span.End()

	tasks, err := e.store.LoadAll(domain.FolderApproved)
	if err != nil {
		e.logger.Error("Failed to read Approved", slog.String("error", err.Error()))
		if len(tasks) == 0 {
			return 0, err
		}
	}

	succeeded := 0
	for _, t := range tasks {
		if ctx.Err() != nil {
			return succeeded, ctx.Err()
		}
		if e.process(ctx, t) {
			succeeded++
		}
	}
	span.SetAttributes(attribute.Int("approval.succeeded", succeeded))
	return succeeded, nil
}

func (e *Executor) process(ctx context.Context, t domain.Task) bool {
	kind, action := t.Get(domain.FieldType), t.Get(domain.FieldAction)
	e.logger.Info(fmt.Sprintf("Executing approved action: %s (type=%s, action=%s)", t.Name, kind, action),
		slog.String("task", t.Name))

	now := e.now()
	act := domain.ActionFor(t, now.Format(time.DateOnly))
	name := handlers.ActionName(act)

	start := time.Now()
	runErr := e.run(ctx, act)
	telemetry.HandlerDurationSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())

	var invalid *domain.InvalidTaskTypeError
	if errors.As(runErr, &invalid) {
		e.logger.Warn(fmt.Sprintf("Unknown action type: %s/%s", invalid.TaskType, invalid.Action), slog.String("task", t.Name))
	}

	if runErr == nil {
		telemetry.ApprovalActionsTotal.WithLabelValues(name, "executed").Inc()
		if _, err := e.machine.Apply(ctx, t, domain.ActionSucceeded{At: e.now()}); err != nil {
			e.logger.Error(fmt.Sprintf("ERROR processing approval %s: %v", t.Name, err), slog.String("task", t.Name))
			return false
		}
		e.logger.Info("✓ Moved to Done: "+t.Name, slog.String("task", t.Name))
		return true
	}

	telemetry.ApprovalActionsTotal.WithLabelValues(name, "failed").Inc()
	if _, err := e.machine.Apply(ctx, t, domain.ActionFailed{At: e.now(), Reason: runErr.Error()}); err != nil {
		e.logger.Error(fmt.Sprintf("ERROR processing approval %s: %v", t.Name, err), slog.String("task", t.Name))
		return false
	}
	e.logger.Info("✗ Moved to Rejected: "+t.Name, slog.String("task", t.Name), slog.String("error", runErr.Error()))
	return false
}

// run converts a handler panic into an error.
func (e *Executor) run(ctx context.Context, a domain.Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return e.handlers.Dispatch(ctx, a)
}
