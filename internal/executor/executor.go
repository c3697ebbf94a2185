// Package executor hands planned assistant tasks to the external process
// and closes them once their output shows up or they time out.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/internal/lifecycle"
	"github.com/92Bilal26/ai-junior-bilal/internal/vault"
	"github.com/92Bilal26/ai-junior-bilal/pkg/telemetry"
)

// TimeoutOutput is recorded on tasks closed without detected output.
const TimeoutOutput = "Executor timeout - manual review needed"

const (
	defaultTimeout   = 10 * time.Minute
	defaultBaseDelay = 30 * time.Second
	defaultAttempts  = 5
)

// SendFunc delivers a prompt to the assistant.
type SendFunc func(ctx context.Context, prompt string) error

// Executor runs execution cycles over Needs_Action.
type Executor struct {
	store      *vault.Store
	machine    *lifecycle.Machine
	send       SendFunc
	logger     *slog.Logger
	now        func() time.Time
	timeout    time.Duration
	policy     domain.RetryPolicy
	predicates map[domain.Kind]CompletionPredicate
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout sets how long a task may stay executing without output.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRetryPolicy sets the re-dispatch policy for failed sends.
func WithRetryPolicy(p domain.RetryPolicy) Option {
	return func(e *Executor) { e.policy = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithPredicate registers the completion check for a kind, replacing any
// previous one.
func WithPredicate(kind domain.Kind, p CompletionPredicate) Option {
	return func(e *Executor) { e.predicates[kind] = p }
}

// New returns an Executor. appsRoot is where scaffolded applications are
// looked for; logger should write task_executor.log.
func New(store *vault.Store, machine *lifecycle.Machine, send SendFunc, appsRoot string, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		store:   store,
		machine: machine,
		send:    send,
		logger:  logger,
		now:     time.Now,
		timeout: defaultTimeout,
		policy:  domain.RetryPolicy{MaxAttempts: defaultAttempts, BaseDelay: defaultBaseDelay},
		predicates: map[domain.Kind]CompletionPredicate{
			domain.KindClaudeApp: AppDirectory{Root: appsRoot},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cycle first resolves executing tasks, then dispatches planned ones. It
// returns the number of tasks completed plus the number dispatched.
func (e *Executor) Cycle(ctx context.Context) (int, error) {
	ctx, span := telemetry.Tracer("executor").Start(ctx, "executor.cycle")
	defer span.End()

	tasks, err := e.store.LoadAll(domain.FolderNeedsAction)
	if err != nil {
		e.logger.Error("Failed to read Needs_Action", slog.String("error", err.Error()))
		if len(tasks) == 0 {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scan failed")
			return 0, err
		}
	}

	count := 0
	for _, t := range tasks {
		if t.Kind().Executable() && t.Status() == domain.StatusExecuting {
			if e.resolve(ctx, t) {
				count++
			}
		}
	}
	for _, t := range tasks {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		if t.Kind().Executable() && t.Status() == domain.StatusPlanned && !domain.RetryPending(t, e.now()) {
			if e.dispatch(ctx, t) {
				count++
			}
		}
	}
	span.SetAttributes(attribute.Int("executor.processed", count))
	return count, nil
}

// resolve closes t when its output exists or it has been executing too long.
func (e *Executor) resolve(ctx context.Context, t domain.Task) bool {
	if pred, ok := e.predicates[t.Kind()]; ok {
		output, found, err := pred.Detect(t)
		if err != nil {
			e.logger.Warn(fmt.Sprintf("Completion check failed for %s: %v", t.Name, err), slog.String("task", t.Name))
		}
		if found {
			if _, err := e.machine.Apply(ctx, t, domain.Complete{At: e.now(), Output: output}); err != nil {
				e.logger.Error(fmt.Sprintf("Error completing task %s: %v", t.Name, err), slog.String("task", t.Name))
				return false
			}
			telemetry.ExecutorCompletedTotal.WithLabelValues("output").Inc()
			e.logger.Info(fmt.Sprintf("Completed task: %s (output detected: %s)", t.Name, output), slog.String("task", t.Name))
			return true
		}
	}

	if !domain.IsStuck(t, e.now(), e.timeout) {
		return false
	}
	if _, err := e.machine.Apply(ctx, t, domain.Complete{At: e.now(), Output: TimeoutOutput}); err != nil {
		e.logger.Error(fmt.Sprintf("Error handling stuck task %s: %v", t.Name, err), slog.String("task", t.Name))
		return false
	}
	telemetry.ExecutorCompletedTotal.WithLabelValues("timeout").Inc()
	e.logger.Info("Moved stuck task to Done: "+t.Name, slog.String("task", t.Name))
	return true
}

// dispatch persists the executing state before the prompt is sent.
func (e *Executor) dispatch(ctx context.Context, t domain.Task) bool {
	executing, err := e.machine.Apply(ctx, t, domain.Dispatch{At: e.now()})
	if err != nil {
		e.logger.Error(fmt.Sprintf("Error executing task %s: %v", t.Name, err), slog.String("task", t.Name))
		return false
	}

	sendErr := e.send(ctx, BuildPrompt(executing))
	if sendErr == nil {
		telemetry.ExecutorDispatchedTotal.WithLabelValues("sent").Inc()
		e.logger.Info("Executing task: "+t.Name, slog.String("task", t.Name))
		return true
	}

	telemetry.ExecutorDispatchedTotal.WithLabelValues("failed").Inc()
	e.logger.Warn("Failed to send task to Claude: "+sendErr.Error(), slog.String("task", t.Name))
	reverted, err := e.machine.Apply(ctx, executing, domain.DispatchFailed{At: e.now(), Reason: sendErr.Error(), Policy: e.policy})
	if err != nil {
		e.logger.Error(fmt.Sprintf("Error executing task %s: %v", t.Name, err), slog.String("task", t.Name))
		return false
	}
	if reverted.Status() == domain.StatusFailed {
		e.logger.Warn(fmt.Sprintf("Gave up on task after %s attempts: %s", reverted.Get(domain.FieldDispatchAttempts), t.Name),
			slog.String("task", t.Name))
	}
	return false
}

// BuildPrompt renders the instruction sent to the assistant for t.
func BuildPrompt(t domain.Task) string {
	title := t.Get(domain.FieldTitle)
	if title == "" {
		title = t.Stem()
	}
	lines := []string{
		"You must complete this task. Be direct and thorough.",
		"",
		"TASK: " + title,
		"TYPE: " + t.Get(domain.FieldType),
		"",
		"INSTRUCTION: " + t.Instruction(),
		"",
		"REQUIREMENTS:",
		"- Create the app folder and all files in the correct location",
		"- For HTML apps: Create in apps/html/{app_name}/",
		"- Files needed: index.html, styles.css, app.js (minimum)",
		"- Each file should be complete and functional",
		"- Do not ask for confirmation, just create the files",
		"- Output complete file contents when creating files",
		"",
		"START EXECUTION NOW:",
	}
	return strings.Join(lines, "\n")
}
