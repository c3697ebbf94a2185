// Package scheduler creates vault tasks from cron jobs.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/internal/frontmatter"
	"github.com/92Bilal26/ai-junior-bilal/internal/vault"
	"github.com/92Bilal26/ai-junior-bilal/pkg/telemetry"
)

// DefaultCheckInterval is how often due jobs are looked for.
const DefaultCheckInterval = 15 * time.Second

// Vault is the task store the scheduler writes to.
type Vault interface {
	CreateTask(n vault.NewTask) (domain.Task, error)
	CreateAttendanceTask(date, currentStatus string) (domain.Task, error)
	AttendanceRequested(date string) (bool, error)
	Rel(path string) string
	Path(t domain.Task) string
}

// Leader decides whether this instance may fire jobs.
type Leader interface {
	Acquire(ctx context.Context) (bool, error)
}

// Scheduler fires due jobs. Next-run times survive restarts in a state file.
type Scheduler struct {
	jobs      []Job
	store     Vault
	statePath string
	leader    Leader
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLeader makes every tick take leadership first. Ticks that do not get
// it do nothing.
func WithLeader(l Leader) Option {
	return func(s *Scheduler) { s.leader = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(jobs []Job, store Vault, statePath string, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{jobs: jobs, store: store, statePath: statePath, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks every interval until ctx is cancelled. The first tick is
// immediate.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tickAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickAndLog(ctx)
		}
	}
}

func (s *Scheduler) tickAndLog(ctx context.Context) {
	if _, err := s.Tick(ctx); err != nil {
		s.logger.Error("scheduler tick: " + err.Error())
	}
}

// Tick fires every job whose next run has passed and returns how many tasks
// it created. A job seen for the first time is scheduled, not fired.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	ctx, span := telemetry.Tracer("scheduler").Start(ctx, "scheduler.tick")
	defer span.End()

	if s.leader != nil {
		ok, err := s.leader.Acquire(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "leader election failed")
			return 0, fmt.Errorf("leader election: %w", err)
		}
		if !ok {
			return 0, nil
		}
	}

	now := s.now()
	st := s.loadState()
	changed := false
	created := 0
	var errs []error

	for _, job := range s.jobs {
		next, ok := st.NextRun[job.Name]
		if !ok {
			st.NextRun[job.Name] = job.Next(now).UTC()
			changed = true
			continue
		}
		if now.Before(next) {
			continue
		}
		made, err := s.fire(job, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
		}
		if made {
			created++
		}
		st.NextRun[job.Name] = job.Next(now).UTC()
		changed = true
	}

	if changed {
		if err := s.saveState(st); err != nil {
			errs = append(errs, err)
		}
	}
	span.SetAttributes(attribute.Int("scheduler.created", created))
	err := errors.Join(errs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "job failed")
	}
	return created, err
}

func (s *Scheduler) fire(job Job, now time.Time) (bool, error) {
	if job.Attendance {
		date := now.Format("2006-01-02")
		requested, err := s.store.AttendanceRequested(date)
		if err != nil {
			return false, err
		}
		if requested {
			s.logger.Info("Attendance already requested for " + date)
			return false, nil
		}
		t, err := s.store.CreateAttendanceTask(date, "")
		if err != nil {
			return false, err
		}
		telemetry.ScheduledTasksTotal.WithLabelValues(job.Name).Inc()
		s.logger.Info(fmt.Sprintf("Created attendance task %s for %s", s.store.Rel(s.store.Path(t)), date))
		return true, nil
	}

	t, err := s.store.CreateTask(vault.NewTask{
		Title:    job.Title,
		Body:     job.Body,
		Type:     job.Type,
		Source:   "scheduler",
		Priority: job.Priority,
	})
	if err != nil {
		return false, err
	}
	telemetry.ScheduledTasksTotal.WithLabelValues(job.Name).Inc()
	s.logger.Info(fmt.Sprintf("Created task %s from job %s", s.store.Rel(s.store.Path(t)), job.Name))
	return true, nil
}

// ── state ─────────────────────────────────────────────────────────────────────

type state struct {
	NextRun map[string]time.Time `json:"next_run"`
}

// loadState reads the state file. A missing or corrupt file starts empty.
func (s *Scheduler) loadState() state {
	st := state{NextRun: map[string]time.Time{}}
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("read scheduler state: " + err.Error())
		}
		return st
	}
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn("Scheduler state corrupt, starting fresh: " + err.Error())
		return state{NextRun: map[string]time.Time{}}
	}
	if st.NextRun == nil {
		st.NextRun = map[string]time.Time{}
	}
	return st
}

func (s *Scheduler) saveState(st state) error {
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode scheduler state: %w", err)
	}
	tmp := s.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write scheduler state: %w", err)
	}
	if err := os.Rename(tmp, s.statePath); err != nil {
		return fmt.Errorf("write scheduler state: %w", err)
	}
	return nil
}

// NextRuns returns the recorded next run per job, as stamped in the state
// file.
func (s *Scheduler) NextRuns() map[string]string {
	st := s.loadState()
	out := make(map[string]string, len(st.NextRun))
	for name, t := range st.NextRun {
		out[name] = frontmatter.Timestamp(t)
	}
	return out
}
