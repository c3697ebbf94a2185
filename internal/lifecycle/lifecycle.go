// Package lifecycle applies domain events to stored tasks and publishes an
// audit record for every applied transition.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/pkg/telemetry"
)

// Store persists a transitioned task.
type Store interface {
	Apply(t domain.Task, eff domain.Effect) (domain.Task, error)
}

// Sink receives a record of every applied transition.
type Sink interface {
	Record(ctx context.Context, rec domain.TransitionRecord) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec domain.TransitionRecord) error

func (f SinkFunc) Record(ctx context.Context, rec domain.TransitionRecord) error { return f(ctx, rec) }

// Multi fans a record out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	var live multi
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return live
}

type multi []Sink

func (m multi) Record(ctx context.Context, rec domain.TransitionRecord) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Record(ctx, rec))
	}
	return errors.Join(errs...)
}

// Machine is the single path through which task state changes.
type Machine struct {
	store  Store
	sink   Sink
	logger *slog.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithSink sets where transition records go.
func WithSink(s Sink) Option {
	return func(m *Machine) {
		if s != nil {
			m.sink = s
		}
	}
}

// New returns a Machine persisting through store.
func New(store Store, logger *slog.Logger, opts ...Option) *Machine {
	m := &Machine{store: store, sink: Multi(), logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Apply transitions t with ev and persists the result. Sink failures are
// logged; the vault stays authoritative.
func (m *Machine) Apply(ctx context.Context, t domain.Task, ev domain.Event) (domain.Task, error) {
	next, eff, err := domain.Transition(t, ev)
	if err != nil {
		return t, err
	}
	saved, err := m.store.Apply(next, eff)
	if err != nil {
		return t, err
	}
	telemetry.TransitionsTotal.WithLabelValues(ev.Name(), string(saved.Status())).Inc()

	rec := Record(t, saved, ev)
	if err := m.sink.Record(ctx, rec); err != nil {
		telemetry.SinkErrorsTotal.WithLabelValues("transition").Inc()
		m.logger.Warn("transition record not delivered",
			slog.String("task", rec.Task),
			slog.String("event", rec.Event),
			slog.String("error", err.Error()),
		)
	}
	return saved, nil
}

// Record builds the audit entry for a transition from before to after.
func Record(before, after domain.Task, ev domain.Event) domain.TransitionRecord {
	rec := domain.TransitionRecord{
		ID:     uuid.New().String(),
		Task:   after.Name,
		Kind:   after.Kind(),
		Event:  ev.Name(),
		From:   before.Status(),
		To:     after.Status(),
		Folder: after.Folder,
	}
	switch e := ev.(type) {
	case domain.Plan:
		rec.At, rec.Detail = e.At, e.PlanFile
	case domain.Dispatch:
		rec.At = e.At
	case domain.DispatchFailed:
		rec.At, rec.Detail = e.At, e.Reason
	case domain.Complete:
		rec.At, rec.Detail = e.At, e.Output
	case domain.ActionSucceeded:
		rec.At = e.At
	case domain.ActionFailed:
		rec.At, rec.Detail = e.At, e.Reason
	}
	rec.At = rec.At.UTC()
	return rec
}
