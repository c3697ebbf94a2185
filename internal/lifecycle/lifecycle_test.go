package lifecycle_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/internal/lifecycle"
	"github.com/92Bilal26/ai-junior-bilal/internal/vault"
)

// ── mocks ─────────────────────────────────────────────────────────────────────

type recordingSink struct {
	records []domain.TransitionRecord
	err     error
}

func (s *recordingSink) Record(_ context.Context, rec domain.TransitionRecord) error {
	s.records = append(s.records, rec)
	return s.err
}

type failingStore struct{}

func (failingStore) Apply(domain.Task, domain.Effect) (domain.Task, error) {
	return domain.Task{}, errors.New("disk full")
}

var _ lifecycle.Sink = (*recordingSink)(nil)
var _ lifecycle.Store = (*vault.Store)(nil)

// ── tests ─────────────────────────────────────────────────────────────────────

var at = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestApply_PersistsAndRecords(t *testing.T) {
	store, err := vault.Open(t.TempDir())
	require.NoError(t, err)
	task, err := store.Create(domain.FolderNeedsAction, "T.md", map[string]string{"type": "claude_app", "status": "executing"}, "")
	require.NoError(t, err)

	sink := &recordingSink{}
	m := lifecycle.New(store, quietLogger(), lifecycle.WithSink(sink))

	done, err := m.Apply(context.Background(), task, domain.Complete{At: at, Output: "App created"})
	require.NoError(t, err)
	assert.Equal(t, domain.FolderDone, done.Folder)

	names, err := store.List(domain.FolderDone)
	require.NoError(t, err)
	assert.Equal(t, []string{"T.md"}, names)

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "T.md", rec.Task)
	assert.Equal(t, domain.KindClaudeApp, rec.Kind)
	assert.Equal(t, "complete", rec.Event)
	assert.Equal(t, domain.StatusExecuting, rec.From)
	assert.Equal(t, domain.StatusDone, rec.To)
	assert.Equal(t, domain.FolderDone, rec.Folder)
	assert.Equal(t, "App created", rec.Detail)
	assert.Equal(t, at, rec.At)
}

func TestApply_InvalidTransitionTouchesNothing(t *testing.T) {
	sink := &recordingSink{}
	m := lifecycle.New(failingStore{}, quietLogger(), lifecycle.WithSink(sink))
	task := domain.Task{Name: "T.md", Folder: domain.FolderNeedsAction, Fields: map[string]string{"status": "done"}}

	out, err := m.Apply(context.Background(), task, domain.Dispatch{At: at})

	var invalid *domain.InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, task, out)
	assert.Empty(t, sink.records)
}

func TestApply_StoreErrorIsReturned(t *testing.T) {
	sink := &recordingSink{}
	m := lifecycle.New(failingStore{}, quietLogger(), lifecycle.WithSink(sink))
	task := domain.Task{Name: "T.md", Folder: domain.FolderNeedsAction, Fields: map[string]string{}}

	_, err := m.Apply(context.Background(), task, domain.Plan{At: at, PlanFile: "p"})

	assert.EqualError(t, err, "disk full")
	assert.Empty(t, sink.records)
}

func TestApply_SinkErrorIsNotFatal(t *testing.T) {
	store, err := vault.Open(t.TempDir())
	require.NoError(t, err)
	task, err := store.Create(domain.FolderNeedsAction, "T.md", map[string]string{}, "")
	require.NoError(t, err)

	m := lifecycle.New(store, quietLogger(), lifecycle.WithSink(&recordingSink{err: errors.New("broker down")}))

	out, err := m.Apply(context.Background(), task, domain.Plan{At: at, PlanFile: "p"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanned, out.Status())
}

func TestMulti(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{err: errors.New("b failed")}
	sink := lifecycle.Multi(a, nil, b)

	err := sink.Record(context.Background(), domain.TransitionRecord{Task: "x"})

	assert.EqualError(t, err, "b failed")
	assert.Len(t, a.records, 1)
	assert.Len(t, b.records, 1)
	assert.NoError(t, lifecycle.Multi().Record(context.Background(), domain.TransitionRecord{}))
}
