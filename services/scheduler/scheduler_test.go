package scheduler_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/internal/vault"
	"github.com/92Bilal26/ai-junior-bilal/services/scheduler"
)

// ── mocks ─────────────────────────────────────────────────────────────────────

type fakeLeader struct {
	ok  bool
	err error
}

var _ scheduler.Leader = (*fakeLeader)(nil)

func (f *fakeLeader) Acquire(context.Context) (bool, error) { return f.ok, f.err }

// ── fixture ───────────────────────────────────────────────────────────────────

type fixture struct {
	store     *vault.Store
	statePath string
	clock     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		statePath: filepath.Join(root, ".state", "scheduler.json"),
		clock:     time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	store, err := vault.Open(filepath.Join(root, "vault"), vault.WithClock(func() time.Time { return f.clock }))
	require.NoError(t, err)
	f.store = store
	return f
}

func (f *fixture) scheduler(t *testing.T, opts ...scheduler.Option) *scheduler.Scheduler {
	t.Helper()
	jobs, err := scheduler.ParseJobs([]byte(jobsYAML + `
  - name: hourly
    cron: "0 * * * *"
    title: Check inbox
    type: claude_task
    priority: high
`))
	require.NoError(t, err)
	opts = append([]scheduler.Option{scheduler.WithClock(func() time.Time { return f.clock })}, opts...)
	return scheduler.New(jobs, f.store, f.statePath, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestTick_FirstSightSchedulesWithoutFiring(t *testing.T) {
	f := newFixture(t)

	n, err := f.scheduler(t).Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	names, err := f.store.List(domain.FolderNeedsAction)
	require.NoError(t, err)
	assert.Empty(t, names)

	runs := f.scheduler(t).NextRuns()
	assert.Equal(t, "2024-05-01T09:00:00Z", runs["hourly"])
	assert.Equal(t, "2024-05-01T08:30:00Z", runs["attendance"])
	assert.Equal(t, "2024-05-06T09:00:00Z", runs["weekly-report"])
}

func TestTick_FiresDueJobsAcrossRestarts(t *testing.T) {
	f := newFixture(t)
	_, err := f.scheduler(t).Tick(context.Background())
	require.NoError(t, err)

	// A new instance picks up the persisted schedule.
	f.clock = time.Date(2024, 5, 1, 9, 0, 5, 0, time.UTC)
	n, err := f.scheduler(t).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "attendance and hourly are due")

	tasks, err := f.store.LoadAll(domain.FolderNeedsAction)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Check inbox", tasks[0].Get("title"))
	assert.Equal(t, "claude_task", tasks[0].Get("type"))
	assert.Equal(t, "scheduler", tasks[0].Get("source"))
	assert.Equal(t, "high", tasks[0].Get("priority"))

	pending, err := f.store.List(domain.FolderPendingApproval)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, strings.HasPrefix(pending[0], "ATTENDANCE_MARK_20240501_"))

	runs := f.scheduler(t).NextRuns()
	assert.Equal(t, "2024-05-01T10:00:00Z", runs["hourly"])
	assert.Equal(t, "2024-05-02T08:30:00Z", runs["attendance"])

	// Nothing is due again within the hour.
	n, err = f.scheduler(t).Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTick_AttendanceAtMostOncePerDate(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.CreateAttendanceTask("2024-05-01", "Absent")
	require.NoError(t, err)
	_, err = f.scheduler(t).Tick(context.Background())
	require.NoError(t, err)

	f.clock = time.Date(2024, 5, 1, 8, 45, 0, 0, time.UTC)
	n, err := f.scheduler(t).Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err := f.store.List(domain.FolderPendingApproval)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestTick_FollowerDoesNothing(t *testing.T) {
	f := newFixture(t)

	n, err := f.scheduler(t, scheduler.WithLeader(&fakeLeader{ok: false})).Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = os.Stat(f.statePath)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = f.scheduler(t, scheduler.WithLeader(&fakeLeader{err: errors.New("redis down")})).Tick(context.Background())
	assert.ErrorContains(t, err, "redis down")
}

func TestTick_CorruptStateStartsFresh(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(f.statePath), 0o755))
	require.NoError(t, os.WriteFile(f.statePath, []byte("{nope"), 0o644))

	n, err := f.scheduler(t).Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.scheduler(t).NextRuns(), 3)
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := newFixture(t).scheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 10*time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
