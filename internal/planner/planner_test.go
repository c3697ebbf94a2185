package planner_test

import (
	"context"
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
	"github.com/92Bilal26/ai-junior-bilal/internal/eventlog"
	"github.com/92Bilal26/ai-junior-bilal/internal/lifecycle"
	"github.com/92Bilal26/ai-junior-bilal/internal/planner"
	"github.com/92Bilal26/ai-junior-bilal/internal/vault"
)

var now = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store   *vault.Store
	planner *planner.Planner
	logDir  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store, err := vault.Open(t.TempDir(), vault.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	logDir := store.Dir(domain.FolderLogs)
	base := slog.New(slog.NewTextHandler(io.Discard, nil))
	logger := eventlog.NewLogger(base, logDir, eventlog.Orchestrator)
	machine := lifecycle.New(store, base)
	return fixture{store: store, planner: planner.New(store, machine, logger), logDir: logDir}
}

func (f fixture) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.store.Dir(domain.FolderNeedsAction), name), []byte(content), 0o644))
}

func TestCycle_PlansNewEmailTask(t *testing.T) {
	f := newFixture(t)
	f.write(t, "TASK_reply.md", "---\ntype: email\n---\n# Reply to Bob\n")

	n, err := f.planner.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	plans, err := f.store.LoadAll(domain.FolderPlans)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	plan := plans[0]
	assert.Equal(t, "PLAN_reply_to_bob_2024-05-01T100000Z.md", plan.Name)
	assert.Equal(t, "plan", plan.Get("type"))
	assert.Equal(t, "true", plan.Get("requires_approval"))
	assert.Equal(t, filepath.Join(f.store.Dir(domain.FolderNeedsAction), "TASK_reply.md"), plan.Get("source_task"))
	assert.Contains(t, plan.Body, "# Plan: Reply to Bob")
	assert.Contains(t, plan.Body, "## Checklist\n- [ ] Understand request and constraints\n")
	assert.True(t, strings.HasSuffix(plan.Body, "- [ ] Draft reply in Pending_Approval\n- [ ] Send after approval"))
	assert.Equal(t, 8, strings.Count(plan.Body, "- [ ] "))

	task, err := f.store.Load(domain.FolderNeedsAction, "TASK_reply.md")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanned, task.Status())
	assert.Equal(t, "2024-05-01T10:00:00Z", task.Get("planned_at"))
	assert.Equal(t, f.store.Path(plan), task.Get("plan_file"))

	lines, err := eventlog.Tail(eventlog.Path(f.logDir, eventlog.Orchestrator), 10)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], "] Planned TASK_reply.md -> PLAN_reply_to_bob_2024-05-01T100000Z.md"))
}

func TestCycle_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.write(t, "TASK_a.md", "---\ntype: task\n---\n# A\n")
	f.write(t, "TASK_done.md", "---\ntype: task\nstatus: done\n---\n# Done\n")
	f.write(t, "TASK_planned.md", "---\ntype: task\nstatus: planned\n---\n# Planned\n")
	before, err := os.ReadFile(filepath.Join(f.store.Dir(domain.FolderNeedsAction), "TASK_done.md"))
	require.NoError(t, err)

	first, err := f.planner.Cycle(context.Background())
	require.NoError(t, err)
	second, err := f.planner.Cycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
	names, err := f.store.List(domain.FolderPlans)
	require.NoError(t, err)
	assert.Len(t, names, 1)

	after, err := os.ReadFile(filepath.Join(f.store.Dir(domain.FolderNeedsAction), "TASK_done.md"))
	require.NoError(t, err)
	assert.Equal(t, before, after, "done tasks are never rewritten")
}

func TestCycle_ExecutingTaskIsNotReplanned(t *testing.T) {
	f := newFixture(t)
	f.write(t, "TASK_run.md", "---\ntype: claude_app\nstatus: executing\nplan_file: /v/Plans/PLAN_x.md\n---\n# Run\n")

	n, err := f.planner.Cycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCycle_TitleFallsBackToStemAndRequiresApprovalFalse(t *testing.T) {
	f := newFixture(t)
	f.write(t, "NOTE_x.md", "plain note without header\n")

	n, err := f.planner.Cycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	plans, err := f.store.LoadAll(domain.FolderPlans)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "false", plans[0].Get("requires_approval"))
	assert.Contains(t, plans[0].Body, "# Plan: NOTE_x")
	assert.Equal(t, 6, strings.Count(plans[0].Body, "- [ ] "))

	task, err := f.store.Load(domain.FolderNeedsAction, "NOTE_x.md")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanned, task.Status())
	assert.Contains(t, task.Body, "plain note without header")
}

func TestBody(t *testing.T) {
	got := planner.Body("T", []string{"a", "b"})
	assert.Equal(t, "\n# Plan: T\n\n## Checklist\n- [ ] a\n- [ ] b\n", got)
}
