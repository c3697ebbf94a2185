package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/internal/eventlog"
	"github.com/92Bilal26/ai-junior-bilal/internal/supervisor"
	"github.com/92Bilal26/ai-junior-bilal/internal/vault"
	"github.com/92Bilal26/ai-junior-bilal/services/dashboard/handler"
)

// ── mocks ─────────────────────────────────────────────────────────────────────

type fakeAssistant struct {
	running  bool
	prompts  []string
	ensured  int
	sendErr  error
	ensureOK bool
}

var _ handler.Assistant = (*fakeAssistant)(nil)

func (f *fakeAssistant) Start(context.Context) supervisor.Result {
	f.running = true
	return supervisor.Result{OK: true, Status: supervisor.StatusStarted, PID: 42}
}

func (f *fakeAssistant) Stop() supervisor.Result {
	f.running = false
	return supervisor.Result{OK: true, Status: supervisor.StatusStopped, PID: 42}
}

func (f *fakeAssistant) EnsureRunning(context.Context) supervisor.Result {
	f.ensured++
	if !f.ensureOK {
		return supervisor.Result{OK: false, Status: supervisor.StatusNotFound, Error: "Claude CLI not found"}
	}
	f.running = true
	return supervisor.Result{OK: true, Status: supervisor.StatusAlreadyRunning, PID: 42}
}

func (f *fakeAssistant) Status() supervisor.Status {
	return supervisor.Status{OK: true, Running: f.running}
}

func (f *fakeAssistant) Send(_ context.Context, prompt string) error {
	f.prompts = append(f.prompts, prompt)
	return f.sendErr
}

type fakeCycler struct {
	n     int
	err   error
	calls int
}

var _ handler.Cycler = (*fakeCycler)(nil)

func (f *fakeCycler) Cycle(context.Context) (int, error) {
	f.calls++
	return f.n, f.err
}

type fakeHistory struct {
	recs  []domain.TransitionRecord
	limit int
}

var _ handler.History = (*fakeHistory)(nil)

func (f *fakeHistory) ListRecent(_ context.Context, limit int) ([]domain.TransitionRecord, error) {
	f.limit = limit
	return f.recs, nil
}

// ── fixture ───────────────────────────────────────────────────────────────────

var now = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store     *vault.Store
	assistant *fakeAssistant
	planner   *fakeCycler
	executor  *fakeCycler
	approvals *fakeCycler
	deps      handler.Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := vault.Open(filepath.Join(t.TempDir(), "vault"), vault.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	f := &fixture{
		store:     store,
		assistant: &fakeAssistant{ensureOK: true},
		planner:   &fakeCycler{n: 1},
		executor:  &fakeCycler{n: 2},
		approvals: &fakeCycler{n: 3},
	}
	f.deps = handler.Deps{
		Store:     store,
		Planner:   f.planner,
		Executor:  f.executor,
		Approvals: f.approvals,
		Assistant: f.assistant,
		LogDir:    store.Dir(domain.FolderLogs),
		ClaudeLog: filepath.Join(t.TempDir(), "claude_cli.log"),
		Watchers:  1,
	}
	return f
}

func (f *fixture) server(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(handler.NewRouter(handler.NewAPI(f.deps, logger), nil, logger))
	t.Cleanup(srv.Close)
	return srv
}

func (f *fixture) write(t *testing.T, folder domain.Folder, name string, fields map[string]string) {
	t.Helper()
	_, err := f.store.Create(folder, name, fields, "x")
	require.NoError(t, err)
}

func get(t *testing.T, srv *httptest.Server, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	return decodeBody(t, resp)
}

func post(t *testing.T, srv *httptest.Server, path, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) (int, map[string]any) {
	t.Helper()
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// ── tests ─────────────────────────────────────────────────────────────────────

func TestSummary_CountsOpenWork(t *testing.T) {
	f := newFixture(t)
	f.write(t, domain.FolderNeedsAction, "TASK_a.md", map[string]string{"type": "task", "status": "new"})
	f.write(t, domain.FolderNeedsAction, "TASK_b.md", map[string]string{"type": "task", "status": "planned"})
	f.write(t, domain.FolderPendingApproval, "APPROVAL_c.md", map[string]string{"type": "email", "status": "pending_approval"})
	f.assistant.running = true

	code, body := get(t, f.server(t), "/api/summary")

	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body["tasks_open"])
	assert.EqualValues(t, 1, body["approvals_open"])
	assert.EqualValues(t, 1, body["watchers"])
	assert.Equal(t, "2024-05-01T10:00:00Z", body["last_sync"])
	assert.Equal(t, true, body["claude_running"])
}

func TestTasksAndApprovals_ListItems(t *testing.T) {
	f := newFixture(t)
	f.write(t, domain.FolderNeedsAction, "TASK_a.md", map[string]string{"type": "task", "status": "new", "title": "Write report"})
	srv := f.server(t)

	code, body := get(t, srv, "/api/tasks")
	assert.Equal(t, http.StatusOK, code)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "Write report", item["title"])
	assert.Equal(t, "new", item["status"])

	code, body = get(t, srv, "/api/approvals")
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["items"])
}

func TestApprove_MovesFileAndRejectsBadPaths(t *testing.T) {
	f := newFixture(t)
	f.write(t, domain.FolderPendingApproval, "APPROVAL_x.md", map[string]string{"type": "email", "status": "pending_approval"})
	srv := f.server(t)

	code, body := post(t, srv, "/api/approve", `{"path":"Pending_Approval/APPROVAL_x.md"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "Approved/APPROVAL_x.md", body["path"])
	_, err := os.Stat(filepath.Join(f.store.Dir(domain.FolderApproved), "APPROVAL_x.md"))
	assert.NoError(t, err)

	for _, bad := range []string{`{"path":"../outside.md"}`, `{"path":""}`, `{"path":"Needs_Action/missing.md"}`} {
		code, body = post(t, srv, "/api/reject", bad)
		assert.Equal(t, http.StatusBadRequest, code, bad)
		assert.Equal(t, false, body["ok"], bad)
		assert.Equal(t, "invalid path", body["path"], bad)
	}

	code, body = post(t, srv, "/api/complete-task", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["ok"])
}

func TestApprove_RefusesToReplaceExistingTask(t *testing.T) {
	f := newFixture(t)
	fields := map[string]string{"type": "email", "status": "pending_approval"}
	f.write(t, domain.FolderPendingApproval, "APPROVAL_x.md", fields)
	f.write(t, domain.FolderApproved, "APPROVAL_x.md", map[string]string{"type": "email", "status": "approved"})

	code, body := post(t, f.server(t), "/api/approve", `{"path":"Pending_Approval/APPROVAL_x.md"}`)

	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "already exists", body["path"])
	for _, folder := range []domain.Folder{domain.FolderPendingApproval, domain.FolderApproved} {
		_, err := os.Stat(filepath.Join(f.store.Dir(folder), "APPROVAL_x.md"))
		assert.NoError(t, err, folder)
	}
}

func TestNewTask_CreatesAndPlans(t *testing.T) {
	f := newFixture(t)

	code, body := post(t, f.server(t), "/api/new-task", `{"title":"Weekly Report","body":"Summarise the week","type":"task"}`)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])
	assert.EqualValues(t, 1, body["planned"])
	assert.Equal(t, 1, f.planner.calls)

	names, err := f.store.List(domain.FolderNeedsAction)
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Equal(t, "Needs_Action/"+names[0], body["path"])
	assert.True(t, strings.HasPrefix(names[0], "TASK_weekly_report_"))
}

func TestNewClaudeTask_RequiresLanguageAndName(t *testing.T) {
	f := newFixture(t)

	code, body := post(t, f.server(t), "/api/new-claude-task", `{"language":"html"}`)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "Language and name required.", body["error"])
	assert.Zero(t, f.planner.calls)
}

func TestNewClaudeTask_QueuesSignalAndNotifiesWhenAutoloading(t *testing.T) {
	f := newFixture(t)
	f.deps.Autoload = true

	code, body := post(t, f.server(t), "/api/new-claude-task", `{"language":"html","name":"calculator","instruction":"Make it pretty"}`)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, true, body["notified"])

	signal, err := os.ReadFile(f.store.QueueSignalPath())
	require.NoError(t, err)
	assert.Contains(t, string(signal), "Last queued task: "+body["path"].(string))
	assert.Contains(t, string(signal), "## Instruction\nMake it pretty\n")
	assert.NotContains(t, string(signal), "Read the task file and create a plan")

	assert.Equal(t, 1, f.assistant.ensured)
	require.Len(t, f.assistant.prompts, 1)
	assert.Equal(t, "New task queued. Please read Signals/claude_queue.md and plan only; wait for approval before actions.", f.assistant.prompts[0])
}

func TestNewClaudeTask_NotifyFailureStillQueues(t *testing.T) {
	f := newFixture(t)
	f.deps.Autoload = true
	f.assistant.sendErr = errors.New("Claude is not running in this session")

	code, body := post(t, f.server(t), "/api/new-claude-task", `{"language":"python","name":"api"}`)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, false, body["notified"])
	assert.Len(t, f.assistant.prompts, 1)

	names, err := f.store.List(domain.FolderNeedsAction)
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestRunEndpoints_ReportCounts(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t)

	_, body := post(t, srv, "/api/run-orchestrator", "")
	assert.EqualValues(t, 1, body["planned"])
	_, body = post(t, srv, "/api/run-executor", "")
	assert.EqualValues(t, 2, body["processed"])
	_, body = post(t, srv, "/api/run-approvals", "")
	assert.EqualValues(t, 3, body["executed"])

	f.executor.err = errors.New("boom")
	code, body := post(t, srv, "/api/run-executor", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal error", body["error"])
}

func TestLogs_CombinesComponentTails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.deps.LogDir, 0o755))
	var orch []string
	for i := 0; i < 70; i++ {
		orch = append(orch, "[2024-05-01T10:00:00Z] planned")
	}
	require.NoError(t, os.WriteFile(eventlog.Path(f.deps.LogDir, eventlog.Orchestrator), []byte(strings.Join(orch, "\n")+"\n"), 0o644))
	require.NoError(t, os.WriteFile(eventlog.Path(f.deps.LogDir, eventlog.FileDropWatcher), []byte("[2024-05-01T10:00:01Z] dropped\n"), 0o644))

	code, body := get(t, f.server(t), "/api/logs")

	assert.Equal(t, http.StatusOK, code)
	lines := body["lines"].([]any)
	require.Len(t, lines, 60)
	assert.Equal(t, "[2024-05-01T10:00:01Z] dropped", lines[59])
}

func TestClaudeEndpoints(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.deps.ClaudeLog, []byte("hello\nworld\n"), 0o644))
	srv := f.server(t)

	_, body := post(t, srv, "/api/claude/start", "")
	assert.Equal(t, supervisor.StatusStarted, body["status"])
	_, body = get(t, srv, "/api/claude/status")
	assert.Equal(t, true, body["running"])
	_, body = post(t, srv, "/api/claude/ensure", "")
	assert.Equal(t, true, body["ok"])
	_, body = post(t, srv, "/api/claude/stop", "")
	assert.Equal(t, supervisor.StatusStopped, body["status"])

	_, body = get(t, srv, "/api/claude/logs")
	assert.Equal(t, []any{"hello", "world"}, body["lines"])
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	code, body := get(t, f.server(t), "/api/history")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "transition history not configured", body["error"])

	hist := &fakeHistory{recs: []domain.TransitionRecord{{ID: "1", Task: "TASK_a.md", Event: "plan", From: domain.StatusNew, To: domain.StatusPlanned}}}
	f.deps.History = hist
	srv := f.server(t)

	code, body = get(t, srv, "/api/history?limit=5")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 5, hist.limit)
	require.Len(t, body["items"], 1)

	code, _ = get(t, srv, "/api/history?limit=abc")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUnknownRoutesAreJSON404(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t)

	for _, path := range []string{"/nope", "/api/nope", "/api/claude/nope"} {
		code, body := get(t, srv, path)
		assert.Equal(t, http.StatusNotFound, code, path)
		assert.Equal(t, "not found", body["error"], path)
	}
	code, body := get(t, srv, "/api/approve")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not found", body["error"])

	code, body = post(t, srv, "/api/create-app", `{"language":"html","name":"calc"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not found", body["error"])
}

func TestVaultPathAndHealth(t *testing.T) {
	f := newFixture(t)
	srv := f.server(t)

	_, body := get(t, srv, "/api/vault-path")
	assert.Equal(t, f.store.Root(), body["vault"])
	_, body = get(t, srv, "/api/health")
	assert.Equal(t, "ok", body["status"])
}

func TestOversizedBodyIsRejected(t *testing.T) {
	f := newFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := handler.NewRouter(handler.NewAPI(f.deps, logger), nil, logger)
	big := `{"title":"` + strings.Repeat("a", 2<<20) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/new-task", strings.NewReader(big))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, f.planner.calls)
}
