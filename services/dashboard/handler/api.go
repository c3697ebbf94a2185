package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/internal/eventlog"
	"github.com/92Bilal26/ai-junior-bilal/internal/frontmatter"
	"github.com/92Bilal26/ai-junior-bilal/internal/supervisor"
	"github.com/92Bilal26/ai-junior-bilal/internal/vault"
	"github.com/92Bilal26/ai-junior-bilal/internal/version"
	"github.com/92Bilal26/ai-junior-bilal/pkg/telemetry"
)

const (
	logTailLines    = 60
	claudeTailLines = 200
)

// Assistant controls the supervised assistant process.
type Assistant interface {
	Start(ctx context.Context) supervisor.Result
	Stop() supervisor.Result
	EnsureRunning(ctx context.Context) supervisor.Result
	Status() supervisor.Status
	Send(ctx context.Context, prompt string) error
}

// Cycler is one pass of a polling component.
type Cycler interface {
	Cycle(ctx context.Context) (int, error)
}

// History lists recorded transitions.
type History interface {
	ListRecent(ctx context.Context, limit int) ([]domain.TransitionRecord, error)
}

// Deps are the components behind the API. History may be nil.
type Deps struct {
	Store     *vault.Store
	Planner   Cycler
	Executor  Cycler
	Approvals Cycler
	Assistant Assistant
	History   History

	LogDir    string
	ClaudeLog string
	Watchers  int
	Autoload  bool
}

// API serves the dashboard's JSON endpoints.
type API struct {
	deps   Deps
	logger *slog.Logger
}

// NewAPI returns an API over deps. logger should write dashboard.log.
func NewAPI(deps Deps, logger *slog.Logger) *API {
	return &API{deps: deps, logger: logger}
}

// Summary is the GET /api/summary body.
type Summary struct {
	TasksOpen     int    `json:"tasks_open"`
	ApprovalsOpen int    `json:"approvals_open"`
	Watchers      int    `json:"watchers"`
	LastSync      string `json:"last_sync"`
	ClaudeRunning bool   `json:"claude_running"`
}

// MoveResponse answers approve, reject and complete-task.
type MoveResponse struct {
	OK   bool   `json:"ok"`
	Path string `json:"path"`
}

type pathRequest struct {
	Path string `json:"path"`
}

type newTaskRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Type  string `json:"type"`
}

type newClaudeTaskRequest struct {
	Language    string `json:"language"`
	Name        string `json:"name"`
	Instruction string `json:"instruction"`
}

// ── reads ─────────────────────────────────────────────────────────────────────

// Summary handles GET /api/summary.
func (h *API) Summary(w http.ResponseWriter, _ *http.Request) {
	tasks, err := h.deps.Store.List(domain.FolderNeedsAction)
	if err != nil {
		h.internal(w, "list tasks", err)
		return
	}
	approvals, err := h.deps.Store.List(domain.FolderPendingApproval)
	if err != nil {
		h.internal(w, "list approvals", err)
		return
	}
	writeJSON(w, http.StatusOK, Summary{
		TasksOpen:     len(tasks),
		ApprovalsOpen: len(approvals),
		Watchers:      h.deps.Watchers,
		LastSync:      frontmatter.Timestamp(h.deps.Store.Now()),
		ClaudeRunning: h.deps.Assistant.Status().Running,
	})
}

// Tasks handles GET /api/tasks.
func (h *API) Tasks(w http.ResponseWriter, _ *http.Request) {
	h.items(w, domain.FolderNeedsAction)
}

// Approvals handles GET /api/approvals.
func (h *API) Approvals(w http.ResponseWriter, _ *http.Request) {
	h.items(w, domain.FolderPendingApproval)
}

func (h *API) items(w http.ResponseWriter, f domain.Folder) {
	items, err := h.deps.Store.Summarise(f)
	if err != nil {
		// Unreadable files are left out of items.
		h.logger.Warn(fmt.Sprintf("Listing %s: %v", f, err))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Logs handles GET /api/logs: the most recent orchestrator and file drop
// watcher lines.
func (h *API) Logs(w http.ResponseWriter, _ *http.Request) {
	var lines []string
	for _, component := range []string{eventlog.Orchestrator, eventlog.FileDropWatcher} {
		tail, err := eventlog.Tail(eventlog.Path(h.deps.LogDir, component), logTailLines)
		if err != nil {
			h.internal(w, "read "+component+" log", err)
			return
		}
		lines = append(lines, tail...)
	}
	if len(lines) > logTailLines {
		lines = lines[len(lines)-logTailLines:]
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": nonNil(lines)})
}

// VaultPath handles GET /api/vault-path.
func (h *API) VaultPath(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"vault": h.deps.Store.Root()})
}

// Health handles GET /api/health.
func (h *API) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": version.Current()})
}

// ClaudeStatus handles GET /api/claude/status.
func (h *API) ClaudeStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Assistant.Status())
}

// ClaudeLogs handles GET /api/claude/logs.
func (h *API) ClaudeLogs(w http.ResponseWriter, _ *http.Request) {
	lines, err := eventlog.Tail(h.deps.ClaudeLog, claudeTailLines)
	if err != nil {
		h.internal(w, "read assistant log", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": nonNil(lines)})
}

// History handles GET /api/history?limit=N.
func (h *API) History(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		writeError(w, http.StatusNotFound, "transition history not configured")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	recs, err := h.deps.History.ListRecent(r.Context(), limit)
	if err != nil {
		h.internal(w, "list history", err)
		return
	}
	if recs == nil {
		recs = []domain.TransitionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": recs})
}

// ── human decisions ───────────────────────────────────────────────────────────

// Approve handles POST /api/approve.
func (h *API) Approve(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, domain.FolderApproved)
}

// Reject handles POST /api/reject.
func (h *API) Reject(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, domain.FolderRejected)
}

// CompleteTask handles POST /api/complete-task.
func (h *API) CompleteTask(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, domain.FolderDone)
}

func (h *API) move(w http.ResponseWriter, r *http.Request, to domain.Folder) {
	_, span := telemetry.Tracer("dashboard").Start(r.Context(), "dashboard.move")
	defer span.End()
	span.SetAttributes(attribute.String("vault.folder", string(to)))

	var req pathRequest
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, MoveResponse{OK: false, Path: "invalid request body"})
		return
	}
	rel, err := h.deps.Store.Relocate(req.Path, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "relocate failed")
		var outside *domain.PathOutsideVaultError
		if errors.As(err, &outside) {
			writeJSON(w, http.StatusBadRequest, MoveResponse{OK: false, Path: "invalid path"})
			return
		}
		var exists *domain.TaskExistsError
		if errors.As(err, &exists) {
			writeJSON(w, http.StatusConflict, MoveResponse{OK: false, Path: "already exists"})
			return
		}
		h.internal(w, "move "+req.Path, err)
		return
	}
	h.logger.Info(fmt.Sprintf("Moved %s -> %s", req.Path, to))
	writeJSON(w, http.StatusOK, MoveResponse{OK: true, Path: rel})
}

// ── task creation ─────────────────────────────────────────────────────────────

// NewTask handles POST /api/new-task.
func (h *API) NewTask(w http.ResponseWriter, r *http.Request) {
	var req newTaskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	task, err := h.deps.Store.CreateTask(vault.NewTask{Title: req.Title, Body: req.Body, Type: req.Type})
	if err != nil {
		h.internal(w, "create task", err)
		return
	}
	rel := h.deps.Store.Rel(h.deps.Store.Path(task))
	h.logger.Info("Created task " + rel)
	planned := h.plan(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "path": rel, "planned": planned})
}

// NewClaudeTask handles POST /api/new-claude-task: it queues an app
// scaffolding task and points the assistant at it.
func (h *API) NewClaudeTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.Tracer("dashboard").Start(r.Context(), "dashboard.new_claude_task")
	defer span.End()

	var req newClaudeTaskRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	language := strings.TrimSpace(req.Language)
	name := strings.TrimSpace(req.Name)
	if language == "" || name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "Language and name required."})
		return
	}
	span.SetAttributes(attribute.String("app.language", language), attribute.String("app.name", name))

	task, err := h.deps.Store.CreateTask(vault.ClaudeAppTask(language, name, req.Instruction))
	if err != nil {
		span.RecordError(err)
		h.internal(w, "create assistant task", err)
		return
	}
	rel := h.deps.Store.Rel(h.deps.Store.Path(task))
	if err := h.deps.Store.WriteQueueSignal(rel, req.Instruction); err != nil {
		span.RecordError(err)
		h.internal(w, "write queue signal", err)
		return
	}
	h.logger.Info("Queue signal updated for " + rel)
	planned := h.plan(ctx)

	notified := false
	if h.deps.Autoload {
		notified = h.notify(ctx)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "path": rel, "planned": planned, "notified": notified})
}

func (h *API) notify(ctx context.Context) bool {
	if res := h.deps.Assistant.EnsureRunning(ctx); !res.OK {
		h.logger.Warn("Failed to start Claude: " + res.Error)
		return false
	}
	signal := h.deps.Store.Rel(h.deps.Store.QueueSignalPath())
	prompt := "New task queued. Please read " + signal + " and plan only; wait for approval before actions."
	if err := h.deps.Assistant.Send(ctx, prompt); err != nil {
		h.logger.Warn("Failed to send Claude prompt: " + err.Error())
		return false
	}
	return true
}

func (h *API) plan(ctx context.Context) int {
	n, err := h.deps.Planner.Cycle(ctx)
	if err != nil {
		h.logger.Warn("Planner run failed: " + err.Error())
	}
	return n
}

// ── manual runs ───────────────────────────────────────────────────────────────

// RunOrchestrator handles POST /api/run-orchestrator.
func (h *API) RunOrchestrator(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "planned", h.deps.Planner)
}

// RunExecutor handles POST /api/run-executor.
func (h *API) RunExecutor(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "processed", h.deps.Executor)
}

// RunApprovals handles POST /api/run-approvals.
func (h *API) RunApprovals(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "executed", h.deps.Approvals)
}

func (h *API) run(w http.ResponseWriter, r *http.Request, field string, c Cycler) {
	n, err := c.Cycle(r.Context())
	if err != nil {
		h.internal(w, field, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, field: n})
}

// ── assistant control ─────────────────────────────────────────────────────────

// ClaudeStart handles POST /api/claude/start.
func (h *API) ClaudeStart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Assistant.Start(r.Context()))
}

// ClaudeStop handles POST /api/claude/stop.
func (h *API) ClaudeStop(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Assistant.Stop())
}

// ClaudeEnsure handles POST /api/claude/ensure.
func (h *API) ClaudeEnsure(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Assistant.EnsureRunning(r.Context()))
}

// NotFound answers unknown routes.
func (h *API) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (h *API) internal(w http.ResponseWriter, what string, err error) {
	h.logger.Error(fmt.Sprintf("ERROR %s: %v", what, err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// decode reads a JSON body. An empty body decodes as the zero value.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func nonNil(lines []string) []string {
	if lines == nil {
		return []string{}
	}
	return lines
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
