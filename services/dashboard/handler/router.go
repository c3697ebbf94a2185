package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/92Bilal26/ai-junior-bilal/services/dashboard/middleware"
)

const maxBody = 1 << 20

// NewRouter mounts the API. probes, when set, serves /healthz, /readyz and
// /metrics.
func NewRouter(api *API, probes http.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.MaxBodySize(maxBody))

	r.NotFound(api.NotFound)
	r.MethodNotAllowed(api.NotFound)

	if probes != nil {
		r.Handle("/healthz", probes)
		r.Handle("/readyz", probes)
		r.Handle("/metrics", probes)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/summary", api.Summary)
		r.Get("/tasks", api.Tasks)
		r.Get("/approvals", api.Approvals)
		r.Get("/logs", api.Logs)
		r.Get("/vault-path", api.VaultPath)
		r.Get("/health", api.Health)
		r.Get("/history", api.History)

		r.Post("/approve", api.Approve)
		r.Post("/reject", api.Reject)
		r.Post("/complete-task", api.CompleteTask)
		r.Post("/new-task", api.NewTask)
		r.Post("/new-claude-task", api.NewClaudeTask)
		r.Post("/run-orchestrator", api.RunOrchestrator)
		r.Post("/run-executor", api.RunExecutor)
		r.Post("/run-approvals", api.RunApprovals)

		r.Route("/claude", func(r chi.Router) {
			r.Get("/status", api.ClaudeStatus)
			r.Get("/logs", api.ClaudeLogs)
			r.Post("/start", api.ClaudeStart)
			r.Post("/stop", api.ClaudeStop)
			r.Post("/ensure", api.ClaudeEnsure)
		})
	})
	return r
}
