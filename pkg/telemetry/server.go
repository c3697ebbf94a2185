package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadyCheck probes one dependency. A nil error from Probe is ready.
type ReadyCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Handler serves /metrics, /healthz and /readyz. /readyz runs every check
// and answers with a JSON object of name → "ok" or the error text; any
// failure makes it 503.
func Handler(checks ...ReadyCheck) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		report, ready := Readiness(ctx, checks)
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(report)
	})
	return mux
}

// Readiness runs checks in order.
func Readiness(ctx context.Context, checks []ReadyCheck) (map[string]string, bool) {
	report := make(map[string]string, len(checks))
	ready := true
	for _, c := range checks {
		if err := c.Probe(ctx); err != nil {
			report[c.Name] = err.Error()
			ready = false
			continue
		}
		report[c.Name] = "ok"
	}
	return report, ready
}

// StartMetricsServer serves Handler on addr until ctx is cancelled. An empty
// addr disables it.
func StartMetricsServer(ctx context.Context, addr string, logger *slog.Logger, checks ...ReadyCheck) {
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(checks...),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Second,
	}

	go func() {
		logger.Debug("metrics listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped: " + err.Error())
		}
	}()
	context.AfterFunc(ctx, func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	})
}
