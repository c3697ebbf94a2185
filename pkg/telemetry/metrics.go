package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "aiemployee"

var (
	// ─── Lifecycle ───────────────────────────────────────────────────────────────

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lifecycle",
		Name:      "transitions_total",
		Help:      "Applied task transitions, labelled by event and resulting status.",
	}, []string{"event", "status"})

	SinkErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lifecycle",
		Name:      "sink_errors_total",
		Help:      "Transition records that could not be delivered to a sink.",
	}, []string{"sink"})

	// ─── Planner ─────────────────────────────────────────────────────────────────

	PlansWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "planner",
		Name:      "plans_written_total",
		Help:      "Plan files written, labelled by task type.",
	}, []string{"type"})

	// ─── Executor ────────────────────────────────────────────────────────────────

	ExecutorDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "executor",
		Name:      "dispatched_total",
		Help:      "Tasks handed to the assistant, labelled by outcome.",
	}, []string{"outcome"})

	ExecutorCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "executor",
		Name:      "completed_total",
		Help:      "Executing tasks closed, labelled by reason (output or timeout).",
	}, []string{"reason"})

	// ─── Approvals ───────────────────────────────────────────────────────────────

	ApprovalActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "approvals",
		Name:      "actions_total",
		Help:      "Approved actions executed, labelled by action and outcome.",
	}, []string{"action", "outcome"})

	HandlerDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "approvals",
		Name:      "handler_duration_seconds",
		Help:      "Time spent executing one approved action.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"action"})

	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "approvals",
		Name:      "rate_limited_total",
		Help:      "Actions rejected by the rate limiter.",
	}, []string{"action"})

	// ─── Supervisor ──────────────────────────────────────────────────────────────

	AssistantRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "supervisor",
		Name:      "assistant_running",
		Help:      "1 while the supervised assistant process is alive.",
	})

	AssistantStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "supervisor",
		Name:      "starts_total",
		Help:      "Start attempts, labelled by resulting status.",
	}, []string{"status"})

	// ─── Watchers ────────────────────────────────────────────────────────────────

	FileDropsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "watcher",
		Name:      "file_drops_total",
		Help:      "Dropped files turned into tasks.",
	})

	ScheduledTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "tasks_created_total",
		Help:      "Tasks created by scheduled jobs, labelled by job.",
	}, []string{"job"})

	// ─── Loops ───────────────────────────────────────────────────────────────────

	LoopDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "loop",
		Name:      "iteration_duration_seconds",
		Help:      "Duration of one polling loop iteration.",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	}, []string{"loop"})

	LoopErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "loop",
		Name:      "errors_total",
		Help:      "Loop iterations that returned an error.",
	}, []string{"loop"})

	LoopSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "loop",
		Name:      "skipped_total",
		Help:      "Loop iterations skipped because another instance held the lease.",
	}, []string{"loop"})

	// ─── Dashboard ───────────────────────────────────────────────────────────────

	DashboardRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dashboard",
		Name:      "requests_total",
		Help:      "Dashboard API requests, labelled by route and status code.",
	}, []string{"route", "code"})

	// ─── Events ──────────────────────────────────────────────────────────────────

	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "consumed_total",
		Help:      "Transition messages read from Kafka, labelled by handler result.",
	}, []string{"result"})
)
