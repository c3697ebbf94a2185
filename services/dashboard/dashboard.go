// Package dashboard serves the vault's JSON control API and the optional
// background loops that run next to it.
package dashboard

import (
	"time"

	"github.com/92Bilal26/ai-junior-bilal/internal/app"
	"github.com/92Bilal26/ai-junior-bilal/services/dashboard/handler"
	"github.com/92Bilal26/ai-junior-bilal/services/orchestrator"
)

// Minimum autorun periods.
const (
	MinWatchdogInterval     = 5 * time.Second
	MinOrchestratorInterval = 10 * time.Second
	MinExecutorInterval     = 10 * time.Second
)

// Autorun selects the loops the dashboard runs in the background.
type Autorun struct {
	Watchdog             bool
	WatchdogInterval     time.Duration
	Orchestrator         bool
	OrchestratorInterval time.Duration
	Executor             bool
	ExecutorInterval     time.Duration
}

// Loops returns the enabled autorun loops. Intervals below the minimums are
// raised to them.
func Loops(a *app.App, ar Autorun) []orchestrator.Loop {
	var loops []orchestrator.Loop
	if ar.Watchdog {
		loops = append(loops, orchestrator.Loop{
			Name:     orchestrator.LoopWatchdog,
			Interval: orchestrator.MinInterval(ar.WatchdogInterval, MinWatchdogInterval),
			Run:      orchestrator.Watchdog(a.Supervisor),
		})
	}
	if ar.Orchestrator {
		loops = append(loops, orchestrator.Loop{
			Name:     orchestrator.LoopPlanner,
			Interval: orchestrator.MinInterval(ar.OrchestratorInterval, MinOrchestratorInterval),
			Run:      a.Planner.Cycle,
		})
	}
	if ar.Executor {
		loops = append(loops, orchestrator.Loop{
			Name:     orchestrator.LoopExecutor,
			Interval: orchestrator.MinInterval(ar.ExecutorInterval, MinExecutorInterval),
			Run:      a.Executor.Cycle,
		})
	}
	return loops
}

// Deps wires the API to a built app.
func Deps(a *app.App, autoload bool) handler.Deps {
	return handler.Deps{
		Store:     a.Store,
		Planner:   a.Planner,
		Executor:  a.Executor,
		Approvals: a.Approvals,
		Assistant: a.Supervisor,
		LogDir:    a.Layout.Logs,
		ClaudeLog: a.Supervisor.LogPath(),
		Watchers:  1,
		History:   a.History,
		Autoload:  autoload,
	}
}
