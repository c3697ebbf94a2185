package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/92Bilal26/ai-junior-bilal/internal/frontmatter"
	"github.com/92Bilal26/ai-junior-bilal/pkg/retry"
)

// Event is something that happened to a task. Like Action, the set is
// closed and Transition handles every member.
type Event interface {
	Name() string
}

// Plan records that a checklist plan was written for the task.
type Plan struct {
	At       time.Time
	PlanFile string
}

// Dispatch records that the task is about to be handed to the assistant.
type Dispatch struct {
	At time.Time
}

// DispatchFailed records that handing the task over did not succeed.
type DispatchFailed struct {
	At     time.Time
	Reason string
	Policy RetryPolicy
}

// Complete closes an executing task, with Output describing the result.
type Complete struct {
	At     time.Time
	Output string
}

// ActionSucceeded closes an approved task whose action ran.
type ActionSucceeded struct {
	At time.Time
}

// ActionFailed closes an approved task whose action failed or is unknown.
type ActionFailed struct {
	At     time.Time
	Reason string
}

func (Plan) Name() string            { return "plan" }
func (Dispatch) Name() string        { return "dispatch" }
func (DispatchFailed) Name() string  { return "dispatch_failed" }
func (Complete) Name() string        { return "complete" }
func (ActionSucceeded) Name() string { return "action_succeeded" }
func (ActionFailed) Name() string    { return "action_failed" }

// RetryPolicy bounds re-dispatch of a task the assistant could not accept.
type RetryPolicy struct {
	// MaxAttempts is the number of failed dispatches after which the task
	// fails for good. Zero or less retries forever.
	MaxAttempts int
	// BaseDelay feeds the quadratic backoff of retry.Backoff.
	BaseDelay time.Duration
}

// Effect is what the store must do with the transitioned task.
type Effect struct {
	// MoveTo is the destination folder. Empty rewrites the task in place.
	MoveTo Folder
}

// Transition computes the next state of t for ev. It never mutates t; the
// returned task carries a fresh field map. Illegal combinations return an
// *InvalidTransitionError together with t unchanged.
func Transition(t Task, ev Event) (Task, Effect, error) {
	next := t.Clone()
	invalid := &InvalidTransitionError{Task: t.Name, From: t.Status(), Event: ev.Name()}

	switch e := ev.(type) {
	case Plan:
		if !NeedsPlan(t) {
			return t, Effect{}, invalid
		}
		next.Fields[FieldStatus] = string(StatusPlanned)
		next.Fields[FieldPlannedAt] = frontmatter.Timestamp(e.At)
		next.Fields[FieldPlanFile] = e.PlanFile
		return next, Effect{}, nil

	case Dispatch:
		if !t.Kind().Executable() || t.Status() != StatusPlanned {
			return t, Effect{}, invalid
		}
		next.Fields[FieldStatus] = string(StatusExecuting)
		next.Fields[FieldExecutingAt] = frontmatter.Timestamp(e.At)
		delete(next.Fields, FieldRetryAfter)
		return next, Effect{}, nil

	case DispatchFailed:
		if t.Status() != StatusExecuting {
			return t, Effect{}, invalid
		}
		attempts, _ := strconv.Atoi(t.Get(FieldDispatchAttempts))
		attempts++
		delete(next.Fields, FieldExecutingAt)
		next.Fields[FieldDispatchAttempts] = strconv.Itoa(attempts)
		next.Fields[FieldLastError] = oneLine(e.Reason)

		if e.Policy.MaxAttempts > 0 && attempts >= e.Policy.MaxAttempts {
			next.Fields[FieldStatus] = string(StatusFailed)
			next.Fields[FieldFailedAt] = frontmatter.Timestamp(e.At)
			return next, Effect{MoveTo: FolderRejected}, nil
		}
		next.Fields[FieldStatus] = string(StatusPlanned)
		next.Fields[FieldRetryAfter] = frontmatter.Timestamp(e.At.Add(retry.Backoff(e.Policy.BaseDelay, attempts)))
		return next, Effect{}, nil

	case Complete:
		if t.Status() != StatusExecuting {
			return t, Effect{}, invalid
		}
		next.Fields[FieldStatus] = string(StatusDone)
		next.Fields[FieldCompletedAt] = frontmatter.Timestamp(e.At)
		if e.Output != "" {
			next.Fields[FieldOutput] = oneLine(e.Output)
		}
		return next, Effect{MoveTo: FolderDone}, nil

	case ActionSucceeded:
		if t.Folder != FolderApproved {
			return t, Effect{}, invalid
		}
		next.Fields[FieldStatus] = string(StatusExecuted)
		next.Fields[FieldExecutedAt] = frontmatter.Timestamp(e.At)
		return next, Effect{MoveTo: FolderDone}, nil

	case ActionFailed:
		if t.Folder != FolderApproved {
			return t, Effect{}, invalid
		}
		next.Fields[FieldStatus] = string(StatusFailed)
		next.Fields[FieldFailedAt] = frontmatter.Timestamp(e.At)
		if e.Reason != "" {
			next.Fields[FieldFailureReason] = oneLine(e.Reason)
		}
		return next, Effect{MoveTo: FolderRejected}, nil
	}

	return t, Effect{}, invalid
}

// NeedsPlan reports whether the planner should write a plan for t. Tasks
// already planned or done are skipped, as is any task that already points
// at a plan file, so nothing is ever planned twice.
func NeedsPlan(t Task) bool {
	if s := t.Status(); s == StatusPlanned || s == StatusDone {
		return false
	}
	return t.Get(FieldPlanFile) == ""
}

// IsStuck reports whether an executing task has outlived timeout. A missing
// or unreadable executing_at counts as stuck.
func IsStuck(t Task, now time.Time, timeout time.Duration) bool {
	if t.Status() != StatusExecuting {
		return false
	}
	raw := t.Get(FieldExecutingAt)
	if raw == "" {
		return true
	}
	started, err := frontmatter.ParseTimestamp(raw)
	if err != nil {
		return true
	}
	return now.Sub(started) > timeout
}

// RetryPending reports whether the task is still backing off after a
// failed dispatch.
func RetryPending(t Task, now time.Time) bool {
	raw := t.Get(FieldRetryAfter)
	if raw == "" {
		return false
	}
	after, err := frontmatter.ParseTimestamp(raw)
	if err != nil {
		return false
	}
	return now.Before(after)
}

// Frontmatter values are single-line.
func oneLine(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(s))
}
