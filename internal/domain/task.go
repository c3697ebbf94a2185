package domain

import (
	"strings"
)

// Status represents the lifecycle stage recorded in a task's frontmatter.
type Status string

const (
	StatusNew             Status = "new"
	StatusPendingApproval Status = "pending_approval"
	StatusPlanned         Status = "planned"
	StatusExecuting       Status = "executing"
	StatusDone            Status = "done"
	StatusFailed          Status = "failed"
	StatusExecuted        Status = "executed"
)

// ParseStatus normalises a raw frontmatter value. A missing status is new.
func ParseStatus(raw string) Status {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return StatusNew
	}
	return Status(s)
}

// IsTerminal returns true if no further state transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusExecuted
}

// Folder is a stage directory under the vault root. Membership in a folder
// is the task's stage.
type Folder string

const (
	FolderNeedsAction     Folder = "Needs_Action"
	FolderPlans           Folder = "Plans"
	FolderPendingApproval Folder = "Pending_Approval"
	FolderApproved        Folder = "Approved"
	FolderRejected        Folder = "Rejected"
	FolderDone            Folder = "Done"
	FolderInbox           Folder = "Inbox"
	FolderDrop            Folder = "Inbox/Drop"
	FolderLogs            Folder = "Logs"
	FolderSignals         Folder = "Signals"
)

// Folders lists every stage folder of the vault.
var Folders = []Folder{
	FolderNeedsAction, FolderPlans, FolderPendingApproval, FolderApproved, FolderRejected,
	FolderDone, FolderInbox, FolderDrop, FolderLogs, FolderSignals,
}

// Frontmatter keys written by the pipeline.
const (
	FieldType             = "type"
	FieldStatus           = "status"
	FieldTitle            = "title"
	FieldAction           = "action"
	FieldDate             = "date"
	FieldTo               = "to"
	FieldSubject          = "subject"
	FieldOutput           = "output"
	FieldRequiresApproval = "requires_approval"
	FieldPlanFile         = "plan_file"
	FieldCreatedAt        = "created_at"
	FieldPlannedAt        = "planned_at"
	FieldExecutingAt      = "executing_at"
	FieldCompletedAt      = "completed_at"
	FieldExecutedAt       = "executed_at"
	FieldFailedAt         = "failed_at"
	FieldFailureReason    = "failure_reason"
	FieldDispatchAttempts = "dispatch_attempts"
	FieldRetryAfter       = "retry_after"
	FieldLastError        = "last_error"
)

// Task is a markdown document living in one stage folder. Name is the
// filename and doubles as the task's identity across moves.
type Task struct {
	Name   string
	Folder Folder
	Fields map[string]string
	Body   string
}

// Get returns a frontmatter value or "".
func (t Task) Get(key string) string {
	return t.Fields[key]
}

// Kind returns the task's type tag, lowercased.
func (t Task) Kind() Kind {
	return Kind(strings.ToLower(strings.TrimSpace(t.Fields[FieldType])))
}

// Status returns the task's lifecycle status.
func (t Task) Status() Status {
	return ParseStatus(t.Fields[FieldStatus])
}

// Stem is the filename without its extension.
func (t Task) Stem() string {
	if i := strings.LastIndex(t.Name, "."); i > 0 {
		return t.Name[:i]
	}
	return t.Name
}

// Title is the explicit title field, else the first heading of the body,
// else the filename stem.
func (t Task) Title() string {
	if title := strings.TrimSpace(t.Fields[FieldTitle]); title != "" {
		return title
	}
	for _, line := range strings.Split(t.Body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	return t.Stem()
}

// RequiresApproval is true when the task says so explicitly or its kind is
// approval-gated.
func (t Task) RequiresApproval() bool {
	switch strings.ToLower(strings.TrimSpace(t.Fields[FieldRequiresApproval])) {
	case "true", "yes", "1":
		return true
	}
	return t.Kind().RequiresApproval()
}

// Instruction returns the text under the first "## Instruction" heading up
// to the next level-two heading. Without such a heading the whole body is
// the instruction.
func (t Task) Instruction() string {
	lines := strings.Split(t.Body, "\n")
	for i, line := range lines {
		if !strings.HasPrefix(line, "## Instruction") {
			continue
		}
		var out []string
		for _, next := range lines[i+1:] {
			if strings.HasPrefix(next, "## ") {
				break
			}
			out = append(out, next)
		}
		return strings.TrimSpace(strings.Join(out, "\n"))
	}
	return strings.TrimSpace(t.Body)
}

// Clone returns a copy whose field map can be modified independently.
func (t Task) Clone() Task {
	fields := make(map[string]string, len(t.Fields))
	for k, v := range t.Fields {
		fields[k] = v
	}
	t.Fields = fields
	return t
}
