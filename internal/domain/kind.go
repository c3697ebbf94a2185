package domain

// Kind is the category tag stored in a task's "type" field.
type Kind string

const (
	KindTask              Kind = "task"
	KindEmail             Kind = "email"
	KindClaudeApp         Kind = "claude_app"
	KindClaudeTask        Kind = "claude_task"
	KindClaudeCode        Kind = "claude_code"
	KindAttendanceMarking Kind = "attendance_marking"
	KindFileDrop          Kind = "file_drop"
	KindGit               Kind = "git"
	KindGitPush           Kind = "git_push"
	KindPayment           Kind = "payment"
	KindSocial            Kind = "social"
	KindDocUpdate         Kind = "doc_update"
	KindWhatsApp          Kind = "whatsapp"
	KindPlan              Kind = "plan"
)

// Executable reports whether tasks of this kind are handed to the external
// assistant process.
func (k Kind) Executable() bool {
	switch k {
	case KindClaudeApp, KindClaudeTask, KindClaudeCode:
		return true
	}
	return false
}

// RequiresApproval reports whether the kind is gated behind a human approval.
func (k Kind) RequiresApproval() bool {
	switch k {
	case KindEmail, KindWhatsApp, KindGit, KindGitPush, KindPayment, KindSocial:
		return true
	}
	return false
}

var baseSteps = []string{
	"Understand request and constraints",
	"Gather required context/files",
	"Draft output or changes",
	"Request approval if required",
	"Execute approved action",
	"Log outcome and mark task done",
}

var kindSteps = map[Kind][]string{
	KindEmail:     {"Draft reply in Pending_Approval", "Send after approval"},
	KindWhatsApp:  {"Draft response in Pending_Approval", "Send after approval"},
	KindGit:       {"Create commit locally", "Push after approval"},
	KindGitPush:   {"Create commit locally", "Push after approval"},
	KindFileDrop:  {"Review dropped file", "Summarize requested changes"},
	KindDocUpdate: {"Update Word/Excel file", "Save with versioned name"},
}

// PlanSteps returns the checklist for a plan: the generic steps followed by
// any steps specific to the kind.
func (k Kind) PlanSteps() []string {
	steps := make([]string, 0, len(baseSteps)+2)
	steps = append(steps, baseSteps...)
	return append(steps, kindSteps[k]...)
}
