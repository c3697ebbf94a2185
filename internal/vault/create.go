package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/internal/frontmatter"
)

const (
	defaultTitle = "New Task"
	defaultBody  = "Task created from dashboard."

	queueSignalName = "claude_queue.md"
)

// NewTask describes a task to be created in Needs_Action.
type NewTask struct {
	Title    string
	Body     string
	Type     string
	Source   string
	Priority string
}

func (n NewTask) withDefaults() NewTask {
	if strings.TrimSpace(n.Title) == "" {
		n.Title = defaultTitle
	}
	if n.Type == "" {
		n.Type = string(domain.KindTask)
	}
	if n.Source == "" {
		n.Source = "dashboard"
	}
	if n.Priority == "" {
		n.Priority = "normal"
	}
	return n
}

// CreateTask writes Needs_Action/TASK_<slug>_<stamp>.md.
func (s *Store) CreateTask(n NewTask) (domain.Task, error) {
	n = n.withDefaults()
	now := s.now()
	title := strings.TrimSpace(n.Title)

	fields := map[string]string{
		domain.FieldType:      n.Type,
		"source":              n.Source,
		"priority":            n.Priority,
		domain.FieldStatus:    string(domain.StatusNew),
		domain.FieldCreatedAt: frontmatter.Timestamp(now),
		domain.FieldTitle:     title,
	}
	body := strings.TrimSpace(n.Body)
	if body == "" {
		body = defaultBody
	}
	name := fmt.Sprintf("TASK_%s_%s.md", frontmatter.Slugify(title), frontmatter.Stamp(now))
	return s.Create(domain.FolderNeedsAction, name, fields, "\n# "+title+"\n\n"+body+"\n")
}

// ClaudeAppTask describes a request to scaffold an application.
func ClaudeAppTask(language, name, instruction string) NewTask {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		instruction = "Scaffold the app using the preferred CLI for this framework."
	}
	body := strings.Join([]string{
		"## Instruction for Claude",
		instruction,
		"",
		"## Expected Output",
		fmt.Sprintf("- Create folder under apps/%s/%s", frontmatter.Slugify(language), frontmatter.Slugify(name)),
		"- Run the appropriate framework CLI to scaffold the project",
		"- Document any dependencies or next steps in the vault",
	}, "\n")
	return NewTask{
		Title: fmt.Sprintf("Scaffold %s app: %s", language, name),
		Body:  body,
		Type:  string(domain.KindClaudeApp),
	}
}

// CreateAttendanceTask writes an attendance request for date (YYYY-MM-DD)
// straight into Pending_Approval. currentStatus is what the portal reported,
// if known.
func (s *Store) CreateAttendanceTask(date, currentStatus string) (domain.Task, error) {
	now := s.now()
	if currentStatus == "" {
		currentStatus = "Unknown"
	}
	fields := map[string]string{
		domain.FieldType:      string(domain.KindAttendanceMarking),
		"source":              "scheduler",
		"priority":            "high",
		domain.FieldStatus:    string(domain.StatusPendingApproval),
		domain.FieldCreatedAt: frontmatter.Timestamp(now),
		domain.FieldDate:      date,
		"current_status":      currentStatus,
		domain.FieldAction:    "mark_present",
	}
	body := strings.Join([]string{
		"",
		"# ESS Attendance Marking",
		"## Mark Attendance for " + date,
		"Current status: **" + currentStatus + "**",
		"",
		"### Action Required",
		"Move this file to `/Approved` folder to automatically mark attendance as **Present** in ESS.",
		"",
		"### Details",
		"- Date: " + date,
		"- Current Status: " + currentStatus,
		"- Action: Mark as Present",
		"",
	}, "\n")
	name := fmt.Sprintf("%s%s.md", attendancePrefix(date), frontmatter.Stamp(now))
	return s.Create(domain.FolderPendingApproval, name, fields, body)
}

// AttendanceRequested reports whether an attendance task for date exists in
// any stage folder. A rejected request still counts.
func (s *Store) AttendanceRequested(date string) (bool, error) {
	prefix := attendancePrefix(date)
	for _, f := range []domain.Folder{
		domain.FolderNeedsAction, domain.FolderPendingApproval, domain.FolderApproved,
		domain.FolderDone, domain.FolderRejected,
	} {
		names, err := s.List(f)
		if err != nil {
			return false, err
		}
		for _, name := range names {
			if strings.HasPrefix(name, prefix) {
				return true, nil
			}
		}
	}
	return false, nil
}

func attendancePrefix(date string) string {
	return "ATTENDANCE_MARK_" + strings.ReplaceAll(date, "-", "") + "_"
}

// QueueSignalPath is the file that tells the assistant a task was queued.
func (s *Store) QueueSignalPath() string {
	return filepath.Join(s.Dir(domain.FolderSignals), queueSignalName)
}

// WriteQueueSignal records the most recently queued task for the assistant.
func (s *Store) WriteQueueSignal(taskPath, instruction string) error {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		instruction = "Read the task file and create a plan. Do not execute without approval."
	}
	content := strings.Join([]string{
		"# Claude Task Queue",
		"",
		"Last queued task: " + taskPath,
		"",
		"## Instruction",
		instruction,
		"",
	}, "\n")
	if err := os.MkdirAll(s.Dir(domain.FolderSignals), 0o755); err != nil {
		return fmt.Errorf("create signals folder: %w", err)
	}
	if err := writeAtomic(s.QueueSignalPath(), content); err != nil {
		return fmt.Errorf("write queue signal: %w", err)
	}
	return nil
}

// Item is the listing form of a task.
type Item struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Path   string `json:"path"`
}

// Summarise lists the tasks in folder. Unreadable files are skipped and
// reported in the returned error.
func (s *Store) Summarise(f domain.Folder) ([]Item, error) {
	tasks, err := s.LoadAll(f)
	items := make([]Item, 0, len(tasks))
	for _, t := range tasks {
		title := t.Title()
		if title == t.Stem() && t.Get(domain.FieldTitle) == "" {
			title = strings.ReplaceAll(t.Stem(), "_", " ")
		}
		kind := t.Get(domain.FieldType)
		if kind == "" {
			kind = string(domain.KindTask)
		}
		items = append(items, Item{
			ID:     t.Stem(),
			Title:  title,
			Type:   kind,
			Status: t.Get(domain.FieldStatus),
			Path:   s.Rel(s.Path(t)),
		})
	}
	return items, err
}
