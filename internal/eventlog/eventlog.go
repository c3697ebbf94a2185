// Package eventlog writes the per-component activity logs kept inside the
// vault. Every line has the form "[<RFC 3339 UTC>] <message>".
package eventlog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/92Bilal26/ai-junior-bilal/internal/frontmatter"
)

// Component log names.
const (
	Orchestrator     = "orchestrator"
	TaskExecutor     = "task_executor"
	ApprovalExecutor = "approval_executor"
	ClaudeRunner     = "claude_runner"
	FileDropWatcher  = "file_drop_watcher"
	Scheduler        = "scheduler"
	Dashboard        = "dashboard"
)

// Path returns the log file of component under dir.
func Path(dir, component string) string {
	return filepath.Join(dir, component+".log")
}

// Handler is an slog.Handler that appends the record message, and nothing
// else, to a file. Attributes belong on the structured stdout stream.
type Handler struct {
	path  string
	level slog.Leveler
	mu    *sync.Mutex
	now   func() time.Time
}

// NewHandler returns a Handler appending to path at Info level and above.
func NewHandler(path string) *Handler {
	return &Handler{path: path, level: slog.LevelInfo, mu: &sync.Mutex{}, now: time.Now}
}

func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if ts.IsZero() {
		ts = h.now()
	}
	line := fmt.Sprintf("[%s] %s\n", frontmatter.Timestamp(ts), strings.TrimRight(r.Message, "\n"))

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("eventlog: ensure dir: %w", err)
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("eventlog: open %s: %w", h.path, err)
	}
	defer f.Close()
	_, err = f.WriteString(line)
	return err
}

func (h *Handler) WithAttrs(_ []slog.Attr) slog.Handler { return h }
func (h *Handler) WithGroup(_ string) slog.Handler      { return h }

// Tee fans every record out to all handlers.
func Tee(handlers ...slog.Handler) slog.Handler {
	return tee(handlers)
}

type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t tee) WithGroup(name string) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}

// NewLogger returns a logger writing to base and to the component's file
// under dir.
func NewLogger(base *slog.Logger, dir, component string) *slog.Logger {
	return slog.New(Tee(base.Handler(), NewHandler(Path(dir, component)))).
		With(slog.String("component", component))
}

// Tail returns the last n lines of the file at path. A missing file has no
// lines.
func Tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, scanner.Err()
}
