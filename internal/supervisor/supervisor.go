// Package supervisor starts, stops and feeds the long-running assistant CLI
// process. The pid survives restarts of this program in a state file; only
// the handle that started the process can write to its stdin.
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/92Bilal26/ai-junior-bilal/internal/frontmatter"
	"github.com/92Bilal26/ai-junior-bilal/pkg/telemetry"
)

// Result statuses.
const (
	StatusStarted        = "started"
	StatusAlreadyRunning = "already_running"
	StatusStopped        = "stopped"
	StatusNotRunning     = "not_running"
	StatusNotFound       = "not_found"
	StatusFailed         = "failed"
)

// ErrNotRunning is returned by Send when this handle owns no live process.
var ErrNotRunning = errors.New("Claude is not running in this session")

// Config describes the supervised command.
type Config struct {
	Command      string
	Args         []string
	WorkDir      string
	StatePath    string
	OutputLog    string
	ForceRestart bool
}

// State is persisted between runs.
type State struct {
	PID       int    `json:"pid,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
	LogPath   string `json:"log_path,omitempty"`
}

// Result reports the outcome of Start, Stop and EnsureRunning.
type Result struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
	PID    int    `json:"pid,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Status is the liveness view of the saved process.
type Status struct {
	OK        bool   `json:"ok"`
	Running   bool   `json:"running"`
	PID       int    `json:"pid"`
	StartedAt string `json:"started_at,omitempty"`
}

// Supervisor owns at most one child process.
type Supervisor struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	exited chan struct{}

	stdinMu sync.Mutex
}

// New returns a Supervisor. logger should write claude_runner.log.
func New(cfg Config, logger *slog.Logger) *Supervisor {
	if cfg.Command == "" {
		cfg.Command = "claude"
	}
	return &Supervisor{cfg: cfg, logger: logger, now: time.Now}
}

// Start launches the command unless the saved pid is still alive.
func (s *Supervisor) Start(_ context.Context) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Supervisor) startLocked() Result {
	st := s.loadState()
	if st.PID > 0 && pidAlive(st.PID) {
		return Result{OK: true, Status: StatusAlreadyRunning, PID: st.PID}
	}

	if err := os.MkdirAll(filepath.Dir(s.cfg.OutputLog), 0o755); err != nil {
		return s.failed(fmt.Errorf("create log dir: %w", err))
	}
	out, err := os.OpenFile(s.cfg.OutputLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return s.failed(fmt.Errorf("open %s: %w", s.cfg.OutputLog, err))
	}

	cmd := exec.Command(s.cfg.Command, s.cfg.Args...)
	cmd.Dir = s.cfg.WorkDir
	cmd.Stdout = out
	cmd.Stderr = out
	stdin, err := cmd.StdinPipe()
	if err != nil {
		out.Close()
		return s.failed(fmt.Errorf("stdin pipe: %w", err))
	}

	if err := cmd.Start(); err != nil {
		out.Close()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			s.logger.Error("Claude CLI not found: " + s.cfg.Command)
			telemetry.AssistantStartsTotal.WithLabelValues(StatusNotFound).Inc()
			return Result{OK: false, Status: StatusNotFound, Error: "Claude CLI not found"}
		}
		return s.failed(fmt.Errorf("start %s: %w", s.cfg.Command, err))
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		out.Close()
		telemetry.AssistantRunning.Set(0)
		close(exited)
	}()
	s.cmd, s.stdin, s.exited = cmd, stdin, exited

	pid := cmd.Process.Pid
	if err := s.saveState(State{PID: pid, StartedAt: frontmatter.Timestamp(s.now()), LogPath: s.cfg.OutputLog}); err != nil {
		s.logger.Warn("failed to save runner state", slog.String("error", err.Error()))
	}
	telemetry.AssistantRunning.Set(1)
	telemetry.AssistantStartsTotal.WithLabelValues(StatusStarted).Inc()
	s.logger.Info(fmt.Sprintf("Claude started pid=%d", pid), slog.Int("pid", pid))
	return Result{OK: true, Status: StatusStarted, PID: pid}
}

func (s *Supervisor) failed(err error) Result {
	telemetry.AssistantStartsTotal.WithLabelValues(StatusFailed).Inc()
	s.logger.Error("Claude start failed: " + err.Error())
	return Result{OK: false, Status: StatusFailed, Error: err.Error()}
}

// Stop terminates the saved pid and forgets it.
func (s *Supervisor) Stop() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Supervisor) stopLocked() Result {
	st := s.loadState()
	if st.PID <= 0 {
		return Result{OK: false, Status: StatusNotRunning}
	}
	if err := terminate(st.PID); err != nil {
		s.logger.Debug("terminate failed", slog.Int("pid", st.PID), slog.String("error", err.Error()))
	}
	s.logger.Info(fmt.Sprintf("Claude stopped pid=%d", st.PID), slog.Int("pid", st.PID))
	if err := s.saveState(State{}); err != nil {
		s.logger.Warn("failed to clear runner state", slog.String("error", err.Error()))
	}
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	s.cmd, s.stdin, s.exited = nil, nil, nil
	telemetry.AssistantRunning.Set(0)
	return Result{OK: true, Status: StatusStopped, PID: st.PID}
}

// Status reports whether the saved pid is alive.
func (s *Supervisor) Status() Status {
	st := s.loadState()
	running := st.PID > 0 && pidAlive(st.PID)
	out := Status{OK: true, Running: running, StartedAt: st.StartedAt}
	if running {
		out.PID = st.PID
	}
	return out
}

// LogPath is the file the process's output is appended to.
func (s *Supervisor) LogPath() string { return s.cfg.OutputLog }

// Owned reports whether this handle started a process that is still alive.
func (s *Supervisor) Owned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ownedLocked()
}

func (s *Supervisor) ownedLocked() bool {
	if s.cmd == nil {
		return false
	}
	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// Send writes prompt as one line to the owned process's stdin.
func (s *Supervisor) Send(ctx context.Context, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return errors.New("empty prompt")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	stdin := s.stdin
	owned := s.ownedLocked()
	s.mu.Unlock()
	if !owned || stdin == nil {
		return ErrNotRunning
	}

	s.stdinMu.Lock()
	defer s.stdinMu.Unlock()
	if _, err := io.WriteString(stdin, strings.TrimRight(prompt, " \t\r\n")+"\n"); err != nil {
		return fmt.Errorf("write prompt: %w", err)
	}
	s.logger.Info("Prompt sent to Claude.")
	return nil
}

// EnsureRunning starts the process when it is down. A live process this
// handle cannot write to is restarted when ForceRestart is set.
func (s *Supervisor) EnsureRunning(_ context.Context) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.loadState()
	if st.PID > 0 && pidAlive(st.PID) {
		if !s.ownedLocked() && s.cfg.ForceRestart {
			s.stopLocked()
			waitExit(st.PID, 5*time.Second)
			return s.startLocked()
		}
		return Result{OK: true, Status: StatusAlreadyRunning, PID: st.PID}
	}
	return s.startLocked()
}

func (s *Supervisor) loadState() State {
	data, err := os.ReadFile(s.cfg.StatePath)
	if err != nil {
		return State{}
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}
	}
	return st
}

func (s *Supervisor) saveState(st State) error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.StatePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.cfg.StatePath, data, 0o644)
}

// waitExit polls until pid is gone or timeout elapses.
func waitExit(pid int, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) && pidAlive(pid) {
		time.Sleep(50 * time.Millisecond)
	}
}
