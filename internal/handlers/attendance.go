package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/pkg/retry"
	"github.com/92Bilal26/ai-junior-bilal/pkg/telemetry"
)

// AttendanceRequest asks the portal service to mark a date present.
type AttendanceRequest struct {
	Date string `json:"date"`
}

// AttendanceResponse is the portal service's answer.
type AttendanceResponse struct {
	Success   bool   `json:"success"`
	Date      string `json:"date,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// AttendanceService marks attendance in the employee portal.
type AttendanceService interface {
	Mark(ctx context.Context, req AttendanceRequest) (AttendanceResponse, error)
}

// AttendanceHandler executes approved attendance actions.
type AttendanceHandler struct {
	svc    AttendanceService
	logger *slog.Logger
}

// NewAttendanceHandler returns a handler backed by svc. A nil svc makes
// every action fail as not configured.
func NewAttendanceHandler(svc AttendanceService, logger *slog.Logger) *AttendanceHandler {
	return &AttendanceHandler{svc: svc, logger: logger}
}

func (h *AttendanceHandler) Handle(ctx context.Context, a domain.MarkAttendance) error {
	ctx, span := telemetry.Tracer("handlers").Start(ctx, "handler.attendance")
	defer span.End()
	span.SetAttributes(attribute.String("attendance.date", a.Date))

	if h.svc == nil {
		err := errors.New("attendance service not configured")
		span.RecordError(err)
		span.SetStatus(codes.Error, "not configured")
		return err
	}

	h.logger.Info("Executing attendance marking for " + a.Date)
	resp, err := h.svc.Mark(ctx, AttendanceRequest{Date: a.Date})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "service call failed")
		h.logger.Error("ERROR marking attendance: " + err.Error())
		return fmt.Errorf("mark attendance for %s: %w", a.Date, err)
	}
	if !resp.Success {
		reason := resp.Message
		if reason == "" {
			reason = resp.Error
		}
		err := fmt.Errorf("attendance not marked for %s: %s", a.Date, reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, "rejected by portal")
		h.logger.Warn("✗ Failed to mark attendance: " + reason)
		return err
	}
	h.logger.Info("✓ Attendance marked: " + resp.Message)
	return nil
}

// HTTPAttendanceService posts requests as JSON to a portal bridge.
type HTTPAttendanceService struct {
	url    string
	client *http.Client
	retry  retry.Config
}

// NewHTTPAttendanceService returns a service calling url. Transport errors
// and 5xx answers are retried; anything the portal answered is final.
func NewHTTPAttendanceService(url string, timeout time.Duration) *HTTPAttendanceService {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPAttendanceService{
		url:    url,
		client: &http.Client{Timeout: timeout},
		retry:  retry.Config{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second},
	}
}

func (s *HTTPAttendanceService) Mark(ctx context.Context, req AttendanceRequest) (AttendanceResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return AttendanceResponse{}, fmt.Errorf("marshal attendance request: %w", err)
	}

	var out AttendanceResponse
	err = retry.Do(ctx, s.retry, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(fmt.Errorf("build attendance request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(httpReq)
		if err != nil {
			return fmt.Errorf("attendance call to %s: %w", s.url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("attendance service %s returned status %d", s.url, resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("read attendance response: %w", err)
		}
		out = AttendanceResponse{}
		if err := json.Unmarshal(data, &out); err != nil {
			return retry.Permanent(fmt.Errorf("decode attendance response (status %d): %w", resp.StatusCode, err))
		}
		return nil
	})
	return out, err
}

// CommandAttendanceService runs a local command per request: one JSON line
// on stdin, one JSON object on stdout.
type CommandAttendanceService struct {
	command string
	args    []string
}

// NewCommandAttendanceService parses commandLine on whitespace.
func NewCommandAttendanceService(commandLine string) *CommandAttendanceService {
	parts := strings.Fields(commandLine)
	if len(parts) == 0 {
		return &CommandAttendanceService{}
	}
	return &CommandAttendanceService{command: parts[0], args: parts[1:]}
}

func (s *CommandAttendanceService) Mark(ctx context.Context, req AttendanceRequest) (AttendanceResponse, error) {
	if s.command == "" {
		return AttendanceResponse{}, errors.New("attendance command is empty")
	}
	line, err := json.Marshal(req)
	if err != nil {
		return AttendanceResponse{}, fmt.Errorf("marshal attendance request: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.command, s.args...)
	cmd.Stdin = bytes.NewReader(append(line, '\n'))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return AttendanceResponse{}, fmt.Errorf("run %s: %w: %s", s.command, err, msg)
		}
		return AttendanceResponse{}, fmt.Errorf("run %s: %w", s.command, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(text, "{") {
			continue
		}
		var out AttendanceResponse
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			return AttendanceResponse{}, fmt.Errorf("decode %s output: %w", s.command, err)
		}
		return out, nil
	}
	return AttendanceResponse{}, fmt.Errorf("%s produced no JSON response", s.command)
}
