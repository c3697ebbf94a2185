package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/pkg/telemetry"
)

// EmailConfig holds SMTP connection details. An empty Host only logs the
// message that would have been sent.
type EmailConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// Limiter caps how often an action may run.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Limit() int
}

// EmailHandler sends approved emails.
type EmailHandler struct {
	cfg     EmailConfig
	limiter Limiter
	logger  *slog.Logger
}

// EmailOption configures an EmailHandler.
type EmailOption func(*EmailHandler)

// WithLimiter rate-limits sends. A nil limiter is ignored.
func WithLimiter(l Limiter) EmailOption {
	return func(h *EmailHandler) { h.limiter = l }
}

// NewEmailHandler creates an EmailHandler from config.
func NewEmailHandler(cfg EmailConfig, logger *slog.Logger, opts ...EmailOption) *EmailHandler {
	h := &EmailHandler{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *EmailHandler) Handle(ctx context.Context, a domain.SendEmail) error {
	ctx, span := telemetry.Tracer("handlers").Start(ctx, "handler.email")
	defer span.End()

	if a.To == "" {
		err := errors.New("email payload missing required field 'to'")
		span.RecordError(err)
		span.SetStatus(codes.Error, "missing 'to' field")
		h.logger.Error("ERROR: No 'to' email address in approval")
		return err
	}
	span.SetAttributes(attribute.String("email.to", a.To))

	if h.limiter != nil {
		allowed, err := h.limiter.Allow(ctx, "email")
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limiter unavailable")
			return fmt.Errorf("email rate limit check: %w", err)
		}
		if !allowed {
			telemetry.RateLimitedTotal.WithLabelValues("send_email").Inc()
			err := &domain.RateLimitExceededError{TaskType: "email", Limit: h.limiter.Limit()}
			span.RecordError(err)
			span.SetStatus(codes.Error, "rate limited")
			return err
		}
	}

	h.logger.Info(fmt.Sprintf("Would send email to %s: %s", a.To, a.Subject))
	if h.cfg.Host == "" {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", h.cfg.Host, h.cfg.Port)
	msg := buildMIME(h.cfg.From, a.To, a.Subject, a.Body)

	var auth smtp.Auth
	if h.cfg.Username != "" {
		auth = smtp.PlainAuth("", h.cfg.Username, h.cfg.Password, h.cfg.Host)
	}

	// smtp.SendMail takes no context; race it against ctx.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, h.cfg.From, []string{a.To}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "smtp send failed")
			return fmt.Errorf("smtp send to %s: %w", a.To, err)
		}
		return nil
	case <-ctx.Done():
		err := fmt.Errorf("email send cancelled: %w", ctx.Err())
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled")
		return err
	}
}

func buildMIME(from, to, subject, body string) []byte {
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body,
	)
	return []byte(msg)
}
