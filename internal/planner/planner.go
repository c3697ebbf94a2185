// Package planner writes a checklist plan for every new task in
// Needs_Action and marks the task planned.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
	"github.com/92Bilal26/ai-junior-bilal/internal/frontmatter"
	"github.com/92Bilal26/ai-junior-bilal/internal/lifecycle"
	"github.com/92Bilal26/ai-junior-bilal/internal/vault"
	"github.com/92Bilal26/ai-junior-bilal/pkg/telemetry"
)

// Planner runs planning cycles over a vault.
type Planner struct {
	store   *vault.Store
	machine *lifecycle.Machine
	logger  *slog.Logger
	now     func() time.Time
}

// New returns a Planner. logger should write orchestrator.log.
func New(store *vault.Store, machine *lifecycle.Machine, logger *slog.Logger) *Planner {
	return &Planner{store: store, machine: machine, logger: logger, now: store.Now}
}

// Cycle plans every task that needs it and returns how many were planned.
// A task that fails is logged and skipped.
func (p *Planner) Cycle(ctx context.Context) (int, error) {
	ctx, span := telemetry.Tracer("planner").Start(ctx, "planner.cycle")
	defer span.End()

	tasks, err := p.store.LoadAll(domain.FolderNeedsAction)
	if err != nil {
		p.logger.Error("Failed to read Needs_Action", slog.String("error", err.Error()))
		if len(tasks) == 0 {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scan failed")
			return 0, err
		}
	}

	planned := 0
	for _, t := range tasks {
		if ctx.Err() != nil {
			return planned, ctx.Err()
		}
		if !domain.NeedsPlan(t) {
			continue
		}
		plan, err := p.planOne(ctx, t)
		if err != nil {
			p.logger.Error(fmt.Sprintf("Failed to plan %s: %v", t.Name, err), slog.String("task", t.Name))
			continue
		}
		p.logger.Info(fmt.Sprintf("Planned %s -> %s", t.Name, plan), slog.String("task", t.Name))
		planned++
	}
	span.SetAttributes(attribute.Int("planner.planned", planned))
	return planned, nil
}

func (p *Planner) planOne(ctx context.Context, t domain.Task) (string, error) {
	now := p.now()
	title := t.Title()
	kind := t.Kind()
	if kind == "" {
		kind = domain.KindTask
	}

	fields := map[string]string{
		domain.FieldType:             string(domain.KindPlan),
		"source_task":                p.store.Path(t),
		domain.FieldCreatedAt:        frontmatter.Timestamp(now),
		domain.FieldRequiresApproval: strconv.FormatBool(t.RequiresApproval()),
	}
	name := fmt.Sprintf("PLAN_%s_%s.md", frontmatter.Slugify(title), frontmatter.Stamp(now))
	plan, err := p.store.Create(domain.FolderPlans, name, fields, Body(title, kind.PlanSteps()))
	if err != nil {
		return "", err
	}

	if _, err := p.machine.Apply(ctx, t, domain.Plan{At: now, PlanFile: p.store.Path(plan)}); err != nil {
		return "", err
	}
	telemetry.PlansWrittenTotal.WithLabelValues(string(kind)).Inc()
	return plan.Name, nil
}

// Body renders the plan document body.
func Body(title string, steps []string) string {
	var b strings.Builder
	b.WriteString("\n# Plan: " + title + "\n\n## Checklist\n")
	for _, step := range steps {
		b.WriteString("- [ ] " + step + "\n")
	}
	return b.String()
}
