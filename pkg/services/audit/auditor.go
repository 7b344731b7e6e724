// Package audit drives a compliance audit of a Terraform plan: grouping,
// policy evaluation, remediation, scoring and persistence.
package audit

import (
	"context"
	"fmt"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/de-tools/policy-atlas/pkg/services/report"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// RemediationUnavailable replaces a suggestion that could not be fetched.
const RemediationUnavailable = "AI remediation unavailable due to internal error."

// Evaluator evaluates one resource change of a type group.
type Evaluator interface {
	EvaluateResource(ctx context.Context, resourceType string, position int, change domain.ResourceChange) ([]domain.Violation, error)
}

// Suggester proposes a fix for a violation.
type Suggester interface {
	Suggest(ctx context.Context, v domain.Violation) (string, error)
}

// ReportSaver persists a finished report and returns its storage key.
type ReportSaver interface {
	Save(ctx context.Context, r domain.ScoredReport) (string, error)
}

// Notifier announces a finished audit.
type Notifier interface {
	NotifyAudit(ctx context.Context, r domain.ScoredReport) error
}

type Settings struct {
	Workers            int
	RemediationWorkers int
}

func DefaultSettings() Settings {
	return Settings{
		Workers:            4,
		RemediationWorkers: 4,
	}
}

// Dependencies of the auditor. Suggester and Notifier are optional.
type Dependencies struct {
	Evaluator Evaluator
	Assembler *report.Assembler
	Saver     ReportSaver
	Suggester Suggester
	Notifier  Notifier
}

type Options struct {
	Owner    string
	Tags     []string
	Provider string
}

type Auditor struct {
	deps     Dependencies
	settings Settings
}

func NewAuditor(deps Dependencies, settings Settings) (*Auditor, error) {
	if deps.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is nil")
	}
	if deps.Assembler == nil {
		return nil, fmt.Errorf("assembler is nil")
	}
	if deps.Saver == nil {
		return nil, fmt.Errorf("report saver is nil")
	}
	defaults := DefaultSettings()
	if settings.Workers <= 0 {
		settings.Workers = defaults.Workers
	}
	if settings.RemediationWorkers <= 0 {
		settings.RemediationWorkers = defaults.RemediationWorkers
	}
	return &Auditor{deps: deps, settings: settings}, nil
}

// Run audits the plan and returns the persisted report.
func (a *Auditor) Run(ctx context.Context, plan *domain.Plan, opts Options) (*domain.ScoredReport, error) {
	if plan == nil || plan.ResourceChanges == nil {
		return nil, fmt.Errorf("%w: plan has no resource_changes", ErrInvalidInput)
	}
	logger := zerolog.Ctx(ctx)

	violations, err := a.Evaluate(ctx, plan.ResourceChanges)
	if err != nil {
		return nil, err
	}
	a.attachRemediations(ctx, violations)

	r := a.deps.Assembler.Assemble(violations, report.Options{
		SourceFile: plan.SourceFile,
		Owner:      opts.Owner,
		Tags:       opts.Tags,
		Provider:   opts.Provider,
	})

	key, err := a.deps.Saver.Save(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	logger.Info().
		Str("report_id", r.ReportID).
		Str("key", key).
		Int("resources", len(plan.ResourceChanges)).
		Int("violations", len(violations)).
		Int("score", r.Score).
		Msg("audit completed")

	if a.deps.Notifier != nil {
		if err := a.deps.Notifier.NotifyAudit(ctx, r); err != nil {
			logger.Warn().
				Err(err).
				Str("report_id", r.ReportID).
				Msg("failed to send audit notification")
		}
	}

	return &r, nil
}

type task struct {
	resourceType string
	position     int
	change       domain.ResourceChange
}

// Evaluate fans the changes out over the worker pool, one task per resource.
// Violations come back ordered by resource type, then plan position.
func (a *Auditor) Evaluate(ctx context.Context, changes []domain.ResourceChange) ([]domain.Violation, error) {
	groups := GroupByType(changes)

	tasks := make([]task, 0, groups.Len())
	for _, t := range groups.Types() {
		for i, change := range groups[t] {
			tasks = append(tasks, task{resourceType: t, position: i + 1, change: change})
		}
	}

	results := make([][]domain.Violation, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.settings.Workers)
	for i, tk := range tasks {
		g.Go(func() error {
			res, err := a.deps.Evaluator.EvaluateResource(gctx, tk.resourceType, tk.position, tk.change)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrEvaluation, tk.resourceType, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	violations := make([]domain.Violation, 0)
	for _, res := range results {
		violations = append(violations, res...)
	}
	return violations, nil
}

// attachRemediations fills Remediation in place. Each goroutine owns one
// index, failures are replaced by RemediationUnavailable.
func (a *Auditor) attachRemediations(ctx context.Context, violations []domain.Violation) {
	if a.deps.Suggester == nil || len(violations) == 0 {
		return
	}
	logger := zerolog.Ctx(ctx)

	var g errgroup.Group
	g.SetLimit(a.settings.RemediationWorkers)
	for i := range violations {
		g.Go(func() error {
			suggestion, err := a.deps.Suggester.Suggest(ctx, violations[i])
			if err != nil {
				logger.Warn().
					Err(err).
					Str("resource_name", violations[i].ResourceName).
					Msg("remediation unavailable")
				suggestion = RemediationUnavailable
			}
			violations[i].Remediation = suggestion
			return nil
		})
	}
	_ = g.Wait()
}
