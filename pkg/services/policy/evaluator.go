package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/de-tools/policy-atlas/pkg/services/report"
	"github.com/rs/zerolog"
)

const DefaultPackagePrefix = "terraform.azure"

type Settings struct {
	RuleRoot      string
	PackagePrefix string
	Timeout       time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		RuleRoot:      "policies",
		PackagePrefix: DefaultPackagePrefix,
		Timeout:       30 * time.Second,
	}
}

// Evaluator runs the rules of a resource type against one resource at a time
// and turns the raw engine output into violations.
type Evaluator struct {
	engine   RuleEngine
	settings Settings
}

func NewEvaluator(engine RuleEngine, settings Settings) (*Evaluator, error) {
	if engine == nil {
		return nil, fmt.Errorf("rule engine is nil")
	}
	if settings.RuleRoot == "" {
		return nil, fmt.Errorf("rule root is required")
	}
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultSettings().Timeout
	}
	return &Evaluator{engine: engine, settings: settings}, nil
}

// Evaluate runs every resource of a group through EvaluateResource in order.
func (e *Evaluator) Evaluate(ctx context.Context, resourceType string, resources []domain.ResourceChange) ([]domain.Violation, error) {
	violations := make([]domain.Violation, 0)
	for i, change := range resources {
		res, err := e.EvaluateResource(ctx, resourceType, i+1, change)
		if err != nil {
			return nil, err
		}
		violations = append(violations, res...)
	}
	return violations, nil
}

// EvaluateResource evaluates a single change. position is the 1-based index of
// the change within its type group. Engine failures are logged and yield no
// violations; only ErrEngineFatal and cancellation of ctx are returned.
func (e *Evaluator) EvaluateResource(
	ctx context.Context,
	resourceType string,
	position int,
	change domain.ResourceChange,
) ([]domain.Violation, error) {
	logger := zerolog.Ctx(ctx)
	name := ResourceName(resourceType, position, change)
	req := Request{
		Package:  PackageFor(e.settings.PackagePrefix, resourceType),
		RuleRoot: e.settings.RuleRoot,
		Input: map[string]any{
			"resource_changes": []any{change.Document()},
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, e.settings.Timeout)
	defer cancel()

	items, err := e.engine.Evaluate(callCtx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, ErrEngineFatal) {
			return nil, err
		}
		logger.Warn().
			Err(err).
			Str("resource_type", resourceType).
			Str("resource_name", name).
			Str("package", req.Package).
			Msg("policy evaluation failed, resource skipped")
		return []domain.Violation{}, nil
	}

	violations := make([]domain.Violation, 0, len(items))
	for _, item := range items {
		violations = append(violations, NormalizeResult(resourceType, name, item))
	}
	return violations, nil
}

// ResourceName is the address of the change, or a positional name when the
// plan does not carry one.
func ResourceName(resourceType string, position int, change domain.ResourceChange) string {
	if change.Address != "" {
		return change.Address
	}
	return report.FallbackName(resourceType, position)
}

// NormalizeResult converts one raw deny result into a violation. Results are
// either plain values used as the message or objects with optional
// message, severity, control and rule_id keys.
func NormalizeResult(resourceType, resourceName string, item any) domain.Violation {
	v := domain.Violation{
		ResourceType: resourceType,
		ResourceName: resourceName,
		Severity:     domain.SeverityUnknown,
		Control:      domain.ControlNotApplicable,
	}

	obj, ok := item.(map[string]any)
	if !ok {
		v.Message = render(item)
		return v
	}

	if msg, ok := obj["message"]; ok && msg != nil {
		v.Message = render(msg)
	} else {
		v.Message = render(obj)
	}
	if s, ok := obj["severity"].(string); ok && s != "" {
		v.Severity = domain.Severity(s).Canonical()
	}
	if c, ok := obj["control"].(string); ok && c != "" {
		v.Control = c
	}
	if id, ok := obj["rule_id"]; ok && id != nil {
		if s := render(id); s != "" {
			v.RuleID = &s
		}
	}
	return v
}

func render(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
