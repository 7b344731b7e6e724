package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/de-tools/policy-atlas/pkg/services/scoring"
)

// Defaults applied by Normalize. Each field falls back independently:
//
//	findings                 findings (non-empty) -> violations -> []
//	score                    score clamped to [0,100] -> DefaultScore
//	status                   status -> DefaultStatus
//	report_id                report_id -> metadata.audit_id -> UnknownValue
//	generated_at             generated_at -> metadata.last_updated -> now
//	source_file              source_file -> UnknownValue
//	metadata.audit_id        metadata.audit_id -> report_id
//	metadata.owner           metadata.owner -> DefaultOwner
//	metadata.tags            metadata.tags -> []
//	metadata.last_updated    metadata.last_updated -> generated_at
//	summary.total_violations always len(findings)
//	summary.by_severity.<k>  always counted from findings
//	controls                 always derived from findings
//	remediation_steps        remediation_steps -> []
//
// Per finding: resource_type -> UnknownValue, resource_name ->
// unnamed-<type>-<position>, severity -> unknown, control -> N/A.
const (
	DefaultStatus = "Completed"
	DefaultOwner  = "Unassigned"
	DefaultScore  = scoring.MaxScore
	UnknownValue  = "unknown"
)

// Normalize converts a Document of any historical shape into the canonical
// report. It never fails and Normalize(FromReport(Normalize(d))) equals
// Normalize(d).
func Normalize(doc Document, now time.Time) domain.ScoredReport {
	meta := doc.Metadata
	if meta == nil {
		meta = &MetadataDocument{}
	}
	findings := normalizeFindings(doc.Findings)
	if len(findings) == 0 {
		findings = normalizeFindings(doc.Violations)
	}

	reportID := firstOf(doc.ReportID, meta.AuditID, UnknownValue)
	generatedAt := firstOf(doc.GeneratedAt, meta.LastUpdated, now.UTC().Format(time.RFC3339))

	score := DefaultScore
	if doc.Score != nil && !math.IsNaN(*doc.Score) {
		// Clamp before converting so huge values cannot overflow int.
		clamped := math.Min(math.Max(*doc.Score, scoring.MinScore), scoring.MaxScore)
		score = int(math.Round(clamped))
	}

	return domain.ScoredReport{
		ReportID:    reportID,
		GeneratedAt: generatedAt,
		SourceFile:  firstOf(doc.SourceFile, nil, UnknownValue),
		Status:      firstOf(doc.Status, nil, DefaultStatus),
		Score:       score,
		Summary:     domain.Summarize(findings),
		Metadata: domain.ReportMetadata{
			AuditID:     firstOf(meta.AuditID, nil, reportID),
			Owner:       firstOf(meta.Owner, nil, DefaultOwner),
			Tags:        nonNil(meta.Tags),
			LastUpdated: firstOf(meta.LastUpdated, nil, generatedAt),
			Provider:    firstOf(meta.Provider, nil, ""),
		},
		Controls:         Controls(findings),
		Findings:         findings,
		RemediationSteps: normalizeSteps(doc.RemediationSteps),
	}
}

func normalizeFindings(docs []FindingDocument) []domain.Violation {
	findings := make([]domain.Violation, 0, len(docs))
	for i, f := range docs {
		resourceType := firstOf(f.ResourceType, nil, UnknownValue)
		findings = append(findings, domain.Violation{
			ResourceType: resourceType,
			ResourceName: firstOf(f.ResourceName, nil, FallbackName(resourceType, i+1)),
			Message:      firstOf(f.Message, nil, ""),
			Severity:     domain.Severity(firstOf(f.Severity, nil, "")).Canonical(),
			Control:      firstOf(f.Control, nil, domain.ControlNotApplicable),
			RuleID:       nonEmpty(f.RuleID),
			Remediation:  firstOf(f.Remediation, nil, ""),
		})
	}
	return findings
}

func normalizeSteps(docs []RemediationStepDocument) []domain.RemediationStep {
	steps := make([]domain.RemediationStep, 0, len(docs))
	for _, s := range docs {
		steps = append(steps, domain.RemediationStep{
			RuleID:       nonEmpty(s.RuleID),
			ResourceName: firstOf(s.ResourceName, nil, UnknownValue),
			Remediation:  firstOf(s.Remediation, nil, ""),
		})
	}
	return steps
}

// Controls returns the sorted distinct controls referenced by findings.
func Controls(findings []domain.Violation) []string {
	seen := make(map[string]struct{})
	controls := make([]string, 0)
	for _, f := range findings {
		c := strings.TrimSpace(f.Control)
		if c == "" || c == domain.ControlNotApplicable {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		controls = append(controls, c)
	}
	sort.Strings(controls)
	return controls
}

// FallbackName names a resource that has no address in the plan.
func FallbackName(resourceType string, position int) string {
	return fmt.Sprintf("unnamed-%s-%d", resourceType, position)
}

func firstOf(primary, secondary *string, fallback string) string {
	if primary != nil && *primary != "" {
		return *primary
	}
	if secondary != nil && *secondary != "" {
		return *secondary
	}
	return fallback
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return append([]string{}, tags...)
}
