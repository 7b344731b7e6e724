// Package report builds canonical audit reports and migrates stored ones.
package report

import (
	"path/filepath"
	"time"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/de-tools/policy-atlas/pkg/services/scoring"
	"github.com/google/uuid"
)

const defaultSourceFile = "inline.json"

type Options struct {
	SourceFile string
	Owner      string
	Tags       []string
	Provider   string
}

type Assembler struct {
	policy scoring.Policy
	now    func() time.Time
	newID  func() string
}

func NewAssembler(policy scoring.Policy) *Assembler {
	return &Assembler{
		policy: policy,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Assemble wraps the violations of one audit run into a new report. The
// result goes through Normalize, the same path stored reports take on read.
func (a *Assembler) Assemble(violations []domain.Violation, opts Options) domain.ScoredReport {
	now := a.now().UTC()
	id := a.newID()
	generatedAt := now.Format(time.RFC3339)
	score := float64(a.policy.Score(violations))

	sourceFile := defaultSourceFile
	if opts.SourceFile != "" {
		sourceFile = filepath.Base(opts.SourceFile)
	}

	findings := make([]FindingDocument, 0, len(violations))
	steps := make([]RemediationStepDocument, 0)
	for _, v := range violations {
		findings = append(findings, FindingDocument{
			ResourceType: ptr(v.ResourceType),
			ResourceName: ptr(v.ResourceName),
			Message:      ptr(v.Message),
			Severity:     ptr(string(v.Severity)),
			Control:      ptr(v.Control),
			RuleID:       v.RuleID,
			Remediation:  ptr(v.Remediation),
		})
		if v.Remediation != "" {
			steps = append(steps, RemediationStepDocument{
				RuleID:       v.RuleID,
				ResourceName: ptr(v.ResourceName),
				Remediation:  ptr(v.Remediation),
			})
		}
	}

	doc := Document{
		ReportID:    &id,
		GeneratedAt: &generatedAt,
		SourceFile:  &sourceFile,
		Score:       &score,
		Metadata: &MetadataDocument{
			AuditID:     &id,
			Owner:       optional(opts.Owner),
			Tags:        opts.Tags,
			LastUpdated: &generatedAt,
			Provider:    optional(opts.Provider),
		},
		Findings:         findings,
		RemediationSteps: steps,
	}
	return Normalize(doc, now)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
