package report

import (
	"encoding/json"
	"fmt"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/go-viper/mapstructure/v2"
)

// Document is a report in any historical shape. Every field is optional;
// Normalize turns it into the canonical domain.ScoredReport.
type Document struct {
	ReportID         *string                   `json:"report_id"`
	GeneratedAt      *string                   `json:"generated_at"`
	SourceFile       *string                   `json:"source_file"`
	Status           *string                   `json:"status"`
	Score            *float64                  `json:"score"`
	Summary          *SummaryDocument          `json:"summary"`
	Metadata         *MetadataDocument         `json:"metadata"`
	Controls         []string                  `json:"controls"`
	Findings         []FindingDocument         `json:"findings"`
	Violations       []FindingDocument         `json:"violations"`
	RemediationSteps []RemediationStepDocument `json:"remediation_steps"`
}

type SummaryDocument struct {
	TotalViolations *int           `json:"total_violations"`
	BySeverity      map[string]int `json:"by_severity"`
}

type MetadataDocument struct {
	AuditID     *string  `json:"audit_id"`
	Owner       *string  `json:"owner"`
	Tags        []string `json:"tags"`
	LastUpdated *string  `json:"last_updated"`
	Provider    *string  `json:"provider"`
}

type FindingDocument struct {
	ResourceType *string `json:"resource_type"`
	ResourceName *string `json:"resource_name"`
	Message      *string `json:"message"`
	Severity     *string `json:"severity"`
	Control      *string `json:"control"`
	RuleID       *string `json:"rule_id"`
	Remediation  *string `json:"remediation"`
}

type RemediationStepDocument struct {
	RuleID       *string `json:"rule_id"`
	ResourceName *string `json:"resource_name"`
	Remediation  *string `json:"remediation"`
}

// Decode parses a stored report. Only input that is not a JSON object is
// rejected; fields of the wrong type are left unset and later defaulted.
func Decode(data []byte) (Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("decode report: %w", err)
	}
	if raw == nil {
		return Document{}, fmt.Errorf("decode report: not an object")
	}
	return FromMap(raw), nil
}

// FromMap decodes a generic JSON object into a Document with weak typing, so
// numeric rule ids or string scores written by older producers still load.
func FromMap(raw map[string]any) Document {
	var doc Document
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &doc,
	})
	if err != nil {
		return Document{}
	}
	// mapstructure keeps decoding past per-field errors; those fields stay nil.
	_ = decoder.Decode(raw)
	return doc
}

// FromReport converts a canonical report back into a Document.
func FromReport(r domain.ScoredReport) Document {
	score := float64(r.Score)
	total := r.Summary.TotalViolations
	bySeverity := make(map[string]int, len(r.Summary.BySeverity))
	for k, v := range r.Summary.BySeverity {
		bySeverity[string(k)] = v
	}

	findings := make([]FindingDocument, 0, len(r.Findings))
	for _, f := range r.Findings {
		findings = append(findings, FindingDocument{
			ResourceType: ptr(f.ResourceType),
			ResourceName: ptr(f.ResourceName),
			Message:      ptr(f.Message),
			Severity:     ptr(string(f.Severity)),
			Control:      ptr(f.Control),
			RuleID:       f.RuleID,
			Remediation:  ptr(f.Remediation),
		})
	}

	steps := make([]RemediationStepDocument, 0, len(r.RemediationSteps))
	for _, s := range r.RemediationSteps {
		steps = append(steps, RemediationStepDocument{
			RuleID:       s.RuleID,
			ResourceName: ptr(s.ResourceName),
			Remediation:  ptr(s.Remediation),
		})
	}

	return Document{
		ReportID:    ptr(r.ReportID),
		GeneratedAt: ptr(r.GeneratedAt),
		SourceFile:  ptr(r.SourceFile),
		Status:      ptr(r.Status),
		Score:       &score,
		Summary: &SummaryDocument{
			TotalViolations: &total,
			BySeverity:      bySeverity,
		},
		Metadata: &MetadataDocument{
			AuditID:     ptr(r.Metadata.AuditID),
			Owner:       ptr(r.Metadata.Owner),
			Tags:        append([]string{}, r.Metadata.Tags...),
			LastUpdated: ptr(r.Metadata.LastUpdated),
			Provider:    ptr(r.Metadata.Provider),
		},
		Controls:         append([]string{}, r.Controls...),
		Findings:         findings,
		RemediationSteps: steps,
	}
}

func ptr[T any](v T) *T {
	return &v
}
