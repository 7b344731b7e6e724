package domain

import "strings"

type Severity string

const (
	SeverityHigh    Severity = "high"
	SeverityMedium  Severity = "medium"
	SeverityLow     Severity = "low"
	SeverityUnknown Severity = "unknown"
)

// Severities lists the summary buckets in reporting order.
var Severities = []Severity{SeverityHigh, SeverityMedium, SeverityLow, SeverityUnknown}

// Canonical folds a free-form severity into one of the summary buckets.
func (s Severity) Canonical() Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(string(s)))) {
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	default:
		return SeverityUnknown
	}
}

// ControlNotApplicable marks a finding that is not mapped to a compliance control.
const ControlNotApplicable = "N/A"

type Violation struct {
	ResourceType string   `json:"resource_type"`
	ResourceName string   `json:"resource_name"`
	Message      string   `json:"message"`
	Severity     Severity `json:"severity"`
	Control      string   `json:"control"`
	RuleID       *string  `json:"rule_id"`
	Remediation  string   `json:"remediation,omitempty"`
}

type AuditSummary struct {
	TotalViolations int              `json:"total_violations"`
	BySeverity      map[Severity]int `json:"by_severity"`
}

// Summarize counts violations per severity bucket. Every bucket is present.
func Summarize(violations []Violation) AuditSummary {
	bySeverity := make(map[Severity]int, len(Severities))
	for _, s := range Severities {
		bySeverity[s] = 0
	}
	for _, v := range violations {
		bySeverity[v.Severity.Canonical()]++
	}
	return AuditSummary{
		TotalViolations: len(violations),
		BySeverity:      bySeverity,
	}
}
