package domain

// ReportMetadata carries ownership details of a report
type ReportMetadata struct {
	AuditID     string   `json:"audit_id"`
	Owner       string   `json:"owner"`
	Tags        []string `json:"tags"`
	LastUpdated string   `json:"last_updated"`
	Provider    string   `json:"provider,omitempty"`
}

// RemediationStep pairs a finding with its suggested fix
type RemediationStep struct {
	RuleID       *string `json:"rule_id"`
	ResourceName string  `json:"resource_name"`
	Remediation  string  `json:"remediation"`
}

// ScoredReport is the canonical report shape served to every consumer
type ScoredReport struct {
	ReportID         string            `json:"report_id"`
	GeneratedAt      string            `json:"generated_at"`
	SourceFile       string            `json:"source_file"`
	Status           string            `json:"status"`
	Score            int               `json:"score"`
	Summary          AuditSummary      `json:"summary"`
	Metadata         ReportMetadata    `json:"metadata"`
	Controls         []string          `json:"controls"`
	Findings         []Violation       `json:"findings"`
	RemediationSteps []RemediationStep `json:"remediation_steps"`
}

// ReportEntry is the listing view of a stored report
type ReportEntry struct {
	ReportID    string
	Key         string
	GeneratedAt string
	SourceFile  string
	Status      string
	Score       int
	Summary     AuditSummary
}

// Entry builds the listing view of a report stored under key.
func (r ScoredReport) Entry(key string) ReportEntry {
	return ReportEntry{
		ReportID:    r.ReportID,
		Key:         key,
		GeneratedAt: r.GeneratedAt,
		SourceFile:  r.SourceFile,
		Status:      r.Status,
		Score:       r.Score,
		Summary:     r.Summary,
	}
}
