package api

import "time"

type PolicyRule struct {
	Message  *string  `json:"message"`
	Severity string   `json:"severity"`
	Control  *string  `json:"control"`
	RuleID   *string  `json:"ruleId"`
	Controls []string `json:"controls"`
}

type PolicyMetadata struct {
	Description        string       `json:"description"`
	RuleCount          int          `json:"ruleCount"`
	ResourceType       string       `json:"resourceType"`
	ComplianceControls []string     `json:"complianceControls"`
	SeverityLevels     []string     `json:"severityLevels"`
	Rules              []PolicyRule `json:"rules"`
}

type PolicySummary struct {
	Name     string         `json:"name"`
	Provider string         `json:"provider"`
	Size     int64          `json:"size"`
	Modified time.Time      `json:"modified"`
	Metadata PolicyMetadata `json:"metadata"`
}

type PolicyPage struct {
	Provider   string          `json:"provider"`
	Policies   []PolicySummary `json:"policies"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	Total      int             `json:"total"`
	TotalPages int             `json:"totalPages"`
}

type PolicyDetail struct {
	PolicySummary
	Content string `json:"content"`
}

// PolicyUpload is the body of a policy write. Raw rego bodies are accepted too.
type PolicyUpload struct {
	Content string `json:"content"`
}
