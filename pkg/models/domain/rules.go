package domain

import "time"

// RuleInfo describes a single deny rule found in a policy file
type RuleInfo struct {
	Message  *string  `json:"message"`
	Severity string   `json:"severity"`
	Control  *string  `json:"control"`
	RuleID   *string  `json:"ruleId"`
	Controls []string `json:"controls"`
}

// RuleMetadata is derived from the text of a policy file
type RuleMetadata struct {
	Description        string     `json:"description"`
	RuleCount          int        `json:"ruleCount"`
	ResourceType       string     `json:"resourceType"`
	ComplianceControls []string   `json:"complianceControls"`
	SeverityLevels     []string   `json:"severityLevels"`
	Rules              []RuleInfo `json:"rules"`
}

// PolicyFile is a policy stored in the rule catalog
type PolicyFile struct {
	Provider string
	Name     string
	Size     int64
	Modified time.Time
	Metadata RuleMetadata
}
