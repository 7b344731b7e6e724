package adapters

import (
	"github.com/de-tools/policy-atlas/pkg/models/api"
	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/de-tools/policy-atlas/pkg/services/rules"
)

func MapRuleInfoDomainToApi(r domain.RuleInfo) api.PolicyRule {
	return api.PolicyRule{
		Message:  r.Message,
		Severity: r.Severity,
		Control:  r.Control,
		RuleID:   r.RuleID,
		Controls: nonNil(r.Controls),
	}
}

func MapRuleMetadataDomainToApi(m domain.RuleMetadata) api.PolicyMetadata {
	res := api.PolicyMetadata{
		Description:        m.Description,
		RuleCount:          m.RuleCount,
		ResourceType:       m.ResourceType,
		ComplianceControls: nonNil(m.ComplianceControls),
		SeverityLevels:     nonNil(m.SeverityLevels),
		Rules:              make([]api.PolicyRule, 0, len(m.Rules)),
	}
	for _, r := range m.Rules {
		res.Rules = append(res.Rules, MapRuleInfoDomainToApi(r))
	}
	return res
}

func MapPolicyFileDomainToApi(f domain.PolicyFile) api.PolicySummary {
	return api.PolicySummary{
		Name:     f.Name,
		Provider: f.Provider,
		Size:     f.Size,
		Modified: f.Modified.UTC(),
		Metadata: MapRuleMetadataDomainToApi(f.Metadata),
	}
}

func MapPolicyPageToApi(provider string, p rules.Page) api.PolicyPage {
	res := api.PolicyPage{
		Provider:   provider,
		Policies:   make([]api.PolicySummary, 0, len(p.Items)),
		Page:       p.Page,
		PageSize:   p.PageSize,
		Total:      p.Total,
		TotalPages: p.TotalPages,
	}
	for _, f := range p.Items {
		res.Policies = append(res.Policies, MapPolicyFileDomainToApi(f))
	}
	return res
}

func MapPolicyDetailToApi(f domain.PolicyFile, content []byte) api.PolicyDetail {
	return api.PolicyDetail{
		PolicySummary: MapPolicyFileDomainToApi(f),
		Content:       string(content),
	}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
