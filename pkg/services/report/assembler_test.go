package report

import (
	"testing"
	"time"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/de-tools/policy-atlas/pkg/services/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAssembler() *Assembler {
	a := NewAssembler(scoring.DefaultPolicy())
	a.now = func() time.Time { return time.Date(2025, 6, 20, 8, 30, 0, 0, time.UTC) }
	a.newID = func() string { return "4f1c2d3e-0000-4000-8000-000000000001" }
	return a
}

func TestAssembler_Assemble(t *testing.T) {
	ruleID := "AZ-STG-001"
	violations := []domain.Violation{
		{
			ResourceType: "azurerm_storage_account",
			ResourceName: "unnamed-azurerm_storage_account-1",
			Message:      "Storage account must enable encryption",
			Severity:     domain.SeverityHigh,
			Control:      domain.ControlNotApplicable,
		},
		{
			ResourceType: "azurerm_key_vault",
			ResourceName: "azurerm_key_vault.main",
			Message:      "Purge protection disabled",
			Severity:     domain.SeverityMedium,
			Control:      "NIST SC-28",
			RuleID:       &ruleID,
			Remediation:  "Enable purge protection",
		},
	}

	r := newTestAssembler().Assemble(violations, Options{
		SourceFile: "/tmp/uploads/plan.json",
		Owner:      "platform-team",
		Tags:       []string{"prod"},
		Provider:   "azure",
	})

	assert.Equal(t, "4f1c2d3e-0000-4000-8000-000000000001", r.ReportID)
	assert.Equal(t, "2025-06-20T08:30:00Z", r.GeneratedAt)
	assert.Equal(t, "plan.json", r.SourceFile)
	assert.Equal(t, DefaultStatus, r.Status)
	assert.Equal(t, 85, r.Score)
	assert.Equal(t, 2, r.Summary.TotalViolations)
	assert.Equal(t, 1, r.Summary.BySeverity[domain.SeverityHigh])
	assert.Equal(t, 1, r.Summary.BySeverity[domain.SeverityMedium])
	assert.Equal(t, domain.ReportMetadata{
		AuditID:     r.ReportID,
		Owner:       "platform-team",
		Tags:        []string{"prod"},
		LastUpdated: r.GeneratedAt,
		Provider:    "azure",
	}, r.Metadata)
	assert.Equal(t, []string{"NIST SC-28"}, r.Controls)
	assert.Equal(t, violations, r.Findings)
	require.Len(t, r.RemediationSteps, 1)
	assert.Equal(t, domain.RemediationStep{
		RuleID:       &ruleID,
		ResourceName: "azurerm_key_vault.main",
		Remediation:  "Enable purge protection",
	}, r.RemediationSteps[0])
}

func TestAssembler_NoViolations(t *testing.T) {
	r := newTestAssembler().Assemble(nil, Options{})

	assert.Equal(t, 100, r.Score)
	assert.Equal(t, defaultSourceFile, r.SourceFile)
	assert.Equal(t, DefaultOwner, r.Metadata.Owner)
	assert.Equal(t, []string{}, r.Metadata.Tags)
	assert.Empty(t, r.Findings)
	assert.NotNil(t, r.Findings)
	assert.NotNil(t, r.RemediationSteps)
}

func TestAssembler_AssembledReportIsNormalized(t *testing.T) {
	r := newTestAssembler().Assemble([]domain.Violation{{ResourceType: "t", Message: "m", Severity: "HIGH"}}, Options{})

	assert.Equal(t, r, Normalize(FromReport(r), time.Now()))
}
