package app

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/de-tools/policy-atlas/pkg/services/audit"
	"github.com/de-tools/policy-atlas/pkg/services/config"
	"github.com/de-tools/policy-atlas/pkg/services/httpclient"
	"github.com/de-tools/policy-atlas/pkg/services/rules"
	"github.com/de-tools/policy-atlas/pkg/store/blob"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storagePolicy = `package terraform.azure.azurerm_storage_account

deny[msg] {
	change := input.resource_changes[_]
	change.change.after.enable_https_traffic_only == false
	msg := {"message": "HTTPS traffic only must be enabled", "severity": "high", "control": "ISO27001-A.10.1.1"}
}
`

const plan = `{
	"resource_changes": [
		{
			"type": "azurerm_storage_account",
			"address": "azurerm_storage_account.logs",
			"change": {"after": {"enable_https_traffic_only": false}}
		},
		{
			"type": "azurerm_storage_account",
			"address": "azurerm_storage_account.data",
			"change": {"after": {"enable_https_traffic_only": true}}
		},
		{
			"type": "azurerm_resource_group",
			"address": "azurerm_resource_group.main",
			"change": {"after": {"location": "westeurope"}}
		}
	]
}`

func testConfig() *config.Config {
	return &config.Config{
		Log: config.LogConfig{Level: "debug"},
		Engine: config.EngineConfig{
			Kind:          config.EngineRego,
			RuleRoot:      "/policies",
			PackagePrefix: "terraform.azure",
			Timeout:       5 * time.Second,
		},
		Audit: config.AuditConfig{
			Workers:            2,
			RemediationWorkers: 2,
			Owner:              "platform",
			Provider:           "azure",
		},
		Scoring: config.ScoringConfig{
			Base:     100,
			Weights:  map[string]int{"high": 10, "medium": 5, "low": 2, "unknown": 1},
			Fallback: 1,
		},
		Storage: blob.Settings{
			Backend: blob.BackendLocal,
			Root:    "/output",
		},
		HTTP: httpclient.DefaultSettings(),
	}
}

func TestBuild_AuditRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/policies/azure/storage.rego", []byte(storagePolicy), 0o644))

	logger := zerolog.New(zerolog.NewTestWriter(t))
	ctx := logger.WithContext(context.Background())

	a, err := build(ctx, testConfig(), fs)
	require.NoError(t, err)
	defer a.Close()

	parsed, err := audit.ParsePlan([]byte(plan), "plan.json")
	require.NoError(t, err)

	report, err := a.Auditor.Run(ctx, parsed, a.Defaults)
	require.NoError(t, err)

	assert.Equal(t, 90, report.Score)
	assert.Equal(t, "plan.json", report.SourceFile)
	assert.Equal(t, "platform", report.Metadata.Owner)
	assert.Equal(t, []string{}, report.Metadata.Tags)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "azurerm_storage_account.logs", report.Findings[0].ResourceName)
	assert.Equal(t, domain.SeverityHigh, report.Findings[0].Severity)
	assert.Equal(t, []string{"ISO27001-A.10.1.1"}, report.Controls)

	entries, err := a.Reports.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, report.ReportID, entries[0].ReportID)

	stored, err := a.Reports.Get(ctx, report.ReportID)
	require.NoError(t, err)
	assert.Equal(t, report.Score, stored.Score)

	page, err := a.Catalog.List(ctx, "azure", rules.Query{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestBuild_ReindexesStoredReports(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/policies/azure/storage.rego", []byte(storagePolicy), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/output/reports/legacy.json", []byte(`{"score": 75, "findings": []}`), 0o644))

	ctx := context.Background()
	a, err := build(ctx, testConfig(), fs)
	require.NoError(t, err)
	defer a.Close()

	entries, err := a.Reports.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "legacy", entries[0].ReportID)
	assert.Equal(t, 75, entries[0].Score)
}

func TestBuild_InvalidStorage(t *testing.T) {
	cfg := testConfig()
	cfg.Storage = blob.Settings{Backend: "ftp"}

	_, err := build(context.Background(), cfg, afero.NewMemMapFs())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report storage")
}

func TestApp_ServerConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Server = config.ServerConfig{Host: "127.0.0.1", Port: 3000}

	a, err := build(context.Background(), cfg, afero.NewMemMapFs())
	require.NoError(t, err)
	defer a.Close()

	sc := a.ServerConfig()
	assert.Equal(t, "127.0.0.1:3000", sc.Addr)
	assert.Equal(t, a.Defaults, sc.Dependencies.Defaults)
	assert.NotNil(t, sc.Dependencies.Auditor)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LogConfig
		expected zerolog.Level
	}{
		{name: "debug", cfg: config.LogConfig{Level: "debug"}, expected: zerolog.DebugLevel},
		{name: "warn", cfg: config.LogConfig{Level: "warn"}, expected: zerolog.WarnLevel},
		{name: "empty falls back to info", cfg: config.LogConfig{}, expected: zerolog.InfoLevel},
		{name: "pretty", cfg: config.LogConfig{Level: "error", Pretty: true}, expected: zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.cfg, &buf)
			assert.Equal(t, tt.expected, logger.GetLevel())
		})
	}
}
