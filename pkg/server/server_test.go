package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/de-tools/policy-atlas/pkg/models/api"
	"github.com/de-tools/policy-atlas/pkg/models/domain"
	auditsvc "github.com/de-tools/policy-atlas/pkg/services/audit"
	reportsvc "github.com/de-tools/policy-atlas/pkg/services/reports"
	"github.com/de-tools/policy-atlas/pkg/services/rules"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuditor struct {
	mock.Mock
}

func (m *mockAuditor) Run(ctx context.Context, plan *domain.Plan, opts auditsvc.Options) (*domain.ScoredReport, error) {
	args := m.Called(ctx, plan, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScoredReport), args.Error(1)
}

type mockReports struct {
	mock.Mock
}

func (m *mockReports) List(ctx context.Context) ([]domain.ReportEntry, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.ReportEntry), args.Error(1)
}

func (m *mockReports) Get(ctx context.Context, reportID string) (domain.ScoredReport, error) {
	args := m.Called(ctx, reportID)
	return args.Get(0).(domain.ScoredReport), args.Error(1)
}

func (m *mockReports) Delete(ctx context.Context, reportID string) error {
	args := m.Called(ctx, reportID)
	return args.Error(0)
}

func (m *mockReports) Remediate(ctx context.Context, reportID string) (domain.ScoredReport, error) {
	args := m.Called(ctx, reportID)
	return args.Get(0).(domain.ScoredReport), args.Error(1)
}

func sampleReport(id string) domain.ScoredReport {
	return domain.ScoredReport{
		ReportID:    id,
		GeneratedAt: "2025-06-13T10:00:00Z",
		SourceFile:  "plan.json",
		Status:      "completed",
		Score:       90,
		Summary: domain.AuditSummary{
			TotalViolations: 1,
			BySeverity: map[domain.Severity]int{
				domain.SeverityHigh:    0,
				domain.SeverityMedium:  1,
				domain.SeverityLow:     0,
				domain.SeverityUnknown: 0,
			},
		},
		Metadata: domain.ReportMetadata{
			AuditID:     id,
			Owner:       "platform",
			Tags:        []string{},
			LastUpdated: "2025-06-13T10:00:00Z",
		},
		Controls: []string{"NIST-SC-12"},
		Findings: []domain.Violation{{
			ResourceType: "azurerm_key_vault",
			ResourceName: "vault",
			Message:      "Purge protection must be enabled",
			Severity:     domain.SeverityMedium,
			Control:      "NIST-SC-12",
		}},
		RemediationSteps: []domain.RemediationStep{},
	}
}

func TestWebAPI_Endpoints(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))

	auditor := new(mockAuditor)
	reports := new(mockReports)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/policies/azure/vault.rego", []byte(`package terraform.azure.azurerm_key_vault

deny[msg] {
	msg := {"message": "Purge protection must be enabled", "severity": "medium", "control": "NIST-SC-12"}
}
`), 0o644))

	defaults := auditsvc.Options{Owner: "platform", Provider: "azure", Tags: []string{}}
	config := Config{
		Addr: ":3000",
		Dependencies: Dependencies{
			Auditor:  auditor,
			Reports:  reports,
			Catalog:  rules.NewCatalog(fs, "/policies"),
			Defaults: defaults,
		},
	}
	testServer := httptest.NewServer(ConfigureRouter(logger, config))
	defer testServer.Close()

	report := sampleReport("r-1")
	plan := `{"resource_changes":[{"type":"azurerm_key_vault","address":"azurerm_key_vault.vault","name":"vault"}]}`

	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		setupMocks     func()
		expectedStatus int
		expected       interface{}
		parseResponse  func([]byte) (interface{}, error)
	}{
		{
			name:           "Health",
			method:         http.MethodGet,
			path:           "/api/health",
			setupMocks:     func() {},
			expectedStatus: http.StatusOK,
			expected:       api.HealthResponse{Status: "Audit Engine is running"},
			parseResponse:  unmarshalResponse[api.HealthResponse](),
		},
		{
			name:   "Audit",
			method: http.MethodPost,
			path:   "/api/audit?source=plan.json",
			body:   plan,
			setupMocks: func() {
				auditor.On("Run", mock.Anything, mock.MatchedBy(func(p *domain.Plan) bool {
					return p.SourceFile == "plan.json" && len(p.ResourceChanges) == 1
				}), defaults).Return(&report, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expected:       report,
			parseResponse:  unmarshalResponse[domain.ScoredReport](),
		},
		{
			name:           "Audit_InvalidPlan",
			method:         http.MethodPost,
			path:           "/api/audit",
			body:           `{"planned_values":{}}`,
			setupMocks:     func() {},
			expectedStatus: http.StatusBadRequest,
			expected:       "invalid audit input: missing resource_changes\n",
			parseResponse: func(data []byte) (interface{}, error) {
				return string(data), nil
			},
		},
		{
			name:   "ListReports",
			method: http.MethodGet,
			path:   "/api/reports",
			setupMocks: func() {
				reports.On("List", mock.Anything).
					Return([]domain.ReportEntry{report.Entry("reports/r-1.json")}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expected: []api.ReportListItem{{
				ReportID:        "r-1",
				GeneratedAt:     "2025-06-13T10:00:00Z",
				SourceFile:      "plan.json",
				Status:          "completed",
				Score:           90,
				TotalViolations: 1,
				BySeverity:      map[string]int{"high": 0, "medium": 1, "low": 0, "unknown": 0},
			}},
			parseResponse: unmarshalResponse[[]api.ReportListItem](),
		},
		{
			name:   "GetReport",
			method: http.MethodGet,
			path:   "/api/reports/r-1",
			setupMocks: func() {
				reports.On("Get", mock.Anything, "r-1").Return(report, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expected:       report,
			parseResponse:  unmarshalResponse[domain.ScoredReport](),
		},
		{
			name:   "GetReport_NotFound",
			method: http.MethodGet,
			path:   "/api/reports/missing",
			setupMocks: func() {
				reports.On("Get", mock.Anything, "missing").
					Return(domain.ScoredReport{}, reportsvc.ErrNotFound).Once()
			},
			expectedStatus: http.StatusNotFound,
			expected:       reportsvc.ErrNotFound.Error() + "\n",
			parseResponse: func(data []byte) (interface{}, error) {
				return string(data), nil
			},
		},
		{
			name:   "DeleteReport",
			method: http.MethodDelete,
			path:   "/api/reports/r-1",
			setupMocks: func() {
				reports.On("Delete", mock.Anything, "r-1").Return(nil).Once()
			},
			expectedStatus: http.StatusNoContent,
			expected:       "",
			parseResponse: func(data []byte) (interface{}, error) {
				return string(data), nil
			},
		},
		{
			name:   "RemediateReport_Disabled",
			method: http.MethodPost,
			path:   "/api/reports/r-1/remediate",
			setupMocks: func() {
				reports.On("Remediate", mock.Anything, "r-1").
					Return(domain.ScoredReport{}, reportsvc.ErrRemediationDisabled).Once()
			},
			expectedStatus: http.StatusServiceUnavailable,
			expected:       "failed to remediate report\n",
			parseResponse: func(data []byte) (interface{}, error) {
				return string(data), nil
			},
		},
		{
			name:           "ListPolicies",
			method:         http.MethodGet,
			path:           "/api/policies/azure",
			setupMocks:     func() {},
			expectedStatus: http.StatusOK,
			expected:       1,
			parseResponse: func(data []byte) (interface{}, error) {
				var page api.PolicyPage
				err := json.Unmarshal(data, &page)
				return page.Total, err
			},
		},
		{
			name:           "GetPolicy",
			method:         http.MethodGet,
			path:           "/api/policies/azure/vault.rego",
			setupMocks:     func() {},
			expectedStatus: http.StatusOK,
			expected:       "azurerm_key_vault",
			parseResponse: func(data []byte) (interface{}, error) {
				var detail api.PolicyDetail
				err := json.Unmarshal(data, &detail)
				return detail.Metadata.ResourceType, err
			},
		},
		{
			name:           "ListPolicies_UnsupportedProvider",
			method:         http.MethodGet,
			path:           "/api/policies/oracle",
			setupMocks:     func() {},
			expectedStatus: http.StatusBadRequest,
			expected:       "unsupported provider: \"oracle\"\n",
			parseResponse: func(data []byte) (interface{}, error) {
				return string(data), nil
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMocks()

			req, err := http.NewRequest(tc.method, testServer.URL+tc.path, strings.NewReader(tc.body))
			require.NoError(t, err)
			if tc.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err, "Failed to send request")
			defer resp.Body.Close()

			assert.Equal(t, tc.expectedStatus, resp.StatusCode, "Status code mismatch")

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err, "Failed to read response body")

			actual, err := tc.parseResponse(body)
			require.NoError(t, err, "Failed to parse response")

			assert.Equal(t, tc.expected, actual)
		})
	}

	auditor.AssertExpectations(t)
	reports.AssertExpectations(t)
}

func unmarshalResponse[T any]() func([]byte) (interface{}, error) {
	return func(data []byte) (interface{}, error) {
		var response T
		err := json.Unmarshal(data, &response)
		return response, err
	}
}
