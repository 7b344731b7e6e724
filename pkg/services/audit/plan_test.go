package audit

import (
	"testing"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlan(t *testing.T) {
	plan, err := ParsePlan([]byte(`{
		"format_version": "1.2",
		"resource_changes": [
			{"address": "azurerm_storage_account.logs", "type": "azurerm_storage_account", "change": {"actions": ["create"], "after": {"min_tls_version": "TLS1_0"}}},
			{"type": "azurerm_key_vault"}
		]
	}`), "/tmp/upload/tfplan.json")

	require.NoError(t, err)
	assert.Equal(t, "tfplan.json", plan.SourceFile)
	require.Len(t, plan.ResourceChanges, 2)
	assert.Equal(t, "azurerm_storage_account.logs", plan.ResourceChanges[0].Address)
	assert.Equal(t, "azurerm_key_vault", plan.ResourceChanges[1].Type)
	assert.Empty(t, plan.ResourceChanges[1].Address)
	assert.Equal(t, map[string]any{"min_tls_version": "TLS1_0"},
		plan.ResourceChanges[0].Raw["change"].(map[string]any)["after"])
}

func TestParsePlan_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `resource_changes`},
		{"top level array", `[]`},
		{"missing resource_changes", `{"planned_values": {}}`},
		{"resource_changes is an object", `{"resource_changes": {}}`},
		{"resource_changes is null", `{"resource_changes": null}`},
		{"element is not an object", `{"resource_changes": ["azurerm_storage_account"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan([]byte(tt.raw), "")
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestParsePlan_KeepsUntypedChanges(t *testing.T) {
	plan, err := ParsePlan([]byte(`{"resource_changes": [
		{"type": "azurerm_storage_account"},
		{"address": "module.x.data"},
		{"type": 42}
	]}`), "")

	require.NoError(t, err)
	require.Len(t, plan.ResourceChanges, 3)
	assert.Empty(t, plan.ResourceChanges[1].Type)
	assert.Equal(t, "module.x.data", plan.ResourceChanges[1].Address)
	assert.Empty(t, plan.ResourceChanges[2].Type)

	groups := GroupByType(plan.ResourceChanges)
	assert.Equal(t, []string{"azurerm_storage_account", domain.UntypedResource}, groups.Types())
	assert.Equal(t, 3, groups.Len())
	assert.Len(t, groups[domain.UntypedResource], 2)
}

func TestParsePlan_EmptyChanges(t *testing.T) {
	plan, err := ParsePlan([]byte(`{"resource_changes": []}`), "")

	require.NoError(t, err)
	assert.Empty(t, plan.ResourceChanges)
	assert.NotNil(t, plan.ResourceChanges)
	assert.Empty(t, plan.SourceFile)
}
