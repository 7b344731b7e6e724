package opa

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/de-tools/policy-atlas/pkg/services/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOPA writes a shell script standing in for the opa binary.
func fakeOPA(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "opa")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func request(t *testing.T) policy.Request {
	return policy.Request{
		Package:  "terraform.azure.azurerm_storage_account",
		RuleRoot: t.TempDir(),
		Input:    map[string]any{"resource_changes": []any{map[string]any{"type": "azurerm_storage_account"}}},
	}
}

func TestEngine_Evaluate(t *testing.T) {
	bin := fakeOPA(t, `cat > /dev/null
echo '{"result":[{"expressions":[{"value":[{"message":"Storage account must enable encryption","severity":"high"},"plain"],"text":"data.x.deny"}]}]}'
`)

	items, err := NewEngine(bin).Evaluate(context.Background(), request(t))

	require.NoError(t, err)
	assert.Equal(t, []any{
		map[string]any{"message": "Storage account must enable encryption", "severity": "high"},
		"plain",
	}, items)
}

func TestEngine_PassesQueryAndInput(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args")
	inputFile := filepath.Join(dir, "input")
	bin := fakeOPA(t, `echo "$@" > `+argsFile+`
cat > `+inputFile+`
echo '{}'
`)
	req := request(t)

	items, err := NewEngine(bin).Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, items)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "eval --stdin-input --data "+req.RuleRoot+" --format json data.terraform.azure.azurerm_storage_account.deny\n", string(args))

	input, err := os.ReadFile(inputFile)
	require.NoError(t, err)
	assert.JSONEq(t, `{"resource_changes":[{"type":"azurerm_storage_account"}]}`, string(input))
}

func TestEngine_Failures(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"non-zero exit", "echo 'rego_parse_error' >&2\nexit 1\n"},
		{"invalid json", "echo 'not json'\n"},
		{"deny value is not a set", `echo '{"result":[{"expressions":[{"value":{"a":1}}]}]}'` + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(fakeOPA(t, tt.script)).Evaluate(context.Background(), request(t))

			require.Error(t, err)
			assert.NotErrorIs(t, err, policy.ErrEngineFatal)
		})
	}
}

func TestEngine_MissingBinary(t *testing.T) {
	_, err := NewEngine(filepath.Join(t.TempDir(), "missing-opa")).Evaluate(context.Background(), request(t))

	require.Error(t, err)
	assert.NotErrorIs(t, err, policy.ErrEngineFatal)
}

func TestEngine_MissingRuleRootIsFatal(t *testing.T) {
	req := request(t)
	req.RuleRoot = filepath.Join(req.RuleRoot, "does-not-exist")

	_, err := NewEngine("opa").Evaluate(context.Background(), req)

	assert.ErrorIs(t, err, policy.ErrEngineFatal)
}
