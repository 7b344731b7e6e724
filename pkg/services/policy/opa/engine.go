// Package opa runs deny queries through the `opa` command line binary.
package opa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/de-tools/policy-atlas/pkg/services/policy"
	"github.com/rs/zerolog"
)

const DefaultBinary = "opa"

// Engine shells out to `opa eval` once per request.
type Engine struct {
	binary string
}

func NewEngine(binary string) *Engine {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Engine{binary: binary}
}

type evalOutput struct {
	Result []struct {
		Expressions []struct {
			Value json.RawMessage `json:"value"`
		} `json:"expressions"`
	} `json:"result"`
}

func (e *Engine) Evaluate(ctx context.Context, req policy.Request) ([]any, error) {
	if _, err := os.Stat(req.RuleRoot); err != nil {
		return nil, fmt.Errorf("%w: %v", policy.ErrEngineFatal, err)
	}

	input, err := json.Marshal(req.Input)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary,
		"eval",
		"--stdin-input",
		"--data", req.RuleRoot,
		"--format", "json",
		req.Query(),
	)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		zerolog.Ctx(ctx).Warn().
			Str("package", req.Package).
			Str("stderr", msg).
			Msg("opa reported diagnostics")
	}
	if runErr != nil {
		return nil, fmt.Errorf("opa eval %s: %w", req.Package, runErr)
	}

	return parseOutput(stdout.Bytes())
}

// parseOutput extracts the deny set from `opa eval --format json`. An
// undefined query (no package for the type) has no result and means no
// violations.
func parseOutput(data []byte) ([]any, error) {
	var out evalOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse opa output: %w", err)
	}
	if len(out.Result) == 0 || len(out.Result[0].Expressions) == 0 {
		return []any{}, nil
	}

	var items []any
	if err := json.Unmarshal(out.Result[0].Expressions[0].Value, &items); err != nil {
		return nil, fmt.Errorf("unexpected deny value: %w", err)
	}
	if items == nil {
		items = []any{}
	}
	return items, nil
}
