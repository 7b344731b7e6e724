// Package rego evaluates deny queries in-process with the OPA Go library.
package rego

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/de-tools/policy-atlas/pkg/services/policy"
	"github.com/open-policy-agent/opa/rego"
	"github.com/spf13/afero"
)

const policyExtension = ".rego"

// Engine loads every policy file under the rule root on each request, so
// catalog edits take effect on the next evaluation.
type Engine struct {
	fs afero.Fs
}

func NewEngine(fs afero.Fs) *Engine {
	return &Engine{fs: fs}
}

func (e *Engine) Evaluate(ctx context.Context, req policy.Request) ([]any, error) {
	modules, err := e.loadModules(req.RuleRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", policy.ErrEngineFatal, err)
	}

	opts := []func(*rego.Rego){
		rego.Query(req.Query()),
		rego.Input(req.Input),
	}
	for path, content := range modules {
		opts = append(opts, rego.Module(path, content))
	}

	rs, err := rego.New(opts...).Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", req.Package, err)
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return []any{}, nil
	}
	items, ok := rs[0].Expressions[0].Value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected deny value of type %T", rs[0].Expressions[0].Value)
	}
	return items, nil
}

func (e *Engine) loadModules(root string) (map[string]string, error) {
	if _, err := e.fs.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("rule root %s does not exist", root)
		}
		return nil, err
	}

	modules := make(map[string]string)
	err := afero.Walk(e.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), policyExtension) {
			return nil
		}
		content, err := afero.ReadFile(e.fs, path)
		if err != nil {
			return err
		}
		modules[filepath.ToSlash(path)] = string(content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load policies from %s: %w", root, err)
	}
	return modules, nil
}
