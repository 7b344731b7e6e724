// Package policy evaluates planned resource changes against Rego deny rules
// through a pluggable RuleEngine.
package policy

import (
	"context"
	"errors"
	"strings"
)

// ErrEngineFatal marks engine failures that no single resource can recover
// from, such as an unreadable rule root. Everything else is absorbed.
var ErrEngineFatal = errors.New("rule engine unavailable")

// Request asks an engine for the deny set of one package over one input document.
type Request struct {
	Package  string
	RuleRoot string
	Input    map[string]any
}

// Query is the fully qualified deny rule of the package.
func (r Request) Query() string {
	return "data." + r.Package + ".deny"
}

// RuleEngine evaluates a deny query and returns the raw result items.
type RuleEngine interface {
	Evaluate(ctx context.Context, req Request) ([]any, error)
}

var packageReplacer = strings.NewReplacer(".", "_", "-", "_", "/", "_")

// PackageFor maps a resource type to its rule package,
// e.g. terraform.azure + azurerm_storage_account.
func PackageFor(prefix, resourceType string) string {
	name := packageReplacer.Replace(resourceType)
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
