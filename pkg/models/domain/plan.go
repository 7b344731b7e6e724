package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// UntypedResource is the group key for changes that carry no resource type.
const UntypedResource = "unknown"

// ResourceChange is one planned change from a Terraform plan. Raw keeps the
// provider-specific document exactly as it appeared in the plan.
type ResourceChange struct {
	Type    string
	Address string
	Raw     map[string]any
}

// Document returns the change as it should be handed to a rule engine.
func (r ResourceChange) Document() map[string]any {
	if r.Raw != nil {
		return r.Raw
	}
	doc := map[string]any{"type": r.Type}
	if r.Address != "" {
		doc["address"] = r.Address
	}
	return doc
}

func (r ResourceChange) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Document())
}

func (r *ResourceChange) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("resource change must be an object")
	}

	// A change without a usable type is kept; it is grouped as UntypedResource.
	typ, _ := raw["type"].(string)
	addr, _ := raw["address"].(string)

	r.Type = typ
	r.Address = addr
	r.Raw = raw
	return nil
}

// Plan is the subset of `terraform show -json` output the auditor reads.
type Plan struct {
	SourceFile      string           `json:"-"`
	ResourceChanges []ResourceChange `json:"resource_changes"`
}

// ResourceGroups maps a resource type to its changes in plan order.
type ResourceGroups map[string][]ResourceChange

// Types returns the group keys in a stable order.
func (g ResourceGroups) Types() []string {
	types := make([]string, 0, len(g))
	for t := range g {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Len returns the number of changes across all groups.
func (g ResourceGroups) Len() int {
	n := 0
	for _, changes := range g {
		n += len(changes)
	}
	return n
}
