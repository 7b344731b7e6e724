package audit

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
)

// ParsePlan decodes the JSON output of `terraform show -json`. The document
// must carry a `resource_changes` array whose elements are typed objects.
func ParsePlan(data []byte, sourceFile string) (*domain.Plan, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: plan is not a JSON object: %v", ErrInvalidInput, err)
	}

	rawChanges, ok := top["resource_changes"]
	if !ok {
		return nil, fmt.Errorf("%w: missing resource_changes", ErrInvalidInput)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(rawChanges, &items); err != nil || items == nil {
		return nil, fmt.Errorf("%w: resource_changes must be an array", ErrInvalidInput)
	}

	changes := make([]domain.ResourceChange, 0, len(items))
	for i, item := range items {
		var change domain.ResourceChange
		if err := json.Unmarshal(item, &change); err != nil {
			return nil, fmt.Errorf("%w: resource_changes[%d]: %v", ErrInvalidInput, i, err)
		}
		changes = append(changes, change)
	}

	if sourceFile != "" {
		sourceFile = filepath.Base(sourceFile)
	}

	return &domain.Plan{
		SourceFile:      sourceFile,
		ResourceChanges: changes,
	}, nil
}
