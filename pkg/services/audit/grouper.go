package audit

import "github.com/de-tools/policy-atlas/pkg/models/domain"

// GroupByType partitions changes by resource type. Each change lands in exactly
// one group and keeps its relative plan order. Changes without a type are
// grouped under domain.UntypedResource.
func GroupByType(changes []domain.ResourceChange) domain.ResourceGroups {
	groups := make(domain.ResourceGroups)
	for _, change := range changes {
		key := change.Type
		if key == "" {
			key = domain.UntypedResource
		}
		groups[key] = append(groups[key], change)
	}
	return groups
}
