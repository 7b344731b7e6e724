// Package scoring turns a set of violations into a compliance score.
package scoring

import (
	"strings"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
)

const (
	MinScore = 0
	MaxScore = 100
)

// Policy is a weighted-deduction table. Severities missing from Weights
// cost Fallback points.
type Policy struct {
	Base     int
	Weights  map[domain.Severity]int
	Fallback int
}

func DefaultPolicy() Policy {
	return Policy{
		Base: MaxScore,
		Weights: map[domain.Severity]int{
			domain.SeverityHigh:    10,
			domain.SeverityMedium:  5,
			domain.SeverityLow:     2,
			domain.SeverityUnknown: 1,
		},
		Fallback: 1,
	}
}

// Weight returns the deduction for a single violation of severity s.
func (p Policy) Weight(s domain.Severity) int {
	w, ok := p.Weights[domain.Severity(strings.ToLower(strings.TrimSpace(string(s))))]
	if !ok {
		w = p.Fallback
	}
	if w < 0 {
		return 0
	}
	return w
}

// Score deducts the weight of every violation from Base and clamps the result.
func (p Policy) Score(violations []domain.Violation) int {
	score := p.Base
	for _, v := range violations {
		score -= p.Weight(v.Severity)
	}
	return Clamp(score)
}

func Clamp(score int) int {
	switch {
	case score < MinScore:
		return MinScore
	case score > MaxScore:
		return MaxScore
	default:
		return score
	}
}
