// Package rules describes Rego policy files without evaluating them and
// manages the on-disk policy catalog.
package rules

import (
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
)

const unknownValue = "unknown"

var (
	packagePattern = regexp.MustCompile(`(?m)^\s*package\s+([A-Za-z0-9_.]+)`)

	// deny[msg] {, deny[msg] if {, deny contains msg if {
	denyHeaderPattern = regexp.MustCompile(`(?m)^[ \t]*deny(?:\s*\[\s*\w+\s*\]|\s+contains\s+\w+)\s*(?:if\s*)?\{`)

	messagePattern   = regexp.MustCompile(`"message"\s*:\s*(?:sprintf\(\s*)?"((?:[^"\\]|\\.)*)"`)
	msgAssignPattern = regexp.MustCompile(`\bmsg\s*:?=\s*(?:sprintf\(\s*)?"((?:[^"\\]|\\.)*)"`)
	severityPattern  = regexp.MustCompile(`"severity"\s*:\s*"([^"]*)"`)
	controlPattern   = regexp.MustCompile(`"control"\s*:\s*"([^"]*)"`)
	ruleIDPattern    = regexp.MustCompile(`"rule_id"\s*:\s*"([^"]*)"`)

	headerCommentPattern = regexp.MustCompile(`(?i)^(?:METADATA\b|deny\b|rule\s*:|@)`)
)

// controlFamilies recognise compliance identifiers inside rule messages.
var controlFamilies = []*regexp.Regexp{
	// ISO 27001 A.10.1.1, ISO27001:2013 A.12.4
	regexp.MustCompile(`\bISO[\s-]?27001(?::\d{4})?[\s-]+A\.\d+(?:\.\d+)*`),
	// NIST SC-28, NIST 800-53 AC-2(1)
	regexp.MustCompile(`\bNIST(?:\s+(?:SP\s+)?800-53)?[\s:-]+[A-Z]{2}-\d+(?:\(\d+\))?`),
	// CIS 3.1, CIS Azure 4.1.2
	regexp.MustCompile(`\bCIS(?:\s+[A-Z][A-Za-z]*){0,3}\s+\d+(?:\.\d+)+`),
}

// Extract derives descriptive metadata from the text of a Rego file.
func Extract(text string) domain.RuleMetadata {
	rules := make([]domain.RuleInfo, 0)
	for _, body := range denyBlocks(text) {
		rules = append(rules, parseRule(body))
	}

	controlSet := make(map[string]struct{})
	severitySet := make(map[string]struct{})
	for _, r := range rules {
		for _, c := range r.Controls {
			controlSet[c] = struct{}{}
		}
		severitySet[r.Severity] = struct{}{}
	}

	return domain.RuleMetadata{
		Description:        description(text),
		RuleCount:          len(rules),
		ResourceType:       resourceType(text),
		ComplianceControls: sortedKeys(controlSet),
		SeverityLevels:     sortedKeys(severitySet),
		Rules:              rules,
	}
}

func description(text string) string {
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			break
		}
		comment := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		if comment == "" || headerCommentPattern.MatchString(comment) {
			continue
		}
		parts = append(parts, comment)
	}
	return strings.Join(parts, " ")
}

func resourceType(text string) string {
	m := packagePattern.FindStringSubmatch(text)
	if m == nil {
		return unknownValue
	}
	segments := strings.Split(m[1], ".")
	return segments[len(segments)-1]
}

// denyBlocks returns the body of every deny rule. An unterminated block runs
// to the end of the text.
func denyBlocks(text string) []string {
	var blocks []string
	for _, loc := range denyHeaderPattern.FindAllStringIndex(text, -1) {
		start := loc[1]
		blocks = append(blocks, text[start:matchBrace(text, start)])
	}
	return blocks
}

// matchBrace returns the index of the brace closing the block opened right
// before start. Braces inside string literals and comments are ignored.
func matchBrace(text string, start int) int {
	depth := 1
	inString := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '#':
			for i < len(text) && text[i] != '\n' {
				i++
			}
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(text)
}

func parseRule(body string) domain.RuleInfo {
	info := domain.RuleInfo{
		Severity: unknownValue,
		Controls: []string{},
	}

	if m := messagePattern.FindStringSubmatch(body); m != nil {
		info.Message = &m[1]
	} else if m := msgAssignPattern.FindStringSubmatch(body); m != nil {
		info.Message = &m[1]
	}
	if m := severityPattern.FindStringSubmatch(body); m != nil && m[1] != "" {
		info.Severity = strings.ToLower(m[1])
	}
	if m := ruleIDPattern.FindStringSubmatch(body); m != nil && m[1] != "" {
		info.RuleID = &m[1]
	}

	var inferred []string
	if info.Message != nil {
		inferred = InferControls(*info.Message)
	}

	if m := controlPattern.FindStringSubmatch(body); m != nil && m[1] != "" && m[1] != domain.ControlNotApplicable {
		info.Control = &m[1]
		info.Controls = append(info.Controls, m[1])
	} else if len(inferred) > 0 {
		info.Control = &inferred[0]
	}

	for _, c := range inferred {
		if !slices.Contains(info.Controls, c) {
			info.Controls = append(info.Controls, c)
		}
	}
	return info
}

// InferControls finds compliance identifiers in free text, leftmost first.
func InferControls(text string) []string {
	type match struct {
		pos   int
		value string
	}
	var matches []match
	for _, family := range controlFamilies {
		for _, loc := range family.FindAllStringIndex(text, -1) {
			matches = append(matches, match{pos: loc[0], value: text[loc[0]:loc[1]]})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].pos < matches[j].pos })

	res := make([]string, 0, len(matches))
	for _, m := range matches {
		if !slices.Contains(res, m.value) {
			res = append(res, m.value)
		}
	}
	return res
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
