package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/de-tools/policy-atlas/pkg/services/rules"
	"github.com/fatih/color"
)

type TableConfig struct {
	SeverityWidth int
	ResourceWidth int
	ControlWidth  int
	MessageWidth  int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		SeverityWidth: 8,
		ResourceWidth: 44,
		ControlWidth:  20,
		MessageWidth:  60,
	}
}

// Reporter renders reports and policies for a terminal.
type Reporter struct {
	writer io.Writer
	config TableConfig
	plain  bool
}

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
}

// Plain disables colour output.
func (c *Reporter) Plain() *Reporter {
	c.plain = true
	return c
}

func (c *Reporter) paint(attrs ...color.Attribute) *color.Color {
	p := color.New(attrs...)
	if c.plain {
		p.DisableColor()
	}
	return p
}

func (c *Reporter) severityColor(s domain.Severity) *color.Color {
	switch s.Canonical() {
	case domain.SeverityHigh:
		return c.paint(color.FgRed, color.Bold)
	case domain.SeverityMedium:
		return c.paint(color.FgYellow)
	case domain.SeverityLow:
		return c.paint(color.FgCyan)
	default:
		return c.paint(color.FgWhite)
	}
}

func (c *Reporter) scoreColor(score int) *color.Color {
	switch {
	case score >= 80:
		return c.paint(color.FgGreen, color.Bold)
	case score >= 50:
		return c.paint(color.FgYellow, color.Bold)
	default:
		return c.paint(color.FgRed, color.Bold)
	}
}

func (c *Reporter) funcMap() template.FuncMap {
	return template.FuncMap{
		"formatRow": func(severity domain.Severity, resource, control, message string) string {
			cell := fmt.Sprintf("%-*s", c.config.SeverityWidth, severity)
			return fmt.Sprintf("| %s | %-*s | %-*s | %-*s |",
				c.severityColor(severity).Sprint(cell),
				c.config.ResourceWidth, resource,
				c.config.ControlWidth, control,
				c.config.MessageWidth, message)
		},
		"header": func() string {
			return fmt.Sprintf("| %-*s | %-*s | %-*s | %-*s |",
				c.config.SeverityWidth, "Severity",
				c.config.ResourceWidth, "Resource",
				c.config.ControlWidth, "Control",
				c.config.MessageWidth, "Message")
		},
		"separator": func() string {
			return fmt.Sprintf("+%s+%s+%s+%s+",
				strings.Repeat("-", c.config.SeverityWidth+2),
				strings.Repeat("-", c.config.ResourceWidth+2),
				strings.Repeat("-", c.config.ControlWidth+2),
				strings.Repeat("-", c.config.MessageWidth+2))
		},
		"score": func(score int) string {
			return c.scoreColor(score).Sprintf("%d/100", score)
		},
		"bucket": func(s domain.Severity, n int) string {
			return c.severityColor(s).Sprintf("%-8s %d", s, n)
		},
		"title": func(s string) string {
			return c.paint(color.Bold).Sprint(s)
		},
		"severities": func() []domain.Severity {
			return domain.Severities
		},
		"join": strings.Join,
	}
}

const reportTemplate = `
{{title "Compliance report"}} {{.ReportID}}
Source: {{.SourceFile}}
Generated: {{.GeneratedAt}}
Status: {{.Status}}
Score: {{score .Score}}
{{$by := .Summary.BySeverity}}
=== Violations by severity ({{.Summary.TotalViolations}}) ===
{{range severities}}{{bucket . (index $by .)}}
{{end}}{{if .Controls}}
Controls: {{join .Controls ", "}}
{{end}}{{if .Findings}}
{{separator}}
{{header}}
{{separator}}
{{range .Findings}}{{formatRow .Severity .ResourceName .Control .Message}}
{{end}}{{separator}}
{{else}}
No violations found.
{{end}}{{if .RemediationSteps}}
=== Remediation ===
{{range .RemediationSteps}}- {{.ResourceName}}: {{.Remediation}}
{{end}}{{end}}`

// Report prints a full compliance report.
func (c *Reporter) Report(report domain.ScoredReport) error {
	t, err := template.New("report").Funcs(c.funcMap()).Parse(reportTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	return t.Execute(c.writer, report)
}

// Entries prints one line per stored report.
func (c *Reporter) Entries(entries []domain.ReportEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(c.writer, "No reports found.")
		return err
	}
	for _, e := range entries {
		_, err := fmt.Fprintf(c.writer, "%-36s  %-20s  %s  %3d violations  %s\n",
			e.ReportID,
			e.GeneratedAt,
			c.scoreColor(e.Score).Sprintf("%3d", e.Score),
			e.Summary.TotalViolations,
			e.SourceFile)
		if err != nil {
			return err
		}
	}
	return nil
}

// Policies prints one page of the rule catalog.
func (c *Reporter) Policies(provider string, page rules.Page) error {
	if page.Total == 0 {
		_, err := fmt.Fprintf(c.writer, "No policies found for %s.\n", provider)
		return err
	}
	for _, p := range page.Items {
		_, err := fmt.Fprintf(c.writer, "%-40s  %-40s  %2d rules  %s\n",
			c.paint(color.Bold).Sprint(p.Name),
			p.Metadata.ResourceType,
			p.Metadata.RuleCount,
			strings.Join(p.Metadata.ComplianceControls, ", "))
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(c.writer, "Page %d of %d (%d policies)\n", page.Page, page.TotalPages, page.Total)
	return err
}

// Policy prints a policy's metadata followed by its source.
func (c *Reporter) Policy(file domain.PolicyFile, content []byte) error {
	m := file.Metadata
	_, err := fmt.Fprintf(c.writer, "%s (%s)\nResource type: %s\nRules: %d\nSeverities: %s\nControls: %s\n",
		c.paint(color.Bold).Sprint(file.Name),
		file.Provider,
		m.ResourceType,
		m.RuleCount,
		strings.Join(m.SeverityLevels, ", "),
		strings.Join(m.ComplianceControls, ", "))
	if err != nil {
		return err
	}
	if m.Description != "" {
		if _, err := fmt.Fprintf(c.writer, "Description: %s\n", m.Description); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(c.writer, "\n%s\n", strings.TrimRight(string(content), "\n"))
	return err
}
