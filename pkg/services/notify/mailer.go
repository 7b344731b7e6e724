// Package notify emails audit summaries through the MailerSend API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/de-tools/policy-atlas/pkg/services/httpclient"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const (
	DefaultEndpoint  = "https://api.mailersend.com/v1/email"
	DefaultFromEmail = "no-reply@yourdomain.com"
	DefaultFromName  = "PFS Audit System"
)

type Settings struct {
	APIKey     string   `mapstructure:"api_key"`
	Endpoint   string   `mapstructure:"endpoint"`
	FromEmail  string   `mapstructure:"from_email"`
	FromName   string   `mapstructure:"from_name"`
	Recipients []string `mapstructure:"recipients"`
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type email struct {
	From    address   `json:"from"`
	To      []address `json:"to"`
	Subject string    `json:"subject"`
	HTML    string    `json:"html"`
}

var summaryTemplate = template.Must(template.New("summary").Parse(`<h2>Compliance audit {{.ReportID}}</h2>
<p>Source: {{.SourceFile}}<br>Generated: {{.GeneratedAt}}<br>Score: <strong>{{.Score}}</strong>/100</p>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Severity</th><th>Violations</th></tr>
{{range .Severities}}<tr><td>{{.Name}}</td><td>{{.Count}}</td></tr>
{{end}}</table>
{{if .Findings}}<h3>Findings</h3>
<ul>
{{range .Findings}}<li><strong>[{{.Severity}}]</strong> {{.ResourceName}}: {{.Message}}{{if .Remediation}}<br><em>{{.Remediation}}</em>{{end}}</li>
{{end}}</ul>{{else}}<p>No violations found.</p>{{end}}
`))

type severityRow struct {
	Name  domain.Severity
	Count int
}

type Mailer struct {
	http     *retryablehttp.Client
	settings Settings
}

func NewMailer(settings Settings, httpClient *retryablehttp.Client) (*Mailer, error) {
	if settings.APIKey == "" {
		return nil, fmt.Errorf("mail api key is required")
	}
	if httpClient == nil {
		return nil, fmt.Errorf("http client is nil")
	}
	if settings.Endpoint == "" {
		settings.Endpoint = DefaultEndpoint
	}
	if settings.FromEmail == "" {
		settings.FromEmail = DefaultFromEmail
	}
	if settings.FromName == "" {
		settings.FromName = DefaultFromName
	}
	return &Mailer{http: httpClient, settings: settings}, nil
}

// Send delivers a single HTML email.
func (m *Mailer) Send(ctx context.Context, to, subject, html string) error {
	payload, err := json.Marshal(email{
		From:    address{Email: m.settings.FromEmail, Name: m.settings.FromName},
		To:      []address{{Email: to}},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, m.settings.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.settings.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if !httpclient.IsSuccess(resp) {
		body, _ := io.ReadAll(resp.Body)
		return &httpclient.StatusError{Service: "mailersend", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// NotifyAudit mails the report summary to every configured recipient.
// Delivery continues past individual failures; the joined error is returned.
func (m *Mailer) NotifyAudit(ctx context.Context, r domain.ScoredReport) error {
	if len(m.settings.Recipients) == 0 {
		return nil
	}

	html, err := RenderSummary(r)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Compliance audit %s: score %d, %d violation(s)", r.SourceFile, r.Score, r.Summary.TotalViolations)

	logger := zerolog.Ctx(ctx)
	var errs []error
	for _, to := range m.settings.Recipients {
		if err := m.Send(ctx, to, subject, html); err != nil {
			logger.Warn().Err(err).Str("recipient", to).Msg("failed to send audit notification")
			errs = append(errs, err)
			continue
		}
		logger.Debug().Str("recipient", to).Str("report_id", r.ReportID).Msg("audit notification sent")
	}
	return errors.Join(errs...)
}

// RenderSummary renders the HTML body of an audit notification.
func RenderSummary(r domain.ScoredReport) (string, error) {
	rows := make([]severityRow, 0, len(domain.Severities))
	for _, s := range domain.Severities {
		rows = append(rows, severityRow{Name: s, Count: r.Summary.BySeverity[s]})
	}

	var buf bytes.Buffer
	err := summaryTemplate.Execute(&buf, struct {
		domain.ScoredReport
		Severities []severityRow
	}{r, rows})
	if err != nil {
		return "", fmt.Errorf("render notification: %w", err)
	}
	return buf.String(), nil
}
