// Package remediation asks a chat-completion model for fixes to violations.
package remediation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/de-tools/policy-atlas/pkg/services/httpclient"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultBaseURL     = "https://api.deepseek.com/v1"
	DefaultModel       = "deepseek-chat"
	DefaultTemperature = 0.5
	DefaultMaxTokens   = 256

	// NoSuggestion is returned when the model answers with an empty message.
	NoSuggestion = "No remediation suggestion returned."
	// Unavailable replaces a suggestion when the service cannot be reached.
	Unavailable = "Remediation service unavailable."

	systemPrompt = "You are a cloud compliance expert. Provide a short and actionable remediation for each cloud compliance issue."
	userPrompt   = "Suggest a remediation for this issue:\n\nResource Type: %s\nMessage: %s"
)

type Settings struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

func DefaultSettings() Settings {
	return Settings{
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

type Client struct {
	http     *retryablehttp.Client
	settings Settings
}

func NewClient(settings Settings, httpClient *retryablehttp.Client) (*Client, error) {
	if settings.APIKey == "" {
		return nil, fmt.Errorf("remediation api key is required")
	}
	if httpClient == nil {
		return nil, fmt.Errorf("http client is nil")
	}

	defaults := DefaultSettings()
	if settings.BaseURL == "" {
		settings.BaseURL = defaults.BaseURL
	}
	if settings.Model == "" {
		settings.Model = defaults.Model
	}
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = defaults.MaxTokens
	}

	return &Client{http: httpClient, settings: settings}, nil
}

// Suggest returns a short remediation for v. Transport failures and non-2xx
// answers are errors; an empty answer is NoSuggestion.
func (c *Client) Suggest(ctx context.Context, v domain.Violation) (string, error) {
	payload, err := json.Marshal(completionRequest{
		Model: c.settings.Model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(userPrompt, v.ResourceType, v.Message)},
		},
		Temperature: c.settings.Temperature,
		MaxTokens:   c.settings.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	url := strings.TrimRight(c.settings.BaseURL, "/") + "/chat/completions"
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.settings.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request remediation: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read remediation response: %w", err)
	}
	if !httpclient.IsSuccess(resp) {
		return "", &httpclient.StatusError{Service: "remediation", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out completionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode remediation response: %w", err)
	}
	if len(out.Choices) == 0 {
		return NoSuggestion, nil
	}
	suggestion := strings.TrimSpace(out.Choices[0].Message.Content)
	if suggestion == "" {
		return NoSuggestion, nil
	}
	return suggestion, nil
}
