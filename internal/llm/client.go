// Package llm is a minimal client for OpenAI-compatible chat completion
// endpoints. The pipeline needs exactly one capability: submit a prompt,
// receive text.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prepd/prepd/internal/errors"
)

// DefaultModel is used when the provider configuration names no model.
const DefaultModel = "gpt-4o-mini"

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultTemperature = 0.2
	defaultMaxTokens   = 1024
	defaultTimeout     = 60 * time.Second

	// maxErrorBody bounds how much of an error response is kept for messages.
	maxErrorBody = 300
)

// Options configure a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client calls one chat-completions endpoint with fixed sampling settings.
type Client struct {
	baseURL     string
	model       string
	apiKey      string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// New creates a Client, applying defaults for unset options.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		model:       opts.Model,
		apiKey:      opts.APIKey,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		httpClient:  &http.Client{Timeout: opts.Timeout},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one system+user exchange and returns the reply text.
// HTTP 429 maps to a RATE_LIMITED error; other failures map to PROVIDER.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", errors.NewInternal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.NewProvider(fmt.Sprintf("provider request failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.NewProvider(fmt.Sprintf("reading provider response: %v", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", errors.NewRateLimited(parseRetryAfter(resp.Header.Get("Retry-After")))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.NewProvider(fmt.Sprintf("provider returned status %d: %s", resp.StatusCode, truncate(string(body), maxErrorBody)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errors.NewProvider(fmt.Sprintf("decoding provider response: %v", err))
	}
	if len(parsed.Choices) == 0 {
		return "", errors.NewProvider("provider returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// parseRetryAfter handles the delay-seconds form of Retry-After. The
// HTTP-date form is rare from completion APIs and is treated as absent.
func parseRetryAfter(header string) int {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
