// Package provider implements the AI provider client: prompt construction,
// a single chat-completions call per attempt, failure classification, and
// retry with exponential backoff for transient failures.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// Client issues chat-completions requests to an OpenAI-compatible endpoint.
// It holds no per-call state and is safe for concurrent use.
type Client struct {
	http           *http.Client
	endpoint       string
	apiKey         string
	model          string
	requestTimeout time.Duration
	maxRetries     int
	backoffBase    time.Duration
	backoffCap     time.Duration
	logger         *slog.Logger
}

// NewClient creates a Client from a finalized config.
func NewClient(cfg *Config, logger *slog.Logger) *Client {
	return &Client{
		http:           &http.Client{},
		endpoint:       strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		requestTimeout: cfg.RequestTimeoutDuration(),
		maxRetries:     cfg.MaxRetries,
		backoffBase:    cfg.BackoffBaseDuration(),
		backoffCap:     cfg.BackoffCapDuration(),
		logger:         logger.With("system", "provider"),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Invoke runs the operation against the provider, retrying transient failures
// up to the configured attempt budget with exponential backoff. Permanent
// failures short-circuit. On exhaustion, the last transient failure is
// returned with Retryable forced false. The caller's context bounds the whole
// exchange and aborts pending retries when cancelled.
func (c *Client) Invoke(ctx context.Context, text, operation string, options map[string]any) Outcome {
	var last Failure

	for attempt := range c.maxRetries {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Outcome{Failure: &Failure{
					Kind:      FailureTransient,
					Retryable: false,
					Message:   fmt.Sprintf("aborted before attempt %d: %v", attempt+1, ctx.Err()),
				}}
			case <-time.After(c.backoff(attempt)):
			}
		}

		out := c.attempt(ctx, text, operation, options)
		if out.Failure == nil || !out.Failure.Retryable {
			return out
		}

		last = *out.Failure
		c.logger.Warn(
			"transient provider failure",
			"operation", operation,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"status", last.StatusCode,
			"error", last.Message,
		)
	}

	// Retry budget spent; no longer useful to retry further.
	last.Retryable = false
	return Outcome{Failure: &last}
}

// Health issues a minimal one-token completion to verify reachability.
func (c *Client) Health(ctx context.Context) error {
	payload := chatRequest{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: "Hello"}},
		MaxTokens: 5,
	}

	out := c.post(ctx, payload)
	if out.Failure != nil {
		return fmt.Errorf("provider health check: %s", out.Failure.Message)
	}
	return nil
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := c.backoffBase * time.Duration(1<<(attempt-1))
	if delay > c.backoffCap {
		delay = c.backoffCap
	}
	return delay
}

func (c *Client) attempt(ctx context.Context, text, operation string, options map[string]any) Outcome {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(operation)},
			{Role: "user", Content: userPrompt(text, operation, options)},
		},
		Temperature: floatOption(options, "temperature", 0.7),
		MaxTokens:   intOption(options, "max_tokens", 2000),
	}

	return c.post(ctx, payload)
}

func (c *Client) post(ctx context.Context, payload chatRequest) Outcome {
	attemptCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return permanentFailure(0, "encode payload: %v", err)
	}

	req, err := http.NewRequestWithContext(
		attemptCtx,
		http.MethodPost,
		c.endpoint+"/chat/completions",
		bytes.NewReader(body),
	)
	if err != nil {
		return permanentFailure(0, "build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Covers dial failures and the per-attempt timeout.
		return transientFailure(0, "request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transientFailure(resp.StatusCode, "read response: %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return transientFailure(resp.StatusCode, "provider returned status %d: %s", resp.StatusCode, summarize(raw))
	default:
		return permanentFailure(resp.StatusCode, "provider returned status %d: %s", resp.StatusCode, summarize(raw))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return permanentFailure(resp.StatusCode, "malformed response: %v", err)
	}
	if len(parsed.Choices) == 0 {
		return permanentFailure(resp.StatusCode, "malformed response: no choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return permanentFailure(resp.StatusCode, "malformed response: empty content")
	}

	model := parsed.Model
	if model == "" {
		model = c.model
	}

	return Outcome{
		ModifiedText: content,
		ModelUsed:    model,
		TokensUsed:   parsed.Usage.TotalTokens,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func floatOption(options map[string]any, key string, fallback float64) float64 {
	if v, ok := options[key].(float64); ok {
		return v
	}
	return fallback
}

func intOption(options map[string]any, key string, fallback int) int {
	switch v := options[key].(type) {
	case int:
		return v
	case float64:
		// JSON numbers decode as float64.
		return int(v)
	}
	return fallback
}

func summarize(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
