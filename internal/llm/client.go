// Package llm talks to the Anthropic Messages API and turns replies into
// invoice categorizations.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL    = "https://api.anthropic.com/v1/messages"
	DefaultModel      = "claude-3-5-sonnet-20241022"
	APIVersion        = "2023-06-01"
	maxResponseSize   = 10 * 1024 * 1024
	maxRateLimitDelay = 300 * time.Second
)

var (
	ErrNotConfigured = errors.New("llm API key not configured")
	ErrRateLimited   = errors.New("llm rate limited")
	ErrNoJSON        = errors.New("no JSON object in llm response")
)

// APIError is a non-2xx reply from the API.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("llm api error [%s] (HTTP %d): %s", e.Type, e.Status, e.Message)
	}
	return fmt.Sprintf("llm api error (HTTP %d): %s", e.Status, e.Message)
}

// Usage is the token accounting returned with a completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Completion is the text of a reply plus its usage.
type Completion struct {
	Text  string
	Usage Usage
	Model string
}

// Completer is anything that turns a prompt into a Completion.
type Completer interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

type Config struct {
	APIKey            string
	Model             string
	MaxTokens         int
	Temperature       float64
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
	BaseURL           string
	HTTPClient        *http.Client
}

// Client is a rate limited, retrying Messages API client.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	backoff func(kind retryKind, attempt int) time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 30
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	perRequest := time.Minute / time.Duration(cfg.RequestsPerMinute)
	return &Client{
		cfg:     cfg,
		http:    hc,
		limiter: rate.NewLimiter(rate.Every(perRequest), 1),
		backoff: defaultBackoff,
	}
}

func (c *Client) Model() string { return c.cfg.Model }

type retryKind int

const (
	retryRateLimit retryKind = iota
	retryAPI
	retryTransport
)

// defaultBackoff: rate limits wait 60*2^attempt seconds capped at five
// minutes, server errors 10*(attempt+1) seconds, transport errors
// 5*(attempt+1) seconds.
func defaultBackoff(kind retryKind, attempt int) time.Duration {
	switch kind {
	case retryRateLimit:
		d := 60 * time.Second << attempt
		if d > maxRateLimitDelay || d <= 0 {
			return maxRateLimitDelay
		}
		return d
	case retryAPI:
		return time.Duration(10*(attempt+1)) * time.Second
	default:
		return time.Duration(5*(attempt+1)) * time.Second
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage Usage `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends prompt as a single user message. It waits on the RPM limiter
// before every attempt and retries up to MaxRetries times.
func (c *Client) Complete(ctx context.Context, prompt string) (Completion, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem is Complete with a system prompt.
func (c *Client) CompleteWithSystem(ctx context.Context, system, prompt string) (Completion, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return Completion{}, ErrNotConfigured
	}
	body, err := json.Marshal(messagesRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		System:      system,
		Messages:    []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return Completion{}, fmt.Errorf("wait for rate limiter: %w", err)
		}

		out, err := c.do(ctx, body)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return Completion{}, ctx.Err()
		}
		lastErr = err

		kind, retryable := classify(err)
		if !retryable || attempt == c.cfg.MaxRetries {
			break
		}
		delay := c.backoff(kind, attempt)
		slog.WarnContext(ctx, "LLM request failed, retrying",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)
		select {
		case <-ctx.Done():
			return Completion{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return Completion{}, fmt.Errorf("complete: %w", lastErr)
}

func classify(err error) (retryKind, bool) {
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrRateLimited):
		return retryRateLimit, true
	case errors.As(err, &apiErr):
		return retryAPI, apiErr.Status >= 500
	default:
		return retryTransport, true
	}
}

func (c *Client) do(ctx context.Context, body []byte) (Completion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return Completion{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Completion{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		_ = json.Unmarshal(raw, &er)
		if resp.StatusCode == http.StatusTooManyRequests {
			return Completion{}, fmt.Errorf("%w: %s", ErrRateLimited, er.Error.Message)
		}
		msg := er.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return Completion{}, &APIError{Status: resp.StatusCode, Type: er.Error.Type, Message: msg}
	}

	var mr messagesResponse
	if err := json.Unmarshal(raw, &mr); err != nil {
		return Completion{}, fmt.Errorf("decode response: %w", err)
	}
	var text strings.Builder
	for _, block := range mr.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return Completion{Text: text.String(), Usage: mr.Usage, Model: mr.Model}, nil
}
