package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	c := NewClient(Config{
		APIKey:            "test-key",
		BaseURL:           url,
		MaxRetries:        retries,
		RequestsPerMinute: 60000,
		Temperature:       0.1,
	})
	c.backoff = func(retryKind, int) time.Duration { return time.Millisecond }
	return c
}

func okResponse(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"model":   DefaultModel,
		"content": []map[string]string{{"type": "text", "text": text}},
		"usage":   map[string]int{"input_tokens": 12, "output_tokens": 30},
	})
}

func TestComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, APIVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, 4000, req.MaxTokens)
		assert.InDelta(t, 0.1, req.Temperature, 1e-9)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "hello", req.Messages[0].Content)

		okResponse(w, "hi there")
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 1)
	out, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", out.Text)
	assert.Equal(t, 42, out.Usage.Total())
}

func TestComplete_NotConfigured(t *testing.T) {
	c := NewClient(Config{})
	_, err := c.Complete(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestComplete_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
			return
		}
		okResponse(w, "ok")
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 1)
	out, err := c.Complete(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestComplete_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"boom"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 2)
	_, err := c.Complete(context.Background(), "x")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "api_error", apiErr.Type)
	assert.Equal(t, int32(3), calls.Load())
}

func TestComplete_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"bad"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 3)
	_, err := c.Complete(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestComplete_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, 5)
	c.backoff = func(retryKind, int) time.Duration { return time.Hour }

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Complete(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDefaultBackoff(t *testing.T) {
	tests := []struct {
		kind    retryKind
		attempt int
		want    time.Duration
	}{
		{retryRateLimit, 0, 60 * time.Second},
		{retryRateLimit, 1, 120 * time.Second},
		{retryRateLimit, 2, 240 * time.Second},
		{retryRateLimit, 3, 300 * time.Second},
		{retryAPI, 0, 10 * time.Second},
		{retryAPI, 2, 30 * time.Second},
		{retryTransport, 0, 5 * time.Second},
		{retryTransport, 1, 10 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, defaultBackoff(tt.kind, tt.attempt), "kind=%d attempt=%d", tt.kind, tt.attempt)
	}
}
