package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentLLM, Output: &buf})

	logger.Info("call finished", FieldTokens, 42)
	logger.WithComponent(ComponentCache).Debug("miss")

	out := buf.String()
	if !strings.Contains(out, "component=llm") || !strings.Contains(out, "tokens=42") {
		t.Errorf("unexpected output: %s", out)
	}
	if !strings.Contains(out, "component=cache") {
		t.Errorf("expected cache component in output: %s", out)
	}
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Component: ComponentApp, Format: "json", Output: &buf})
	logger.Info("hello")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected JSON output, got %s", buf.String())
	}
}

func TestLogFieldsToSliceIsSorted(t *testing.T) {
	fields := NewFields().
		WithInvoice("inv-1", "AWS", 1200).
		WithLLMUsage(100, 0.015).
		WithError(errors.New("boom"))

	got := fields.ToSlice()
	if len(got) != 12 {
		t.Fatalf("expected 12 entries, got %d", len(got))
	}
	for i := 2; i < len(got); i += 2 {
		if got[i-2].(string) > got[i].(string) {
			t.Fatalf("keys not sorted: %v", got)
		}
	}
}

func TestMiddlewareAddsLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelInfo, Component: ComponentHTTP, Output: &buf})

	h := Middleware(base, func(*http.Request) string { return "req_1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Errorf("expected request id in output: %s", buf.String())
	}
}

func TestFromContextFallback(t *testing.T) {
	if l := FromContext(context.Background()); l.Component() != "unknown" {
		t.Errorf("fallback component = %q", l.Component())
	}
}
