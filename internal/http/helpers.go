package http

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	logger "spendlens/internal/log"
)

var templateFuncs = template.FuncMap{
	"pct":       formatPercent,
	"signedPct": formatSignedPercent,
}

// formatPercent renders a 0..1 share as a percentage.
func formatPercent(share float64) string {
	return fmt.Sprintf("%.1f%%", share*100)
}

// formatSignedPercent renders a value already in percent with its sign.
func formatSignedPercent(p float64) string {
	return fmt.Sprintf("%+.1f%%", p)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "Failed to encode response",
			logger.FieldComponent, logger.ComponentHTTP,
			"path", r.URL.Path,
			logger.FieldError, err)
	}
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorBody{Error: msg, RequestID: w.Header().Get("X-Request-ID")})
}

// parsePositiveInt reads an optional positive integer query parameter.
// Missing values give def; values above max are clamped.
func parsePositiveInt(r *http.Request, name string, def, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}
