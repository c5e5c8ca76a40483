// Package report renders analysis results as Markdown, CSV, JSON and PDF.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spendlens/internal/analysis"
	logger "spendlens/internal/log"
)

// Format is an output format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatPDF      Format = "pdf"
)

// AllFormats lists every supported format in output order.
var AllFormats = []Format{FormatMarkdown, FormatCSV, FormatJSON, FormatPDF}

// ParseFormats parses a comma separated list such as "md,csv". An empty
// string selects Markdown and JSON.
func ParseFormats(s string) ([]Format, error) {
	if strings.TrimSpace(s) == "" {
		return []Format{FormatMarkdown, FormatJSON}, nil
	}
	seen := map[Format]bool{}
	var out []Format
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if f == "markdown" {
			f = FormatMarkdown
		}
		if f == "all" {
			return AllFormats, nil
		}
		valid := false
		for _, known := range AllFormats {
			if f == known {
				valid = true
			}
		}
		if !valid {
			return nil, fmt.Errorf("unknown report format %q", part)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// WriteJSON writes the result as indented JSON.
func WriteJSON(w io.Writer, res *analysis.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// FileName returns spendlens_<stamp>_<run>.<ext>, using the first eight
// characters of runID.
func FileName(runID string, at time.Time, f Format) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("spendlens_%s_%s.%s", at.UTC().Format("20060102_150405"), short, f)
}

// WriteAll writes one file per format into dir and returns the paths in
// format order. Files are written to a temporary name and renamed.
func WriteAll(dir, runID string, res *analysis.Result, formats []Format) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	at := res.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}

	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		var buf bytes.Buffer
		var err error
		switch f {
		case FormatMarkdown:
			err = WriteMarkdown(&buf, res)
		case FormatCSV:
			err = WriteCSV(&buf, res)
		case FormatJSON:
			err = WriteJSON(&buf, res)
		case FormatPDF:
			err = RenderPDF(&buf, res)
		default:
			err = fmt.Errorf("unknown report format %q", f)
		}
		if err != nil {
			return paths, fmt.Errorf("render %s report: %w", f, err)
		}

		path := filepath.Join(dir, FileName(runID, at, f))
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
			return paths, fmt.Errorf("write %s report: %w", f, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			os.Remove(tmp)
			return paths, fmt.Errorf("write %s report: %w", f, err)
		}
		paths = append(paths, path)
	}

	slog.Info("Reports written",
		logger.FieldComponent, logger.ComponentReport,
		logger.FieldRunID, runID,
		logger.FieldCount, len(paths),
		"dir", dir)
	return paths, nil
}
