package llm

import (
	"encoding/json"
	"math"
	"strings"
)

// ExtractJSON pulls a JSON object out of model output. A ```json fenced
// block wins; otherwise the first balanced {...} span that parses is used.
func ExtractJSON(text string) (string, error) {
	if i := strings.Index(text, "```json"); i >= 0 {
		rest := text[i+len("```json"):]
		if j := strings.Index(rest, "```"); j >= 0 {
			candidate := strings.TrimSpace(rest[:j])
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
	}

	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchBrace(text, start); end > start {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, nil
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", ErrNoJSON
}

// matchBrace returns the index of the brace closing the one at start,
// skipping braces inside string literals, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// EstimateTokens approximates the token count as 1.3 tokens per word.
func EstimateTokens(text string) int {
	return int(math.Round(float64(len(strings.Fields(text))) * 1.3))
}

// EstimateCost prices tokens at costPer1K dollars per thousand.
func EstimateCost(tokens int, costPer1K float64) float64 {
	return float64(tokens) / 1000 * costPer1K
}
