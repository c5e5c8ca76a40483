package costcontrol

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"spendlens/internal/core"
)

// hashLine and hashInput fix the field set that identifies an invoice for
// caching. Map keys are what json.Marshal sorts, so both are built as maps.
func hashLine(li core.LineItem) map[string]any {
	return map[string]any{
		"description":  strings.ToLower(strings.TrimSpace(li.Description)),
		"quantity":     li.Quantity,
		"unit_price":   round2(li.UnitPrice.Dollars()),
		"total_amount": round2(li.Total.Dollars()),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Hash is the SHA-256 hex digest of the normalized vendor and line items.
// Two invoices that differ only in case, surrounding whitespace, line order,
// date or bill-to hash the same.
func Hash(inv core.Invoice) string {
	lines := make([]map[string]any, 0, len(inv.LineItems))
	for _, li := range inv.LineItems {
		lines = append(lines, hashLine(li))
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i]["description"].(string) < lines[j]["description"].(string)
	})

	input := map[string]any{
		"vendor":     strings.ToLower(strings.TrimSpace(inv.Vendor)),
		"line_items": lines,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Only maps, strings and finite floats reach the encoder.
	_ = enc.Encode(input)

	sum := sha256.Sum256(bytes.TrimRight(buf.Bytes(), "\n"))
	return hex.EncodeToString(sum[:])
}
