package google

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"spendlens/internal/core"
	ports "spendlens/internal/sheets"
)

const totalLabel = "Total"

// summaryValues lays out a summary as sheet rows. Spend is written in dollars
// and share as a fraction with four decimals.
func summaryValues(s ports.Summary) [][]any {
	values := make([][]any, 0, len(s.Rows)+2)
	header := make([]any, len(ports.Header))
	for i, h := range ports.Header {
		header[i] = h
	}
	values = append(values, header)
	for _, r := range s.Rows {
		values = append(values, []any{r.Vendor, r.Category, r.Spend.Dollars(), round4(r.Share), r.Status})
	}
	values = append(values, []any{totalLabel, "", s.TotalSpend.Dollars(), 1.0, ""})
	return values
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// parseSummary converts a values matrix back into rows. The total row is skipped.
func parseSummary(values [][]any) ([]ports.Row, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	cols := make([]int, len(ports.Header))
	for i, h := range ports.Header {
		cols[i] = indexOf(headers, h)
		if cols[i] == -1 {
			return nil, fmt.Errorf("unexpected summary header: missing %s; got headers=%v", h, headers)
		}
	}

	var out []ports.Row
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		vendor := safeGet(row, cols[0])
		if vendor == "" || strings.EqualFold(vendor, totalLabel) {
			continue
		}
		spend, err := core.ParseAmount(safeGet(row, cols[2]))
		if err != nil {
			return nil, fmt.Errorf("row %d spend: %w", i+1, err)
		}
		share, err := strconv.ParseFloat(safeGet(row, cols[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d share: %w", i+1, err)
		}
		out = append(out, ports.Row{
			Vendor:   vendor,
			Category: safeGet(row, cols[1]),
			Spend:    spend,
			Share:    share,
			Status:   safeGet(row, cols[4]),
		})
	}
	return out, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
