package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"spendlens/internal/analysis"
)

var csvHeader = []string{
	"vendor", "category", "spend", "share_pct", "typical_share_pct",
	"variance_pct", "variance_amount", "category_status", "risk_level",
	"overpayment", "potential_savings", "recommendation",
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// WriteCSV writes one row per vendor and category pair.
func WriteCSV(w io.Writer, res *analysis.Result) error {
	lines := map[string]analysis.BenchmarkLine{}
	for _, l := range res.Benchmarks {
		lines[l.Category] = l
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, v := range res.Executive.Vendors {
		l := lines[v.Category]
		record := []string{
			v.Vendor,
			v.Category,
			ff(v.Spend.Float()),
			ff(v.Share * 100),
			ff(v.TypicalShare * 100),
			ff(v.VariancePct),
			ff(v.VarianceAmount.Float()),
			string(l.Comparison.Status),
			v.Risk.Level,
			strconv.FormatBool(v.Overpayment),
			ff(v.PotentialSavings.Float()),
			v.Risk.Recommendation,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
