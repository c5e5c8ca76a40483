package report

import (
	"fmt"
	"io"
	"strings"

	"spendlens/internal/analysis"
	"spendlens/internal/core"
)

const topVendors = 10

// WriteMarkdown writes the full report.
func WriteMarkdown(w io.Writer, res *analysis.Result) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Licensing Spend Benchmark Analysis\n\n")
	fmt.Fprintf(&b, "*Generated on %s*\n\n", res.GeneratedAt.Format("January 2, 2006 at 3:04 PM MST"))

	writeExecutiveSummary(&b, res)
	writeTopVendors(&b, res)
	writeCategories(&b, res)
	writeBenchmarks(&b, res)
	writeMSP(&b, res.MSP)
	writeTemporal(&b, res.Temporal)
	writeGrowth(&b, res.Growth)
	writeQuality(&b, res)
	writeRecommendations(&b, res.Recommendations)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}
	return nil
}

func pct(share float64) string {
	return fmt.Sprintf("%.1f%%", share*100)
}

func signedPct(v float64) string {
	return fmt.Sprintf("%+.1f%%", v)
}

// cell escapes pipes so free text cannot break a table row.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func writeExecutiveSummary(b *strings.Builder, res *analysis.Result) {
	b.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(b, "- **Total Spend**: %s\n", res.TotalSpend)
	fmt.Fprintf(b, "- **Invoices Analyzed**: %d\n", res.InvoiceCount)
	if res.FilteredOut > 0 {
		fmt.Fprintf(b, "- **Excluded (not licensing related)**: %d\n", res.FilteredOut)
	}
	fmt.Fprintf(b, "- **Vendors**: %d\n", len(res.Vendors))
	fmt.Fprintf(b, "- **Companies**: %d\n", len(res.Companies))
	fmt.Fprintf(b, "- **Overall Assessment**: %s\n", res.Assessment)
	fmt.Fprintf(b, "- **Benchmark Standing**: %s (average variance %s)\n",
		res.Comprehensive.Standing, signedPct(res.Comprehensive.AverageVariancePct))
	fmt.Fprintf(b, "- **Potential Savings**: %s across %d overpaying vendor lines\n",
		res.Executive.TotalPotentialSavings, res.Executive.OverpaymentItems)
	if res.LLM.Enabled {
		fmt.Fprintf(b, "- **AI Categorization**: %d invoices (%d cached, %d fallback, $%.2f)\n",
			res.LLM.Categorized, res.LLM.CacheHits, res.LLM.Fallbacks, res.LLM.CostUSD)
	}
	b.WriteString("\n")
}

func writeTopVendors(b *strings.Builder, res *analysis.Result) {
	b.WriteString("## Top Vendors\n\n")
	if len(res.Vendors) == 0 {
		b.WriteString("No vendor spend.\n\n")
		return
	}
	b.WriteString("| # | Vendor | Spend | Share | Invoices |\n|---|---|---:|---:|---:|\n")
	for i, v := range res.Vendors {
		if i == topVendors {
			break
		}
		fmt.Fprintf(b, "| %d | %s | %s | %s | %d |\n", i+1, cell(v.Name), v.Amount, pct(v.Share), v.Count)
	}
	b.WriteString("\n")
}

func writeCategories(b *strings.Builder, res *analysis.Result) {
	b.WriteString("## Category Breakdown\n\n")
	if len(res.Categories) == 0 {
		b.WriteString("No categorized spend.\n\n")
		return
	}
	b.WriteString("| Category | Spend | Share | Invoices |\n|---|---:|---:|---:|\n")
	for _, c := range res.Categories {
		fmt.Fprintf(b, "| %s | %s | %s | %d |\n", cell(c.Name), c.Amount, pct(c.Share), c.Count)
	}
	b.WriteString("\n")

	if len(res.Companies) > 0 {
		b.WriteString("### By Company\n\n| Company | Spend | Share |\n|---|---:|---:|\n")
		for _, c := range res.Companies {
			fmt.Fprintf(b, "| %s | %s | %s |\n", cell(c.Name), c.Amount, pct(c.Share))
		}
		b.WriteString("\n")
	}
}

func writeBenchmarks(b *strings.Builder, res *analysis.Result) {
	b.WriteString("## Benchmark Comparison\n\n")
	if len(res.Benchmarks) == 0 {
		b.WriteString("No benchmarks compared.\n\n")
		return
	}
	b.WriteString("| Category | Actual | Benchmark | Variance | Status | Risk | Concentration |\n")
	b.WriteString("|---|---:|---:|---:|---|---|---|\n")
	for _, l := range res.Benchmarks {
		bench := fmt.Sprintf("%s-%s", pct(l.Range.Low), pct(l.Range.High))
		if !l.Known {
			bench += " (default)"
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			cell(l.Category), pct(l.Comparison.Share), bench, signedPct(l.Comparison.VariancePct),
			l.Comparison.Status, l.Risk.Level, l.Concentration)
	}
	b.WriteString("\n")
	for _, l := range res.Benchmarks {
		fmt.Fprintf(b, "- **%s**: %s\n", l.Category, l.Recommendation)
	}
	b.WriteString("\n")
}

func writeMSP(b *strings.Builder, m analysis.MSPBreakdown) {
	b.WriteString("## MSP Breakdown\n\n")
	if len(m.Vendors) == 0 {
		b.WriteString("No managed service provider invoices.\n\n")
		return
	}
	fmt.Fprintf(b, "- **Total MSP Spend**: %s (%s of total)\n", m.Total, pct(m.Share))
	fmt.Fprintf(b, "- **MSP Invoices**: %d\n\n", m.Invoices)
	for _, v := range m.Vendors {
		fmt.Fprintf(b, "### %s\n\n- **Total Spend**: %s\n- **Invoices**: %d\n\n", v.Vendor, v.Total, v.Invoices)
		writeNamed(b, "Services", v.Services)
		writeNamed(b, "Companies Served", v.Companies)
	}
	if len(m.Insights) > 0 {
		b.WriteString("### Key Insights\n\n")
		for _, s := range m.Insights {
			fmt.Fprintf(b, "- %s\n", s)
		}
		b.WriteString("\n")
	}
}

func writeNamed(b *strings.Builder, title string, items []core.NamedAmount) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "#### %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- **%s**: %s (%s)\n", it.Name, it.Amount, pct(it.Share))
	}
	b.WriteString("\n")
}

func writeTemporal(b *strings.Builder, t analysis.Temporal) {
	b.WriteString("## Spend Over Time\n\n")
	if len(t.Monthly) == 0 {
		b.WriteString("No dated invoices.\n\n")
		return
	}
	b.WriteString("| Month | Spend | Invoices | Change |\n|---|---:|---:|---:|\n")
	for _, p := range t.Monthly {
		fmt.Fprintf(b, "| %s | %s | %d | %s |\n", p.Period, p.Amount, p.Count, change(p))
	}
	b.WriteString("\n| Quarter | Spend | Change |\n|---|---:|---:|\n")
	for _, p := range t.Quarterly {
		fmt.Fprintf(b, "| %s | %s | %s |\n", p.Period, p.Amount, change(p))
	}
	b.WriteString("\n")

	r := t.Recent
	fmt.Fprintf(b, "- **Last 90 days** (%s to %s): %s, %s per month\n",
		r.From.Format("2006-01-02"), r.To.Format("2006-01-02"), r.RecentSpend, r.RecentMonthlyAvg)
	fmt.Fprintf(b, "- **Historical monthly average**: %s\n", r.HistoricalMonthlyAvg)
	if r.HasChange {
		fmt.Fprintf(b, "- **Change**: %s\n", signedPct(r.ChangePercent))
	}
	if t.Undated > 0 {
		fmt.Fprintf(b, "- %d undated invoices are excluded from these trends\n", t.Undated)
	}
	b.WriteString("\n")
}

func change(p core.PeriodAmount) string {
	if !p.HasChange {
		return "-"
	}
	return signedPct(p.ChangePercent)
}

func writeGrowth(b *strings.Builder, g analysis.EmployeeGrowth) {
	b.WriteString("## Employee Growth Alignment\n\n")
	if len(g.Services) == 0 {
		b.WriteString("No dated MSP services to compare.\n\n")
		return
	}
	fmt.Fprintf(b, "Headcount grew from %d to %d (x%.2f).\n\n", g.BaselineEmployees, g.CurrentEmployees, g.GrowthRatio)
	b.WriteString("| Service | Scales | Baseline/mo | Expected/mo | Actual/mo | Variance | Flag |\n")
	b.WriteString("|---|---|---:|---:|---:|---:|---|\n")
	for _, s := range g.Services {
		flag := ""
		if s.Flagged {
			flag = "Review"
		}
		scales := "no"
		if s.Scaling {
			scales = "yes"
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			s.ServiceType, scales, s.BaselineMonthlyAvg, s.ExpectedMonthly, s.ActualMonthly, signedPct(s.VariancePercent), flag)
	}
	b.WriteString("\n")
	if g.Flagged > 0 {
		fmt.Fprintf(b, "%d services are out of line with headcount, about %s per year.\n\n", g.Flagged, g.AnnualOverpayment)
	}
}

func writeQuality(b *strings.Builder, res *analysis.Result) {
	q := res.Quality
	b.WriteString("## Data Quality\n\n")
	fmt.Fprintf(b, "- **Quality Score**: %.1f%%\n", q.Score)
	fmt.Fprintf(b, "- **Records**: %d total, %d unique, %d duplicates (%.1f%%)\n",
		q.TotalInvoices, q.UniqueInvoices, q.Duplicates, q.DuplicateRate)
	fmt.Fprintf(b, "- **Missing Dates**: %d\n", q.MissingDates)
	fmt.Fprintf(b, "- **Missing Bill-To**: %d\n", q.MissingBillTo)
	fmt.Fprintf(b, "- **Vendor Names Consolidated**: %d\n", q.VendorsMerged)
	b.WriteString("\n")
	for _, in := range q.Insights {
		fmt.Fprintf(b, "- %s. %s\n", in.Message, in.Impact)
	}
	if len(q.Insights) > 0 {
		b.WriteString("\n")
	}
}

func writeRecommendations(b *strings.Builder, recs []analysis.Recommendation) {
	b.WriteString("## Recommendations\n\n")
	if len(recs) == 0 {
		b.WriteString("No recommendations. Spend is in line with benchmarks.\n")
		return
	}
	for i, r := range recs {
		fmt.Fprintf(b, "%d. **[%s]** %s", i+1, strings.ToUpper(r.Priority), r.Message)
		if r.PotentialSavings.Cents > 0 {
			fmt.Fprintf(b, " Potential savings: %s.", r.PotentialSavings)
		}
		b.WriteString("\n")
	}
}
