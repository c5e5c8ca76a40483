// Package analysis turns a set of invoices into spend breakdowns,
// benchmark comparisons and recommendations.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"spendlens/internal/benchmark"
	"spendlens/internal/consolidate"
	"spendlens/internal/core"
	"spendlens/internal/dataset"
	"spendlens/internal/llm"
	logger "spendlens/internal/log"
	"spendlens/internal/metrics"
)

// DefaultBatchSize bounds concurrent LLM categorizations.
const DefaultBatchSize = 5

// Categorization sources.
const (
	SourceVendorMap = "vendor_map"
	SourceLLM       = "llm"
	SourceCache     = "cache"
	SourceFallback  = "fallback"
)

// Options select the optional pipeline stages.
type Options struct {
	// LicensingOnly keeps only licensing-relevant invoices.
	LicensingOnly bool
	// UseLLM categorizes with the configured Categorizer instead of the vendor map.
	UseLLM bool
	// BatchSize is the number of concurrent LLM categorizations.
	BatchSize int

	BaselineEmployees int
	CurrentEmployees  int
}

// Assignment is one consolidated invoice with its categorization.
type Assignment struct {
	Invoice  core.Invoice
	Company  string
	Category benchmark.Category
	Source   string
	LLM      *llm.Categorization
}

// BenchmarkLine compares one category's spend with its benchmark range.
type BenchmarkLine struct {
	Category       string               `json:"category"`
	Primary        string               `json:"primary_category"`
	Subcategory    string               `json:"subcategory"`
	Spend          core.Money           `json:"spend"`
	Range          benchmark.Range      `json:"benchmark"`
	Known          bool                 `json:"known"`
	Comparison     benchmark.Comparison `json:"comparison"`
	Risk           benchmark.Risk       `json:"risk"`
	Vendors        []string             `json:"vendors"`
	Concentration  string               `json:"concentration"`
	Recommendation string               `json:"recommendation"`
}

// Recommendation is one actionable finding.
type Recommendation struct {
	Type             string     `json:"type"`
	Priority         string     `json:"priority"`
	Category         string     `json:"category,omitempty"`
	Vendor           string     `json:"vendor,omitempty"`
	Company          string     `json:"company,omitempty"`
	Message          string     `json:"message"`
	PotentialSavings core.Money `json:"potential_savings"`
}

// LLMStats summarizes the categorization calls made during a run.
type LLMStats struct {
	Enabled     bool    `json:"enabled"`
	Categorized int     `json:"categorized"`
	CacheHits   int     `json:"cache_hits"`
	Fallbacks   int     `json:"fallbacks"`
	Tokens      int     `json:"tokens"`
	CostUSD     float64 `json:"cost_usd"`
}

// Result is everything a run produces.
type Result struct {
	RunID           string                    `json:"run_id"`
	GeneratedAt     time.Time                 `json:"generated_at"`
	InvoiceCount    int                       `json:"invoice_count"`
	FilteredOut     int                       `json:"filtered_out"`
	TotalSpend      core.Money                `json:"total_spend"`
	Vendors         []core.NamedAmount        `json:"vendors"`
	Categories      []core.NamedAmount        `json:"categories"`
	Companies       []core.NamedAmount        `json:"companies"`
	Benchmarks      []BenchmarkLine           `json:"benchmarks"`
	Assessment      string                    `json:"assessment"`
	Recommendations []Recommendation          `json:"recommendations"`
	Quality         consolidate.QualityReport `json:"data_quality"`
	MSP             MSPBreakdown              `json:"msp"`
	Temporal        Temporal                  `json:"temporal"`
	Growth          EmployeeGrowth            `json:"employee_growth"`
	Executive       Executive                 `json:"executive"`
	Comprehensive   Comprehensive             `json:"comprehensive"`
	LLM             LLMStats                  `json:"llm"`

	Assignments []Assignment `json:"-"`
}

// Pipeline runs the analysis stages over a benchmark table.
type Pipeline struct {
	table       *benchmark.Table
	categorizer Categorizer
	now         func() time.Time
}

// NewPipeline creates a pipeline. categorizer may be nil, in which case
// Options.UseLLM is ignored and the vendor map is used.
func NewPipeline(table *benchmark.Table, categorizer Categorizer) *Pipeline {
	if table == nil {
		table = benchmark.Default()
	}
	return &Pipeline{table: table, categorizer: categorizer, now: time.Now}
}

// Table returns the benchmark table the pipeline compares against.
func (p *Pipeline) Table() *benchmark.Table {
	return p.table
}

// Run executes the full analysis. The input slice is not modified.
func (p *Pipeline) Run(ctx context.Context, invoices []core.Invoice, opts Options) (*Result, error) {
	start := p.now()
	defer func() {
		metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	}()

	res := &Result{GeneratedAt: start.UTC()}

	selected := invoices
	if opts.LicensingOnly {
		selected = dataset.FilterLicensing(invoices)
		res.FilteredOut = len(invoices) - len(selected)
	}
	// Quality is measured on the raw records so duplicates and name variants are visible.
	res.Quality = consolidate.Quality(selected)

	consolidated := make([]core.Invoice, 0, len(selected))
	for _, inv := range consolidate.Dedupe(selected) {
		inv.Vendor = consolidate.Vendor(inv.Vendor)
		consolidated = append(consolidated, inv)
	}
	res.InvoiceCount = len(consolidated)

	assignments, stats, err := p.categorize(ctx, consolidated, opts)
	if err != nil {
		return nil, err
	}
	res.Assignments = assignments
	res.LLM = stats

	for _, a := range assignments {
		res.TotalSpend = res.TotalSpend.Add(a.Invoice.Total)
	}
	res.Vendors = totalsBy(assignments, res.TotalSpend, func(a Assignment) string { return a.Invoice.Vendor })
	res.Categories = totalsBy(assignments, res.TotalSpend, func(a Assignment) string { return a.Category.Key() })
	res.Companies = totalsBy(assignments, res.TotalSpend, func(a Assignment) string { return a.Company })

	res.Benchmarks = p.benchmarks(assignments, res.TotalSpend)
	statuses := make([]benchmark.Status, len(res.Benchmarks))
	for i, b := range res.Benchmarks {
		statuses[i] = b.Comparison.Status
	}
	res.Assessment = benchmark.OverallAssessment(statuses)

	res.MSP = MSPAnalysis(assignments, res.TotalSpend)
	res.Temporal = TemporalAnalysis(assignments)
	res.Growth = EmployeeGrowthAnalysis(assignments, opts.BaselineEmployees, opts.CurrentEmployees)
	res.Executive = ExecutiveAnalysis(p.table, assignments, res.TotalSpend)
	res.Comprehensive = ComprehensiveAssessment(res.Benchmarks, p.table.Thresholds)
	res.Recommendations = Recommendations(res)

	metrics.TotalSpend.Set(res.TotalSpend.Float())
	slog.InfoContext(ctx, "Analysis completed",
		logger.FieldComponent, logger.ComponentAnalysis,
		"invoices", res.InvoiceCount,
		"filtered_out", res.FilteredOut,
		"total_spend", res.TotalSpend.String(),
		"categories", len(res.Benchmarks),
		"assessment", res.Assessment,
		"duration", time.Since(start))

	return res, nil
}

func (p *Pipeline) categorize(ctx context.Context, invoices []core.Invoice, opts Options) ([]Assignment, LLMStats, error) {
	out := make([]Assignment, len(invoices))
	for i, inv := range invoices {
		out[i] = Assignment{
			Invoice:  inv,
			Company:  consolidate.Company(inv.BillTo),
			Category: p.table.CategorizeVendor(inv.Vendor),
			Source:   SourceVendorMap,
		}
	}

	stats := LLMStats{Enabled: opts.UseLLM && p.categorizer != nil}
	if !stats.Enabled {
		return out, stats, nil
	}

	limit := opts.BatchSize
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range out {
		g.Go(func() error {
			c, err := p.categorizer.Categorize(gctx, out[i].Invoice)
			if err != nil {
				return fmt.Errorf("categorize %s: %w", out[i].Invoice.Key, err)
			}
			cat := c.Categorization
			out[i].LLM = &cat
			out[i].Category = benchmark.Category{
				Primary:     cat.PrimaryCategory,
				Subcategory: cat.Subcategory,
				ServiceType: cat.ServiceType,
			}
			switch {
			case c.Cached:
				out[i].Source = SourceCache
			case cat.Fallback:
				out[i].Source = SourceFallback
			default:
				out[i].Source = SourceLLM
			}

			mu.Lock()
			defer mu.Unlock()
			stats.Categorized++
			stats.Tokens += c.Tokens
			stats.CostUSD += c.CostUSD
			if c.Cached {
				stats.CacheHits++
			}
			if cat.Fallback {
				stats.Fallbacks++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	slog.InfoContext(ctx, "LLM categorization finished",
		logger.FieldComponent, logger.ComponentAnalysis,
		logger.FieldOperation, logger.OpCategorize,
		"categorized", stats.Categorized,
		"cache_hits", stats.CacheHits,
		"fallbacks", stats.Fallbacks,
		logger.FieldTokens, stats.Tokens,
		logger.FieldCostUSD, stats.CostUSD)
	return out, stats, nil
}

func (p *Pipeline) benchmarks(assignments []Assignment, total core.Money) []BenchmarkLine {
	type agg struct {
		cat     benchmark.Category
		spend   core.Money
		vendors map[string]struct{}
	}
	byKey := map[string]*agg{}
	for _, a := range assignments {
		k := a.Category.Key()
		g, ok := byKey[k]
		if !ok {
			g = &agg{cat: a.Category, vendors: map[string]struct{}{}}
			byKey[k] = g
		}
		g.spend = g.spend.Add(a.Invoice.Total)
		g.vendors[a.Invoice.Vendor] = struct{}{}
	}

	lines := make([]BenchmarkLine, 0, len(byKey))
	for k, g := range byKey {
		bm := p.table.Lookup(g.cat.Primary, g.cat.Subcategory)
		cmp := benchmark.Compare(g.spend, total, bm.Range)
		vendors := make([]string, 0, len(g.vendors))
		for v := range g.vendors {
			vendors = append(vendors, v)
		}
		sort.Strings(vendors)
		lines = append(lines, BenchmarkLine{
			Category:       k,
			Primary:        g.cat.Primary,
			Subcategory:    g.cat.Subcategory,
			Spend:          g.spend,
			Range:          bm.Range,
			Known:          bm.Known,
			Comparison:     cmp,
			Risk:           benchmark.RiskLevel(cmp.VariancePct),
			Vendors:        vendors,
			Concentration:  benchmark.Concentration(len(vendors)),
			Recommendation: benchmark.CategoryRecommendation(g.cat.Primary, cmp.Status),
		})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Spend != lines[j].Spend {
			return lines[i].Spend.Cents > lines[j].Spend.Cents
		}
		return lines[i].Category < lines[j].Category
	})
	return lines
}

// totalsBy groups spend by key, sorted by amount descending then name.
func totalsBy(assignments []Assignment, total core.Money, key func(Assignment) string) []core.NamedAmount {
	var a amounts
	for _, as := range assignments {
		a.add(key(as), as.Invoice.Total, 1)
	}
	return a.sorted(total)
}

func sortNamed(s []core.NamedAmount) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Amount != s[j].Amount {
			return s[i].Amount.Cents > s[j].Amount.Cents
		}
		return s[i].Name < s[j].Name
	})
}

// titleize turns "office365" or "it_services" into a display label.
func titleize(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
