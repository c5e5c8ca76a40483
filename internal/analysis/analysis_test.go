package analysis

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"spendlens/internal/benchmark"
	"spendlens/internal/consolidate"
	"spendlens/internal/core"
	"spendlens/internal/llm"
)

func item(desc string, dollars float64) core.LineItem {
	m := core.MoneyFromFloat(dollars)
	return core.LineItem{Description: desc, Quantity: 1, UnitPrice: m, Total: m}
}

func invoice(key, vendor, billTo, date string, items ...core.LineItem) core.Invoice {
	inv := core.Invoice{Key: key, Vendor: vendor, BillTo: billTo, InvoiceDate: date, LineItems: items}
	if d, err := core.ParseInvoiceDate(date); err == nil {
		inv.Date = d
	}
	inv.Total = inv.ComputeTotal()
	return inv
}

const greatGray = "Great Gray Trust Company, 123 Main St"

func sampleInvoices() []core.Invoice {
	return []core.Invoice{
		invoice("a", "Synoptek LLC", greatGray, "2024-01-15", item("Microsoft 365 E3 licenses", 1000), item("Managed support", 500)),
		invoice("b", "synoptek", greatGray, "2024-02-15", item("Microsoft 365 E3 licenses", 1000), item("Managed support", 500)),
		invoice("c", "Synoptek", greatGray, "2024-03-15", item("Microsoft 365 E3 licenses", 1500), item("Managed support", 500)),
		invoice("d", "Synoptek", greatGray, "2024-04-15", item("Microsoft 365 E3 licenses", 1500), item("Managed support", 500)),
		invoice("e", "Atlassian", "RPAG", "2024-03-10", item("Jira Software license", 300)),
		invoice("f", "Atlassian", "RPAG", "2024-03-10", item("Jira Software license", 300)),
		invoice("g", "Acme Widgets", "", "", item("Ergonomic chairs", 200)),
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func runSample(t *testing.T, opts Options) *Result {
	t.Helper()
	p := NewPipeline(benchmark.Default(), nil)
	res, err := p.Run(context.Background(), sampleInvoices(), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	return res
}

func TestPipeline_Run(t *testing.T) {
	res := runSample(t, Options{BaselineEmployees: 120, CurrentEmployees: 160})

	if res.InvoiceCount != 6 {
		t.Errorf("InvoiceCount = %d, want 6", res.InvoiceCount)
	}
	if res.TotalSpend.Cents != 750000 {
		t.Errorf("TotalSpend = %s, want $7,500.00", res.TotalSpend)
	}
	if res.Quality.TotalInvoices != 7 || res.Quality.Duplicates != 1 {
		t.Errorf("Quality = %d total / %d duplicates, want 7 / 1", res.Quality.TotalInvoices, res.Quality.Duplicates)
	}

	wantVendors := []string{"Synoptek", "Atlassian", "Acme Widgets"}
	if len(res.Vendors) != len(wantVendors) {
		t.Fatalf("Vendors = %+v", res.Vendors)
	}
	for i, name := range wantVendors {
		if res.Vendors[i].Name != name {
			t.Errorf("Vendors[%d] = %q, want %q", i, res.Vendors[i].Name, name)
		}
	}
	if res.Vendors[0].Count != 4 || res.Vendors[0].Amount.Cents != 700000 {
		t.Errorf("Synoptek = %+v", res.Vendors[0])
	}

	if len(res.Companies) != 3 || res.Companies[0].Name != "Great Gray Trust Company" {
		t.Errorf("Companies = %+v", res.Companies)
	}
	if res.Companies[2].Name != consolidate.UnknownCompany {
		t.Errorf("Companies[2] = %q, want %q", res.Companies[2].Name, consolidate.UnknownCompany)
	}

	if len(res.Benchmarks) != 2 {
		t.Fatalf("Benchmarks = %+v", res.Benchmarks)
	}
	managed := res.Benchmarks[0]
	if managed.Category != "it_services.managed_services" || managed.Spend.Cents != 720000 {
		t.Errorf("Benchmarks[0] = %+v", managed)
	}
	if managed.Comparison.Status != benchmark.StatusAbove || managed.Risk.Level != benchmark.RiskCritical {
		t.Errorf("managed status = %s risk = %s", managed.Comparison.Status, managed.Risk.Level)
	}
	if managed.Concentration != benchmark.Concentration(2) {
		t.Errorf("managed concentration = %q", managed.Concentration)
	}
	pm := res.Benchmarks[1]
	if pm.Category != "development_tools.project_management" || pm.Comparison.Status != benchmark.StatusWithin {
		t.Errorf("Benchmarks[1] = %+v", pm)
	}

	if res.Assessment != benchmark.AssessmentWithin {
		t.Errorf("Assessment = %q, want %q", res.Assessment, benchmark.AssessmentWithin)
	}
	if res.Comprehensive.Standing != StandingCritical {
		t.Errorf("Comprehensive.Standing = %q, want %q", res.Comprehensive.Standing, StandingCritical)
	}
	if res.LLM.Enabled {
		t.Error("LLM should be disabled without a categorizer")
	}
	for _, a := range res.Assignments {
		if a.Source != SourceVendorMap {
			t.Errorf("assignment %s source = %q", a.Invoice.Key, a.Source)
		}
	}
}

func TestPipeline_Recommendations(t *testing.T) {
	res := runSample(t, Options{BaselineEmployees: 120, CurrentEmployees: 160})

	wantTypes := []string{RecCostReduction, RecVendorConsolidation, RecCompanyOptimization, RecGrowthMisalignment}
	if len(res.Recommendations) != len(wantTypes) {
		t.Fatalf("Recommendations = %+v", res.Recommendations)
	}
	for i, typ := range wantTypes {
		if res.Recommendations[i].Type != typ {
			t.Errorf("Recommendations[%d].Type = %q, want %q", i, res.Recommendations[i].Type, typ)
		}
	}
	if res.Recommendations[0].Priority != "high" {
		t.Errorf("cost reduction priority = %q, want high", res.Recommendations[0].Priority)
	}
	if got := res.Recommendations[1].PotentialSavings.Cents; got != 70000 {
		t.Errorf("vendor consolidation savings = %d, want 70000", got)
	}
}

func TestPipeline_LicensingOnly(t *testing.T) {
	res := runSample(t, Options{LicensingOnly: true})

	if res.FilteredOut != 1 {
		t.Errorf("FilteredOut = %d, want 1", res.FilteredOut)
	}
	if res.InvoiceCount != 5 {
		t.Errorf("InvoiceCount = %d, want 5", res.InvoiceCount)
	}
	for _, v := range res.Vendors {
		if v.Name == "Acme Widgets" {
			t.Error("non-licensing vendor should be filtered out")
		}
	}
}

func TestPipeline_Empty(t *testing.T) {
	p := NewPipeline(nil, nil)
	res, err := p.Run(context.Background(), nil, Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.InvoiceCount != 0 || !res.TotalSpend.IsZero() {
		t.Errorf("empty run = %+v", res)
	}
	if res.Comprehensive.Standing != StandingAt {
		t.Errorf("Standing = %q, want %q", res.Comprehensive.Standing, StandingAt)
	}
	if len(res.Recommendations) != 0 {
		t.Errorf("Recommendations = %+v", res.Recommendations)
	}
}

type fakeCategorizer struct {
	err error
}

func (f *fakeCategorizer) Categorize(_ context.Context, inv core.Invoice) (Categorized, error) {
	if f.err != nil {
		return Categorized{}, f.err
	}
	switch inv.Vendor {
	case "Synoptek":
		return Categorized{
			Categorization: llm.Categorization{
				PrimaryCategory: "it_services",
				Subcategory:     "msp_hidden_costs",
				ServiceType:     "managed_services",
				HiddenCosts:     []string{"license markup", "admin fees"},
			},
			Tokens:  100,
			CostUSD: 0.015,
		}, nil
	case "Atlassian":
		return Categorized{
			Categorization: llm.Categorization{PrimaryCategory: "development_tools", Subcategory: "project_management"},
			Cached:         true,
		}, nil
	default:
		return Categorized{Categorization: llm.FallbackCategorization()}, nil
	}
}

func TestPipeline_LLMCategorization(t *testing.T) {
	p := NewPipeline(benchmark.Default(), &fakeCategorizer{})
	res, err := p.Run(context.Background(), sampleInvoices(), Options{UseLLM: true, BatchSize: 2})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !res.LLM.Enabled || res.LLM.Categorized != 6 {
		t.Errorf("LLM stats = %+v", res.LLM)
	}
	if res.LLM.CacheHits != 1 || res.LLM.Fallbacks != 1 {
		t.Errorf("cache hits = %d fallbacks = %d, want 1 and 1", res.LLM.CacheHits, res.LLM.Fallbacks)
	}
	if res.LLM.Tokens != 400 || !approx(res.LLM.CostUSD, 0.06) {
		t.Errorf("tokens = %d cost = %v", res.LLM.Tokens, res.LLM.CostUSD)
	}

	sources := map[string]string{}
	for _, a := range res.Assignments {
		sources[a.Invoice.Vendor] = a.Source
	}
	want := map[string]string{"Synoptek": SourceLLM, "Atlassian": SourceCache, "Acme Widgets": SourceFallback}
	for vendor, src := range want {
		if sources[vendor] != src {
			t.Errorf("source for %s = %q, want %q", vendor, sources[vendor], src)
		}
	}

	found := false
	for _, b := range res.Benchmarks {
		if b.Category == "it_services.msp_hidden_costs" {
			found = true
		}
	}
	if !found {
		t.Error("LLM category missing from benchmarks")
	}

	if len(res.MSP.Vendors) != 1 || len(res.MSP.Vendors[0].HiddenCosts) != 2 {
		t.Fatalf("MSP vendors = %+v", res.MSP.Vendors)
	}
	var msp bool
	for _, r := range res.Recommendations {
		if r.Type == RecMSPOptimization && r.Vendor == "Synoptek" {
			msp = true
		}
	}
	if !msp {
		t.Error("expected an MSP optimization recommendation")
	}
}

func TestPipeline_LLMError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPipeline(benchmark.Default(), &fakeCategorizer{err: boom})
	_, err := p.Run(context.Background(), sampleInvoices(), Options{UseLLM: true})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}

	// Without UseLLM the categorizer is never called.
	if _, err := p.Run(context.Background(), sampleInvoices(), Options{}); err != nil {
		t.Fatalf("Run() without LLM error = %v", err)
	}
}

func TestPipeline_DurationUsesClock(t *testing.T) {
	p := NewPipeline(nil, nil)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	res, err := p.Run(context.Background(), sampleInvoices(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !res.GeneratedAt.Equal(fixed) {
		t.Errorf("GeneratedAt = %v, want %v", res.GeneratedAt, fixed)
	}
}
