// Package benchmark holds the industry spend benchmark tables and the rules
// that compare actual spend against them.
package benchmark

import "fmt"

// Range is a share of total spend, expressed as fractions (0.12 = 12%).
type Range struct {
	Low     float64 `json:"low" toml:"low"`
	High    float64 `json:"high" toml:"high"`
	Typical float64 `json:"typical" toml:"typical"`
}

// Validate checks 0 <= low <= typical <= high <= 1.
func (r Range) Validate() error {
	if r.Low < 0 || r.High > 1 || r.Low > r.Typical || r.Typical > r.High {
		return fmt.Errorf("invalid range low=%v typical=%v high=%v", r.Low, r.Typical, r.High)
	}
	return nil
}

// Entry is one primary/subcategory benchmark.
type Entry struct {
	Primary     string
	Subcategory string
	Range       Range
}

// Benchmark is the result of a table lookup.
type Benchmark struct {
	Category string `json:"category"`
	Range
	Known bool `json:"known"`
}

// UnknownRange applies when the primary category is not in the table.
var UnknownRange = Range{Low: 0.10, High: 0.20, Typical: 0.15}

// Table is an ordered benchmark table plus the vendor categorization rules.
// The zero value is empty; use Default for the built-in data.
type Table struct {
	entries    []Entry
	vendors    []VendorRule
	Thresholds Thresholds
}

// Default returns a fresh copy of the built-in tables.
func Default() *Table {
	t := &Table{
		entries:    make([]Entry, len(defaultEntries)),
		vendors:    make([]VendorRule, len(defaultVendorRules)),
		Thresholds: DefaultThresholds(),
	}
	copy(t.entries, defaultEntries)
	copy(t.vendors, defaultVendorRules)
	return t
}

// Entries returns the table rows in declaration order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Lookup finds the range for primary/sub. An unknown subcategory falls back
// to the first subcategory declared for primary; an unknown primary yields
// UnknownRange with Known=false.
func (t *Table) Lookup(primary, sub string) Benchmark {
	var first *Entry
	for i := range t.entries {
		e := &t.entries[i]
		if e.Primary != primary {
			continue
		}
		if e.Subcategory == sub {
			return Benchmark{Category: primary + "." + sub, Range: e.Range, Known: true}
		}
		if first == nil {
			first = e
		}
	}
	if first != nil {
		return Benchmark{Category: primary + "." + first.Subcategory, Range: first.Range, Known: true}
	}
	return Benchmark{Category: "unknown", Range: UnknownRange}
}

// Set inserts or replaces a row. New primaries and subcategories are appended.
func (t *Table) Set(primary, sub string, r Range) {
	for i := range t.entries {
		if t.entries[i].Primary == primary && t.entries[i].Subcategory == sub {
			t.entries[i].Range = r
			return
		}
	}
	t.entries = append(t.entries, Entry{Primary: primary, Subcategory: sub, Range: r})
}

var defaultEntries = []Entry{
	{"it_services", "managed_services", Range{0.12, 0.25, 0.18}},
	{"it_services", "consulting", Range{0.08, 0.15, 0.12}},
	{"it_services", "support", Range{0.05, 0.10, 0.07}},
	{"it_services", "msp_hidden_costs", Range{0.03, 0.08, 0.05}},

	{"development_tools", "project_management", Range{0.02, 0.05, 0.035}},
	{"development_tools", "version_control", Range{0.01, 0.03, 0.02}},
	{"development_tools", "ide_tools", Range{0.01, 0.025, 0.015}},
	{"development_tools", "testing_tools", Range{0.005, 0.015, 0.01}},

	{"enterprise_software", "productivity", Range{0.08, 0.15, 0.12}},
	{"enterprise_software", "crm", Range{0.03, 0.08, 0.05}},
	{"enterprise_software", "erp", Range{0.05, 0.12, 0.08}},
	{"enterprise_software", "database", Range{0.02, 0.06, 0.04}},

	{"cloud_services", "infrastructure", Range{0.06, 0.12, 0.09}},
	{"cloud_services", "platform_services", Range{0.03, 0.08, 0.055}},
	{"cloud_services", "software_as_service", Range{0.04, 0.10, 0.07}},
	{"cloud_services", "storage", Range{0.01, 0.03, 0.02}},

	{"security_software", "endpoint_protection", Range{0.03, 0.08, 0.055}},
	{"security_software", "network_security", Range{0.02, 0.06, 0.04}},
	{"security_software", "identity_management", Range{0.02, 0.05, 0.035}},
	{"security_software", "compliance", Range{0.01, 0.04, 0.025}},
}

// Thresholds are the alerting knobs applied on top of the ranges.
type Thresholds struct {
	CostVarianceWarning  float64 `toml:"cost_variance_warning"`
	CostVarianceCritical float64 `toml:"cost_variance_critical"`
	UsageEfficiency      float64 `toml:"usage_efficiency_warning"`
	LicenseUtilization   float64 `toml:"license_utilization_warning"`
	RenewalReminderDays  int     `toml:"renewal_reminder_days"`
	TrendMonths          int     `toml:"cost_trend_analysis_months"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		CostVarianceWarning:  0.15,
		CostVarianceCritical: 0.30,
		UsageEfficiency:      0.70,
		LicenseUtilization:   0.80,
		RenewalReminderDays:  90,
		TrendMonths:          12,
	}
}
