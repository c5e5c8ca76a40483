package analysis

import (
	"sort"
	"time"

	"spendlens/internal/core"
)

// RecentWindow is the trailing window compared against the historical average.
const RecentWindow = 90 * 24 * time.Hour

// VendorSeries is one vendor's monthly spend.
type VendorSeries struct {
	Vendor string              `json:"vendor"`
	Total  core.Money          `json:"total"`
	Months []core.PeriodAmount `json:"months"`
}

// RecentComparison compares the trailing window, anchored at the latest
// invoice date, with the monthly average of everything before it.
type RecentComparison struct {
	From                 time.Time  `json:"from,omitzero"`
	To                   time.Time  `json:"to,omitzero"`
	RecentSpend          core.Money `json:"recent_spend"`
	RecentMonthlyAvg     core.Money `json:"recent_monthly_avg"`
	HistoricalMonthlyAvg core.Money `json:"historical_monthly_avg"`
	ChangePercent        float64    `json:"change_percent"`
	HasChange            bool       `json:"has_change"`
}

// Temporal holds spend over time. Undated invoices are counted but excluded
// from every series.
type Temporal struct {
	Monthly   []core.PeriodAmount `json:"monthly"`
	Quarterly []core.PeriodAmount `json:"quarterly"`
	Vendors   []VendorSeries      `json:"vendors"`
	Recent    RecentComparison    `json:"recent"`
	Undated   int                 `json:"undated"`
}

// TopVendorSeries caps the number of per-vendor monthly series.
const TopVendorSeries = 10

// TemporalAnalysis builds monthly and quarterly totals with period-over-period
// change, per-vendor monthly series and the recent window comparison.
func TemporalAnalysis(assignments []Assignment) Temporal {
	var t Temporal
	dated := make([]core.Invoice, 0, len(assignments))
	for _, a := range assignments {
		if !a.Invoice.HasDate() {
			t.Undated++
			continue
		}
		dated = append(dated, a.Invoice)
	}
	if len(dated) == 0 {
		return t
	}

	t.Monthly = periodSeries(dated, core.Invoice.MonthKey)
	t.Quarterly = periodSeries(dated, core.Invoice.QuarterKey)

	byVendor := map[string][]core.Invoice{}
	for _, inv := range dated {
		byVendor[inv.Vendor] = append(byVendor[inv.Vendor], inv)
	}
	for vendor, invs := range byVendor {
		s := VendorSeries{Vendor: vendor, Months: periodSeries(invs, core.Invoice.MonthKey)}
		for _, m := range s.Months {
			s.Total = s.Total.Add(m.Amount)
		}
		t.Vendors = append(t.Vendors, s)
	}
	sort.Slice(t.Vendors, func(i, j int) bool {
		if t.Vendors[i].Total != t.Vendors[j].Total {
			return t.Vendors[i].Total.Cents > t.Vendors[j].Total.Cents
		}
		return t.Vendors[i].Vendor < t.Vendors[j].Vendor
	})
	if len(t.Vendors) > TopVendorSeries {
		t.Vendors = t.Vendors[:TopVendorSeries]
	}

	t.Recent = recentComparison(dated)
	return t
}

// periodSeries totals invoices per bucket in ascending order and fills the
// change from the previous bucket when that bucket's amount is positive.
func periodSeries(invoices []core.Invoice, bucket func(core.Invoice) string) []core.PeriodAmount {
	idx := map[string]int{}
	var out []core.PeriodAmount
	for _, inv := range invoices {
		k := bucket(inv)
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, core.PeriodAmount{Period: k})
		}
		out[i].Amount = out[i].Amount.Add(inv.Total)
		out[i].Count++
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	for i := 1; i < len(out); i++ {
		prev := out[i-1].Amount
		if prev.Cents > 0 {
			out[i].ChangePercent = float64(out[i].Amount.Cents-prev.Cents) / float64(prev.Cents) * 100
			out[i].HasChange = true
		}
	}
	return out
}

func recentComparison(dated []core.Invoice) RecentComparison {
	var latest time.Time
	for _, inv := range dated {
		if inv.Date.After(latest) {
			latest = inv.Date
		}
	}
	r := RecentComparison{From: latest.Add(-RecentWindow), To: latest}

	var historical core.Money
	months := map[string]struct{}{}
	for _, inv := range dated {
		if inv.Date.After(r.From) {
			r.RecentSpend = r.RecentSpend.Add(inv.Total)
			continue
		}
		historical = historical.Add(inv.Total)
		months[inv.MonthKey()] = struct{}{}
	}

	windowMonths := int64(RecentWindow / (30 * 24 * time.Hour))
	r.RecentMonthlyAvg = core.Money{Cents: r.RecentSpend.Cents / windowMonths}
	if len(months) > 0 {
		r.HistoricalMonthlyAvg = core.Money{Cents: historical.Cents / int64(len(months))}
	}
	if r.HistoricalMonthlyAvg.Cents > 0 {
		r.ChangePercent = float64(r.RecentMonthlyAvg.Cents-r.HistoricalMonthlyAvg.Cents) / float64(r.HistoricalMonthlyAvg.Cents) * 100
		r.HasChange = true
	}
	return r
}
