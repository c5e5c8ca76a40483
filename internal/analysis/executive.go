package analysis

import (
	"sort"

	"spendlens/internal/benchmark"
	"spendlens/internal/core"
)

// Executive flag thresholds, in percent over the typical share.
const (
	OverpaymentVariancePercent = 20.0
	CriticalVariancePercent    = 50.0
)

// VendorExposure is one vendor's spend in one category measured against the
// typical share for that category.
type VendorExposure struct {
	Vendor           string         `json:"vendor"`
	Category         string         `json:"category"`
	Spend            core.Money     `json:"spend"`
	Share            float64        `json:"share"`
	TypicalShare     float64        `json:"typical_share"`
	VariancePct      float64        `json:"variance_pct"`
	VarianceAmount   core.Money     `json:"variance_amount"`
	Risk             benchmark.Risk `json:"risk"`
	Overpayment      bool           `json:"overpayment"`
	PotentialSavings core.Money     `json:"potential_savings"`
}

// Executive is the vendor-level savings view.
type Executive struct {
	Vendors               []VendorExposure `json:"vendors"`
	TotalPotentialSavings core.Money       `json:"total_potential_savings"`
	OverpaymentItems      int              `json:"overpayment_items"`
	CriticalOverpayments  int              `json:"critical_overpayments"`
}

// ExecutiveAnalysis compares each vendor/category pair with the typical share
// of total spend. Potential savings are the positive variance amounts.
func ExecutiveAnalysis(table *benchmark.Table, assignments []Assignment, total core.Money) Executive {
	type key struct{ vendor, category string }
	spend := map[key]core.Money{}
	cats := map[key]benchmark.Category{}
	var order []key
	for _, a := range assignments {
		k := key{a.Invoice.Vendor, a.Category.Key()}
		if _, ok := cats[k]; !ok {
			cats[k] = a.Category
			order = append(order, k)
		}
		spend[k] = spend[k].Add(a.Invoice.Total)
	}

	var e Executive
	for _, k := range order {
		c := cats[k]
		bm := table.Lookup(c.Primary, c.Subcategory)
		cmp := benchmark.Compare(spend[k], total, bm.Range)
		v := VendorExposure{
			Vendor:       k.vendor,
			Category:     k.category,
			Spend:        spend[k],
			Share:        cmp.Share,
			TypicalShare: bm.Typical,
			VariancePct:  cmp.VariancePct,
			Risk:         benchmark.RiskLevel(cmp.VariancePct),
		}
		expected := core.MoneyFromFloat(total.Float() * bm.Typical)
		v.VarianceAmount = v.Spend.Sub(expected)
		if v.VariancePct > 0 && v.VarianceAmount.Cents > 0 {
			v.PotentialSavings = v.VarianceAmount
			e.TotalPotentialSavings = e.TotalPotentialSavings.Add(v.PotentialSavings)
		}
		v.Overpayment = v.VariancePct > OverpaymentVariancePercent
		if v.Overpayment {
			e.OverpaymentItems++
		}
		if v.VariancePct > CriticalVariancePercent {
			e.CriticalOverpayments++
		}
		e.Vendors = append(e.Vendors, v)
	}
	sort.SliceStable(e.Vendors, func(i, j int) bool {
		return e.Vendors[i].PotentialSavings.Cents > e.Vendors[j].PotentialSavings.Cents
	})
	return e
}

// Comprehensive standings.
const (
	StandingCritical = "Critical"
	StandingAbove    = "Above Standard"
	StandingAt       = "At Standard"
	StandingBelow    = "Below Standard"
)

// Comprehensive rolls the benchmark lines up into one standing.
type Comprehensive struct {
	Categories         int     `json:"categories"`
	AboveBenchmark     int     `json:"above_benchmark"`
	WithinBenchmark    int     `json:"within_benchmark"`
	BelowBenchmark     int     `json:"below_benchmark"`
	AverageVariancePct float64 `json:"average_variance_pct"`
	Standing           string  `json:"standing"`
}

// ComprehensiveAssessment averages the category variances and grades the
// average against the warning and critical thresholds. An average above
// critical is Critical, above warning is Above Standard, at or above minus
// warning is At Standard, and anything lower is Below Standard.
func ComprehensiveAssessment(lines []BenchmarkLine, th benchmark.Thresholds) Comprehensive {
	c := Comprehensive{Categories: len(lines), Standing: StandingAt}
	if len(lines) == 0 {
		return c
	}
	var sum float64
	for _, l := range lines {
		sum += l.Comparison.VariancePct
		switch l.Comparison.Status {
		case benchmark.StatusAbove:
			c.AboveBenchmark++
		case benchmark.StatusBelow:
			c.BelowBenchmark++
		default:
			c.WithinBenchmark++
		}
	}
	c.AverageVariancePct = sum / float64(len(lines))

	avg := c.AverageVariancePct / 100
	switch {
	case avg > th.CostVarianceCritical:
		c.Standing = StandingCritical
	case avg > th.CostVarianceWarning:
		c.Standing = StandingAbove
	case avg >= -th.CostVarianceWarning:
		c.Standing = StandingAt
	default:
		c.Standing = StandingBelow
	}
	return c
}
