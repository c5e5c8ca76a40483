package analysis

import (
	"fmt"
	"sort"
	"strings"

	"spendlens/internal/benchmark"
	"spendlens/internal/core"
)

// Recommendation thresholds as shares of total spend.
const (
	VendorConcentrationShare  = 0.15
	CompanyConcentrationShare = 0.20
	topVendorsReviewed        = 5
)

// Recommendation types.
const (
	RecCostReduction       = "cost_reduction"
	RecVendorConsolidation = "vendor_consolidation"
	RecCompanyOptimization = "company_optimization"
	RecMSPOptimization     = "msp_optimization"
	RecGrowthMisalignment  = "growth_misalignment"
)

// Recommendations derives actionable findings from a completed result,
// highest priority first.
func Recommendations(res *Result) []Recommendation {
	var out []Recommendation
	total := res.TotalSpend

	for _, b := range res.Benchmarks {
		if b.Comparison.Status != benchmark.StatusAbove {
			continue
		}
		priority := "medium"
		if b.Comparison.VariancePct > CriticalVariancePercent {
			priority = "high"
		}
		expected := core.MoneyFromFloat(total.Float() * b.Range.Typical)
		out = append(out, Recommendation{
			Type:     RecCostReduction,
			Priority: priority,
			Category: b.Category,
			Message: fmt.Sprintf("Consider reducing %s spending. Currently %.1f%% above industry benchmark. %s",
				titleize(b.Primary+" "+b.Subcategory), b.Comparison.VariancePct, b.Recommendation),
			PotentialSavings: b.Spend.Sub(expected),
		})
	}

	for i, v := range res.Vendors {
		if i >= topVendorsReviewed {
			break
		}
		if v.Share <= VendorConcentrationShare {
			continue
		}
		out = append(out, Recommendation{
			Type:     RecVendorConsolidation,
			Priority: "medium",
			Vendor:   v.Name,
			Message: fmt.Sprintf("Consider consolidating %s services or negotiating better rates. Represents %.1f%% of total spend.",
				v.Name, v.Share*100),
			PotentialSavings: core.Money{Cents: v.Amount.Cents / 10},
		})
	}

	for _, c := range res.Companies {
		if c.Share <= CompanyConcentrationShare {
			continue
		}
		out = append(out, Recommendation{
			Type:     RecCompanyOptimization,
			Priority: "medium",
			Company:  c.Name,
			Message: fmt.Sprintf("Review %s licensing needs. Represents %.1f%% of total spend.",
				c.Name, c.Share*100),
			PotentialSavings: core.Money{Cents: c.Amount.Cents / 20},
		})
	}

	for _, v := range res.MSP.Vendors {
		if len(v.HiddenCosts) == 0 {
			continue
		}
		out = append(out, Recommendation{
			Type:     RecMSPOptimization,
			Priority: "high",
			Category: "it_services",
			Vendor:   v.Vendor,
			Company:  "All",
			Message: fmt.Sprintf("MSP hidden costs identified: %s. Consider direct vendor relationships.",
				strings.Join(v.HiddenCosts, ", ")),
		})
	}

	for _, s := range res.Growth.Services {
		if !s.Flagged {
			continue
		}
		kind := "does not scale with headcount"
		if s.Scaling {
			kind = "grew faster than headcount"
		}
		out = append(out, Recommendation{
			Type:     RecGrowthMisalignment,
			Priority: "medium",
			Category: s.ServiceType,
			Message: fmt.Sprintf("%s spend %s: %s per month against %s expected.",
				titleize(s.ServiceType), kind, s.ActualMonthly, s.ExpectedMonthly),
			PotentialSavings: core.Money{Cents: s.MonthlyOverpayment.Cents * 12},
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return priorityRank(out[i].Priority) < priorityRank(out[j].Priority)
	})
	return out
}

func priorityRank(p string) int {
	switch p {
	case "high":
		return 0
	case "medium":
		return 1
	default:
		return 2
	}
}
