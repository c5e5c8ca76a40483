package benchmark

import (
	"fmt"

	"spendlens/internal/core"
)

// Status places a share relative to a benchmark range.
type Status string

const (
	StatusBelow  Status = "Below Benchmark"
	StatusWithin Status = "Within Benchmark"
	StatusAbove  Status = "Above Benchmark"
)

// Comparison is actual spend measured against a Range.
type Comparison struct {
	Share       float64 `json:"share"`
	VariancePct float64 `json:"variance_pct"`
	Status      Status  `json:"status"`
}

// Compare computes the share of actual in total, its variance from the
// typical share in percent, and its status against the range.
func Compare(actual, total core.Money, r Range) Comparison {
	share := core.Share(actual, total)
	c := Comparison{Share: share, Status: StatusWithin}
	if r.Typical > 0 {
		c.VariancePct = (share - r.Typical) / r.Typical * 100
	}
	switch {
	case share < r.Low:
		c.Status = StatusBelow
	case share > r.High:
		c.Status = StatusAbove
	}
	return c
}

// Risk levels by variance from typical.
const (
	RiskBelow      = "Below Benchmark"
	RiskAcceptable = "Acceptable"
	RiskModerate   = "Moderate Risk"
	RiskHigh       = "High Risk"
	RiskCritical   = "Critical"
)

// Risk is a risk level with its fixed recommendation.
type Risk struct {
	Level          string `json:"level"`
	Recommendation string `json:"recommendation"`
}

// RiskLevel buckets a variance percentage.
func RiskLevel(variancePct float64) Risk {
	switch {
	case variancePct <= 0:
		return Risk{RiskBelow, "Good Value - Below Benchmark"}
	case variancePct <= 20:
		return Risk{RiskAcceptable, "Acceptable - Within Range"}
	case variancePct <= 50:
		return Risk{RiskModerate, "Review Required - Moderate Overpayment"}
	case variancePct <= 100:
		return Risk{RiskHigh, "Immediate Action - High Overpayment"}
	default:
		return Risk{RiskCritical, "Critical - Excessive Overpayment"}
	}
}

// Concentration describes vendor diversity within a category.
func Concentration(vendorCount int) string {
	switch {
	case vendorCount <= 0:
		return "No vendors"
	case vendorCount == 1:
		return "Single vendor dependency"
	case vendorCount <= 3:
		return fmt.Sprintf("Limited vendor diversity (%d vendors)", vendorCount)
	default:
		return fmt.Sprintf("Good vendor diversity (%d vendors)", vendorCount)
	}
}

const (
	AssessmentAbove  = "Above Industry Standards - Optimization Opportunities Available"
	AssessmentBelow  = "Below Industry Standards - Good Cost Management"
	AssessmentWithin = "Within Industry Standards - Well Managed"
)

// OverallAssessment is Above or Below when more than half of the statuses
// say so, otherwise Within.
func OverallAssessment(statuses []Status) string {
	var above, below int
	for _, s := range statuses {
		switch s {
		case StatusAbove:
			above++
		case StatusBelow:
			below++
		}
	}
	half := float64(len(statuses)) / 2
	switch {
	case float64(above) > half:
		return AssessmentAbove
	case float64(below) > half:
		return AssessmentBelow
	default:
		return AssessmentWithin
	}
}

// CategoryRecommendation returns advice for a primary category in a given status.
func CategoryRecommendation(primary string, s Status) string {
	switch s {
	case StatusBelow:
		return "Maintain current cost management practices"
	case StatusWithin:
		return "Continue monitoring and optimize where possible"
	}
	switch primary {
	case "it_services":
		return "Negotiate better rates, consider alternative providers, consolidate services"
	case "development_tools":
		return "Review license utilization, negotiate volume discounts, consider open-source alternatives"
	case "enterprise_software":
		return "Renegotiate contracts, review user counts, consider cloud alternatives"
	case "security_software":
		return "Consolidate security tools, negotiate better pricing, review coverage needs"
	case "cloud_services":
		return "Optimize resource usage, implement cost controls, negotiate reserved instances"
	default:
		return "Review pricing and terms, negotiate better rates"
	}
}
