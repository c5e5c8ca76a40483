package analysis

import (
	"fmt"
	"sort"

	"spendlens/internal/benchmark"
	"spendlens/internal/core"
)

// Employee growth flag thresholds.
const (
	ScalingRatioThreshold     = 1.1
	NonScalingVariancePercent = 20.0
)

// scalingServiceTypes are expected to grow with headcount.
var scalingServiceTypes = map[string]bool{
	"software_licensing":            true,
	"license/subscription":          true,
	"software_subscription":         true,
	"microsoft_365_licensing":       true,
	"enterprise_software_licensing": true,
	"endpoint_protection":           true,
	"security_licensing":            true,
	"productivity_software":         true,
}

// mspServiceTypes maps ClassifyMSPService patterns onto growth service types.
var mspServiceTypes = map[string]string{
	"licensing": "software_licensing",
	"office365": "microsoft_365_licensing",
	"security":  "endpoint_protection",
}

// IsScalingService reports whether spend on a service type should follow headcount.
func IsScalingService(serviceType string) bool {
	return scalingServiceTypes[serviceType]
}

// ServiceType returns the growth service type of an MSP line item.
func ServiceType(description string) string {
	p := benchmark.ClassifyMSPService(description)
	if t, ok := mspServiceTypes[p]; ok {
		return t
	}
	return p
}

// ServiceGrowth compares a service's current monthly cost with what the
// baseline period predicts.
type ServiceGrowth struct {
	ServiceType        string     `json:"service_type"`
	Scaling            bool       `json:"scaling"`
	Months             int        `json:"months"`
	BaselineMonthlyAvg core.Money `json:"baseline_monthly_avg"`
	ExpectedMonthly    core.Money `json:"expected_monthly"`
	ActualMonthly      core.Money `json:"actual_monthly"`
	Ratio              float64    `json:"ratio"`
	VariancePercent    float64    `json:"variance_percent"`
	Flagged            bool       `json:"flagged"`
	MonthlyOverpayment core.Money `json:"monthly_overpayment"`
	Note               string     `json:"note,omitempty"`
}

// EmployeeGrowth is the headcount-adjusted view of MSP service spend.
type EmployeeGrowth struct {
	BaselineEmployees  int             `json:"baseline_employees"`
	CurrentEmployees   int             `json:"current_employees"`
	GrowthRatio        float64         `json:"growth_ratio"`
	Services           []ServiceGrowth `json:"services"`
	Flagged            int             `json:"flagged"`
	MonthlyOverpayment core.Money      `json:"monthly_overpayment"`
	AnnualOverpayment  core.Money      `json:"annual_overpayment"`
}

// EmployeeGrowthAnalysis groups dated MSP line items by service type and
// month. The earlier half of each service's months is the baseline period
// and the later half the current period.
//
// Scaling services expect baseline·(current/baseline employees) and are
// flagged when actual/expected exceeds ScalingRatioThreshold. Other services
// expect the baseline itself and are flagged when the variance exceeds
// NonScalingVariancePercent. Services seen in a single month are reported
// but never flagged.
func EmployeeGrowthAnalysis(assignments []Assignment, baselineEmployees, currentEmployees int) EmployeeGrowth {
	g := EmployeeGrowth{BaselineEmployees: baselineEmployees, CurrentEmployees: currentEmployees, GrowthRatio: 1}
	if baselineEmployees > 0 && currentEmployees > 0 {
		g.GrowthRatio = float64(currentEmployees) / float64(baselineEmployees)
	}

	monthly := map[string]map[string]core.Money{}
	for _, a := range assignments {
		if !IsMSP(a.Invoice.Vendor) || !a.Invoice.HasDate() {
			continue
		}
		month := a.Invoice.MonthKey()
		for _, li := range a.Invoice.LineItems {
			st := ServiceType(li.Description)
			if monthly[st] == nil {
				monthly[st] = map[string]core.Money{}
			}
			monthly[st][month] = monthly[st][month].Add(li.Total)
		}
	}

	for st, months := range monthly {
		s := serviceGrowth(st, months, g.GrowthRatio)
		if s.Flagged {
			g.Flagged++
			g.MonthlyOverpayment = g.MonthlyOverpayment.Add(s.MonthlyOverpayment)
		}
		g.Services = append(g.Services, s)
	}
	sort.Slice(g.Services, func(i, j int) bool {
		if g.Services[i].Flagged != g.Services[j].Flagged {
			return g.Services[i].Flagged
		}
		if g.Services[i].ActualMonthly != g.Services[j].ActualMonthly {
			return g.Services[i].ActualMonthly.Cents > g.Services[j].ActualMonthly.Cents
		}
		return g.Services[i].ServiceType < g.Services[j].ServiceType
	})
	g.AnnualOverpayment = core.Money{Cents: g.MonthlyOverpayment.Cents * 12}
	return g
}

func serviceGrowth(serviceType string, months map[string]core.Money, growthRatio float64) ServiceGrowth {
	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s := ServiceGrowth{ServiceType: serviceType, Scaling: IsScalingService(serviceType), Months: len(keys)}
	if len(keys) < 2 {
		s.BaselineMonthlyAvg = months[keys[0]]
		s.ActualMonthly = s.BaselineMonthlyAvg
		s.ExpectedMonthly = s.BaselineMonthlyAvg
		s.Ratio = 1
		s.Note = "single month of data"
		return s
	}

	split := len(keys) / 2
	s.BaselineMonthlyAvg = averageOf(months, keys[:split])
	s.ActualMonthly = averageOf(months, keys[split:])

	expected := s.BaselineMonthlyAvg.Float()
	if s.Scaling {
		expected *= growthRatio
	}
	s.ExpectedMonthly = core.MoneyFromFloat(expected)
	if s.ExpectedMonthly.Cents <= 0 {
		s.Note = "no baseline spend"
		return s
	}

	s.Ratio = float64(s.ActualMonthly.Cents) / float64(s.ExpectedMonthly.Cents)
	s.VariancePercent = (s.Ratio - 1) * 100
	if s.Scaling {
		s.Flagged = s.Ratio > ScalingRatioThreshold
	} else {
		s.Flagged = s.VariancePercent > NonScalingVariancePercent
	}
	if s.Flagged {
		s.MonthlyOverpayment = s.ActualMonthly.Sub(s.ExpectedMonthly)
		s.Note = fmt.Sprintf("%.1f%% above expected", s.VariancePercent)
	}
	return s
}

func averageOf(months map[string]core.Money, keys []string) core.Money {
	var sum core.Money
	for _, k := range keys {
		sum = sum.Add(months[k])
	}
	return core.Money{Cents: sum.Cents / int64(len(keys))}
}
