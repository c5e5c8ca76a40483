package costcontrol

import "fmt"

// Alert thresholds.
const (
	AlertTotalCostUSD  = 50.0
	AlertMinHitRate    = 0.3
	AlertMaxAPICalls   = 100
	AlertRecentCostUSD = 10.0
	recentTrendDays    = 3
)

type Alert struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Efficiency struct {
	AvgCostPerCall float64 `json:"avg_cost_per_call"`
	Score          float64 `json:"score"`
	Status         string  `json:"status"`
}

// MonitorReport is what the cost monitor shows below the summary.
type MonitorReport struct {
	Alerts     []Alert     `json:"alerts"`
	Efficiency *Efficiency `json:"efficiency,omitempty"`
}

// Monitor evaluates the alert rules against a summary. Efficiency is only
// reported once at least one call was paid for.
func Monitor(s Summary) MonitorReport {
	r := MonitorReport{Alerts: []Alert{}}

	if s.CostUSD > AlertTotalCostUSD {
		r.Alerts = append(r.Alerts, Alert{Kind: "high_total_cost", Message: fmt.Sprintf("High total cost detected (>$%.0f)", AlertTotalCostUSD)})
	}
	if s.CacheHitRate < AlertMinHitRate {
		r.Alerts = append(r.Alerts, Alert{Kind: "low_hit_rate", Message: fmt.Sprintf("Low cache hit rate (<%.0f%%)", AlertMinHitRate*100)})
	}
	if s.APICalls > AlertMaxAPICalls {
		r.Alerts = append(r.Alerts, Alert{Kind: "high_call_volume", Message: fmt.Sprintf("High API call volume (>%d calls)", AlertMaxAPICalls)})
	}

	recent := s.Trends
	if len(recent) > recentTrendDays {
		recent = recent[len(recent)-recentTrendDays:]
	}
	var recentCost float64
	for _, d := range recent {
		recentCost += d.TotalCostUSD
	}
	if recentCost > AlertRecentCostUSD {
		r.Alerts = append(r.Alerts, Alert{Kind: "high_recent_cost", Message: fmt.Sprintf("High recent costs ($%.2f in last %d days)", recentCost, recentTrendDays)})
	}

	if s.APICalls > 0 {
		score := s.CacheHitRate * 100
		r.Efficiency = &Efficiency{
			AvgCostPerCall: s.CostUSD / float64(s.APICalls),
			Score:          score,
			Status:         EfficiencyStatus(score),
		}
	}
	return r
}

// EfficiencyStatus buckets an efficiency score in percent.
func EfficiencyStatus(score float64) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	default:
		return "Poor"
	}
}
