package analysis

import (
	"fmt"
	"sort"
	"strings"

	"spendlens/internal/benchmark"
	"spendlens/internal/core"
)

// MSPVendors are the managed service providers whose invoices bundle
// third-party services.
var MSPVendors = []string{"Synoptek", "Harman", "Markov Processes"}

// IsMSP reports whether a consolidated vendor name is a managed service provider.
func IsMSP(vendor string) bool {
	for _, v := range MSPVendors {
		if v == vendor {
			return true
		}
	}
	return false
}

// MSPVendor is the spend of one managed service provider.
type MSPVendor struct {
	Vendor      string             `json:"vendor"`
	Total       core.Money         `json:"total"`
	Invoices    int                `json:"invoices"`
	Services    []core.NamedAmount `json:"services"`
	Companies   []core.NamedAmount `json:"companies"`
	HiddenCosts []string           `json:"hidden_costs,omitempty"`
}

// MSPBreakdown splits managed service spend by service pattern and company.
type MSPBreakdown struct {
	Total     core.Money         `json:"total"`
	Share     float64            `json:"share"`
	Invoices  int                `json:"invoices"`
	Vendors   []MSPVendor        `json:"vendors"`
	Services  []core.NamedAmount `json:"services"`
	Companies []core.NamedAmount `json:"companies"`
	Insights  []string           `json:"insights"`
}

type amounts struct {
	idx map[string]int
	out []core.NamedAmount
}

func (a *amounts) add(name string, m core.Money, count int) {
	if a.idx == nil {
		a.idx = map[string]int{}
	}
	i, ok := a.idx[name]
	if !ok {
		i = len(a.out)
		a.idx[name] = i
		a.out = append(a.out, core.NamedAmount{Name: name})
	}
	a.out[i].Amount = a.out[i].Amount.Add(m)
	a.out[i].Count += count
}

// sorted returns the amounts with shares of total, largest first.
func (a *amounts) sorted(total core.Money) []core.NamedAmount {
	out := make([]core.NamedAmount, len(a.out))
	copy(out, a.out)
	for i := range out {
		out[i].Share = core.Share(out[i].Amount, total)
	}
	sortNamed(out)
	return out
}

// MSPAnalysis classifies every MSP line item with benchmark.ClassifyMSPService.
// Shares inside a vendor are relative to that vendor's spend; the top-level
// share is relative to total.
func MSPAnalysis(assignments []Assignment, total core.Money) MSPBreakdown {
	type vendorAgg struct {
		total     core.Money
		invoices  int
		services  amounts
		companies amounts
		hidden    map[string]struct{}
	}
	byVendor := map[string]*vendorAgg{}
	var services, companies amounts
	var b MSPBreakdown

	for _, a := range assignments {
		if !IsMSP(a.Invoice.Vendor) {
			continue
		}
		v, ok := byVendor[a.Invoice.Vendor]
		if !ok {
			v = &vendorAgg{hidden: map[string]struct{}{}}
			byVendor[a.Invoice.Vendor] = v
		}
		v.total = v.total.Add(a.Invoice.Total)
		v.invoices++
		v.companies.add(a.Company, a.Invoice.Total, 1)
		companies.add(a.Company, a.Invoice.Total, 1)
		for _, li := range a.Invoice.LineItems {
			svc := benchmark.ClassifyMSPService(li.Description)
			v.services.add(svc, li.Total, 1)
			services.add(svc, li.Total, 1)
		}
		if a.LLM != nil {
			for _, h := range a.LLM.HiddenCosts {
				v.hidden[h] = struct{}{}
			}
		}
		b.Total = b.Total.Add(a.Invoice.Total)
		b.Invoices++
	}

	for _, name := range MSPVendors {
		v, ok := byVendor[name]
		if !ok {
			continue
		}
		hidden := make([]string, 0, len(v.hidden))
		for h := range v.hidden {
			hidden = append(hidden, h)
		}
		sort.Strings(hidden)
		b.Vendors = append(b.Vendors, MSPVendor{
			Vendor:      name,
			Total:       v.total,
			Invoices:    v.invoices,
			Services:    v.services.sorted(v.total),
			Companies:   v.companies.sorted(v.total),
			HiddenCosts: hidden,
		})
	}
	sort.SliceStable(b.Vendors, func(i, j int) bool { return b.Vendors[i].Total.Cents > b.Vendors[j].Total.Cents })

	b.Share = core.Share(b.Total, total)
	b.Services = services.sorted(b.Total)
	b.Companies = companies.sorted(b.Total)
	b.Insights = mspInsights(b)
	return b
}

func mspInsights(b MSPBreakdown) []string {
	if len(b.Vendors) == 0 {
		return nil
	}
	out := []string{
		fmt.Sprintf("Largest MSP vendor: %s (%s)", b.Vendors[0].Vendor, b.Vendors[0].Total),
	}
	if len(b.Services) > 0 {
		s := b.Services[0]
		out = append(out, fmt.Sprintf("Most used service: %s (%s, %.1f%% of MSP spend)", titleize(s.Name), s.Amount, s.Share*100))
	}
	if len(b.Companies) > 0 {
		c := b.Companies[0]
		out = append(out, fmt.Sprintf("Company with highest MSP spend: %s (%s)", c.Name, c.Amount))
	}
	out = append(out, fmt.Sprintf("MSP vendors account for %.1f%% of total spend", b.Share*100))
	for _, v := range b.Vendors {
		if len(v.HiddenCosts) > 0 {
			out = append(out, fmt.Sprintf("%s hidden costs identified: %s", v.Vendor, strings.Join(v.HiddenCosts, ", ")))
		}
	}
	return out
}
