package consolidate

import (
	"fmt"
	"math"
	"strconv"

	"spendlens/internal/core"
)

// Insight is a single observation about dataset quality.
type Insight struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Impact  string `json:"impact"`
}

// QualityReport summarizes duplicates, consolidation and missing fields.
type QualityReport struct {
	TotalInvoices     int               `json:"total_invoices"`
	UniqueInvoices    int               `json:"unique_invoices"`
	Duplicates        int               `json:"duplicates"`
	DuplicateRate     float64           `json:"duplicate_rate"`
	MissingDates      int               `json:"missing_dates"`
	MissingBillTo     int               `json:"missing_bill_to"`
	VendorMappings    map[string]string `json:"vendor_mappings"`
	CompanyMappings   map[string]string `json:"company_mappings"`
	VendorsMerged     int               `json:"vendors_merged"`
	CompaniesResolved int               `json:"companies_resolved"`
	Score             float64           `json:"score"`
	Insights          []Insight         `json:"insights"`
}

// DedupKey identifies an invoice for duplicate detection: vendor, total,
// date string and bill-to joined with underscores.
func DedupKey(inv core.Invoice) string {
	return inv.Vendor + "_" + strconv.FormatInt(inv.Total.Cents, 10) + "_" + inv.InvoiceDate + "_" + inv.BillTo
}

// Dedupe drops later invoices sharing a DedupKey with an earlier one.
func Dedupe(invoices []core.Invoice) []core.Invoice {
	seen := make(map[string]struct{}, len(invoices))
	out := make([]core.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		k := DedupKey(inv)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, inv)
	}
	return out
}

// Quality measures the raw (unconsolidated) invoices.
//
// The score is 100 minus the duplicate percentage minus the missing-date
// percentage, clamped to [0, 100].
func Quality(invoices []core.Invoice) QualityReport {
	r := QualityReport{
		TotalInvoices:   len(invoices),
		VendorMappings:  map[string]string{},
		CompanyMappings: map[string]string{},
	}

	seen := make(map[string]struct{}, len(invoices))
	for _, inv := range invoices {
		k := DedupKey(inv)
		if _, ok := seen[k]; ok {
			r.Duplicates++
			continue
		}
		seen[k] = struct{}{}

		if !inv.HasDate() {
			r.MissingDates++
		}
		if inv.BillTo == "" {
			r.MissingBillTo++
		}
		if canonical := Vendor(inv.Vendor); canonical != inv.Vendor {
			r.VendorMappings[inv.Vendor] = canonical
		}
		if inv.BillTo != "" {
			if company := Company(inv.BillTo); company != UnknownCompany {
				r.CompanyMappings[inv.BillTo] = company
			}
		}
	}
	r.UniqueInvoices = r.TotalInvoices - r.Duplicates
	r.VendorsMerged = len(r.VendorMappings)
	r.CompaniesResolved = len(r.CompanyMappings)

	if r.TotalInvoices == 0 {
		r.Score = 100
		r.Insights = qualityInsights(r)
		return r
	}
	r.DuplicateRate = float64(r.Duplicates) / float64(r.TotalInvoices) * 100
	missingRate := float64(r.MissingDates) / float64(r.TotalInvoices) * 100
	r.Score = math.Max(0, math.Min(100, 100-r.DuplicateRate-missingRate))
	r.Insights = qualityInsights(r)
	return r
}

func qualityInsights(r QualityReport) []Insight {
	var out []Insight
	if r.Duplicates > 0 {
		out = append(out, Insight{
			Type:    "duplicate_removal",
			Message: fmt.Sprintf("Removed %d duplicate records (%.1f%% of original data)", r.Duplicates, r.DuplicateRate),
			Impact:  "Improved data accuracy and reduced inflated spend calculations",
		})
	}
	if r.VendorsMerged > 0 {
		out = append(out, Insight{
			Type:    "vendor_consolidation",
			Message: fmt.Sprintf("Consolidated %d vendor name variations", r.VendorsMerged),
			Impact:  "Better vendor spend analysis and reduced fragmentation",
		})
	}
	if r.MissingDates > 0 {
		out = append(out, Insight{
			Type:    "missing_dates",
			Message: fmt.Sprintf("%d invoices have no parseable date", r.MissingDates),
			Impact:  "Excluded from monthly and quarterly trends",
		})
	}
	switch {
	case r.Score >= 95:
		out = append(out, Insight{
			Type:    "quality_score",
			Message: fmt.Sprintf("Excellent data quality score: %.1f%%", r.Score),
			Impact:  "High confidence in analysis results",
		})
	case r.Score >= 85:
		out = append(out, Insight{
			Type:    "quality_score",
			Message: fmt.Sprintf("Good data quality score: %.1f%%", r.Score),
			Impact:  "Reliable analysis results with minor caveats",
		})
	default:
		out = append(out, Insight{
			Type:    "quality_score",
			Message: fmt.Sprintf("Data quality score needs improvement: %.1f%%", r.Score),
			Impact:  "Consider additional data cleaning steps",
		})
	}
	return out
}
