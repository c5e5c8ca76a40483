package dataset

import (
	"strings"

	"spendlens/internal/core"
)

var licensingVendors = []string{
	"microsoft", "adobe", "vmware", "oracle", "sap", "salesforce",
	"servicenow", "atlassian", "aws", "google", "azure", "synoptek",
}

var licensingKeywords = []string{
	"license", "licensing", "subscription", "software", "saas",
	"cloud", "azure", "aws", "office", "365", "adobe", "vmware",
	"oracle", "sap", "salesforce", "servicenow", "atlassian",
}

// IsLicensingRelevant reports whether an invoice is licensing or software spend,
// either by vendor name or by a keyword in any line item description.
func IsLicensingRelevant(inv core.Invoice) bool {
	vendor := strings.ToLower(inv.Vendor)
	for _, v := range licensingVendors {
		if strings.Contains(vendor, v) {
			return true
		}
	}
	for _, li := range inv.LineItems {
		desc := strings.ToLower(li.Description)
		for _, kw := range licensingKeywords {
			if strings.Contains(desc, kw) {
				return true
			}
		}
	}
	return false
}

// FilterLicensing keeps only licensing relevant invoices.
func FilterLicensing(invoices []core.Invoice) []core.Invoice {
	out := make([]core.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if IsLicensingRelevant(inv) {
			out = append(out, inv)
		}
	}
	return out
}
