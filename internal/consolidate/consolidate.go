// Package consolidate maps raw vendor and bill-to strings to canonical names
// and measures the quality of a dataset.
package consolidate

import (
	"strings"
	"unicode"
)

// UnknownCompany is returned when no company can be derived from a bill-to field.
const UnknownCompany = "Unknown Company"

type mapping struct {
	key   string
	value string
}

// vendorTable is matched exactly first, then by substring, in this order.
var vendorTable = []mapping{
	{"synoptek", "Synoptek"},
	{"synoptek, llc", "Synoptek"},
	{"synoptek llc", "Synoptek"},
	{"atlassian", "Atlassian"},
	{"microsoft", "Microsoft"},
	{"oracle", "Oracle"},
	{"salesforce", "Salesforce"},
	{"aws", "AWS"},
	{"amazon", "AWS"},
	{"amazon web services", "AWS"},
	{"azure", "Microsoft Azure"},
	{"google", "Google"},
	{"gcp", "Google Cloud"},
	{"google cloud", "Google Cloud"},
	{"github", "GitHub"},
	{"gitlab", "GitLab"},
	{"crowdstrike", "CrowdStrike"},
	{"sentinelone", "SentinelOne"},
	{"palo alto", "Palo Alto Networks"},
	{"proofpoint", "Proofpoint"},
	{"harman", "Harman"},
	{"harman connected services", "Harman"},
	{"markov", "Markov Processes"},
	{"markov processes", "Markov Processes"},
	{"markov processes international", "Markov Processes"},
}

// companyTable is matched by substring against the whitespace-normalized,
// lowercased bill-to field. More specific entries come first.
var companyTable = []mapping{
	{"great gray trust company", "Great Gray Trust Company"},
	{"great gray company", "Great Gray Trust Company"},
	{"great gray market", "Great Gray Market"},
	{"great gray", "Great Gray"},
	{"rpag", "RPAG"},
	{"retirement plan advisory group", "RPAG"},
	{"flexpath", "Flexpath"},
}

// Vendor returns the canonical vendor name, or the trimmed input when the
// table has no match.
func Vendor(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, m := range vendorTable {
		if lower == m.key {
			return m.value
		}
	}
	for _, m := range vendorTable {
		if strings.Contains(lower, m.key) {
			return m.value
		}
	}
	return strings.TrimSpace(name)
}

// Company derives the billed company from a bill-to address block.
func Company(billTo string) string {
	if strings.TrimSpace(billTo) == "" {
		return UnknownCompany
	}
	normalized := strings.Join(strings.Fields(strings.ToLower(billTo)), " ")
	for _, m := range companyTable {
		if strings.Contains(normalized, m.key) {
			return m.value
		}
	}

	first, _, _ := strings.Cut(billTo, ",")
	var words []string
	for _, w := range strings.Fields(first) {
		r := []rune(w)
		if len(r) > 2 && unicode.IsUpper(r[0]) {
			words = append(words, w)
			if len(words) == 3 {
				break
			}
		}
	}
	if len(words) == 0 {
		return UnknownCompany
	}
	return strings.Join(words, " ")
}
