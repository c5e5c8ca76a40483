package benchmark

import "strings"

// DefaultPrimary and DefaultSubcategory apply when no vendor rule matches.
const (
	DefaultPrimary     = "it_services"
	DefaultSubcategory = "managed_services"
)

// VendorRule maps a lowercase vendor substring to a benchmark category.
type VendorRule struct {
	Match       string `toml:"match"`
	Primary     string `toml:"primary"`
	Subcategory string `toml:"subcategory"`
	ServiceType string `toml:"service_type"`
}

var defaultVendorRules = []VendorRule{
	{"synoptek", "it_services", "managed_services", "service"},
	{"harman", "it_services", "consulting", "service"},
	{"markov", "it_services", "consulting", "service"},
	{"atlassian", "development_tools", "project_management", "license"},
	{"github", "development_tools", "version_control", "license"},
	{"gitlab", "development_tools", "version_control", "license"},
	{"visual studio", "development_tools", "ide_tools", "license"},
	{"jetbrains", "development_tools", "ide_tools", "license"},
	{"azure", "cloud_services", "infrastructure", "service"},
	{"microsoft", "enterprise_software", "productivity", "license"},
	{"oracle", "enterprise_software", "database", "license"},
	{"salesforce", "enterprise_software", "crm", "license"},
	{"sap", "enterprise_software", "erp", "license"},
	{"adobe", "enterprise_software", "productivity", "license"},
	{"aws", "cloud_services", "infrastructure", "service"},
	{"amazon", "cloud_services", "infrastructure", "service"},
	{"google", "cloud_services", "infrastructure", "service"},
	{"gcp", "cloud_services", "infrastructure", "service"},
	{"crowdstrike", "security_software", "endpoint_protection", "license"},
	{"sentinelone", "security_software", "endpoint_protection", "license"},
	{"palo alto", "security_software", "network_security", "license"},
	{"proofpoint", "security_software", "compliance", "license"},
}

// Category is a vendor or LLM categorization result.
type Category struct {
	Primary     string `json:"primary_category"`
	Subcategory string `json:"subcategory"`
	ServiceType string `json:"service_type"`
}

// Key returns "primary.subcategory".
func (c Category) Key() string {
	return c.Primary + "." + c.Subcategory
}

// CategorizeVendor applies the first vendor rule whose match is a substring
// of the lowercased vendor name.
func (t *Table) CategorizeVendor(vendor string) Category {
	lower := strings.ToLower(vendor)
	for _, r := range t.vendors {
		if strings.Contains(lower, r.Match) {
			return Category{Primary: r.Primary, Subcategory: r.Subcategory, ServiceType: r.ServiceType}
		}
	}
	return Category{Primary: DefaultPrimary, Subcategory: DefaultSubcategory, ServiceType: "service"}
}

// AddVendorRule puts r ahead of the existing rules.
func (t *Table) AddVendorRule(r VendorRule) {
	r.Match = strings.ToLower(strings.TrimSpace(r.Match))
	t.vendors = append([]VendorRule{r}, t.vendors...)
}

type keywordLabel struct {
	label    string
	keywords []string
}

var lineItemLabels = []keywordLabel{
	{"Microsoft 365", []string{"microsoft", "office", "365", "e3", "e5"}},
	{"Adobe", []string{"adobe", "acrobat", "creative"}},
	{"VMware", []string{"vmware", "vsphere", "vcenter"}},
	{"Oracle", []string{"oracle", "database", "java"}},
	{"SAP", []string{"sap", "erp"}},
	{"Salesforce", []string{"salesforce", "crm"}},
	{"ServiceNow", []string{"servicenow", "itom"}},
	{"Atlassian", []string{"atlassian", "jira", "confluence"}},
	{"Cloud Services", []string{"azure", "aws", "amazon web services", "google cloud", "gcp"}},
	{"Professional Services", []string{"consulting", "consultant", "professional services"}},
}

// CategorizeLineItem labels a line item description by keyword.
func CategorizeLineItem(description string) string {
	lower := strings.ToLower(description)
	for _, kl := range lineItemLabels {
		for _, kw := range kl.keywords {
			if strings.Contains(lower, kw) {
				return kl.label
			}
		}
	}
	return "Other"
}

var mspServicePatterns = []keywordLabel{
	{"azure", []string{"azure", "microsoft azure", "cloud platform", "virtual machine", "vm", "storage", "database"}},
	{"office365", []string{"office 365", "o365", "microsoft 365", "exchange", "sharepoint", "teams", "outlook"}},
	{"aws", []string{"aws", "amazon web services", "ec2", "s3", "lambda", "rds"}},
	{"google_cloud", []string{"google cloud", "gcp", "compute engine", "cloud storage", "bigquery"}},
	{"security", []string{"security", "antivirus", "firewall", "endpoint protection", "threat detection"}},
	{"backup", []string{"backup", "disaster recovery", "data protection", "replication"}},
	{"monitoring", []string{"monitoring", "alerting", "logging", "observability", "performance"}},
	{"support", []string{"support", "maintenance", "technical support", "help desk"}},
	{"licensing", []string{"license", "licensing", "subscription", "per user", "per seat"}},
	{"consulting", []string{"consulting", "professional services", "implementation", "migration"}},
}

// MSPServiceOther is returned by ClassifyMSPService when nothing matches.
const MSPServiceOther = "other"

// ClassifyMSPService returns the first service pattern matching the
// description of an MSP line item.
func ClassifyMSPService(description string) string {
	lower := strings.ToLower(description)
	for _, p := range mspServicePatterns {
		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				return p.label
			}
		}
	}
	return MSPServiceOther
}
