package benchmark

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// overridesFile is the TOML layout accepted by LoadOverrides:
//
//	[thresholds]
//	cost_variance_warning = 0.2
//
//	[[benchmark]]
//	primary = "it_services"
//	subcategory = "managed_services"
//	low = 0.10
//	high = 0.22
//	typical = 0.16
//
//	[[vendor]]
//	match = "okta"
//	primary = "security_software"
//	subcategory = "identity_management"
type overridesFile struct {
	Thresholds *Thresholds       `toml:"thresholds"`
	Benchmarks []benchmarkRecord `toml:"benchmark"`
	Vendors    []VendorRule      `toml:"vendor"`
}

type benchmarkRecord struct {
	Primary     string `toml:"primary"`
	Subcategory string `toml:"subcategory"`
	Range
}

// LoadOverrides returns the default table with the contents of a TOML file
// merged in. Vendor rules from the file take precedence over the built-in ones.
func LoadOverrides(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read benchmark overrides: %w", err)
	}
	t := Default()
	if err := t.Merge(data); err != nil {
		return nil, fmt.Errorf("merge %s: %w", path, err)
	}
	slog.Info("Benchmark overrides loaded", "file", path)
	return t, nil
}

// Merge applies TOML overrides to t.
func (t *Table) Merge(data []byte) error {
	var f overridesFile
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return fmt.Errorf("decode toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys: %v", undecoded)
	}

	for _, b := range f.Benchmarks {
		if b.Primary == "" || b.Subcategory == "" {
			return fmt.Errorf("benchmark entry needs primary and subcategory")
		}
		if err := b.Range.Validate(); err != nil {
			return fmt.Errorf("benchmark %s.%s: %w", b.Primary, b.Subcategory, err)
		}
		t.Set(b.Primary, b.Subcategory, b.Range)
	}
	// Reverse so the first rule in the file ends up first in the table.
	for i := len(f.Vendors) - 1; i >= 0; i-- {
		v := f.Vendors[i]
		if v.Match == "" || v.Primary == "" {
			return fmt.Errorf("vendor rule needs match and primary")
		}
		if v.ServiceType == "" {
			v.ServiceType = "license"
		}
		t.AddVendorRule(v)
	}
	if f.Thresholds != nil {
		t.Thresholds = mergeThresholds(t.Thresholds, *f.Thresholds)
	}
	return nil
}

func mergeThresholds(base, o Thresholds) Thresholds {
	if o.CostVarianceWarning > 0 {
		base.CostVarianceWarning = o.CostVarianceWarning
	}
	if o.CostVarianceCritical > 0 {
		base.CostVarianceCritical = o.CostVarianceCritical
	}
	if o.UsageEfficiency > 0 {
		base.UsageEfficiency = o.UsageEfficiency
	}
	if o.LicenseUtilization > 0 {
		base.LicenseUtilization = o.LicenseUtilization
	}
	if o.RenewalReminderDays > 0 {
		base.RenewalReminderDays = o.RenewalReminderDays
	}
	if o.TrendMonths > 0 {
		base.TrendMonths = o.TrendMonths
	}
	return base
}
