package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseInvoiceDate(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2025-03-15", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"03/15/2025", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"3/5/2025", time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), true},
		{"03/15/25", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"March 15, 2025", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"Mar 15, 2025", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"25/03/2025", time.Date(2025, 3, 25, 0, 0, 0, 0, time.UTC), true},
		{"2025/03/15", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"next tuesday", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := ParseInvoiceDate(tc.in)
		if !tc.ok {
			if !errors.Is(err, ErrInvalidDate) {
				t.Errorf("ParseInvoiceDate(%q) err = %v, want ErrInvalidDate", tc.in, err)
			}
			continue
		}
		if err != nil || !got.Equal(tc.want) {
			t.Errorf("ParseInvoiceDate(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestInvoiceValidate(t *testing.T) {
	good := Invoice{
		Vendor:    "Synoptek",
		LineItems: []LineItem{{Description: "Managed services", Quantity: 1, Total: Money{Cents: 1000}}},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		inv  Invoice
		want error
	}{
		{"empty vendor", Invoice{LineItems: good.LineItems}, ErrEmptyVendor},
		{"no items", Invoice{Vendor: "x"}, ErrNoLineItems},
		{"blank description", Invoice{Vendor: "x", LineItems: []LineItem{{Description: " "}}}, ErrInvalidInvoice},
		{"negative quantity", Invoice{Vendor: "x", LineItems: []LineItem{{Description: "a", Quantity: -1}}}, ErrInvalidAmount},
	}
	for _, tc := range cases {
		if err := tc.inv.Validate(); !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestInvoiceTotalsAndBuckets(t *testing.T) {
	inv := Invoice{
		Vendor: "AWS",
		Date:   time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC),
		LineItems: []LineItem{
			{Description: "EC2", Total: Money{Cents: 1050}},
			{Description: "credit", Total: Money{Cents: -50}},
		},
	}
	if got := inv.ComputeTotal(); got.Cents != 1000 {
		t.Fatalf("ComputeTotal = %d, want 1000", got.Cents)
	}
	if got := inv.MonthKey(); got != "2024-11" {
		t.Fatalf("MonthKey = %q", got)
	}
	if got := inv.QuarterKey(); got != "2024-Q4" {
		t.Fatalf("QuarterKey = %q", got)
	}
	if (Invoice{}).MonthKey() != "" {
		t.Fatalf("undated invoice should have empty month key")
	}
}
