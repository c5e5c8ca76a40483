package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

type (
	// LineItem is a single billed line on an invoice.
	LineItem struct {
		Description string
		Quantity    float64
		UnitPrice   Money
		Total       Money
	}

	// Invoice is one vendor invoice from the dataset. Key is the dataset key
	// the record was stored under; Date is zero when InvoiceDate could not be parsed.
	Invoice struct {
		Key         string
		Vendor      string
		BillTo      string
		InvoiceDate string
		Date        time.Time
		LineItems   []LineItem
		Total       Money
	}
)

var (
	ErrInvalidInvoice = errors.New("invalid invoice")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidDate    = errors.New("invalid date")
	ErrEmptyVendor    = errors.New("empty vendor")
	ErrNoLineItems    = errors.New("no line items")
)

func (li LineItem) Validate() error {
	if strings.TrimSpace(li.Description) == "" {
		return fmt.Errorf("%w: empty line item description", ErrInvalidInvoice)
	}
	if math.IsNaN(li.Quantity) || math.IsInf(li.Quantity, 0) {
		return fmt.Errorf("%w: quantity is not finite", ErrInvalidAmount)
	}
	if li.Quantity < 0 {
		return fmt.Errorf("%w: negative quantity %v", ErrInvalidAmount, li.Quantity)
	}
	return nil
}

func (inv Invoice) Validate() error {
	if strings.TrimSpace(inv.Vendor) == "" {
		return ErrEmptyVendor
	}
	if len(inv.LineItems) == 0 {
		return ErrNoLineItems
	}
	for i, li := range inv.LineItems {
		if err := li.Validate(); err != nil {
			return fmt.Errorf("line item %d: %w", i, err)
		}
	}
	return nil
}

// ComputeTotal sums the line item totals.
func (inv Invoice) ComputeTotal() Money {
	var total Money
	for _, li := range inv.LineItems {
		total = total.Add(li.Total)
	}
	return total
}

// HasDate reports whether the invoice date was parsed.
func (inv Invoice) HasDate() bool {
	return !inv.Date.IsZero()
}

// MonthKey returns the YYYY-MM bucket of the invoice, or "" when undated.
func (inv Invoice) MonthKey() string {
	if !inv.HasDate() {
		return ""
	}
	return inv.Date.Format("2006-01")
}

// QuarterKey returns the YYYY-Qn bucket of the invoice, or "" when undated.
func (inv Invoice) QuarterKey() string {
	if !inv.HasDate() {
		return ""
	}
	q := (int(inv.Date.Month())-1)/3 + 1
	return fmt.Sprintf("%d-Q%d", inv.Date.Year(), q)
}
