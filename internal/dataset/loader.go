// Package dataset loads the invoice cache file produced by the extraction
// step and turns it into core.Invoice values.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"spendlens/internal/core"
)

var ErrInvalidRecord = errors.New("invalid invoice record")

// Skipped describes a dataset entry that could not be turned into an invoice.
type Skipped struct {
	Key    string
	Reason string
}

// LoadResult is the outcome of loading a dataset file.
type LoadResult struct {
	Invoices []core.Invoice
	Skipped  []Skipped
	// Undated counts invoices whose date string could not be parsed.
	Undated int
}

type rawLineItem struct {
	Description string     `json:"description"`
	Quantity    flexNumber `json:"quantity"`
	UnitPrice   flexNumber `json:"unit_price"`
	TotalAmount flexNumber `json:"total_amount"`
}

type rawInvoice struct {
	Vendor      string        `json:"vendor"`
	BillTo      string        `json:"bill_to"`
	InvoiceDate string        `json:"invoice_date"`
	LineItems   []rawLineItem `json:"line_items"`
}

// flexNumber decodes a JSON number, a numeric string such as "$1,200.00", or null.
type flexNumber struct {
	Value float64
	Money core.Money
	Set   bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		m, err := core.ParseAmount(str)
		if err != nil {
			return fmt.Errorf("parse amount %q: %w", str, err)
		}
		n.Money, n.Value, n.Set = m, m.Dollars(), true
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse number %s: %w", s, err)
	}
	n.Value, n.Money, n.Set = v, core.MoneyFromFloat(v), true
	return nil
}

// LoadFile opens path and decodes it with Load.
func LoadFile(path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	res, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", path, err)
	}
	slog.Info("Dataset loaded",
		"file", path,
		"invoices", len(res.Invoices),
		"skipped", len(res.Skipped),
		"undated", res.Undated)
	return res, nil
}

// Load decodes a JSON object of {key: invoice record}. Records failing schema
// validation or domain validation are reported in Skipped rather than failing
// the whole load. Invoices are returned sorted by key.
func Load(r io.Reader) (*LoadResult, error) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	res := &LoadResult{}
	for _, key := range keys {
		inv, err := decodeRecord(key, doc[key])
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Key: key, Reason: err.Error()})
			continue
		}
		if !inv.HasDate() {
			res.Undated++
		}
		res.Invoices = append(res.Invoices, inv)
	}
	return res, nil
}

func decodeRecord(key string, raw json.RawMessage) (core.Invoice, error) {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return core.Invoice{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := validateRecord(generic); err != nil {
		return core.Invoice{}, err
	}

	var rec rawInvoice
	if err := json.Unmarshal(raw, &rec); err != nil {
		return core.Invoice{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	inv := core.Invoice{
		Key:         key,
		Vendor:      strings.TrimSpace(rec.Vendor),
		BillTo:      strings.TrimSpace(rec.BillTo),
		InvoiceDate: strings.TrimSpace(rec.InvoiceDate),
	}
	if t, err := core.ParseInvoiceDate(inv.InvoiceDate); err == nil {
		inv.Date = t
	}
	for _, li := range rec.LineItems {
		item := core.LineItem{
			Description: strings.TrimSpace(li.Description),
			Quantity:    li.Quantity.Value,
			UnitPrice:   li.UnitPrice.Money,
			Total:       li.TotalAmount.Money,
		}
		if !li.Quantity.Set {
			item.Quantity = 1
		}
		inv.LineItems = append(inv.LineItems, item)
	}
	inv.Total = inv.ComputeTotal()

	if err := inv.Validate(); err != nil {
		return core.Invoice{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return inv, nil
}
