package costcontrol

import (
	"testing"
	"time"

	"spendlens/internal/core"
)

func testInvoice(vendor string, lines ...core.LineItem) core.Invoice {
	inv := core.Invoice{
		Key:         "inv-" + vendor,
		Vendor:      vendor,
		BillTo:      "Great Gray Trust Company",
		InvoiceDate: "2024-02-01",
		Date:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		LineItems:   lines,
	}
	inv.Total = inv.ComputeTotal()
	return inv
}

func line(desc string, qty float64, unit, total float64) core.LineItem {
	return core.LineItem{
		Description: desc,
		Quantity:    qty,
		UnitPrice:   core.MoneyFromFloat(unit),
		Total:       core.MoneyFromFloat(total),
	}
}

func TestHash(t *testing.T) {
	base := testInvoice("Synoptek",
		line("Managed Services", 1, 1500, 1500),
		line("Azure Consumption", 1, 320.10, 320.10),
	)

	reordered := testInvoice("  synoptek ",
		line("azure consumption ", 1, 320.10, 320.10),
		line("MANAGED SERVICES", 1, 1500, 1500),
	)
	reordered.BillTo = "RPAG"
	reordered.InvoiceDate = "2023-11-30"

	changed := testInvoice("Synoptek",
		line("Managed Services", 1, 1500, 1500),
		line("Azure Consumption", 1, 320.11, 320.11),
	)

	h := Hash(base)
	if len(h) != 64 {
		t.Fatalf("len(Hash) = %d, want 64", len(h))
	}
	if got := Hash(reordered); got != h {
		t.Errorf("normalization failed: %s != %s", got, h)
	}
	if got := Hash(changed); got == h {
		t.Error("a different amount must change the hash")
	}
	if Hash(base) != h {
		t.Error("Hash is not deterministic")
	}
}
