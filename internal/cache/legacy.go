package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"sort"
	"time"
)

// legacyRecord is the subset of an invoice-cache entry worth carrying over.
type legacyRecord struct {
	Vendor      string            `json:"vendor"`
	BillTo      string            `json:"bill_to"`
	InvoiceDate string            `json:"invoice_date"`
	LineItems   []json.RawMessage `json:"line_items"`
}

type legacyLineTotal struct {
	TotalAmount float64 `json:"total_amount"`
}

// MigratedRecord is what MigrateLegacy stores for each invoice.
type MigratedRecord struct {
	Source      string            `json:"source"`
	OriginalKey string            `json:"original_key"`
	Vendor      string            `json:"vendor"`
	BillTo      string            `json:"bill_to"`
	InvoiceDate string            `json:"invoice_date"`
	LineItems   []json.RawMessage `json:"line_items"`
	TotalAmount float64           `json:"total_amount"`
	MigratedAt  time.Time         `json:"migrated_at"`
}

// MigrateLegacy copies the line-item bearing records of an old invoice cache
// file into the disk store and returns how many were written.
func (s *DiskStore) MigrateLegacy(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read legacy cache: %w", err)
	}
	var legacy map[string]json.RawMessage
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return 0, fmt.Errorf("decode legacy cache: %w", err)
	}

	keys := make([]string, 0, len(legacy))
	for k := range legacy {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	migrated := 0
	for _, key := range keys {
		var rec legacyRecord
		if err := json.Unmarshal(legacy[key], &rec); err != nil || rec.LineItems == nil {
			continue
		}

		out := MigratedRecord{
			Source:      "invoice_cache_migration",
			OriginalKey: key,
			Vendor:      rec.Vendor,
			BillTo:      rec.BillTo,
			InvoiceDate: rec.InvoiceDate,
			LineItems:   rec.LineItems,
			MigratedAt:  s.now().UTC(),
		}
		for _, item := range rec.LineItems {
			var lt legacyLineTotal
			if json.Unmarshal(item, &lt) == nil {
				out.TotalAmount += lt.TotalAmount
			}
		}

		// The record without its timestamp, so a rerun maps onto the same key.
		input := out
		input.MigratedAt = time.Time{}
		if err := s.Save(ctx, legacyIdentifier(key), out, input); err != nil {
			slog.Warn("Could not migrate legacy cache entry", "component", "cache", "key", key, "error", err)
			continue
		}
		migrated++
	}

	slog.Info("Migrated legacy invoice cache", "component", "cache", "count", migrated, "file", path)
	return migrated, nil
}

func legacyIdentifier(key string) string {
	h := fnv.New32a()
	h.Write([]byte(key))
	return fmt.Sprintf("migrated_%d", h.Sum32()%1000000)
}
