package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDiskStore(t *testing.T, opts DiskOptions) (*DiskStore, *fakeClock) {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = t.TempDir()
	}
	s, err := NewDiskStore(opts)
	if err != nil {
		t.Fatalf("NewDiskStore() error = %v", err)
	}
	clock := &fakeClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	s.now = clock.now
	return s, clock
}

func TestDiskStore_RoundTripAndReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, _ := newTestDiskStore(t, DiskOptions{Dir: dir, MaxBytes: 1 << 20, TTL: 24 * time.Hour, Compress: true})

	value := []byte(strings.Repeat(`{"vendor":"synoptek"}`, 20))
	if err := s.Set(ctx, "analysis_1", value); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := s.Get(ctx, "analysis_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != string(value) {
		t.Errorf("Get() = %q, want original value", got)
	}

	st, _ := s.Stats(ctx)
	if st.SizeBytes >= int64(len(value)) {
		t.Errorf("compressed size %d should be below raw size %d", st.SizeBytes, len(value))
	}

	reopened, err := NewDiskStore(DiskOptions{Dir: dir, MaxBytes: 1 << 20, TTL: 100 * 365 * 24 * time.Hour, Compress: true})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if _, err := reopened.Get(ctx, "analysis_1"); err != nil {
		t.Errorf("entry lost across reopen: %v", err)
	}
	rst, _ := reopened.Stats(ctx)
	if rst.Hits != 2 {
		t.Errorf("persisted hits = %d, want 2", rst.Hits)
	}
}

func TestDiskStore_Miss(t *testing.T) {
	s, _ := newTestDiskStore(t, DiskOptions{MaxBytes: 1024})
	_, err := s.Get(context.Background(), "absent")
	if !errors.Is(err, ErrMiss) {
		t.Errorf("Get() error = %v, want ErrMiss", err)
	}
	if _, err := s.Get(context.Background(), "../escape"); err == nil || errors.Is(err, ErrMiss) {
		t.Errorf("unsafe key should be rejected, got %v", err)
	}
}

func TestDiskStore_EvictionPolicy(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		evicted string
	}{
		{name: "lru drops the least recently read", policy: PolicyLRU, evicted: "b"},
		{name: "fifo drops the oldest write", policy: PolicyFIFO, evicted: "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, clock := newTestDiskStore(t, DiskOptions{MaxBytes: 10, TTL: time.Hour, Policy: tt.policy})

			s.Set(ctx, "a", []byte("aaaa"))
			clock.advance(time.Second)
			s.Set(ctx, "b", []byte("bbbb"))
			clock.advance(time.Second)
			if _, err := s.Get(ctx, "a"); err != nil {
				t.Fatalf("Get(a) error = %v", err)
			}
			clock.advance(time.Second)
			if err := s.Set(ctx, "c", []byte("cccc")); err != nil {
				t.Fatalf("Set(c) error = %v", err)
			}

			if _, err := s.Get(ctx, tt.evicted); !errors.Is(err, ErrMiss) {
				t.Errorf("expected %s evicted, got %v", tt.evicted, err)
			}
			if _, err := os.Stat(filepath.Join(s.opts.Dir, tt.evicted+entrySuffix)); !os.IsNotExist(err) {
				t.Errorf("evicted file still on disk: %v", err)
			}
			st, _ := s.Stats(ctx)
			if st.Entries != 2 || st.SizeBytes != 8 || st.Evictions != 1 {
				t.Errorf("Stats() = %+v, want 2 entries, 8 bytes, 1 eviction", st)
			}
		})
	}
}

func TestDiskStore_TooLarge(t *testing.T) {
	s, _ := newTestDiskStore(t, DiskOptions{MaxBytes: 4})
	err := s.Set(context.Background(), "k", []byte("12345"))
	if !errors.Is(err, ErrEntryTooLarge) {
		t.Errorf("Set() error = %v, want ErrEntryTooLarge", err)
	}
}

func TestDiskStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestDiskStore(t, DiskOptions{MaxBytes: 1024, TTL: time.Hour})

	s.Set(ctx, "old", []byte("x"))
	clock.advance(50 * time.Minute)
	s.Set(ctx, "new", []byte("y"))
	clock.advance(20 * time.Minute)

	if _, err := s.Get(ctx, "old"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get(old) error = %v, want ErrMiss", err)
	}
	if n, err := s.CleanupExpired(); err != nil || n != 0 {
		t.Errorf("CleanupExpired() = %d, %v; want 0 left to clean", n, err)
	}
	clock.advance(time.Hour)
	if n := s.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
	st, _ := s.Stats(ctx)
	if st.Entries != 0 || st.SizeBytes != 0 {
		t.Errorf("Stats() = %+v, want empty", st)
	}
	if !st.LastCleanup.Equal(clock.t) {
		t.Errorf("LastCleanup = %v, want %v", st.LastCleanup, clock.t)
	}
}

func TestDiskStore_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestDiskStore(t, DiskOptions{MaxBytes: 1024, Compress: true})
	s.Set(ctx, "k", []byte("value"))

	if err := os.WriteFile(filepath.Join(s.opts.Dir, "k"+entrySuffix), []byte("not gzip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Get() error = %v, want ErrMiss", err)
	}
	st, _ := s.Stats(ctx)
	if st.Entries != 0 {
		t.Errorf("corrupt entry should be dropped, %d left", st.Entries)
	}
}

func TestDiskStore_Clear(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestDiskStore(t, DiskOptions{MaxBytes: 1024})
	s.Set(ctx, "a", []byte("1"))
	s.Set(ctx, "b", []byte("2"))
	s.Get(ctx, "a")

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	st, _ := s.Stats(ctx)
	if st.Entries != 0 || st.Hits != 0 || st.SizeBytes != 0 {
		t.Errorf("Stats() after Clear = %+v", st)
	}
	files, _ := filepath.Glob(filepath.Join(s.opts.Dir, "*"+entrySuffix))
	if len(files) != 0 {
		t.Errorf("Clear() left files %v", files)
	}
}

func TestContentHash_SortedKeys(t *testing.T) {
	asMap := map[string]any{"vendor": "adobe", "amount": 2}
	asStruct := struct {
		Vendor string `json:"vendor"`
		Amount int    `json:"amount"`
	}{Vendor: "adobe", Amount: 2}

	h1, err := ContentHash(asMap)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := ContentHash(asStruct)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("hash differs by field order: %s vs %s", h1, h2)
	}
	if len(h1) != 32 {
		t.Errorf("len(hash) = %d, want 32", len(h1))
	}

	key := EntryKey("vendor", h1)
	if key != "licensing_vendor_"+h1[:16] {
		t.Errorf("EntryKey() = %q", key)
	}
}

func TestDiskStore_SaveLookup(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestDiskStore(t, DiskOptions{MaxBytes: 1 << 20, Compress: true})
	input := map[string]string{"vendor": "Zoom"}

	if err := s.Save(ctx, "zoom", map[string]string{"category": "productivity"}, input); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.lookup(ctx, "zoom", input)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if string(got) != `{"category":"productivity"}` {
		t.Errorf("Lookup() = %s", got)
	}
	if _, err := s.lookup(ctx, "zoom", map[string]string{"vendor": "Slack"}); !errors.Is(err, ErrMiss) {
		t.Errorf("changed input should miss, got %v", err)
	}
}

func TestDiskStore_MigrateLegacy(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestDiskStore(t, DiskOptions{MaxBytes: 1 << 20, Compress: true})

	legacy := `{
		"inv-1": {"vendor": "Synoptek", "bill_to": "Great Gray", "invoice_date": "2024-01-05",
		          "line_items": [{"description": "MSP", "total_amount": 100.5}, {"total_amount": 50}]},
		"inv-2": {"vendor": "Adobe", "line_items": []},
		"inv-3": {"vendor": "No items"}
	}`
	path := filepath.Join(t.TempDir(), "invoice_cache.json")
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := s.MigrateLegacy(ctx, path)
	if err != nil {
		t.Fatalf("MigrateLegacy() error = %v", err)
	}
	if n != 2 {
		t.Errorf("migrated = %d, want 2", n)
	}

	if _, err := s.MigrateLegacy(ctx, path); err != nil {
		t.Fatalf("second MigrateLegacy() error = %v", err)
	}
	st, _ := s.Stats(ctx)
	if st.Entries != 2 {
		t.Errorf("rerun should overwrite, Entries = %d", st.Entries)
	}

	if _, err := s.MigrateLegacy(ctx, filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for a missing legacy file")
	}
}
