package cache

import (
	"errors"
	"testing"
	"time"
)

func TestLRUCache_EvictionOrder(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		evicted string
		kept    string
	}{
		{name: "lru evicts least recently read", policy: PolicyLRU, evicted: "b", kept: "a"},
		{name: "fifo evicts first inserted", policy: PolicyFIFO, evicted: "a", kept: "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewLRUCache[int](2, time.Hour, WithPolicy[int](tt.policy))
			c.Set("a", 1)
			c.Set("b", 2)
			if _, ok := c.Get("a"); !ok {
				t.Fatal("expected a to be cached")
			}
			c.Set("c", 3)

			if _, ok := c.Get(tt.evicted); ok {
				t.Errorf("expected %s to be evicted", tt.evicted)
			}
			if _, ok := c.Get(tt.kept); !ok {
				t.Errorf("expected %s to survive", tt.kept)
			}
			if c.Size() != 2 {
				t.Errorf("Size() = %d, want 2", c.Size())
			}
		})
	}
}

func TestLRUCache_ByteBudget(t *testing.T) {
	sizer := func(s string) int64 { return int64(len(s)) }
	c := NewLRUCache[string](0, time.Hour, WithByteBudget(10, sizer))

	if err := c.Set("a", "aaaaaa"); err != nil {
		t.Fatalf("Set(a) error = %v", err)
	}
	if err := c.Set("b", "bbbbbb"); err != nil {
		t.Fatalf("Set(b) error = %v", err)
	}

	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted to fit b")
	}
	st := c.Stats()
	if st.SizeBytes != 6 {
		t.Errorf("SizeBytes = %d, want 6", st.SizeBytes)
	}
	if st.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", st.Evictions)
	}

	err := c.Set("huge", "01234567890")
	if !errors.Is(err, ErrEntryTooLarge) {
		t.Errorf("Set(huge) error = %v, want ErrEntryTooLarge", err)
	}
	if c.Size() != 1 {
		t.Errorf("a rejected entry must not evict others, Size() = %d", c.Size())
	}
}

func TestLRUCache_ReplaceAdjustsBytes(t *testing.T) {
	sizer := func(s string) int64 { return int64(len(s)) }
	c := NewLRUCache[string](0, time.Hour, WithByteBudget(100, sizer))
	c.Set("k", "1234")
	c.Set("k", "12")
	if got := c.Stats().SizeBytes; got != 2 {
		t.Errorf("SizeBytes = %d, want 2", got)
	}
}

func TestLRUCache_TTL(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewLRUCache[int](10, time.Minute, WithClock[int](clock))

	c.Set("a", 1)
	c.Set("b", 2)
	now = now.Add(30 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("entry expired too early")
	}

	now = now.Add(time.Minute)
	if got := c.CleanExpired(); got != 2 {
		t.Errorf("CleanExpired() = %d, want 2", got)
	}
	if _, ok := c.Get("a"); ok {
		t.Error("expected expired entry to be gone")
	}
}

func TestLRUCache_Stats(t *testing.T) {
	c := NewLRUCache[int](10, time.Hour)
	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	st := c.Stats()
	if st.Hits != 2 || st.Misses != 1 {
		t.Errorf("hits=%d misses=%d, want 2 and 1", st.Hits, st.Misses)
	}
	if st.HitRate < 0.66 || st.HitRate > 0.67 {
		t.Errorf("HitRate = %v, want about 0.667", st.HitRate)
	}

	c.Clear()
	if st := c.Stats(); st.Entries != 0 || st.Hits != 0 {
		t.Errorf("Clear() left %+v", st)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{in: "lru", want: PolicyLRU},
		{in: "fifo", want: PolicyFIFO},
		{in: "", want: PolicyLRU},
		{in: "random", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type countingCleaner struct{ calls int }

func (c *countingCleaner) CleanExpired() int {
	c.calls++
	return 1
}

func TestManager_CleanNow(t *testing.T) {
	m := NewManager()
	a, b := &countingCleaner{}, &countingCleaner{}
	m.Register(a)
	m.Register(b)
	m.Register("not a cleaner")

	if got := m.CleanNow(); got != 2 {
		t.Errorf("CleanNow() = %d, want 2", got)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("calls a=%d b=%d, want 1 each", a.calls, b.calls)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestManager_RestartCleanup(t *testing.T) {
	m := NewManager()
	m.Register(&countingCleaner{})

	m.StartCleanup(time.Hour)
	m.StartCleanup(time.Hour)
	m.Stop()

	m.StartCleanup(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	m.Stop()
	m.Stop()
}
