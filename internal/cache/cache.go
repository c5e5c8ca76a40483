// Package cache holds the hot tier that sits in front of the cost-control
// database: an in-process LRU, a compressed disk cache and a Redis store, all
// behind the byte-level Store interface.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrMiss is returned by Store.Get when the key is absent or expired.
	ErrMiss = errors.New("cache miss")
	// ErrEntryTooLarge is returned when one value exceeds the whole budget.
	ErrEntryTooLarge = errors.New("cache entry too large")
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T) error
	Delete(key string)
	Size() int
}

// Store is a byte-level cache tier shared by the cost-control manager.
type Store interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

// Stats describes the state of one tier.
type Stats struct {
	Backend     string    `json:"backend,omitempty"`
	Entries     int       `json:"total_entries"`
	SizeBytes   int64     `json:"total_size_bytes"`
	MaxBytes    int64     `json:"max_size_bytes,omitempty"`
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	Evictions   int64     `json:"evictions"`
	HitRate     float64   `json:"hit_rate"`
	CreatedAt   time.Time `json:"created,omitzero"`
	LastCleanup time.Time `json:"last_cleanup,omitzero"`
}

// SizeMB reports the used size in megabytes.
func (s Stats) SizeMB() float64 {
	return float64(s.SizeBytes) / (1024 * 1024)
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total < 1 {
		total = 1
	}
	return float64(hits) / float64(total)
}

// Manager handles cache lifecycle and cleanup
type Manager struct {
	mu          sync.Mutex
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     bool
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// NewManager creates a new cache manager
func NewManager() *Manager {
	return &Manager{
		caches: make([]Cleaner, 0),
	}
}

// Register adds a cache to the manager for cleanup. Stores that expire on
// their own (Redis) are skipped.
func (m *Manager) Register(c any) {
	cleaner, ok := c.(Cleaner)
	if !ok {
		return
	}
	m.mu.Lock()
	m.caches = append(m.caches, cleaner)
	m.mu.Unlock()
}

// CleanNow runs one pass over every registered cache.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

// StartCleanup begins periodic cleanup of all registered caches. It is a
// no-op while cleanup is already running.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.stopCleanup = make(chan struct{})
	m.cleanupDone = make(chan struct{})
	stop, done := m.stopCleanup, m.cleanupDone
	m.mu.Unlock()
	go m.cleanup(interval, stop, done)
}

func (m *Manager) cleanup(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := m.CleanNow(); cleaned > 0 {
				slog.Info("Cleaned expired cache entries", "component", "cache", "count", cleaned)
			}
		case <-stop:
			return
		}
	}
}

// Stop gracefully stops the cleanup routine
func (m *Manager) Stop() {
	m.mu.Lock()
	started := m.started
	m.started = false
	stop, done := m.stopCleanup, m.cleanupDone
	m.mu.Unlock()
	if !started {
		return
	}
	close(stop)
	<-done
}
