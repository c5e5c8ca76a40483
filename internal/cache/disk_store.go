package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"
)

const (
	metadataFile = "licensing_cache_metadata.json"
	entrySuffix  = ".cache"
)

var safeKey = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

// DiskOptions configures a DiskStore.
type DiskOptions struct {
	Dir      string
	MaxBytes int64
	TTL      time.Duration
	Policy   Policy
	Compress bool
}

type diskEntry struct {
	Identifier   string    `json:"identifier,omitempty"`
	ContentHash  string    `json:"content_hash,omitempty"`
	Size         int64     `json:"size"`
	Created      time.Time `json:"created"`
	LastAccessed time.Time `json:"last_accessed"`
	Compressed   bool      `json:"compressed"`
}

type diskCounters struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

type diskMetadata struct {
	Entries     map[string]*diskEntry `json:"entries"`
	TotalSize   int64                 `json:"total_size"`
	Created     time.Time             `json:"created"`
	LastCleanup time.Time             `json:"last_cleanup"`
	Stats       diskCounters          `json:"stats"`
}

// DiskStore keeps gzip-compressed entries as files next to a JSON metadata
// index. Entries expire a fixed TTL after creation.
type DiskStore struct {
	mu   sync.Mutex
	opts DiskOptions
	meta *diskMetadata
	now  func() time.Time
}

// NewDiskStore opens (or creates) the cache directory, loads the metadata and
// drops expired entries.
func NewDiskStore(opts DiskOptions) (*DiskStore, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if opts.Policy == "" {
		opts.Policy = PolicyLRU
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	s := &DiskStore{opts: opts, now: time.Now}
	s.meta = s.loadMetadata()
	if _, err := s.CleanupExpired(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DiskStore) freshMetadata() *diskMetadata {
	now := s.now().UTC()
	return &diskMetadata{
		Entries:     make(map[string]*diskEntry),
		Created:     now,
		LastCleanup: now,
	}
}

func (s *DiskStore) loadMetadata() *diskMetadata {
	raw, err := os.ReadFile(filepath.Join(s.opts.Dir, metadataFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Could not read cache metadata", "component", "cache", "error", err)
		}
		return s.freshMetadata()
	}
	var meta diskMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		slog.Warn("Could not parse cache metadata, starting empty", "component", "cache", "error", err)
		return s.freshMetadata()
	}
	if meta.Entries == nil {
		meta.Entries = make(map[string]*diskEntry)
	}
	return &meta
}

func (s *DiskStore) saveMetadata() error {
	raw, err := json.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache metadata: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.opts.Dir, metadataFile), raw)
}

func (s *DiskStore) path(key string) string {
	return filepath.Join(s.opts.Dir, key+entrySuffix)
}

func checkKey(key string) error {
	if !safeKey.MatchString(key) {
		return fmt.Errorf("invalid cache key %q", key)
	}
	return nil
}

func (s *DiskStore) Name() string { return "disk" }

// Get reads one entry. Missing, expired and unreadable entries all count as a
// miss; the last two are also removed.
func (s *DiskStore) Get(_ context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.meta.Entries[key]
	if !ok {
		s.meta.Stats.Misses++
		return nil, ErrMiss
	}
	if s.isExpired(entry) {
		slog.Info("Cache entry expired", "component", "cache", "key", key)
		s.remove(key, true)
		s.meta.Stats.Misses++
		_ = s.saveMetadata()
		return nil, ErrMiss
	}

	value, err := s.readEntry(key, entry.Compressed)
	if err != nil {
		slog.Warn("Dropping unreadable cache entry", "component", "cache", "key", key, "error", err)
		s.remove(key, true)
		s.meta.Stats.Misses++
		_ = s.saveMetadata()
		return nil, ErrMiss
	}

	entry.LastAccessed = s.now().UTC()
	s.meta.Stats.Hits++
	if err := s.saveMetadata(); err != nil {
		slog.Warn("Could not save cache metadata", "component", "cache", "error", err)
	}
	return value, nil
}

func (s *DiskStore) readEntry(key string, compressed bool) ([]byte, error) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, err
	}
	if !compressed {
		return raw, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open gzip entry: %w", err)
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func (s *DiskStore) Set(_ context.Context, key string, value []byte) error {
	return s.set(key, value, "", "")
}

func (s *DiskStore) set(key string, value []byte, identifier, contentHash string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	payload := value
	if s.opts.Compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(value); err != nil {
			return fmt.Errorf("compress cache entry: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compress cache entry: %w", err)
		}
		payload = buf.Bytes()
	}
	size := int64(len(payload))
	if s.opts.MaxBytes > 0 && size > s.opts.MaxBytes {
		return fmt.Errorf("%w: %d bytes over a %d byte budget", ErrEntryTooLarge, size, s.opts.MaxBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.meta.Entries[key]; exists {
		s.remove(key, false)
	}
	if s.opts.MaxBytes > 0 && s.meta.TotalSize+size > s.opts.MaxBytes {
		s.evict(s.meta.TotalSize + size - s.opts.MaxBytes)
	}

	if err := writeFileAtomic(s.path(key), payload); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}

	now := s.now().UTC()
	s.meta.Entries[key] = &diskEntry{
		Identifier:   identifier,
		ContentHash:  contentHash,
		Size:         size,
		Created:      now,
		LastAccessed: now,
		Compressed:   s.opts.Compress,
	}
	s.meta.TotalSize += size
	if err := s.saveMetadata(); err != nil {
		return err
	}

	slog.Debug("Cached entry", "component", "cache", "key", key, "bytes", size)
	return nil
}

// evict frees at least need bytes, oldest first by the configured policy.
func (s *DiskStore) evict(need int64) {
	type candidate struct {
		key string
		at  time.Time
	}
	candidates := make([]candidate, 0, len(s.meta.Entries))
	for k, e := range s.meta.Entries {
		at := e.Created
		if s.opts.Policy == PolicyLRU {
			at = e.LastAccessed
		}
		candidates = append(candidates, candidate{key: k, at: at})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].at.Equal(candidates[j].at) {
			return candidates[i].key < candidates[j].key
		}
		return candidates[i].at.Before(candidates[j].at)
	})

	var freed int64
	for _, c := range candidates {
		if freed >= need {
			break
		}
		freed += s.meta.Entries[c.key].Size
		s.remove(c.key, true)
	}
	slog.Info("Evicted cache entries to make space", "component", "cache", "bytes", freed)
}

// remove drops the file and the index entry. The caller holds the lock.
func (s *DiskStore) remove(key string, evicted bool) {
	entry, ok := s.meta.Entries[key]
	if !ok {
		return
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Could not remove cache file", "component", "cache", "key", key, "error", err)
	}
	s.meta.TotalSize -= entry.Size
	delete(s.meta.Entries, key)
	if evicted {
		s.meta.Stats.Evictions++
	}
}

func (s *DiskStore) isExpired(e *diskEntry) bool {
	return s.opts.TTL > 0 && s.now().Sub(e.Created) > s.opts.TTL
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(key, false)
	return s.saveMetadata()
}

// CleanupExpired removes every entry past its TTL and returns how many went.
func (s *DiskStore) CleanupExpired() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []string
	for k, e := range s.meta.Entries {
		if s.isExpired(e) {
			expired = append(expired, k)
		}
	}
	for _, k := range expired {
		s.remove(k, true)
	}
	if len(expired) > 0 {
		slog.Info("Cleaned up expired cache entries", "component", "cache", "count", len(expired))
	}
	s.meta.LastCleanup = s.now().UTC()
	if err := s.saveMetadata(); err != nil {
		return len(expired), err
	}
	return len(expired), nil
}

// CleanExpired adapts CleanupExpired to the Manager's Cleaner.
func (s *DiskStore) CleanExpired() int {
	n, err := s.CleanupExpired()
	if err != nil {
		slog.Warn("Disk cache cleanup failed", "component", "cache", "error", err)
	}
	return n
}

func (s *DiskStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.meta.Stats
	return Stats{
		Backend:     s.Name(),
		Entries:     len(s.meta.Entries),
		SizeBytes:   s.meta.TotalSize,
		MaxBytes:    s.opts.MaxBytes,
		Hits:        c.Hits,
		Misses:      c.Misses,
		Evictions:   c.Evictions,
		HitRate:     hitRate(c.Hits, c.Misses),
		CreatedAt:   s.meta.Created,
		LastCleanup: s.meta.LastCleanup,
	}, nil
}

// Clear removes every entry and resets the metadata, counters included.
func (s *DiskStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.meta.Entries {
		s.remove(k, false)
	}
	s.meta = s.freshMetadata()
	if err := s.saveMetadata(); err != nil {
		return err
	}
	slog.Info("Cache cleared", "component", "cache")
	return nil
}

// EntryKey builds the on-disk key for an identifier and a content hash.
func EntryKey(identifier, contentHash string) string {
	if len(contentHash) > 16 {
		contentHash = contentHash[:16]
	}
	return fmt.Sprintf("licensing_%s_%s", identifier, contentHash)
}

// ContentHash is the MD5 hex of v encoded as JSON with sorted object keys.
func ContentHash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode content: %w", err)
	}
	// A round trip through any turns structs into maps, which encode sorted.
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", fmt.Errorf("normalize content: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("encode content: %w", err)
	}
	sum := md5.Sum(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Save stores value as JSON under the key derived from identifier and input.
func (s *DiskStore) Save(_ context.Context, identifier string, value, input any) error {
	if input == nil {
		input = value
	}
	hash, err := ContentHash(input)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return s.set(EntryKey(identifier, hash), raw, identifier, hash)
}

// lookup is the read side of Save.
func (s *DiskStore) lookup(ctx context.Context, identifier string, input any) ([]byte, error) {
	hash, err := ContentHash(input)
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, EntryKey(identifier, hash))
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
