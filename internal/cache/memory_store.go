package cache

import (
	"context"
	"time"
)

// MemoryStore is the in-process tier.
type MemoryStore struct {
	lru *LRUCache[[]byte]
}

// NewMemoryStore bounds the tier by maxBytes of stored values.
func NewMemoryStore(maxBytes int64, ttl time.Duration, policy Policy) *MemoryStore {
	sizer := func(b []byte) int64 { return int64(len(b)) }
	return &MemoryStore{
		lru: NewLRUCache[[]byte](0, ttl,
			WithByteBudget(maxBytes, sizer),
			WithPolicy[[]byte](policy),
		),
	}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	return s.lru.Set(key, append([]byte(nil), value...))
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.lru.Delete(key)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.lru.Clear()
	return nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	st := s.lru.Stats()
	st.Backend = s.Name()
	return st, nil
}

// CleanExpired lets the Manager sweep this tier.
func (s *MemoryStore) CleanExpired() int {
	return s.lru.CleanExpired()
}
