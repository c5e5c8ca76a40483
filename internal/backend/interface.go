// Package backend builds the hot cache tier selected by configuration.
package backend

import (
	"context"
	"time"

	"spendlens/internal/cache"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store and an optional cleanup function
type BackendResult struct {
	Store   cache.Store
	Cleanup CleanupFunc
}

// Factory creates hot-tier stores based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for store creation
type Config struct {
	Type BackendType

	MaxBytes int64
	TTL      time.Duration
	Policy   cache.Policy

	// Disk specific
	Dir      string
	Compress bool

	// Redis specific
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// BackendType represents the type of hot tier
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	DiskBackend   BackendType = "disk"
	RedisBackend  BackendType = "redis"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, DiskBackend, RedisBackend:
		return true
	default:
		return false
	}
}
