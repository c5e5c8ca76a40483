package backend

import (
	"context"
	"fmt"
	"log/slog"

	"spendlens/internal/cache"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		return f.createMemoryBackend(config)
	case DiskBackend:
		return f.createDiskBackend(config)
	case RedisBackend:
		return f.createRedisBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store := cache.NewMemoryStore(config.MaxBytes, config.TTL, config.Policy)

	f.logger.Info("Initialized memory cache tier",
		"max_bytes", config.MaxBytes,
		"policy", config.Policy)

	return &BackendResult{Store: store}, nil
}

func (f *DefaultFactory) createDiskBackend(config Config) (*BackendResult, error) {
	store, err := cache.NewDiskStore(cache.DiskOptions{
		Dir:      config.Dir,
		MaxBytes: config.MaxBytes,
		TTL:      config.TTL,
		Policy:   config.Policy,
		Compress: config.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize disk cache: %w", err)
	}

	f.logger.Info("Initialized disk cache tier",
		"dir", config.Dir,
		"max_bytes", config.MaxBytes,
		"compress", config.Compress)

	return &BackendResult{Store: store}, nil
}

func (f *DefaultFactory) createRedisBackend(ctx context.Context, config Config) (*BackendResult, error) {
	client, err := cache.NewRedisClient(ctx, config.RedisAddr, config.RedisPassword, config.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis cache: %w", err)
	}

	f.logger.Info("Initialized redis cache tier", "addr", config.RedisAddr, "db", config.RedisDB)

	return &BackendResult{
		Store:   cache.NewRedisStore(client, config.RedisPrefix, config.TTL),
		Cleanup: client.Close,
	}, nil
}
