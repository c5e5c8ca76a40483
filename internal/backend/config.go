package backend

import (
	"fmt"

	"spendlens/internal/cache"
	"spendlens/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.CacheBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid cache backend in config: %s", appConfig.CacheBackend)
	}
	policy, err := cache.ParsePolicy(appConfig.CachePolicy)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Type:     backendType,
		MaxBytes: appConfig.CacheMaxBytes(),
		TTL:      appConfig.CacheTTL,
		Policy:   policy,

		Dir:      appConfig.CacheDir,
		Compress: appConfig.CacheCompression,

		RedisAddr:     appConfig.RedisAddr,
		RedisPassword: appConfig.RedisPassword,
		RedisDB:       appConfig.RedisDB,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.MaxBytes <= 0 && c.Type != RedisBackend {
		return fmt.Errorf("cache size budget must be positive")
	}

	switch c.Type {
	case DiskBackend:
		if c.Dir == "" {
			return fmt.Errorf("cache directory is required for disk backend")
		}
	case RedisBackend:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis address is required for redis backend")
		}
	case MemoryBackend:
		// Nothing beyond the budget.
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, DiskBackend, RedisBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
