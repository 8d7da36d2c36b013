package cache

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CacheConfig holds configuration for the reference-data cache.
type CacheConfig struct {
	// Enabled controls whether resolved codes are cached. When false every
	// lookup goes to the database.
	Enabled bool `mapstructure:"enabled"`

	// TTL is how long a resolved subcategory code stays cached.
	TTL time.Duration `mapstructure:"ttl"`

	// MaxSize is the maximum number of cached subcategories.
	MaxSize int `mapstructure:"max_size"`
}

// DefaultCacheConfig returns a CacheConfig with sensible defaults.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Enabled: true,
		TTL:     10 * time.Minute,
		MaxSize: 5000,
	}
}

// CacheConfigFromEnv reads cache configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - PROFILE_CACHE_ENABLED: "true" or "false" (default: "true")
//   - PROFILE_CACHE_TTL_SECONDS: entry lifetime in seconds (default: 600)
//   - PROFILE_CACHE_MAX_SIZE: max cached entries (default: 5000)
func CacheConfigFromEnv() *CacheConfig {
	cfg := DefaultCacheConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides the fields whose PROFILE_CACHE_* variable is set.
func (cfg *CacheConfig) ApplyEnv() {
	if v := os.Getenv("PROFILE_CACHE_ENABLED"); v != "" {
		cfg.Enabled = strings.EqualFold(v, "true") || v == "1"
	}

	if v := os.Getenv("PROFILE_CACHE_TTL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.TTL = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv("PROFILE_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxSize = n
		}
	}
}
