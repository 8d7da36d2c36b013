package audit

import (
	"os"
	"strconv"
)

// AuditConfig controls change-log listing and mutation request logging.
type AuditConfig struct {
	Enabled         bool `mapstructure:"enabled"`           // Whether mutation requests are logged
	LogFailures     bool `mapstructure:"log_failures"`      // Whether rejected or failed mutations are logged
	DefaultPageSize int  `mapstructure:"default_page_size"` // Default 20
	MaxPageSize     int  `mapstructure:"max_page_size"`     // Default 100
}

// DefaultAuditConfig returns the default configuration.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		Enabled:         true,
		LogFailures:     true,
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}

// AuditConfigFromEnv loads config from environment variables.
// PROFILE_AUDIT_ENABLED, PROFILE_AUDIT_LOG_FAILURES,
// PROFILE_AUDIT_PAGE_SIZE, PROFILE_AUDIT_MAX_PAGE_SIZE
func AuditConfigFromEnv() *AuditConfig {
	cfg := DefaultAuditConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides the fields whose PROFILE_AUDIT_* variable is set.
func (cfg *AuditConfig) ApplyEnv() {
	if v := os.Getenv("PROFILE_AUDIT_ENABLED"); v != "" {
		cfg.Enabled, _ = strconv.ParseBool(v)
	}

	if v := os.Getenv("PROFILE_AUDIT_LOG_FAILURES"); v != "" {
		cfg.LogFailures, _ = strconv.ParseBool(v)
	}

	if v := os.Getenv("PROFILE_AUDIT_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DefaultPageSize = n
		}
	}

	if v := os.Getenv("PROFILE_AUDIT_MAX_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxPageSize = n
		}
	}

	if cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = cfg.MaxPageSize
	}
}

// pageSize clamps a requested page size to the configured bounds.
func (cfg *AuditConfig) pageSize(requested int) int {
	if requested <= 0 {
		requested = cfg.DefaultPageSize
	}
	if requested > cfg.MaxPageSize {
		return cfg.MaxPageSize
	}
	return requested
}
