package assessment

import (
	"os"
	"strconv"
)

// AssessmentConfig controls request limits of the assessment API.
type AssessmentConfig struct {
	MaxBatchSize int   `mapstructure:"max_batch_size"` // Items per batch save; 0 disables the limit. Default 500
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"` // Request body limit for batch and edit. Default 4 MiB
}

// DefaultAssessmentConfig returns the default configuration.
func DefaultAssessmentConfig() *AssessmentConfig {
	return &AssessmentConfig{
		MaxBatchSize: 500,
		MaxBodyBytes: 4 << 20,
	}
}

// AssessmentConfigFromEnv loads config from environment variables.
// PROFILE_ASSESSMENT_MAX_BATCH_SIZE, PROFILE_ASSESSMENT_MAX_BODY_BYTES
func AssessmentConfigFromEnv() *AssessmentConfig {
	cfg := DefaultAssessmentConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides the fields whose PROFILE_ASSESSMENT_* variable is set.
func (cfg *AssessmentConfig) ApplyEnv() {
	if v := os.Getenv("PROFILE_ASSESSMENT_MAX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxBatchSize = n
		}
	}

	if v := os.Getenv("PROFILE_ASSESSMENT_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}
}
