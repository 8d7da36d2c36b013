// Package config assembles the server configuration from built-in defaults,
// an optional YAML file, PROFILE_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/csfprofile/profile-registry/pkg/assessment"
	"github.com/csfprofile/profile-registry/pkg/audit"
	"github.com/csfprofile/profile-registry/pkg/authz"
	"github.com/csfprofile/profile-registry/pkg/cache"
	"github.com/csfprofile/profile-registry/pkg/database"
)

// EnvPrefix prefixes every environment variable read by the loader.
const EnvPrefix = "PROFILE"

// Config holds the complete server configuration.
type Config struct {
	Server     ServerConfig                `mapstructure:"server"`
	Log        LogConfig                   `mapstructure:"log"`
	Database   database.Config             `mapstructure:"database"`
	Cache      cache.CacheConfig           `mapstructure:"cache"`
	Audit      audit.AuditConfig           `mapstructure:"audit"`
	Assessment assessment.AssessmentConfig `mapstructure:"assessment"`
	Identity   authz.Config                `mapstructure:"identity"`

	// FrameworkFile, when set, is loaded into the reference tables at
	// startup.
	FrameworkFile string `mapstructure:"framework_file"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var (
	drivers    = mapset.NewSet(database.DriverPostgres, "postgresql", database.DriverMySQL, database.DriverSQLite, "sqlite3")
	logLevels  = mapset.NewSet("debug", "info", "warn", "error")
	logFormats = mapset.NewSet("json", "text")
	modes      = mapset.NewSet(authz.IdentityModeHeader, authz.IdentityModeJWT)
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"listen":         "server.listen",
	"db-driver":      "database.driver",
	"db-dsn":         "database.dsn",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"framework-file": "framework_file",
}

// RegisterFlags adds the flags understood by Load to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default: ./configs/profile-registry.yaml or ./profile-registry.yaml)")
	fs.String("listen", "", "address to listen on")
	fs.String("db-driver", "", "database driver (postgres, mysql or sqlite)")
	fs.String("db-dsn", "", "database connection string")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-format", "", "log format (json, text)")
	fs.String("framework-file", "", "framework reference YAML loaded at startup")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	db := database.DefaultConfig()
	v.SetDefault("database.driver", db.Driver)
	v.SetDefault("database.dsn", db.DSN)
	v.SetDefault("database.max_open_conns", db.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", db.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", db.ConnMaxLifetime)
	v.SetDefault("database.log_level", db.LogLevel)

	c := cache.DefaultCacheConfig()
	v.SetDefault("cache.enabled", c.Enabled)
	v.SetDefault("cache.ttl", c.TTL)
	v.SetDefault("cache.max_size", c.MaxSize)

	a := audit.DefaultAuditConfig()
	v.SetDefault("audit.enabled", a.Enabled)
	v.SetDefault("audit.log_failures", a.LogFailures)
	v.SetDefault("audit.default_page_size", a.DefaultPageSize)
	v.SetDefault("audit.max_page_size", a.MaxPageSize)

	s := assessment.DefaultAssessmentConfig()
	v.SetDefault("assessment.max_batch_size", s.MaxBatchSize)
	v.SetDefault("assessment.max_body_bytes", s.MaxBodyBytes)

	id := authz.DefaultConfig()
	v.SetDefault("identity.mode", string(id.Mode))
	v.SetDefault("identity.actor_claim", id.ActorClaim)
	v.SetDefault("identity.public_key_path", "")
	v.SetDefault("identity.issuer", "")
	v.SetDefault("identity.audience", "")
	v.SetDefault("identity.require_identity", false)

	v.SetDefault("framework_file", "")
}

// Load reads the configuration. An explicit path must exist; without one
// the default locations are searched and a missing file is not an error.
// Flags left at their zero value do not override lower layers.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" && fs != nil {
		if f := fs.Lookup("config"); f != nil {
			path = f.Value.String()
		}
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("profile-registry")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Component variables that do not follow the section_key naming.
	cfg.Cache.ApplyEnv()
	cfg.Audit.ApplyEnv()
	cfg.Assessment.ApplyEnv()
	cfg.Identity.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, errors.New("server.listen is required"))
	}
	if !drivers.Contains(strings.ToLower(c.Database.Driver)) {
		errs = append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if !logLevels.Contains(strings.ToLower(c.Log.Level)) {
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if !logFormats.Contains(strings.ToLower(c.Log.Format)) {
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, text", c.Log.Format))
	}
	if c.Audit.DefaultPageSize <= 0 || c.Audit.MaxPageSize <= 0 {
		errs = append(errs, errors.New("audit page sizes must be positive"))
	}
	if c.Assessment.MaxBatchSize < 0 {
		errs = append(errs, errors.New("assessment.max_batch_size must not be negative"))
	}
	if !modes.Contains(c.Identity.Mode) {
		errs = append(errs, fmt.Errorf("identity.mode %q is not one of header, jwt", c.Identity.Mode))
	}

	return errors.Join(errs...)
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.level()}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func (c LogConfig) level() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
