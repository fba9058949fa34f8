// Package config loads service settings: struct defaults, then an optional
// YAML file, then environment variables (highest priority).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"badge-progress-system/logging"
	"badge-progress-system/utils"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar points at an optional YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Gateway  GatewayConfig  `koanf:"gateway"`
	Sync     SyncConfig     `koanf:"sync"`
	Backfill BackfillConfig `koanf:"backfill"`
	R2       R2Config       `koanf:"r2"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	ListenAddr     string   `koanf:"listen_addr" validate:"required"`
	AllowedOrigins []string `koanf:"allowed_origins"`
	BodyLimitMB    int      `koanf:"body_limit_mb" validate:"min=1"`
}

type DatabaseConfig struct {
	URL          string `koanf:"url"`
	MaxOpenConns int    `koanf:"max_open_conns" validate:"min=1"`
	// UpdateRetries bounds the restarts of one read-merge-write after a lost insert race.
	UpdateRetries int `koanf:"update_retries" validate:"min=1"`
}

type GatewayConfig struct {
	// Token is the bearer token the gateway presents on every request.
	Token     string `koanf:"token"`
	AdminRole string `koanf:"admin_role" validate:"required"`
}

// SyncConfig drives the live event poller.
type SyncConfig struct {
	Enabled      bool          `koanf:"enabled"`
	ServiceURL   string        `koanf:"service_url" validate:"omitempty,url"`
	EventsPath   string        `koanf:"events_path" validate:"required"`
	ServiceToken string        `koanf:"service_token"`
	Interval     time.Duration `koanf:"interval" validate:"gt=0"`
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	BatchSize    int           `koanf:"batch_size" validate:"min=1,max=5000"`
	// BreakerFailures consecutive failures open the circuit for BreakerTimeout.
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"min=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// BackfillConfig drives historical imports from the object store and the CLI.
type BackfillConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval" validate:"gt=0"`
	Prefix   string        `koanf:"prefix"`
	Workers  int           `koanf:"workers" validate:"min=1,max=256"`
	// RunLease is how long a running import blocks rescans of its object.
	RunLease time.Duration `koanf:"run_lease" validate:"gt=0"`
}

type R2Config struct {
	AccountID       string `koanf:"account_id"`
	AccessKeyID     string `koanf:"access_key_id"`
	AccessKeySecret string `koanf:"access_key_secret"`
	Bucket          string `koanf:"bucket"`
	// Endpoint overrides the account endpoint, e.g. for a local S3 emulator.
	Endpoint string `koanf:"endpoint" validate:"omitempty,url"`
}

// ToObjectStore converts to the utils package's R2Config.
func (r R2Config) ToObjectStore() utils.R2Config {
	return utils.R2Config{
		AccountID:       r.AccountID,
		AccessKeyID:     r.AccessKeyID,
		AccessKeySecret: r.AccessKeySecret,
		Bucket:          r.Bucket,
		Endpoint:        r.Endpoint,
	}
}

type CatalogConfig struct {
	// Path to a YAML catalog; empty uses the built-in badges.
	Path string `koanf:"path"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// ToLogging converts to the logging package's Config.
func (l LoggingConfig) ToLogging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = l.Level
	cfg.Format = l.Format
	cfg.Caller = l.Caller
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:     ":5200",
			AllowedOrigins: []string{"http://localhost:3000"},
			BodyLimitMB:    64,
		},
		Database: DatabaseConfig{MaxOpenConns: 20, UpdateRetries: 5},
		Gateway:  GatewayConfig{AdminRole: "admin"},
		Sync: SyncConfig{
			EventsPath:      "/api/v1/badge-events",
			Interval:        15 * time.Second,
			Timeout:         30 * time.Second,
			BatchSize:       500,
			BreakerFailures: 5,
			BreakerTimeout:  time.Minute,
		},
		Backfill: BackfillConfig{
			Interval: 10 * time.Minute,
			Prefix:   "backfill/",
			Workers:  8,
			RunLease: time.Hour,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads .env (if present) and layers defaults, the CONFIG_PATH file and
// the environment. It checks value ranges but not which integrations are
// required; see RequireServer.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(os.Getenv(ConfigPathEnvVar))
}

func load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := splitCommaList(k, "server.allowed_origins"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges and formats.
func (c *Config) Validate() error {
	return utils.ValidateStruct(c)
}

// RequireServer checks the settings the HTTP server and its workers cannot run without.
func (c *Config) RequireServer() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.Gateway.Token == "" {
		errs = append(errs, errors.New("GAME_SERVICE_TOKEN is required"))
	}
	if c.Sync.Enabled && c.Sync.ServiceURL == "" {
		errs = append(errs, errors.New("SYNC_SERVICE_URL is required when SYNC_ENABLED=true"))
	}
	if c.Backfill.Enabled {
		errs = append(errs, c.RequireR2())
	}
	return errors.Join(errs...)
}

// RequireR2 checks the object store settings.
func (c *Config) RequireR2() error {
	if c.R2.Bucket == "" {
		return errors.New("R2_BUCKET_NAME is required for backfill imports")
	}
	if c.R2.AccountID == "" && c.R2.Endpoint == "" {
		return errors.New("CLOUDFLARE_ACCOUNT_ID or R2_ENDPOINT is required for backfill imports")
	}
	return nil
}

// SyncToken is the token presented to the event feed; it falls back to the gateway token.
func (c *Config) SyncToken() string {
	if c.Sync.ServiceToken != "" {
		return c.Sync.ServiceToken
	}
	return c.Gateway.Token
}

var envMappings = map[string]string{
	"listen_addr":           "server.listen_addr",
	"allowed_origins":       "server.allowed_origins",
	"body_limit_mb":         "server.body_limit_mb",
	"database_url":          "database.url",
	"db_max_open_conns":     "database.max_open_conns",
	"db_update_retries":     "database.update_retries",
	"game_service_token":    "gateway.token",
	"admin_role":            "gateway.admin_role",
	"sync_enabled":          "sync.enabled",
	"sync_service_url":      "sync.service_url",
	"sync_events_path":      "sync.events_path",
	"sync_service_token":    "sync.service_token",
	"sync_interval":         "sync.interval",
	"sync_timeout":          "sync.timeout",
	"sync_batch_size":       "sync.batch_size",
	"sync_breaker_failures": "sync.breaker_failures",
	"sync_breaker_timeout":  "sync.breaker_timeout",
	"backfill_enabled":      "backfill.enabled",
	"backfill_interval":     "backfill.interval",
	"backfill_prefix":       "backfill.prefix",
	"backfill_workers":      "backfill.workers",
	"backfill_run_lease":    "backfill.run_lease",
	"cloudflare_account_id": "r2.account_id",
	"r2_access_key_id":      "r2.access_key_id",
	"r2_access_key_secret":  "r2.access_key_secret",
	"r2_bucket_name":        "r2.bucket",
	"r2_endpoint":           "r2.endpoint",
	"catalog_path":          "catalog.path",
	"log_level":             "logging.level",
	"log_format":            "logging.format",
	"log_caller":            "logging.caller",
}

// envTransformFunc maps known variables (DATABASE_URL -> database.url) and
// drops everything else by returning "".
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// splitCommaList turns a comma-separated env value into a slice.
func splitCommaList(k *koanf.Koanf, path string) error {
	s, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if err := k.Set(path, out); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}
