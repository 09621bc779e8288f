// Package config defines the configuration of the offer wizard service and
// its validation.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

// Config is the root configuration. Fields are populated from a TOML file and
// then optionally overridden by P2POFFER_* environment variables.
type Config struct {
	Exchange ExchangeConfig `toml:"exchange"`
	Wizard   WizardConfig   `toml:"wizard"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ExchangeConfig points at the exchange REST API the wizard consumes.
type ExchangeConfig struct {
	BaseURL           string   `toml:"base_url"`
	APIKey            string   `toml:"api_key"`
	Timeout           duration `toml:"timeout"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

// WizardConfig holds the session and platform defaults.
type WizardConfig struct {
	SessionTTL         duration `toml:"session_ttl"`
	SubmitLockTTL      duration `toml:"submit_lock_ttl"`
	PricePollInterval  duration `toml:"price_poll_interval"`
	PriceMaxAge        duration `toml:"price_max_age"`
	DefaultAutoCancel  int      `toml:"default_auto_cancel"`
	DefaultVisibility  string   `toml:"default_visibility"`
	KYCRequiredDefault bool     `toml:"kyc_required_default"`
}

// PlatformSettings converts the wizard section into the snapshot handed to
// every new session.
func (w WizardConfig) PlatformSettings() domain.PlatformSettings {
	return domain.PlatformSettings{
		DefaultAutoCancel:  w.DefaultAutoCancel,
		DefaultVisibility:  domain.Visibility(strings.ToUpper(w.DefaultVisibility)),
		KYCRequiredDefault: w.KYCRequiredDefault,
		PricePollInterval:  w.PricePollInterval.Duration,
	}
}

// DatabaseConfig holds the PostgreSQL connection used for the audit log and
// offer history.
type DatabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds the Redis connection used for the price cache,
// submission locks, the event bus and rate limits.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	PriceTTL   duration `toml:"price_ttl"`
}

// S3Config holds the object store that receives audit archives.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls the audit archive run. With an empty Cron the
// archive mode runs once and exits.
type ArchiveConfig struct {
	RetentionDays int    `toml:"retention_days"`
	Prune         bool   `toml:"prune"`
	Cron          string `toml:"cron"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimit       int      `toml:"rate_limit"`
	RateWindow      duration `toml:"rate_window"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration decodes TOML strings such as "30s" or "5m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			BaseURL:           "http://localhost:4000",
			Timeout:           duration{15 * time.Second},
			RequestsPerSecond: 10,
		},
		Wizard: WizardConfig{
			SessionTTL:        duration{30 * time.Minute},
			SubmitLockTTL:     duration{30 * time.Second},
			PricePollInterval: duration{30 * time.Second},
			PriceMaxAge:       duration{30 * time.Second},
			DefaultAutoCancel: 30,
			DefaultVisibility: string(domain.VisibilityPublic),
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "p2poffer",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			PriceTTL:   duration{5 * time.Minute},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "p2poffer-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			RetentionDays: 90,
		},
		Server: ServerConfig{
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       120,
			RateWindow:      duration{time.Minute},
			ShutdownTimeout: duration{10 * time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"offer_created", "offer_failed"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server":  true,
	"archive": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration and returns one error describing every
// problem found.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		add("unknown mode %q (valid: server, archive)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	if mode == "server" {
		if u, err := url.Parse(c.Exchange.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			add("exchange: base_url must be an absolute URL, got %q", c.Exchange.BaseURL)
		}
		if c.Exchange.Timeout.Duration <= 0 {
			add("exchange: timeout must be > 0")
		}
		if c.Exchange.RequestsPerSecond < 0 {
			add("exchange: requests_per_second must be >= 0")
		}

		if c.Wizard.SessionTTL.Duration <= 0 {
			add("wizard: session_ttl must be > 0")
		}
		if c.Wizard.SubmitLockTTL.Duration <= 0 {
			add("wizard: submit_lock_ttl must be > 0")
		}
		if c.Wizard.PricePollInterval.Duration < time.Second {
			add("wizard: price_poll_interval must be >= 1s, got %s", c.Wizard.PricePollInterval.Duration)
		}
		if c.Wizard.DefaultAutoCancel < 0 {
			add("wizard: default_auto_cancel must be >= 0")
		}
		switch domain.Visibility(strings.ToUpper(c.Wizard.DefaultVisibility)) {
		case domain.VisibilityPublic, domain.VisibilityPrivate:
		default:
			add("wizard: default_visibility must be PUBLIC or PRIVATE, got %q", c.Wizard.DefaultVisibility)
		}

		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server: port must be 1-65535, got %d", c.Server.Port)
		}
		if c.Server.RateLimit < 0 {
			add("server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			add("server: rate_window must be > 0 when rate_limit is set")
		}
	}

	if c.Database.Enabled || mode == "archive" {
		if strings.TrimSpace(c.Database.DSN) == "" {
			if c.Database.Host == "" {
				add("database: host must not be empty (or set database.dsn)")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				add("database: port must be 1-65535, got %d", c.Database.Port)
			}
			if c.Database.Database == "" {
				add("database: database must not be empty")
			}
		}
		if c.Database.PoolMaxConns < 1 {
			add("database: pool_max_conns must be >= 1")
		}
		if c.Database.PoolMinConns < 0 || c.Database.PoolMinConns > c.Database.PoolMaxConns {
			add("database: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			add("redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			add("redis: pool_size must be >= 1")
		}
	}

	if mode == "archive" {
		if c.S3.Bucket == "" {
			add("s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			add("s3: region must not be empty")
		}
		if c.Archive.RetentionDays < 1 {
			add("archive: retention_days must be >= 1")
		}
		if c.Archive.Cron != "" {
			if _, err := cron.ParseStandard(c.Archive.Cron); err != nil {
				add("archive: invalid cron %q: %v", c.Archive.Cron, err)
			}
		}
	}

	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		add("notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
