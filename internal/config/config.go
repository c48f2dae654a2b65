// Package config loads the service configuration from defaults, an optional
// YAML file and COFABRI_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
// A double underscore separates nesting levels:
// COFABRI_AIRTABLE__API_KEY sets airtable.api_key.
const EnvPrefix = "COFABRI_"

// Cache backends.
const (
	CacheBackendMemory   = "memory"
	CacheBackendPostgres = "postgres"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	CORS      CORSConfig      `koanf:"cors"`
	Site      SiteConfig      `koanf:"site"`
	Airtable  AirtableConfig  `koanf:"airtable"`
	Cache     CacheConfig     `koanf:"cache"`
	Database  DatabaseConfig  `koanf:"database"`
	Turnstile TurnstileConfig `koanf:"turnstile"`
	Blob      BlobConfig      `koanf:"blob"`
	Support   SupportConfig   `koanf:"support"`
	Admin     AdminConfig     `koanf:"admin"`
	Alerts    AlertsConfig    `koanf:"alerts"`
	Outbound  OutboundConfig  `koanf:"outbound"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	MetricsPort     int           `koanf:"metrics_port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// SiteConfig holds public URLs used in rendered output.
type SiteConfig struct {
	PublicURL     string `koanf:"public_url"`
	StatusPageURL string `koanf:"status_page_url"`
	FeedTitle     string `koanf:"feed_title"`
}

// AirtableConfig configures the content source.
type AirtableConfig struct {
	BaseURL   string        `koanf:"base_url"`
	APIKey    string        `koanf:"api_key"`
	BaseID    string        `koanf:"base_id"`
	RateLimit float64       `koanf:"rate_limit"`
	Timeout   time.Duration `koanf:"timeout"`
	Tables    TablesConfig  `koanf:"tables"`
}

// TablesConfig names the content source tables.
type TablesConfig struct {
	Status        string `koanf:"status"`
	Apps          string `koanf:"apps"`
	KnowledgeBase string `koanf:"knowledge_base"`
	Blog          string `koanf:"blog"`
	Roadmap       string `koanf:"roadmap"`
	Testimonials  string `koanf:"testimonials"`
	Support       string `koanf:"support"`
	Contact       string `koanf:"contact"`
}

// CacheConfig configures the content cache.
type CacheConfig struct {
	TTL     time.Duration `koanf:"ttl"`
	Backend string        `koanf:"backend"`
}

// DatabaseConfig configures the optional PostgreSQL connection.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// TurnstileConfig configures CAPTCHA verification.
type TurnstileConfig struct {
	Enabled   bool          `koanf:"enabled"`
	SecretKey string        `koanf:"secret_key"`
	VerifyURL string        `koanf:"verify_url"`
	Timeout   time.Duration `koanf:"timeout"`
}

// BlobConfig configures screenshot uploads.
type BlobConfig struct {
	Token      string        `koanf:"token"`
	BaseURL    string        `koanf:"base_url"`
	APIVersion string        `koanf:"api_version"`
	Timeout    time.Duration `koanf:"timeout"`
}

// SupportConfig configures the form endpoints.
type SupportConfig struct {
	MaxScreenshotBytes int64 `koanf:"max_screenshot_bytes"`
	MaxScreenshots     int   `koanf:"max_screenshots"`
	MaxRequestBytes    int64 `koanf:"max_request_bytes"`
	RateLimitPerMinute int   `koanf:"rate_limit_per_minute"`
}

// AdminConfig configures operator access to the admin endpoints. Admin
// access is off unless a password hash is set.
type AdminConfig struct {
	Username      string        `koanf:"username"`
	PasswordHash  string        `koanf:"password_hash"`
	JWTSecret     string        `koanf:"jwt_secret"`
	TokenDuration time.Duration `koanf:"token_duration"`
}

// Enabled reports whether operator login is configured.
func (a AdminConfig) Enabled() bool {
	return a.PasswordHash != ""
}

// AlertsConfig configures operator alerts.
type AlertsConfig struct {
	MattermostWebhookURL string `koanf:"mattermost_webhook_url"`
	MattermostChannel    string `koanf:"mattermost_channel"`
}

// OutboundConfig configures the HTTP client shared by upstream integrations.
type OutboundConfig struct {
	// AllowPrivateNetworks disables the SSRF guard. Meant for local mocks.
	AllowPrivateNetworks bool `koanf:"allow_private_networks"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MetricsPort:     9090,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"https://cofabri.com", "https://www.cofabri.com"},
		},
		Site: SiteConfig{
			PublicURL:     "https://cofabri.com",
			StatusPageURL: "https://cofabri.com/status",
			FeedTitle:     "CoFabri System Status",
		},
		Airtable: AirtableConfig{
			BaseURL:   "https://api.airtable.com",
			RateLimit: 5,
			Timeout:   10 * time.Second,
			Tables: TablesConfig{
				Status:        "System Status",
				Apps:          "Apps",
				KnowledgeBase: "Knowledge Base",
				Blog:          "Blog",
				Roadmap:       "Roadmap",
				Testimonials:  "Testimonials",
				Support:       "Support Requests",
				Contact:       "Contact Submissions",
			},
		},
		Cache: CacheConfig{
			TTL:     5 * time.Minute,
			Backend: CacheBackendMemory,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 10 * time.Minute,
			ConnectAttempts: 5,
			ConnectTimeout:  5 * time.Second,
			AutoMigrate:     true,
		},
		Turnstile: TurnstileConfig{
			Enabled:   true,
			VerifyURL: "https://challenges.cloudflare.com/turnstile/v0/siteverify",
			Timeout:   10 * time.Second,
		},
		Blob: BlobConfig{
			BaseURL:    "https://blob.vercel-storage.com",
			APIVersion: "7",
			Timeout:    30 * time.Second,
		},
		Support: SupportConfig{
			MaxScreenshotBytes: 10 << 20,
			MaxScreenshots:     5,
			MaxRequestBytes:    100 << 20,
			RateLimitPerMinute: 10,
		},
		Admin: AdminConfig{
			Username:      "admin",
			TokenDuration: 12 * time.Hour,
		},
	}
}

// Load reads configuration. path may be empty, in which case config.yaml is
// used when it exists. Variables from a .env file in the working directory
// are exported first without overriding the real environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps COFABRI_AIRTABLE__API_KEY to airtable.api_key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		problems = append(problems, "server.metrics_port must be between 0 and 65535")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, "log.level must be one of debug, info, warn, error")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		problems = append(problems, "log.format must be json or text")
	}
	if c.Airtable.APIKey == "" {
		problems = append(problems, "airtable.api_key is required")
	}
	if c.Airtable.BaseID == "" {
		problems = append(problems, "airtable.base_id is required")
	}
	if c.Airtable.RateLimit <= 0 {
		problems = append(problems, "airtable.rate_limit must be positive")
	}
	if c.Cache.TTL <= 0 {
		problems = append(problems, "cache.ttl must be positive")
	}
	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendPostgres:
		if !c.Database.Enabled() {
			problems = append(problems, "database.url is required when cache.backend is postgres")
		}
	default:
		problems = append(problems, "cache.backend must be memory or postgres")
	}
	if c.Turnstile.Enabled && c.Turnstile.SecretKey == "" {
		problems = append(problems, "turnstile.secret_key is required when turnstile is enabled")
	}
	if c.Support.MaxScreenshotBytes <= 0 || c.Support.MaxScreenshots <= 0 || c.Support.MaxRequestBytes <= 0 {
		problems = append(problems, "support screenshot and request limits must be positive")
	}
	if c.Admin.Enabled() && len(c.Admin.JWTSecret) < 32 {
		problems = append(problems, "admin.jwt_secret must be at least 32 characters when admin access is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
