package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration, loaded from YAML with
// environment-variable overrides for deployment secrets.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Auth           AuthConfig           `yaml:"auth"`
	NATS           NATSConfig           `yaml:"nats"`
	Providers      ProvidersConfig      `yaml:"providers"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	CORS           CORSConfig           `yaml:"cors"`
	Admin          AdminConfig          `yaml:"admin"`
}

// ServerConfig HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig ledger database configuration.
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// AuthConfig service-to-service authentication configuration.
type AuthConfig struct {
	// JWTSecret signs/verifies the bearer tokens presented by the balance
	// monitor. Overridden by REFILL_JWT_SECRET.
	JWTSecret string `yaml:"jwt_secret"`
}

// NATSConfig alert/event bus configuration. Optional: with an empty URL the
// publisher runs disabled and alerts go to the log only.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`        // seconds
	ReconnectWait int    `yaml:"reconnect_wait"` // seconds
	MaxReconnects int    `yaml:"max_reconnects"`
	SubjectPrefix string `yaml:"subject_prefix"` // default "refill"
}

// ProvidersConfig custody backend credentials. A provider with missing
// credentials is skipped at startup, not fatal.
type ProvidersConfig struct {
	Fireblocks FireblocksConfig `yaml:"fireblocks"`
	BitGo      BitGoConfig      `yaml:"bitgo"`
}

// FireblocksConfig Fireblocks API access.
type FireblocksConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Timeout   int    `yaml:"timeout"` // seconds, per call
}

// BitGoConfig BitGo API access.
type BitGoConfig struct {
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"access_token"`
	Timeout     int    `yaml:"timeout"` // seconds, per call
}

// ReconciliationConfig background status-reconciliation loop tuning.
type ReconciliationConfig struct {
	Interval    int `yaml:"interval"`     // seconds between cycles
	StaleAfter  int `yaml:"stale_after"`  // seconds before a non-terminal tx raises an alert
	CallTimeout int `yaml:"call_timeout"` // seconds per provider status call
}

// CORSConfig cross-origin configuration for the HTTP surface.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// AdminConfig admin API access control.
type AdminConfig struct {
	AllowedIPs []string `yaml:"allowedIPs"`
}

// IntervalDuration returns the loop interval with a sane default.
func (r ReconciliationConfig) IntervalDuration() time.Duration {
	if r.Interval <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.Interval) * time.Second
}

// StaleAfterDuration returns the stale-alert threshold with a sane default.
func (r ReconciliationConfig) StaleAfterDuration() time.Duration {
	if r.StaleAfter <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(r.StaleAfter) * time.Second
}

// CallTimeoutDuration returns the per-provider-call timeout with a default.
func (r ReconciliationConfig) CallTimeoutDuration() time.Duration {
	if r.CallTimeout <= 0 {
		return 15 * time.Second
	}
	return time.Duration(r.CallTimeout) * time.Second
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides lets deployment environments inject secrets and endpoints
// without touching the YAML file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("REFILL_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("FIREBLOCKS_API_KEY"); v != "" {
		c.Providers.Fireblocks.APIKey = v
	}
	if v := os.Getenv("FIREBLOCKS_API_SECRET"); v != "" {
		c.Providers.Fireblocks.APISecret = v
	}
	if v := os.Getenv("FIREBLOCKS_BASE_URL"); v != "" {
		c.Providers.Fireblocks.BaseURL = v
	}
	if v := os.Getenv("BITGO_ACCESS_TOKEN"); v != "" {
		c.Providers.BitGo.AccessToken = v
	}
	if v := os.Getenv("BITGO_BASE_URL"); v != "" {
		c.Providers.BitGo.BaseURL = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required (or set REFILL_JWT_SECRET)")
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "refill"
	}
	return nil
}

// ListenAddr returns the host:port the HTTP server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
