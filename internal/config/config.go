// ABOUTME: Configuration loading and parsing for chat-gateway
// ABOUTME: Supports YAML or TOML files with ${VAR} expansion, CHAT_* overrides and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. CHAT_HTTP_ADDR.
const EnvPrefix = "CHAT"

// Config represents the complete chat-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Realtime  RealtimeConfig  `yaml:"realtime" toml:"realtime"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	// AllowedOrigins restricts WebSocket upgrades by Origin header.
	// Empty or "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	// Driver is "sqlite" (pure Go, default) or "sqlite3" (cgo).
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`

	TokenTTL    time.Duration `yaml:"-" toml:"-"`
	TokenTTLRaw string        `yaml:"token_ttl" toml:"token_ttl"`
}

// RealtimeConfig tunes the WebSocket layer and the message fan-out
type RealtimeConfig struct {
	SubscriberBacklog int   `yaml:"subscriber_backlog" toml:"subscriber_backlog"`
	MaxMessageSize    int64 `yaml:"max_message_size" toml:"max_message_size"`
	MaxContentLength  int   `yaml:"max_content_length" toml:"max_content_length"`

	ChannelIdleTTL time.Duration `yaml:"-" toml:"-"`
	SweepInterval  time.Duration `yaml:"-" toml:"-"`
	PingInterval   time.Duration `yaml:"-" toml:"-"`
	WriteTimeout   time.Duration `yaml:"-" toml:"-"`
	ReadTimeout    time.Duration `yaml:"-" toml:"-"`
	DedupeTTL      time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ChannelIdleTTLRaw string `yaml:"channel_idle_ttl" toml:"channel_idle_ttl"`
	SweepIntervalRaw  string `yaml:"sweep_interval" toml:"sweep_interval"`
	PingIntervalRaw   string `yaml:"ping_interval" toml:"ping_interval"`
	WriteTimeoutRaw   string `yaml:"write_timeout" toml:"write_timeout"`
	ReadTimeoutRaw    string `yaml:"read_timeout" toml:"read_timeout"`
	DedupeTTLRaw      string `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// envOverrides are read from CHAT_* environment variables and win over
// values from the file.
type envOverrides struct {
	HTTPAddr  string `envconfig:"HTTP_ADDR"`
	DBPath    string `envconfig:"DB_PATH"`
	DBDriver  string `envconfig:"DB_DRIVER"`
	JWTSecret string `envconfig:"JWT_SECRET"`
	LogLevel  string `envconfig:"LOG_LEVEL"`
}

// Default returns a configuration with every optional field filled in.
// Database.Path and Auth.JWTSecret have no defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: "0.0.0.0:8080",
		},
		Tailscale: TailscaleConfig{
			Hostname: "chat-gateway",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Auth: AuthConfig{
			TokenTTL:    time.Hour,
			TokenTTLRaw: "1h",
		},
		Realtime: RealtimeConfig{
			SubscriberBacklog: 100,
			MaxMessageSize:    64 * 1024,
			MaxContentLength:  4096,
			ChannelIdleTTLRaw: "10m",
			SweepIntervalRaw:  "1m",
			PingIntervalRaw:   "30s",
			WriteTimeoutRaw:   "10s",
			ReadTimeoutRaw:    "60s",
			DedupeTTLRaw:      "5m",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded, CHAT_*
// overrides are applied and duration strings are parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a configuration from defaults and CHAT_* variables only.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	if err := applyEnvOverrides(c); err != nil {
		return fmt.Errorf("reading environment overrides: %w", err)
	}

	if err := parseDurations(c); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func applyEnvOverrides(c *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}

	if env.HTTPAddr != "" {
		c.Server.HTTPAddr = env.HTTPAddr
	}
	if env.DBPath != "" {
		c.Database.Path = env.DBPath
	}
	if env.DBDriver != "" {
		c.Database.Driver = env.DBDriver
	}
	if env.JWTSecret != "" {
		c.Auth.JWTSecret = env.JWTSecret
	}
	if env.LogLevel != "" {
		c.Logging.Level = env.LogLevel
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be sqlite or sqlite3, got %q", c.Database.Driver)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}

	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}

	if c.Realtime.SubscriberBacklog < 1 {
		return fmt.Errorf("realtime.subscriber_backlog must be at least 1")
	}

	if c.Realtime.PingInterval >= c.Realtime.ReadTimeout {
		return fmt.Errorf("realtime.ping_interval must be shorter than realtime.read_timeout")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
		{"realtime.channel_idle_ttl", cfg.Realtime.ChannelIdleTTLRaw, &cfg.Realtime.ChannelIdleTTL},
		{"realtime.sweep_interval", cfg.Realtime.SweepIntervalRaw, &cfg.Realtime.SweepInterval},
		{"realtime.ping_interval", cfg.Realtime.PingIntervalRaw, &cfg.Realtime.PingInterval},
		{"realtime.write_timeout", cfg.Realtime.WriteTimeoutRaw, &cfg.Realtime.WriteTimeout},
		{"realtime.read_timeout", cfg.Realtime.ReadTimeoutRaw, &cfg.Realtime.ReadTimeout},
		{"realtime.dedupe_ttl", cfg.Realtime.DedupeTTLRaw, &cfg.Realtime.DedupeTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
