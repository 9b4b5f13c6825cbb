// Package config provides configuration structures and loading logic for the
// codec service and CLI.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/polisai/polis-cipher/pkg/cipher"
	"github.com/polisai/polis-cipher/pkg/domain"
)

// Config holds the global configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
	Policy    PolicyConfig    `yaml:"policy" toml:"policy"`
	KeyGen    KeyGenConfig    `yaml:"keygen" toml:"keygen"`
	Keys      []KeyConfig     `yaml:"keys" toml:"keys"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Address          string          `yaml:"address" toml:"address"`
	ReadTimeout      Duration        `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout     Duration        `yaml:"write_timeout" toml:"write_timeout"`
	ShutdownTimeout  Duration        `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	MaxMessageLength int             `yaml:"max_message_length" toml:"max_message_length"`
	RateLimit        RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	TLS              TLSConfig       `yaml:"tls" toml:"tls"`
}

// TLSConfig enables HTTPS when both files are set.
type TLSConfig struct {
	CertFile   string `yaml:"cert_file" toml:"cert_file"`
	KeyFile    string `yaml:"key_file" toml:"key_file"`
	MinVersion string `yaml:"min_version" toml:"min_version"` // "1.2" (default) or "1.3"
}

// Enabled reports whether TLS termination is configured.
func (t TLSConfig) Enabled() bool {
	return t.CertFile != "" && t.KeyFile != ""
}

// RateLimitConfig bounds requests per API endpoint with a token bucket.
// A zero rate disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int `yaml:"burst" toml:"burst"` // defaults to RequestsPerSecond
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`   // "debug", "info", "warn", "error"
	Format string `yaml:"format" toml:"format"` // "json", "text"
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	ServiceName  string            `yaml:"service_name" toml:"service_name"`
	OTLPEndpoint string            `yaml:"otlp_endpoint" toml:"otlp_endpoint"`
	Insecure     bool              `yaml:"insecure" toml:"insecure"`
	Environment  string            `yaml:"environment" toml:"environment"`
	Headers      map[string]string `yaml:"headers" toml:"headers"`
}

// PolicyConfig selects the Rego modules that gate codec requests. With no
// modules the built-in default policy is used.
type PolicyConfig struct {
	Entrypoint      string   `yaml:"entrypoint" toml:"entrypoint"`
	Modules         []string `yaml:"modules" toml:"modules"`
	CacheMaxEntries int      `yaml:"cache_max_entries" toml:"cache_max_entries"`
}

// KeyGenConfig controls generated keys.
type KeyGenConfig struct {
	Length int `yaml:"length" toml:"length"`
}

// KeyConfig declares a named key available to the service by ID.
type KeyConfig struct {
	ID    string `yaml:"id" toml:"id"`
	Name  string `yaml:"name" toml:"name"`
	Value string `yaml:"value" toml:"value"`
}

// Duration is a time.Duration that decodes from strings like "5s" in both
// YAML and TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:          ":8080",
			ReadTimeout:      Duration(10 * time.Second),
			WriteTimeout:     Duration(10 * time.Second),
			ShutdownTimeout:  Duration(10 * time.Second),
			MaxMessageLength: 64 * 1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "polis-cipher",
		},
		KeyGen: KeyGenConfig{
			Length: 16,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("POLIS_CIPHER_ADDR"); val != "" {
		cfg.Server.Address = val
	}
	if val := os.Getenv("POLIS_CIPHER_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("POLIS_CIPHER_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv("POLIS_CIPHER_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("POLIS_CIPHER_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
}

// Validate checks the whole configuration. Every error wraps
// domain.ErrConfigInvalid.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("%w: server: %w", domain.ErrConfigInvalid, err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("%w: logging: %w", domain.ErrConfigInvalid, err)
	}
	if c.Policy.CacheMaxEntries < -1 {
		return fmt.Errorf("%w: policy: cache_max_entries must be -1 or greater", domain.ErrConfigInvalid)
	}
	if c.KeyGen.Length < 1 {
		return fmt.Errorf("%w: keygen: length must be at least 1", domain.ErrConfigInvalid)
	}

	seen := make(map[string]struct{}, len(c.Keys))
	ids := make(map[string]struct{}, len(c.Keys))
	for i, key := range c.Keys {
		if strings.TrimSpace(key.Name) == "" {
			return fmt.Errorf("%w: keys[%d]: name is required", domain.ErrConfigInvalid, i)
		}
		if _, dup := seen[key.Name]; dup {
			return fmt.Errorf("%w: keys[%d]: duplicate name %q", domain.ErrConfigInvalid, i, key.Name)
		}
		seen[key.Name] = struct{}{}
		if key.ID != "" {
			if _, dup := ids[key.ID]; dup {
				return fmt.Errorf("%w: keys[%d]: duplicate id %q", domain.ErrConfigInvalid, i, key.ID)
			}
			ids[key.ID] = struct{}{}
		}
		if _, err := cipher.NormalizeKey(key.Value); err != nil {
			return fmt.Errorf("%w: keys[%d] %q: %w", domain.ErrConfigInvalid, i, key.Name, err)
		}
	}
	return nil
}

// Validate checks server settings.
func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("address is required")
	}
	if s.MaxMessageLength <= 0 {
		return fmt.Errorf("max_message_length must be positive")
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.ShutdownTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if s.RateLimit.RequestsPerSecond < 0 || s.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	if (s.TLS.CertFile == "") != (s.TLS.KeyFile == "") {
		return fmt.Errorf("tls requires both cert_file and key_file")
	}
	switch s.TLS.MinVersion {
	case "", "1.2", "1.3":
	default:
		return fmt.Errorf("tls: unsupported min_version %q", s.TLS.MinVersion)
	}
	return nil
}

// Validate checks logging settings.
func (l LoggingConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown level %q", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown format %q", l.Format)
	}
	return nil
}
