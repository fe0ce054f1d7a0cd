// Package config loads and validates the linkrelay YAML configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	// ServerURL is the base URL of the bookmark server (e.g. "https://read.example.com").
	ServerURL string `yaml:"server_url"`

	// APIToken is the bearer token used to authenticate with the server.
	APIToken string `yaml:"api_token"`

	// PollInterval controls how often the daemon attempts to drain the
	// offline queue. Minimum 10s, maximum 5m. Defaults to 30s if unset.
	PollInterval time.Duration `yaml:"poll_interval"`

	// CacheTTL is how long a reachability probe result is trusted before a
	// new probe may be issued. Defaults to 30s.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// RateLimitInterval is the floor between two probes even after the TTL
	// has lapsed. Must be shorter than CacheTTL. Defaults to 5s.
	RateLimitInterval time.Duration `yaml:"rate_limit_interval"`

	// UndoWindow is how long a delete stays cancellable before it is
	// committed against the server. Defaults to 3s, bounded to 1s–30s.
	UndoWindow time.Duration `yaml:"undo_window"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "linkrelay".
	ServiceName string `yaml:"service_name"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request, e.g. {"Authorization": "Bearer <token>"}.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// DefaultPath returns the default config file path: ~/.config/linkrelay/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "linkrelay", "config.yaml"), nil
}

// Load reads and validates the configuration file at the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration as YAML to the given path, creating parent
// directories as needed. Used by the setup wizard.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file %q: %w", path, err)
	}
	return nil
}

// validate checks that all required fields are present and well-formed,
// filling in defaults for the optional timing knobs.
func (c *Config) validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	u, err := url.ParseRequestURI(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("server_url %q must be a valid http or https URL", c.ServerURL)
	}

	if c.APIToken == "" {
		return fmt.Errorf("api_token is required")
	}

	if c.PollInterval == 0 {
		c.PollInterval = 30 * time.Second
	}
	if c.PollInterval < 10*time.Second {
		return fmt.Errorf("poll_interval %v is too short (minimum 10s)", c.PollInterval)
	}
	if c.PollInterval > 5*time.Minute {
		return fmt.Errorf("poll_interval %v is too long (maximum 5m)", c.PollInterval)
	}

	if c.CacheTTL == 0 {
		c.CacheTTL = 30 * time.Second
	}
	if c.RateLimitInterval == 0 {
		c.RateLimitInterval = 5 * time.Second
	}
	if c.RateLimitInterval >= c.CacheTTL {
		return fmt.Errorf("rate_limit_interval %v must be shorter than cache_ttl %v", c.RateLimitInterval, c.CacheTTL)
	}

	if c.UndoWindow == 0 {
		c.UndoWindow = 3 * time.Second
	}
	if c.UndoWindow < time.Second || c.UndoWindow > 30*time.Second {
		return fmt.Errorf("undo_window %v is out of range (1s–30s)", c.UndoWindow)
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}
