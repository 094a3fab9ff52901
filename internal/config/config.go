package config

import (
	"fmt"
	"time"
)

// DefaultMBCostPerDay is the fallback cost of one MB of reserved memory
// per day, used when no override is configured.
const DefaultMBCostPerDay = 0.0033

// Config represents the complete application configuration.
type Config struct {
	Version      string             `yaml:"version"`
	Server       ServerConfig       `yaml:"server"`
	API          APIConfig          `yaml:"api"`
	CloudFoundry CloudFoundryConfig `yaml:"cloudfoundry"`
	Sync         SyncConfig         `yaml:"sync"`
	Cost         CostConfig         `yaml:"cost"`
	Database     DatabaseConfig     `yaml:"database"`
	Alerts       AlertsConfig       `yaml:"alerts"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
}

// APIConfig contains the credential gate for report endpoints. The check
// is an opaque username/password comparison; anything richer lives
// outside this service.
type APIConfig struct {
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig contains basic-auth credentials for the API surface.
type AuthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// CloudFoundryConfig contains the remote platform API endpoints and the
// password-grant credentials used against them.
type CloudFoundryConfig struct {
	APIURL   string        `yaml:"api_url"`
	UAAURL   string        `yaml:"uaa_url"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SyncConfig contains synchronization scheduling configuration.
type SyncConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Schedule    string `yaml:"schedule"`
	Concurrency int    `yaml:"concurrency"`
}

// CostConfig carries the per-MB-day cost override. Parsed as a float at
// load time; a textual value that is not a YAML number fails the parse
// instead of leaking into arithmetic.
type CostConfig struct {
	MBPerDay float64 `yaml:"mb_per_day"`
}

// DatabaseConfig contains the store location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AlertsConfig contains failure-digest notification settings.
type AlertsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig contains the Telegram notifier settings.
type TelegramConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Token       string        `yaml:"token"`
	ChatID      int64         `yaml:"chat_id"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.CloudFoundry.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	if c.Cost.MBPerDay < 0 {
		return fmt.Errorf("cost.mb_per_day must not be negative, got %v", c.Cost.MBPerDay)
	}
	if c.API.Auth.Enabled && (c.API.Auth.Username == "" || c.API.Auth.Password == "") {
		return fmt.Errorf("api.auth requires username and password when enabled")
	}
	if err := c.Alerts.Telegram.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks server configuration.
func (s *ServerConfig) Validate() error {
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be between 1 and 65535, got %d", s.HTTPPort)
	}
	switch s.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level must be one of debug, info, warn, error, got %q", s.LogLevel)
	}
	return nil
}

// Validate checks the remote API configuration.
func (c *CloudFoundryConfig) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("cloudfoundry.api_url is required")
	}
	if c.UAAURL == "" {
		return fmt.Errorf("cloudfoundry.uaa_url is required")
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("cloudfoundry credentials are required")
	}
	return nil
}

// Validate checks sync configuration.
func (s *SyncConfig) Validate() error {
	if s.Concurrency < 0 {
		return fmt.Errorf("sync.concurrency must not be negative, got %d", s.Concurrency)
	}
	return nil
}

// Validate checks telegram notifier configuration.
func (t *TelegramConfig) Validate() error {
	if t.Enabled && (t.Token == "" || t.ChatID == 0) {
		return fmt.Errorf("alerts.telegram requires token and chat_id when enabled")
	}
	return nil
}

// MBCost returns the configured per-MB-day cost, falling back to the
// default when unset.
func (c *CostConfig) MBCost() float64 {
	if c.MBPerDay == 0 {
		return DefaultMBCostPerDay
	}
	return c.MBPerDay
}
