package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quotadb/quotadb/internal/errors"
)

const validYAML = `
version: "1.0"
cloudfoundry:
  api_url: https://api.example.com
  uaa_url: https://uaa.example.com
  username: collector
  password: secret
`

// TestParseDefaults tests that unspecified fields get defaults
func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}

	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.Server.LogLevel)
	}
	if !cfg.Sync.Enabled {
		t.Error("Sync should be enabled by default")
	}
	if cfg.Sync.Schedule != "0 3,12,18 * * *" {
		t.Errorf("Unexpected default schedule %q", cfg.Sync.Schedule)
	}
	if cfg.Sync.Concurrency != 4 {
		t.Errorf("Expected default concurrency 4, got %d", cfg.Sync.Concurrency)
	}
	if cfg.Database.Path != "./data/quotadb.db" {
		t.Errorf("Unexpected default database path %q", cfg.Database.Path)
	}
	if cfg.CloudFoundry.Timeout != 15*time.Second {
		t.Errorf("Expected default API timeout 15s, got %v", cfg.CloudFoundry.Timeout)
	}
}

// TestParseOverrides tests explicit values over defaults
func TestParseOverrides(t *testing.T) {
	yaml := validYAML + `
server:
  host: 127.0.0.1
  http_port: 9090
  log_level: debug
sync:
  schedule: "0 6 * * *"
  concurrency: 8
cost:
  mb_per_day: 0.005
database:
  path: /var/lib/quotadb/quotadb.db
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}
	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Sync.Schedule != "0 6 * * *" {
		t.Errorf("Unexpected schedule %q", cfg.Sync.Schedule)
	}
	if cfg.Cost.MBPerDay != 0.005 {
		t.Errorf("Expected cost override 0.005, got %v", cfg.Cost.MBPerDay)
	}
	if cfg.Cost.MBCost() != 0.005 {
		t.Errorf("Expected effective cost 0.005, got %v", cfg.Cost.MBCost())
	}
}

// TestMBCostFallback tests the default cost rate when unset
func TestMBCostFallback(t *testing.T) {
	var cost CostConfig
	if cost.MBCost() != DefaultMBCostPerDay {
		t.Errorf("Expected fallback rate %v, got %v", DefaultMBCostPerDay, cost.MBCost())
	}
}

// TestParseValidationFailures tests configs that must be rejected
func TestParseValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing api url", `
cloudfoundry:
  uaa_url: https://uaa.example.com
  username: collector
  password: secret
`},
		{"missing credentials", `
cloudfoundry:
  api_url: https://api.example.com
  uaa_url: https://uaa.example.com
`},
		{"bad port", validYAML + `
server:
  http_port: 70000
`},
		{"bad log level", validYAML + `
server:
  log_level: verbose
`},
		{"negative cost", validYAML + `
cost:
  mb_per_day: -1
`},
		{"auth without credentials", validYAML + `
api:
  auth:
    enabled: true
`},
		{"telegram without token", validYAML + `
alerts:
  telegram:
    enabled: true
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); err == nil {
				t.Errorf("Expected validation error for %s", tc.name)
			}
		})
	}
}

// TestParseNonNumericCost tests that a textual cost fails the parse
func TestParseNonNumericCost(t *testing.T) {
	yaml := validYAML + `
cost:
  mb_per_day: "not a number"
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Expected parse error for non-numeric cost")
	}
	if _, ok := err.(*errors.ErrConfigParse); !ok {
		t.Errorf("Expected ErrConfigParse, got %T", err)
	}
}

// TestLoaderEnvSubstitution tests ${VAR} expansion in the config file
func TestLoaderEnvSubstitution(t *testing.T) {
	t.Setenv("QUOTADB_TEST_PASSWORD", "expanded-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
cloudfoundry:
  api_url: https://api.example.com
  uaa_url: https://uaa.example.com
  username: collector
  password: ${QUOTADB_TEST_PASSWORD}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	loader := NewLoader(path)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.CloudFoundry.Password != "expanded-secret" {
		t.Errorf("Expected expanded password, got %q", cfg.CloudFoundry.Password)
	}
	if got := loader.Get(); got != cfg {
		t.Error("Get should return the loaded config")
	}
}

// TestLoaderMissingFile tests the not-found error path
func TestLoaderMissingFile(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := loader.Load()
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	if _, ok := err.(*errors.ErrConfigNotFound); !ok {
		t.Errorf("Expected ErrConfigNotFound, got %T", err)
	}
}

// TestLoaderReloadCallback tests that Reload invokes the change callback
func TestLoaderReloadCallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	loader := NewLoader(path)
	if _, err := loader.Load(); err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	called := make(chan *Config, 1)
	loader.SetOnChange(func(c *Config) { called <- c })

	if _, err := loader.Reload(); err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}

	select {
	case cfg := <-called:
		if cfg == nil {
			t.Error("Callback received nil config")
		}
	default:
		t.Error("Expected change callback to run")
	}
}
