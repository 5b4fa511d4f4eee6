package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Store.Root != "./data" {
		t.Errorf("expected store root ./data, got %s", cfg.Store.Root)
	}
	if cfg.Client.Timeout != 10*time.Second {
		t.Errorf("expected client timeout 10s, got %v", cfg.Client.Timeout)
	}
	if cfg.Client.MaxRetries != 3 {
		t.Errorf("expected 3 retries, got %d", cfg.Client.MaxRetries)
	}
	if cfg.Watcher.Debounce != 300*time.Millisecond {
		t.Errorf("expected watcher debounce 300ms, got %v", cfg.Watcher.Debounce)
	}
	if cfg.NATS.URL != "" {
		t.Errorf("expected NATS disabled by default, got %q", cfg.NATS.URL)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
  cors_origin: "http://example.com"
store:
  root: "/srv/tasks"
logging:
  level: "debug"
poll:
  visible: 2s
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.CORSOrigin != "http://example.com" {
		t.Errorf("expected cors http://example.com, got %s", cfg.Server.CORSOrigin)
	}
	if cfg.Store.Root != "/srv/tasks" {
		t.Errorf("expected store root /srv/tasks, got %s", cfg.Store.Root)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Poll.Visible != 2*time.Second {
		t.Errorf("expected visible poll 2s, got %v", cfg.Poll.Visible)
	}
	// Unchanged fields keep defaults
	if cfg.Poll.Hidden != 30*time.Second {
		t.Errorf("expected default hidden poll, got %v", cfg.Poll.Hidden)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestLoadYAMLMalformed(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err == nil {
		t.Fatal("expected parse error for malformed YAML")
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("TASKDECK_PORT", "7070")
	t.Setenv("TASKDECK_DATA_DIR", "/tmp/deck")
	t.Setenv("TASKDECK_LOG_LEVEL", "warn")
	t.Setenv("TASKDECK_LOG_ASYNC", "true")
	t.Setenv("TASKDECK_BREAKER_TIMEOUT", "1m")
	t.Setenv("TASKDECK_CLIENT_MAX_RETRIES", "5")
	t.Setenv("TASKDECK_CACHE_L1_SIZE_MB", "64")
	t.Setenv("NATS_URL", "nats://broker:4222")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Store.Root != "/tmp/deck" {
		t.Errorf("expected data dir /tmp/deck, got %s", cfg.Store.Root)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if !cfg.Logging.Async {
		t.Error("expected async logging enabled")
	}
	if cfg.Breaker.Timeout != time.Minute {
		t.Errorf("expected breaker timeout 1m, got %v", cfg.Breaker.Timeout)
	}
	if cfg.Client.MaxRetries != 5 {
		t.Errorf("expected 5 retries, got %d", cfg.Client.MaxRetries)
	}
	if cfg.Cache.L1MaxSizeMB != 64 {
		t.Errorf("expected cache 64MB, got %d", cfg.Cache.L1MaxSizeMB)
	}
	if cfg.NATS.URL != "nats://broker:4222" {
		t.Errorf("expected NATS URL override, got %s", cfg.NATS.URL)
	}
}

func TestEnvInvalidValuesIgnored(t *testing.T) {
	cfg := Defaults()

	t.Setenv("TASKDECK_RATE_BURST", "lots")
	t.Setenv("TASKDECK_POLL_VISIBLE", "soon")

	loadEnv(&cfg)

	if cfg.Rate.Burst != 100 {
		t.Errorf("invalid int should be ignored, got %d", cfg.Rate.Burst)
	}
	if cfg.Poll.Visible != 5*time.Second {
		t.Errorf("invalid duration should be ignored, got %v", cfg.Poll.Visible)
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "empty store root",
			modify: func(c *Config) { c.Store.Root = "" },
			errMsg: "store.root is required",
		},
		{
			name:   "zero breaker failures",
			modify: func(c *Config) { c.Breaker.MaxFailures = 0 },
			errMsg: "breaker.max_failures must be >= 1",
		},
		{
			name:   "zero rate burst",
			modify: func(c *Config) { c.Rate.Burst = 0 },
			errMsg: "rate.burst must be >= 1",
		},
		{
			name:   "negative retries",
			modify: func(c *Config) { c.Client.MaxRetries = -1 },
			errMsg: "client.max_retries must be >= 0",
		},
		{
			name:   "zero poll interval",
			modify: func(c *Config) { c.Poll.Hidden = 0 },
			errMsg: "poll intervals must be positive",
		},
		{
			name:   "relative mcp path",
			modify: func(c *Config) { c.MCP.Path = "mcp" },
			errMsg: `mcp.path must start with /: "mcp"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.errMsg)
			}
			if err.Error() != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

// Full LoadFrom pipeline: defaults < YAML < environment variables.
func TestLoadFrom_FullHierarchy(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
server:
  port: "9090"
logging:
  level: "debug"
store:
  root: "/from/yaml"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TASKDECK_PORT", "7070")
	t.Setenv("TASKDECK_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("env should override YAML: got port %q, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env should override YAML: got level %q, want warn", cfg.Logging.Level)
	}
	if cfg.Store.Root != "/from/yaml" {
		t.Errorf("YAML should override defaults: got root %q", cfg.Store.Root)
	}
}

func TestLoadFrom_ValidationFailure(t *testing.T) {
	t.Setenv("TASKDECK_RATE_BURST", "0")

	if _, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected validation error")
	}
}
