package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "taskdeck.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("TASKDECK_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "TASKDECK_PORT")
	setString(&cfg.Server.CORSOrigin, "TASKDECK_CORS_ORIGIN")
	setDuration(&cfg.Server.ReadTimeout, "TASKDECK_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "TASKDECK_WRITE_TIMEOUT")
	setDuration(&cfg.Server.IdleTimeout, "TASKDECK_IDLE_TIMEOUT")
	setString(&cfg.Store.Root, "TASKDECK_DATA_DIR")
	setString(&cfg.Logging.Level, "TASKDECK_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TASKDECK_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TASKDECK_LOG_ASYNC")
	setFloat64(&cfg.Rate.RequestsPerSecond, "TASKDECK_RATE_RPS")
	setInt(&cfg.Rate.Burst, "TASKDECK_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "TASKDECK_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "TASKDECK_RATE_MAX_IDLE_TIME")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "TASKDECK_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.IdempotencyTTL, "TASKDECK_IDEMPOTENCY_TTL")

	// Integrations
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "TASKDECK_OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "TASKDECK_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "TASKDECK_OTEL_SAMPLE_RATE")
	setBool(&cfg.MCP.Enabled, "TASKDECK_MCP_ENABLED")
	setString(&cfg.MCP.Path, "TASKDECK_MCP_PATH")
	setString(&cfg.MCP.APIKey, "TASKDECK_MCP_API_KEY")
	setBool(&cfg.Watcher.Enabled, "TASKDECK_WATCH")
	setDuration(&cfg.Watcher.Debounce, "TASKDECK_WATCH_DEBOUNCE")

	// Client
	setInt(&cfg.Breaker.MaxFailures, "TASKDECK_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "TASKDECK_BREAKER_TIMEOUT")
	setString(&cfg.Client.BaseURL, "TASKDECK_URL")
	setDuration(&cfg.Client.Timeout, "TASKDECK_CLIENT_TIMEOUT")
	setInt(&cfg.Client.MaxRetries, "TASKDECK_CLIENT_MAX_RETRIES")
	setDuration(&cfg.Client.RetryDelay, "TASKDECK_CLIENT_RETRY_DELAY")
	setDuration(&cfg.Poll.Visible, "TASKDECK_POLL_VISIBLE")
	setDuration(&cfg.Poll.Hidden, "TASKDECK_POLL_HIDDEN")
	setDuration(&cfg.Poll.MinGap, "TASKDECK_POLL_MIN_GAP")
	setDuration(&cfg.Poll.Jitter, "TASKDECK_POLL_JITTER")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Store.Root == "" {
		return errors.New("store.root is required")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Client.MaxRetries < 0 {
		return errors.New("client.max_retries must be >= 0")
	}
	if cfg.Poll.Visible <= 0 || cfg.Poll.Hidden <= 0 {
		return errors.New("poll intervals must be positive")
	}
	if cfg.MCP.Enabled && (cfg.MCP.Path == "" || cfg.MCP.Path[0] != '/') {
		return fmt.Errorf("mcp.path must start with /: %q", cfg.MCP.Path)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
