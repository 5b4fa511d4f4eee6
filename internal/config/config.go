// Package config provides hierarchical configuration loading for taskdeck.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the taskdeck server and client.
type Config struct {
	Server  Server  `yaml:"server"`
	Store   Store   `yaml:"store"`
	Logging Logging `yaml:"logging"`
	Rate    Rate    `yaml:"rate"`
	Cache   Cache   `yaml:"cache"`
	NATS    NATS    `yaml:"nats"`
	OTEL    OTEL    `yaml:"otel"`
	MCP     MCP     `yaml:"mcp"`
	Watcher Watcher `yaml:"watcher"`
	Breaker Breaker `yaml:"breaker"`
	Client  Client  `yaml:"client"`
	Poll    Poll    `yaml:"poll"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port         string        `yaml:"port"`
	CORSOrigin   string        `yaml:"cors_origin"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// Store holds the location of the sandboxed data directory.
type Store struct {
	Root string `yaml:"root"` // Every file operation is confined to this directory
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Rate holds rate limiter configuration.
type Rate struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	MaxIdleTime       time.Duration `yaml:"max_idle_time"`
}

// Cache holds the in-process cache configuration shared by the record
// parse cache and the idempotency store.
type Cache struct {
	L1MaxSizeMB    int64         `yaml:"l1_max_size_mb"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

// NATS holds NATS JetStream configuration. An empty URL disables event publishing.
type NATS struct {
	URL string `yaml:"url"`
}

// OTEL holds OpenTelemetry exporter configuration. An empty endpoint disables export.
type OTEL struct {
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// MCP holds Model Context Protocol server configuration.
type MCP struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	APIKey  string `yaml:"api_key"` // Empty disables bearer auth on the endpoint
}

// Watcher holds filesystem watcher configuration.
type Watcher struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Breaker holds circuit breaker configuration for the task API client.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Client holds task API client configuration.
type Client struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// Poll holds the client cache refresh cadence.
type Poll struct {
	Visible time.Duration `yaml:"visible"` // Interval while the view is in the foreground
	Hidden  time.Duration `yaml:"hidden"`  // Interval while backgrounded
	MinGap  time.Duration `yaml:"min_gap"` // Minimum spacing between externally triggered refreshes
	Jitter  time.Duration `yaml:"jitter"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:         "8080",
			CORSOrigin:   "http://localhost:3000",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Store: Store{
			Root: "./data",
		},
		Logging: Logging{
			Level:   "info",
			Service: "taskdeck",
		},
		Rate: Rate{
			RequestsPerSecond: 10,
			Burst:             100,
			CleanupInterval:   5 * time.Minute,
			MaxIdleTime:       10 * time.Minute,
		},
		Cache: Cache{
			L1MaxSizeMB:    32,
			IdempotencyTTL: 24 * time.Hour,
		},
		OTEL: OTEL{
			ServiceName: "taskdeck",
			Insecure:    true,
			SampleRate:  1.0,
		},
		MCP: MCP{
			Enabled: true,
			Path:    "/mcp",
		},
		Watcher: Watcher{
			Enabled:  true,
			Debounce: 300 * time.Millisecond,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Client: Client{
			BaseURL:    "http://localhost:8080",
			Timeout:    10 * time.Second,
			MaxRetries: 3,
			RetryDelay: time.Second,
		},
		Poll: Poll{
			Visible: 5 * time.Second,
			Hidden:  30 * time.Second,
			MinGap:  2 * time.Second,
			Jitter:  500 * time.Millisecond,
		},
	}
}
