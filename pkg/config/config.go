package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Config is the root configuration for an OMS core process.
type Config struct {
	Engine  EngineConfig  `json:"engine" yaml:"engine"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
	Venue   VenueConfig   `json:"venue" yaml:"venue"`
	HTTP    HTTPConfig    `json:"http" yaml:"http"`
}

// EngineConfig controls the central event loop.
type EngineConfig struct {
	StrategyTimerInterval time.Duration `json:"strategy_timer_interval" yaml:"strategy_timer_interval"`
	MarginRequirement     float64       `json:"margin_requirement" yaml:"margin_requirement"`
	GatewayChannelBuffer  int           `json:"gateway_channel_buffer" yaml:"gateway_channel_buffer"`
}

// LoggingDestinationKind selects where the buffered structured-log sink
// flushes its batches.
type LoggingDestinationKind string

const (
	LoggingDestinationLocalFile   LoggingDestinationKind = "local_file"
	LoggingDestinationConsole     LoggingDestinationKind = "console"
	LoggingDestinationObjectStore LoggingDestinationKind = "object_store"
)

// LoggingConfig mirrors the structured logger config named in the external
// interfaces contract: a destination variant, a flush interval, and a
// batch size.
type LoggingConfig struct {
	Level                string                 `json:"level" yaml:"level"`
	Destination          LoggingDestinationKind `json:"destination" yaml:"destination"`
	LocalFilePath        string                 `json:"local_file_path" yaml:"local_file_path"`
	ObjectStoreBucket    string                 `json:"object_store_bucket" yaml:"object_store_bucket"`
	ObjectStorePrefix    string                 `json:"object_store_prefix" yaml:"object_store_prefix"`
	ObjectStoreRegion    string                 `json:"object_store_region" yaml:"object_store_region"`
	FlushIntervalSeconds int64                  `json:"flush_interval_seconds" yaml:"flush_interval_seconds"`
	BatchSize            int                    `json:"batch_size" yaml:"batch_size"`
}

// VenueConfig holds the adapter-facing knobs the core passes down to a
// venue adapter implementation: none of this is wire-protocol-specific, it
// is transport plumbing shared by any adapter (rate limiting, timeouts,
// retry budget).
type VenueConfig struct {
	Name               string        `json:"name" yaml:"name"`
	RequestTimeout     time.Duration `json:"request_timeout" yaml:"request_timeout"`
	RateLimitPerSecond float64       `json:"rate_limit_per_second" yaml:"rate_limit_per_second"`
	RateLimitBurst     int           `json:"rate_limit_burst" yaml:"rate_limit_burst"`
	MaxRetries         int           `json:"max_retries" yaml:"max_retries"`
}

// HTTPConfig controls the optional thin host-boundary facade.
type HTTPConfig struct {
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	Host           string   `json:"host" yaml:"host"`
	Port           int      `json:"port" yaml:"port"`
	RateLimitRPS   int      `json:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int      `json:"rate_limit_burst" yaml:"rate_limit_burst"`
	CORSOrigins    []string `json:"cors_origins" yaml:"cors_origins"`
}

// Configuration errors
var (
	ErrInvalidStrategyTimerInterval = errors.New("engine.strategy_timer_interval must be positive")
	ErrInvalidLoggingDestination    = errors.New("logging.destination must be one of local_file, console, object_store")
	ErrMissingLocalFilePath         = errors.New("logging.local_file_path is required for the local_file destination")
	ErrMissingObjectStoreBucket     = errors.New("logging.object_store_bucket is required for the object_store destination")
	ErrInvalidHTTPPort              = errors.New("http.port must be between 1 and 65535 when http is enabled")
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.StrategyTimerInterval <= 0 {
		return ErrInvalidStrategyTimerInterval
	}

	switch c.Logging.Destination {
	case LoggingDestinationLocalFile:
		if c.Logging.LocalFilePath == "" {
			return ErrMissingLocalFilePath
		}
	case LoggingDestinationConsole:
		// nothing further required
	case LoggingDestinationObjectStore:
		if c.Logging.ObjectStoreBucket == "" {
			return ErrMissingObjectStoreBucket
		}
	default:
		return ErrInvalidLoggingDestination
	}

	if c.HTTP.Enabled && (c.HTTP.Port <= 0 || c.HTTP.Port > 65535) {
		return ErrInvalidHTTPPort
	}

	return nil
}

// GetHTTPAddr returns the optional HTTP facade's listen address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// DefaultConfig returns sane defaults for local development against a mock
// adapter: console logging, a 100ms strategy timer (per the fixed-interval
// loop), and the HTTP facade disabled.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			StrategyTimerInterval: 100 * time.Millisecond,
			MarginRequirement:     0.1,
			GatewayChannelBuffer:  1024,
		},
		Logging: LoggingConfig{
			Level:                "info",
			Destination:          LoggingDestinationConsole,
			FlushIntervalSeconds: 60,
			BatchSize:            100,
		},
		Venue: VenueConfig{
			Name:               "mock",
			RequestTimeout:     10 * time.Second,
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
			MaxRetries:         3,
		},
		HTTP: HTTPConfig{
			Enabled:        false,
			Host:           "0.0.0.0",
			Port:           8090,
			RateLimitRPS:   50,
			RateLimitBurst: 100,
			CORSOrigins:    []string{"*"},
		},
	}
}

// LoadConfig loads configuration from a YAML file, falling back to
// DefaultConfig when no path is given or the file does not exist.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := *DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
