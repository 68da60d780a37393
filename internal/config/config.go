// Package config loads server configuration from environment variables,
// with an optional .env file for development convenience.
package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all server configuration
// Tags:
//
//	env: Environment variable name
//	envDefault: Default value if not set
type Config struct {
	// Server basics
	Addr        string `env:"HOTELIER_ADDR" envDefault:":7777"`
	MetricsAddr string `env:"HOTELIER_METRICS_ADDR" envDefault:":9090"`

	// Multicast notifications
	MulticastAddr string `env:"HOTELIER_MULTICAST_ADDR" envDefault:"228.5.6.7:4446"`

	// Capacity
	MaxConnections int `env:"HOTELIER_MAX_CONNECTIONS" envDefault:"500"`
	WorkerCount    int `env:"HOTELIER_WORKER_COUNT" envDefault:"8"`
	WorkerQueue    int `env:"HOTELIER_WORKER_QUEUE" envDefault:"256"`

	// Rate limiting and overload protection
	AcceptRate         float64 `env:"HOTELIER_ACCEPT_RATE" envDefault:"100"` // new connections/sec
	AcceptBurst        int     `env:"HOTELIER_ACCEPT_BURST" envDefault:"50"`
	CPURejectThreshold float64 `env:"HOTELIER_CPU_REJECT_THRESHOLD" envDefault:"85.0"` // reject new connections above this %

	// Wire format
	MaxMessageSize int `env:"HOTELIER_MAX_MESSAGE_SIZE" envDefault:"65536"` // bytes, excludes the length prefix
	PoolThreshold  int `env:"HOTELIER_POOL_THRESHOLD" envDefault:"1024"`    // buffer size class granularity
	PoolCapacity   int `env:"HOTELIER_POOL_CAPACITY" envDefault:"16"`       // cached size classes per connection direction

	// Accounts
	UsernamePattern string `env:"HOTELIER_USERNAME_PATTERN" envDefault:"^[a-zA-Z0-9_]{3,24}$"`
	SaltBytes       int    `env:"HOTELIER_SALT_BYTES" envDefault:"16"`

	// Ranking
	RankInterval  time.Duration `env:"HOTELIER_RANK_INTERVAL" envDefault:"30s"`
	RankInitDelay time.Duration `env:"HOTELIER_RANK_INIT_DELAY" envDefault:"5s"`
	TimeDecay     float64       `env:"HOTELIER_TIME_DECAY" envDefault:"0.1"`     // per-day decay of review weight
	ExpMultiplier float64       `env:"HOTELIER_EXP_MULTIPLIER" envDefault:"0.1"` // weight penalty for low reviewer experience
	ExpIncrement  int           `env:"HOTELIER_EXP_INCREMENT" envDefault:"10"`   // experience gained per aggregated review
	MaxBatchSize  int           `env:"HOTELIER_MAX_BATCH_SIZE" envDefault:"10"`  // hotels per SEARCH_ALL page

	// Persistence
	SaveInterval  time.Duration `env:"HOTELIER_SAVE_INTERVAL" envDefault:"60s"`
	SaveInitDelay time.Duration `env:"HOTELIER_SAVE_INIT_DELAY" envDefault:"20s"`
	MaxDump       int           `env:"HOTELIER_MAX_DUMP" envDefault:"500"` // initial allocation of the review dump queue
	HotelsFile    string        `env:"HOTELIER_HOTELS_FILE" envDefault:"data/hotels.json"`
	UsersFile     string        `env:"HOTELIER_USERS_FILE" envDefault:"data/users.json"`
	ReviewsFile   string        `env:"HOTELIER_REVIEWS_FILE" envDefault:"data/reviews.json"`
	ForceRevsInit bool          `env:"HOTELIER_FORCE_REVS_INIT" envDefault:"false"` // replay the review log on startup

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from .env file and environment variables
// Priority: ENV vars > .env file > defaults
func Load(logger *zerolog.Logger) (*Config, error) {
	// .env is a development convenience; in production the environment
	// carries everything.
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("No .env file found (using environment variables only)")
		}
	} else if logger != nil {
		logger.Info().Msg("Loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("HOTELIER_ADDR is required")
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("HOTELIER_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("HOTELIER_WORKER_COUNT must be > 0, got %d", c.WorkerCount)
	}
	if c.WorkerQueue < 1 {
		return fmt.Errorf("HOTELIER_WORKER_QUEUE must be > 0, got %d", c.WorkerQueue)
	}
	if c.MaxMessageSize < 1 {
		return fmt.Errorf("HOTELIER_MAX_MESSAGE_SIZE must be > 0, got %d", c.MaxMessageSize)
	}
	if c.CPURejectThreshold < 0 || c.CPURejectThreshold > 100 {
		return fmt.Errorf("HOTELIER_CPU_REJECT_THRESHOLD must be 0-100, got %.1f", c.CPURejectThreshold)
	}
	if c.TimeDecay < 0 {
		return fmt.Errorf("HOTELIER_TIME_DECAY must be >= 0, got %v", c.TimeDecay)
	}
	if c.ExpMultiplier < 0 {
		return fmt.Errorf("HOTELIER_EXP_MULTIPLIER must be >= 0, got %v", c.ExpMultiplier)
	}
	if c.ExpIncrement < 0 {
		return fmt.Errorf("HOTELIER_EXP_INCREMENT must be >= 0, got %d", c.ExpIncrement)
	}
	if c.MaxBatchSize < 1 {
		return fmt.Errorf("HOTELIER_MAX_BATCH_SIZE must be > 0, got %d", c.MaxBatchSize)
	}
	if c.MaxDump < 1 {
		return fmt.Errorf("HOTELIER_MAX_DUMP must be > 0, got %d", c.MaxDump)
	}
	if c.SaltBytes < 8 {
		return fmt.Errorf("HOTELIER_SALT_BYTES must be >= 8, got %d", c.SaltBytes)
	}
	if c.RankInterval <= 0 {
		return fmt.Errorf("HOTELIER_RANK_INTERVAL must be > 0, got %v", c.RankInterval)
	}
	if c.SaveInterval <= 0 {
		return fmt.Errorf("HOTELIER_SAVE_INTERVAL must be > 0, got %v", c.SaveInterval)
	}

	if _, err := regexp.Compile(c.UsernamePattern); err != nil {
		return fmt.Errorf("HOTELIER_USERNAME_PATTERN is not a valid regexp: %w", err)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.LogLevel)
	}
	validLogFormats := map[string]bool{"json": true, "text": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, text, pretty (got: %s)", c.LogFormat)
	}

	return nil
}

// LogConfig logs configuration using structured logging
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("addr", c.Addr).
		Str("metrics_addr", c.MetricsAddr).
		Str("multicast_addr", c.MulticastAddr).
		Int("max_connections", c.MaxConnections).
		Int("worker_count", c.WorkerCount).
		Int("worker_queue", c.WorkerQueue).
		Float64("accept_rate", c.AcceptRate).
		Int("accept_burst", c.AcceptBurst).
		Float64("cpu_reject_threshold", c.CPURejectThreshold).
		Int("max_message_size", c.MaxMessageSize).
		Dur("rank_interval", c.RankInterval).
		Dur("save_interval", c.SaveInterval).
		Float64("time_decay", c.TimeDecay).
		Float64("exp_multiplier", c.ExpMultiplier).
		Int("exp_increment", c.ExpIncrement).
		Int("max_batch_size", c.MaxBatchSize).
		Int("max_dump", c.MaxDump).
		Str("hotels_file", c.HotelsFile).
		Str("users_file", c.UsersFile).
		Str("reviews_file", c.ReviewsFile).
		Bool("force_revs_init", c.ForceRevsInit).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("Server configuration loaded")
}
