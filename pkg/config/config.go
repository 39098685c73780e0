package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	InstanceID  string `yaml:"instance_id"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"1s"`
		AllowOrigins    []string      `yaml:"allow_origins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Backend struct {
		BaseURL  string        `yaml:"base_url" default:"http://localhost:4000"`
		Timeout  time.Duration `yaml:"timeout" default:"15s"`
		PageSize int           `yaml:"page_size" default:"10"`
	} `yaml:"backend"`
	Fred struct {
		APIKey         string        `yaml:"api_key"`
		SearchLimit    int           `yaml:"search_limit" default:"20"`
		FallbackSearch string        `yaml:"fallback_search" default:"economy"`
		CacheTTL       time.Duration `yaml:"cache_ttl" default:"10m"`
		SearchRPS      float64       `yaml:"search_rps" default:"5"`
		SearchBurst    float64       `yaml:"search_burst" default:"10"`
	} `yaml:"fred"`
	Query struct {
		Retry         int           `yaml:"retry" default:"3"`
		RetryDelay    time.Duration `yaml:"retry_delay" default:"1s"`
		MaxRetryDelay time.Duration `yaml:"max_retry_delay" default:"30s"`
		StaleTime     time.Duration `yaml:"stale_time" default:"30s"`
		Prefetch      int           `yaml:"prefetch_concurrency" default:"4"`
		MaxEntries    int           `yaml:"max_entries" default:"1000"`
	} `yaml:"query"`
	Cache struct {
		MemoryMaxSize   int           `yaml:"memory_max_size" default:"1000"`
		CleanupInterval time.Duration `yaml:"cleanup_interval" default:"5m"`
		MemoryTTL       time.Duration `yaml:"memory_ttl" default:"1m"`
		Redis           struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host" default:"localhost"`
			Port     int    `yaml:"port" default:"6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"chartdash"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		EventsTopic  string   `yaml:"events_topic" default:"chartdash.chart-events"`
		LogsTopic    string   `yaml:"logs_topic" default:"chartdash.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupPrefix string        `yaml:"group_prefix" default:"chartdash"`
			Workers     int           `yaml:"workers" default:"1"`
			BufferSize  int           `yaml:"buffer_size" default:"16"`
			RetryMax    int           `yaml:"retry_max" default:"3"`
			BackoffMin  time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax  time.Duration `yaml:"backoff_max" default:"2s"`
		} `yaml:"consumer"`
		LogFlush struct {
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100"`
		} `yaml:"log_flush"`
	} `yaml:"kafka"`
}

// Default returns a configuration populated only with default values.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
// A missing file is not an error: defaults and environment are used instead.
func Load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A .env file in the working directory is honored when present.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv()
	if c.InstanceID == "" {
		c.InstanceID = newInstanceID()
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("API_BASE_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("FRED_API_KEY"); v != "" {
		c.Fred.APIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Cache.Redis.Host = host
		if ok {
			fmt.Sscanf(port, "%d", &c.Cache.Redis.Port)
		}
		c.Cache.Redis.Enabled = true
	}
	if v := os.Getenv("INSTANCE_ID"); v != "" {
		c.InstanceID = v
	}
}

// newInstanceID names this process in chart events and its consumer group.
func newInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "chartdash"
	}
	return host + "-" + uuid.NewString()[:8]
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL, got '%s'", c.Backend.BaseURL)
	}
	if c.Fred.APIKey == "" {
		return fmt.Errorf("fred.api_key is required")
	}
	if c.Backend.PageSize <= 0 {
		return fmt.Errorf("backend.page_size must be positive")
	}
	if c.Query.Retry < 0 {
		return fmt.Errorf("query.retry cannot be negative")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}
