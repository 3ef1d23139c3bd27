package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Log         struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stdout" validate:"required"`
		TimeFormat string `yaml:"time_format"`
		Collector  struct {
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100" validate:"gte=1"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Server struct {
		Enabled         bool          `yaml:"enabled" default:"true"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
		CORS            bool          `yaml:"cors"`
		TriggerBurst    int           `yaml:"trigger_burst" default:"3" validate:"gte=0"`
		TriggerInterval time.Duration `yaml:"trigger_interval" default:"10m"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Paths struct {
		RawDir       string `yaml:"raw_dir" default:"data/raw" validate:"required"`
		ProcessedDir string `yaml:"processed_dir" default:"data/processed" validate:"required"`
		TrainingDir  string `yaml:"training_dir" default:"data/training" validate:"required"`
		ArchiveDir   string `yaml:"archive_dir"` // defaults to <raw_dir>/archive
	} `yaml:"paths"`
	Pipeline struct {
		HistoryStart string        `yaml:"history_start" default:"2005-01-01" validate:"required,datetime=2006-01-02"`
		Schedule     string        `yaml:"schedule" default:"0 17 * * THU" validate:"required"`
		Timezone     string        `yaml:"timezone" default:"America/Chicago" validate:"required"`
		LockKey      string        `yaml:"lock_key" default:"pipeline:run"`
		LockTTL      time.Duration `yaml:"lock_ttl" default:"30m"`
		RunTimeout   time.Duration `yaml:"run_timeout" default:"20m"`
		RunOnStart   bool          `yaml:"run_on_start"`
	} `yaml:"pipeline"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"dataset.ready"`
		LogTopic     string   `yaml:"log_topic" default:"energypull.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"energypull"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled   bool   `yaml:"enabled"`
		Addr      string `yaml:"addr" default:"localhost:6379"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix" default:"energypull"`
	} `yaml:"redis"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file. Missing keys take their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("ENERGYPULL_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("ENERGYPULL_RAW_DIR"); v != "" {
		c.Paths.RawDir = v
	}
	if v := os.Getenv("ENERGYPULL_PROCESSED_DIR"); v != "" {
		c.Paths.ProcessedDir = v
	}
	if v := os.Getenv("ENERGYPULL_TRAINING_DIR"); v != "" {
		c.Paths.TrainingDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.ClickHouse.Port = p
		}
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct tags and the rules that span several fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Pipeline.Timezone); err != nil {
		return fmt.Errorf("pipeline.timezone: %w", err)
	}
	if c.Pipeline.LockTTL <= 0 {
		return fmt.Errorf("pipeline.lock_ttl must be positive")
	}
	if c.Pipeline.RunTimeout > c.Pipeline.LockTTL {
		return fmt.Errorf("pipeline.run_timeout (%s) must not exceed pipeline.lock_ttl (%s)", c.Pipeline.RunTimeout, c.Pipeline.LockTTL)
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when kafka is enabled")
		}
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Database == "" {
		return fmt.Errorf("clickhouse.database is required when clickhouse is enabled")
	}
	return nil
}

// HistoryStart parses pipeline.history_start.
func (c *Config) HistoryStart() time.Time {
	t, _ := time.Parse("2006-01-02", c.Pipeline.HistoryStart)
	return t
}

// Location returns the scheduler time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Pipeline.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ArchiveRoot is the directory that receives dated archive folders.
func (c *Config) ArchiveRoot() string {
	if c.Paths.ArchiveDir != "" {
		return c.Paths.ArchiveDir
	}
	return filepath.Join(c.Paths.RawDir, "archive")
}
