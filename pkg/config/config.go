package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"FinFusion/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required,oneof=development staging production test"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
		// Aggregated error logs are shipped to this Kafka topic when set.
		CollectorTopic string `yaml:"collector_topic"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORS            bool          `yaml:"cors" default:"true"`
		CORSOrigins     []string      `yaml:"cors_origins"`
		RateLimitRPS    float64       `yaml:"rate_limit_rps" default:"5"`
		RateLimitBurst  int           `yaml:"rate_limit_burst" default:"10"`
		SlowThreshold   time.Duration `yaml:"slow_threshold" default:"2s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Kafka struct {
		Enabled       bool     `yaml:"enabled" default:"false"`
		Brokers       []string `yaml:"brokers"`
		AnalysesTopic string   `yaml:"analyses_topic" default:"analyses.completed"`
		RequestsTopic string   `yaml:"requests_topic" default:"analyses.requested"`
		RequiredAcks  int      `yaml:"required_acks" default:"-1"`
		Compression   string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"200ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async" default:"false"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID     string        `yaml:"group_id" default:"finfusion"`
			Workers     int           `yaml:"workers" default:"2"`
			BufferSize  int           `yaml:"buffer_size" default:"16"`
			RetryMax    int           `yaml:"retry_max" default:"2"`
			BackoffMin  time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax  time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic    string        `yaml:"dlq_topic" default:"analyses.requested.dlq"`
			MinBytes    int           `yaml:"min_bytes" default:"1"`
			MaxBytes    int           `yaml:"max_bytes" default:"10000000"`
			OffsetReset string        `yaml:"auto_offset_reset" default:"latest" validate:"oneof=earliest latest"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"finfusion"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
		BarsTable        string        `yaml:"bars_table" default:"bars"`
		AnalysesTable    string        `yaml:"analyses_table" default:"final_analyses"`
	} `yaml:"clickhouse"`
	Postgres struct {
		Enabled  bool          `yaml:"enabled" default:"false"`
		DSN      string        `yaml:"dsn"`
		MaxConns int32         `yaml:"max_conns" default:"8"`
		Timeout  time.Duration `yaml:"timeout" default:"5s"`
		ConnLife time.Duration `yaml:"conn_lifetime" default:"30m"`
		ConnIdle time.Duration `yaml:"conn_idle" default:"5m"`
	} `yaml:"postgres"`
	Redis struct {
		Enabled  bool          `yaml:"enabled" default:"false"`
		Host     string        `yaml:"host" default:"localhost"`
		Port     int           `yaml:"port" default:"6379"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Prefix   string        `yaml:"prefix" default:"finfusion"`
		PoolSize int           `yaml:"pool_size" default:"10"`
		MinIdle  int           `yaml:"min_idle" default:"2"`
		PoolWait time.Duration `yaml:"pool_timeout" default:"4s"`
	} `yaml:"redis"`
	Cache struct {
		MemorySize       int           `yaml:"memory_size" default:"2000"`
		CleanupInterval  time.Duration `yaml:"cleanup_interval" default:"1m"`
		QuantTTL         time.Duration `yaml:"quant_ttl" default:"5m"`
		SentimentTTL     time.Duration `yaml:"sentiment_ttl" default:"10m"`
		FusionTTL        time.Duration `yaml:"fusion_ttl" default:"5m"`
		SentimentHistory time.Duration `yaml:"sentiment_history" default:"168h"`
	} `yaml:"cache"`
	Finnhub struct {
		Enabled    bool          `yaml:"enabled" default:"false"`
		APIKey     string        `yaml:"api_key"`
		BaseURL    string        `yaml:"base_url" default:"https://finnhub.io/api/v1"`
		Timeout    time.Duration `yaml:"timeout" default:"10s"`
		RPS        float64       `yaml:"rps" default:"1"`
		Burst      int           `yaml:"burst" default:"5"`
		NewsWindow time.Duration `yaml:"news_window" default:"72h"`
	} `yaml:"finnhub"`
	News struct {
		RSSEnabled  bool          `yaml:"rss_enabled" default:"false"`
		RSSURL      string        `yaml:"rss_url" default:"https://news.google.com/rss/search"`
		Language    string        `yaml:"language" default:"en-US"`
		Country     string        `yaml:"country" default:"US"`
		MaxArticles int           `yaml:"max_articles" default:"25"`
		Timeout     time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"news"`
	Mock struct {
		Enabled bool  `yaml:"enabled" default:"false"`
		Seed    int64 `yaml:"seed" default:"42"`
	} `yaml:"mock"`
	Reasoner struct {
		Enabled         bool          `yaml:"enabled" default:"false"`
		Provider        string        `yaml:"provider" default:"anthropic" validate:"oneof=anthropic openai"`
		APIKey          string        `yaml:"api_key"`
		BaseURL         string        `yaml:"base_url"`
		Model           string        `yaml:"model" default:"claude-3-5-sonnet-latest"`
		MaxTokens       int           `yaml:"max_tokens" default:"2000"`
		Timeout         time.Duration `yaml:"timeout" default:"45s"`
		CostPer1KTokens float64       `yaml:"cost_per_1k_tokens" default:"0.009"`
		BreakerFailures uint32        `yaml:"breaker_failures" default:"5"`
		BreakerCooldown time.Duration `yaml:"breaker_cooldown" default:"60s"`
	} `yaml:"reasoner"`
	Pipeline struct {
		Period             int           `yaml:"period" default:"250" validate:"gte=1"`
		ParallelFetch      bool          `yaml:"parallel_fetch" default:"true"`
		MaxRetries         int           `yaml:"max_retries" default:"2" validate:"gte=0,lte=5"`
		InitialTemperature float64       `yaml:"initial_temperature" default:"0.3" validate:"gte=0,lte=2"`
		TemperatureStep    float64       `yaml:"temperature_step" default:"0.2" validate:"gte=0,lte=1"`
		RetryDelay         time.Duration `yaml:"retry_delay" default:"1s"`
		BatchConcurrency   int           `yaml:"batch_concurrency" default:"4" validate:"gte=1"`
		Timeout            time.Duration `yaml:"timeout" default:"2m"`
	} `yaml:"pipeline"`
	Queue struct {
		Enabled       bool          `yaml:"enabled" default:"false"`
		Workers       int           `yaml:"workers" default:"2"`
		RetryLimit    int           `yaml:"retry_limit" default:"3"`
		RetryDelay    time.Duration `yaml:"retry_delay" default:"10s"`
		MaxRetryDelay time.Duration `yaml:"max_retry_delay" default:"5m"`
		Prefix        string        `yaml:"prefix" default:"finfusion:queue"`
	} `yaml:"queue"`
}

var validate = validator.New()

// Default returns a configuration with every default applied, suitable for
// tests and the offline CLI.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads an optional .env file, the YAML config, then applies
// environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides secrets and endpoints from the process environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
		c.Finnhub.Enabled = true
	}
	if v := os.Getenv("REASONER_API_KEY"); v != "" {
		c.Reasoner.APIKey = v
		c.Reasoner.Enabled = true
	}
	if v := os.Getenv("REASONER_MODEL"); v != "" {
		c.Reasoner.Model = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		host, port, _ := strings.Cut(v, ":")
		c.Redis.Host = host
		c.Redis.Port = util.ParseIntDefault(port, c.Redis.Port)
		c.Redis.Enabled = true
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
		c.Postgres.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
}

// Validate checks struct tags plus cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Finnhub.Enabled && c.Finnhub.APIKey == "" {
		return fmt.Errorf("finnhub.api_key is required when finnhub is enabled")
	}
	if c.Reasoner.Enabled && c.Reasoner.APIKey == "" {
		return fmt.Errorf("reasoner.api_key is required when reasoner is enabled")
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required when postgres is enabled")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue requires redis to be enabled")
	}
	return nil
}
