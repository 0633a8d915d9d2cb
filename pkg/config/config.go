package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"CoinCast/pkg/util"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development"`
	Server      ServerConfig     `yaml:"server"`
	Log         LogConfig        `yaml:"log"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Source      SourceConfig     `yaml:"source"`
	Polling     PollingConfig    `yaml:"polling"`
	Alignment   AlignmentConfig  `yaml:"alignment"`
	Prediction  PredictionConfig `yaml:"prediction"`
	Refresh     RefreshConfig    `yaml:"refresh"`
	Archive     ArchiveConfig    `yaml:"archive"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	SQLite      SQLiteConfig     `yaml:"sqlite"`
	Redis       RedisConfig      `yaml:"redis"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	CORS            bool          `yaml:"cors" default:"true"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"`
	Output string `yaml:"output" default:"stdout"`
	// Collect ships aggregated error logs to kafka.topics.logs.
	Collect bool `yaml:"collect"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// SourceConfig points at the CoinGecko REST API.
type SourceConfig struct {
	BaseURL    string        `yaml:"base_url" default:"https://api.coingecko.com/api/v3"`
	APIKey     string        `yaml:"api_key"`
	CoinID     string        `yaml:"coin_id" default:"bitcoin"`
	VsCurrency string        `yaml:"vs_currency" default:"usd"`
	Days       int           `yaml:"days" default:"1"`
	CandleTail int           `yaml:"candle_tail" default:"10"`
	Timeout    time.Duration `yaml:"timeout" default:"15s"`
}

type PollingConfig struct {
	CandleInterval         time.Duration `yaml:"candle_interval" default:"60s"`
	MetaInterval           time.Duration `yaml:"meta_interval" default:"60s"`
	BufferCapacity         int           `yaml:"buffer_capacity" default:"60"`
	MaxConsecutiveFailures int           `yaml:"max_consecutive_failures" default:"5"`
	// SkipSeen drops fetched records older than the newest buffered one.
	SkipSeen      bool          `yaml:"skip_seen"`
	MaxFutureSkew time.Duration `yaml:"max_future_skew" default:"10m"`
}

type AlignmentConfig struct {
	Tolerance  time.Duration `yaml:"tolerance" default:"2m"`
	FillPolicy string        `yaml:"fill_policy" default:"drop"`
}

type PredictionConfig struct {
	Enabled      bool          `yaml:"enabled" default:"true"`
	ModelURL     string        `yaml:"model_url" default:"http://localhost:8501"`
	ModelTimeout time.Duration `yaml:"model_timeout" default:"20s"`
	// ModelAttempts above 1 retries transient model errors inside one run.
	ModelAttempts int           `yaml:"model_attempts" default:"1"`
	ScalerPath    string        `yaml:"scaler_path" default:"models/scaler.json"`
	WindowLength  int           `yaml:"window_length" default:"48"`
	Features      []string      `yaml:"features" default:"[\"open\",\"high\",\"low\",\"close\",\"market_cap\"]"`
	Interval      time.Duration `yaml:"interval" default:"30m"`
}

type RefreshConfig struct {
	Schedule       string        `yaml:"schedule" default:"@every 30m"`
	ManualCooldown time.Duration `yaml:"manual_cooldown" default:"5m"`
	WSPushInterval time.Duration `yaml:"ws_push_interval" default:"30s"`
}

type ArchiveConfig struct {
	// Backend is one of none, clickhouse, sqlite, kafka.
	Backend string        `yaml:"backend" default:"none"`
	Timeout time.Duration `yaml:"timeout" default:"5s"`
}

type KafkaConfig struct {
	Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
	RequiredAcks int      `yaml:"required_acks" default:"1"`
	Compression  string   `yaml:"compression" default:"snappy"`
	Topics       struct {
		Rows        string `yaml:"rows" default:"coincast.rows"`
		Predictions string `yaml:"predictions" default:"coincast.predictions"`
		Logs        string `yaml:"logs" default:"coincast.logs"`
	} `yaml:"topics"`
	Producer struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"coincast-archiver"`
		Workers    int           `yaml:"workers" default:"2"`
		BufferSize int           `yaml:"buffer_size" default:"256"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic" default:"coincast.dlq"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
	// ConsumeToClickHouse drains the archive topics into ClickHouse in-process.
	ConsumeToClickHouse bool `yaml:"consume_to_clickhouse"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"coincast"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" default:"data/coincast.db"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr" default:"localhost:6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Key      string        `yaml:"key" default:"prediction_state"`
	TTL      time.Duration `yaml:"ttl" default:"24h"`
}

// Default returns a configuration populated only from struct defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Parse applies defaults, then overlays the YAML document, then validates.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment lookup function.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("COINGECKO_API_KEY"); v != "" {
		c.Source.APIKey = v
	}
	if v := getenv("COIN_ID"); v != "" {
		c.Source.CoinID = v
	}
	if v := getenv("VS_CURRENCY"); v != "" {
		c.Source.VsCurrency = v
	}
	if v := getenv("MODEL_URL"); v != "" {
		c.Prediction.ModelURL = v
	}
	if v := getenv("SCALER_PATH"); v != "" {
		c.Prediction.ScalerPath = v
	}
	if v := getenv("ARCHIVE_BACKEND"); v != "" {
		c.Archive.Backend = v
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitNonEmpty(v, ",")
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Source.BaseURL == "" || c.Source.CoinID == "" || c.Source.VsCurrency == "" {
		return fmt.Errorf("source.base_url, source.coin_id and source.vs_currency are required")
	}
	if c.Source.CandleTail < 1 {
		return fmt.Errorf("source.candle_tail must be positive, got %d", c.Source.CandleTail)
	}
	if c.Polling.CandleInterval <= 0 || c.Polling.MetaInterval <= 0 {
		return fmt.Errorf("polling intervals must be positive")
	}
	if c.Polling.BufferCapacity < 1 {
		return fmt.Errorf("polling.buffer_capacity must be positive, got %d", c.Polling.BufferCapacity)
	}
	if c.Alignment.Tolerance < 0 {
		return fmt.Errorf("alignment.tolerance cannot be negative")
	}
	switch strings.ToLower(c.Alignment.FillPolicy) {
	case "", "drop", "forward":
	default:
		return fmt.Errorf("alignment.fill_policy must be 'drop' or 'forward', got '%s'", c.Alignment.FillPolicy)
	}
	if c.Prediction.WindowLength < 1 {
		return fmt.Errorf("prediction.window_length must be positive, got %d", c.Prediction.WindowLength)
	}
	if len(c.Prediction.Features) == 0 {
		return fmt.Errorf("prediction.features cannot be empty")
	}
	if c.Prediction.Interval <= 0 {
		return fmt.Errorf("prediction.interval must be positive")
	}
	switch c.Archive.Backend {
	case "none", "clickhouse", "sqlite":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when archive.backend is kafka")
		}
	default:
		return fmt.Errorf("archive.backend must be one of none, clickhouse, sqlite, kafka, got '%s'", c.Archive.Backend)
	}
	if c.Log.Collect && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when log.collect is set")
	}
	return nil
}
