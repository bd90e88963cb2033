package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Log            LogConfig            `mapstructure:"log" yaml:"log"`
	Server         ServerConfig         `mapstructure:"server" yaml:"server"`
	Database       DatabaseConfig       `mapstructure:"database" yaml:"database"`
	Embedding      EmbeddingConfig      `mapstructure:"embedding" yaml:"embedding"`
	Classifier     ClassifierConfig     `mapstructure:"classifier" yaml:"classifier"`
	Reranker       RerankerConfig       `mapstructure:"reranker" yaml:"reranker"`
	Search         SearchConfig         `mapstructure:"search" yaml:"search"`
	Telemetry      TelemetryConfig      `mapstructure:"telemetry" yaml:"telemetry"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
	Alert          AlertConfig          `mapstructure:"alert" yaml:"alert"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json color"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	Mode string `mapstructure:"mode" yaml:"mode" validate:"oneof=debug release test"` // gin mode
}

// DatabaseConfig holds fact store connection settings
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver" yaml:"driver" validate:"oneof=neo4j ladybug"`
	URI          string `mapstructure:"uri" yaml:"uri" validate:"required"`
	Username     string `mapstructure:"username" yaml:"username"`
	Password     string `mapstructure:"password" yaml:"-"`
	Database     string `mapstructure:"database" yaml:"database"`
	QueryTimeout int    `mapstructure:"query_timeout" yaml:"query_timeout" validate:"min=0"` // in seconds
}

// EmbeddingConfig holds embedding provider settings
type EmbeddingConfig struct {
	Provider   string               `mapstructure:"provider" yaml:"provider" validate:"oneof=openai embedeverything"`
	Model      string               `mapstructure:"model" yaml:"model" validate:"required"`
	APIKey     string               `mapstructure:"api_key" yaml:"-"`
	BaseURL    string               `mapstructure:"base_url" yaml:"base_url"`
	Dimensions int                  `mapstructure:"dimensions" yaml:"dimensions" validate:"min=0"`
	Cache      EmbeddingCacheConfig `mapstructure:"cache" yaml:"cache"`
}

// EmbeddingCacheConfig controls the on-disk query embedding cache
type EmbeddingCacheConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
	TTL     int    `mapstructure:"ttl" yaml:"ttl" validate:"min=0"` // in seconds
}

// ClassifierConfig holds the LLM used for single-source relevance judgments
type ClassifierConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	Provider       string `mapstructure:"provider" yaml:"provider" validate:"oneof=openai anthropic"`
	Model          string `mapstructure:"model" yaml:"model"`
	APIKey         string `mapstructure:"api_key" yaml:"-"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
	MaxConcurrency int    `mapstructure:"max_concurrency" yaml:"max_concurrency" validate:"min=0"` // 0 is unbounded
	// MaxRetries retries rate limits and 5xx per judgment. 0 disables retry.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries" validate:"min=0,max=5"`
}

// RerankerConfig holds the external reranker. It is used only when APIKey is
// set, or when Provider is embedeverything. An empty Model selects the
// provider's default.
type RerankerConfig struct {
	Provider  string  `mapstructure:"provider" yaml:"provider" validate:"oneof=cohere embedeverything"`
	Model     string  `mapstructure:"model" yaml:"model"`
	APIKey    string  `mapstructure:"api_key" yaml:"-"`
	BaseURL   string  `mapstructure:"base_url" yaml:"base_url"`
	Threshold float64 `mapstructure:"threshold" yaml:"threshold" validate:"min=0"`
	Timeout   int     `mapstructure:"timeout" yaml:"timeout" validate:"min=0"` // in seconds
}

// Configured reports whether the external reranker should be used.
func (r RerankerConfig) Configured() bool {
	if r.Provider == "embedeverything" {
		return true
	}
	return r.APIKey != ""
}

// SearchConfig holds defaults applied to searches that do not set them
type SearchConfig struct {
	Strategy       string  `mapstructure:"strategy" yaml:"strategy" validate:"oneof=auto rrf"`
	DefaultLimit   int     `mapstructure:"default_limit" yaml:"default_limit" validate:"min=0,max=1000"`
	MaxBfsDepth    int     `mapstructure:"max_bfs_depth" yaml:"max_bfs_depth" validate:"min=0,max=10"`
	ScoreThreshold float64 `mapstructure:"score_threshold" yaml:"score_threshold" validate:"min=0,max=1"`
	MinResults     int     `mapstructure:"min_results" yaml:"min_results" validate:"min=0"`
	QueueSize      int     `mapstructure:"queue_size" yaml:"queue_size" validate:"min=0"`
}

// TelemetryConfig holds recall-log sink settings. Every configured sink
// receives every record.
type TelemetryConfig struct {
	ParquetPath   string            `mapstructure:"parquet_path" yaml:"parquet_path"`
	FlushSize     int               `mapstructure:"flush_size" yaml:"flush_size" validate:"min=0"`
	DbDriver      string            `mapstructure:"db_driver" yaml:"db_driver" validate:"omitempty,oneof=mysql postgres sqlite"`
	DbURL         string            `mapstructure:"db_url" yaml:"-"`
	PostHogAPIKey string            `mapstructure:"posthog_api_key" yaml:"-"`
	PostHogHost   string            `mapstructure:"posthog_host" yaml:"posthog_host"`
	ObjectStore   ObjectStoreConfig `mapstructure:"object_store" yaml:"object_store"`
}

// ObjectStoreConfig holds the S3-compatible bucket flushed parquet files are shipped to
type ObjectStoreConfig struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"-"`
	SecretKey string `mapstructure:"secret_key" yaml:"-"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket" validate:"required_with=Endpoint"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled" yaml:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests" yaml:"max_requests"`
	MinRequests      uint32  `mapstructure:"min_requests" yaml:"min_requests"`
	Interval         int     `mapstructure:"interval" yaml:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout" yaml:"timeout"`   // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio" yaml:"ready_to_trip_ratio" validate:"min=0,max=1"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled         bool     `mapstructure:"enabled" yaml:"enabled"`
	SMTPHost        string   `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort        int      `mapstructure:"smtp_port" yaml:"smtp_port"`
	Username        string   `mapstructure:"username" yaml:"username"`
	Password        string   `mapstructure:"password" yaml:"-"`
	From            string   `mapstructure:"from" yaml:"from"`
	To              []string `mapstructure:"to" yaml:"to" validate:"required_if=Enabled true"`
	CooldownSeconds int      `mapstructure:"cooldown_seconds" yaml:"cooldown_seconds" validate:"min=0"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("invalid config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
	}
	return fmt.Errorf("invalid config: %w", err)
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")

	viper.SetDefault("database.driver", "neo4j")
	viper.SetDefault("database.uri", "bolt://localhost:7687")
	viper.SetDefault("database.username", "neo4j")
	viper.SetDefault("database.database", "neo4j")
	viper.SetDefault("database.query_timeout", 10)

	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.cache.enabled", false)
	viper.SetDefault("embedding.cache.ttl", 7*24*3600)

	viper.SetDefault("classifier.enabled", true)
	viper.SetDefault("classifier.provider", "openai")
	viper.SetDefault("classifier.model", "gpt-4o-mini")
	viper.SetDefault("classifier.max_retries", 0)

	viper.SetDefault("reranker.provider", "cohere")
	viper.SetDefault("reranker.base_url", "https://api.cohere.com/v2/rerank")
	viper.SetDefault("reranker.threshold", 0.3)
	viper.SetDefault("reranker.timeout", 10)

	viper.SetDefault("search.strategy", "auto")
	viper.SetDefault("search.default_limit", 10)
	viper.SetDefault("search.max_bfs_depth", 4)
	viper.SetDefault("search.score_threshold", 0.7)
	viper.SetDefault("search.min_results", 10)
	viper.SetDefault("search.queue_size", 256)

	viper.SetDefault("telemetry.flush_size", 100)
	viper.SetDefault("telemetry.posthog_host", "https://us.i.posthog.com")

	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.min_requests", 3)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	viper.SetDefault("alert.smtp_port", 587)
	viper.SetDefault("alert.cooldown_seconds", 900)

	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("telemetry.parquet_path", filepath.Join(home, ".recall", "telemetry"))
		viper.SetDefault("embedding.cache.dir", filepath.Join(home, ".recall", "embedding-cache"))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}
	if path := os.Getenv("LADYBUG_DB_PATH"); path != "" {
		config.Database.Driver = "ladybug"
		config.Database.URI = path
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if config.Embedding.APIKey == "" && config.Embedding.Provider == "openai" {
			config.Embedding.APIKey = apiKey
		}
		if config.Classifier.APIKey == "" && config.Classifier.Provider == "openai" {
			config.Classifier.APIKey = apiKey
		}
	}
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" && config.Classifier.Provider == "anthropic" && config.Classifier.APIKey == "" {
		config.Classifier.APIKey = apiKey
	}

	if config.Reranker.APIKey == "" {
		for _, name := range []string{"RERANKER_API_KEY", "COHERE_API_KEY"} {
			if apiKey := os.Getenv(name); apiKey != "" {
				config.Reranker.APIKey = apiKey
				break
			}
		}
	}

	if apiKey := os.Getenv("POSTHOG_API_KEY"); apiKey != "" {
		config.Telemetry.PostHogAPIKey = apiKey
	}
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
}
