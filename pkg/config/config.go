package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	AI         AIConfig
	Index      IndexConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	Processing ProcessingConfig
	Metrics    MetricsConfig
	Logging    LoggingConfig
}

type AIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	EmbeddingDim   int
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
}

type IndexConfig struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
	BatchSize      int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLHours int
}

type ProcessingConfig struct {
	DefaultMethod string
	MaxChunkSize  int
	DocumentType  string
	PolicyGroups  []string
	WatchDir      string
}

type MetricsConfig struct {
	Enabled bool
	Addr    string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/docindexer")

	viper.SetEnvPrefix("DOCIDX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Validate rejects unusable configuration before any clients are built.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.AI.APIKey) == "" {
		errs = append(errs, errors.New("ai.apiKey is required"))
	}
	if strings.TrimSpace(c.Index.Endpoint) == "" {
		errs = append(errs, errors.New("index.endpoint is required"))
	}
	if c.AI.EmbeddingDim <= 0 {
		errs = append(errs, errors.New("ai.embeddingDim must be positive"))
	}
	if c.Processing.MaxChunkSize <= 0 {
		errs = append(errs, errors.New("processing.maxChunkSize must be positive"))
	}
	return errors.Join(errs...)
}

func setDefaults() {
	viper.SetDefault("ai.model", "gpt-4o-mini")
	viper.SetDefault("ai.temperature", 0.1)
	viper.SetDefault("ai.maxTokens", 800)
	viper.SetDefault("ai.timeoutSec", 45)
	viper.SetDefault("ai.embeddingModel", "text-embedding-ada-002")
	viper.SetDefault("ai.embeddingDim", 1536)

	viper.SetDefault("index.endpoint", "localhost:19530")
	viper.SetDefault("index.collectionName", "document_chunks")
	viper.SetDefault("index.vectorDim", 1536)
	viper.SetDefault("index.batchSize", 100)

	viper.SetDefault("sqlite.path", "./data/docindexer.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlHours", 24)

	viper.SetDefault("processing.defaultMethod", "intelligent")
	viper.SetDefault("processing.maxChunkSize", 2000)
	viper.SetDefault("processing.documentType", "legal")
	viper.SetDefault("processing.policyGroups", []string{"legal-team", "compliance"})
	viper.SetDefault("processing.watchDir", "./inbox")

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.addr", ":9090")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
