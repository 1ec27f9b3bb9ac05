// Package config loads host configuration for sanesearch processes from YAML
// files with environment-variable overrides. The library itself never reads
// configuration; only hosts such as cmd/sanesearch do.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level host configuration.
type Config struct {
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// IndexConfig describes the index location, the write budget and the schema
// a host creates indexes with.
type IndexConfig struct {
	Path           string        `yaml:"path"`
	HeapSizeBytes  int           `yaml:"heapSizeBytes"`
	CommitEvery    int           `yaml:"commitEvery"`
	CommitInterval time.Duration `yaml:"commitInterval"`
	DefaultFields  []string      `yaml:"defaultFields"`
	Fields         []FieldConfig `yaml:"fields"`
}

// FieldConfig declares one schema field. Type is "text" or "facet".
type FieldConfig struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Options   []string `yaml:"options"`
	Tokenizer string   `yaml:"tokenizer"`
}

// SearchConfig controls the optional simple-search result cache.
type SearchConfig struct {
	CacheEnabled bool          `yaml:"cacheEnabled"`
	CacheTTL     time.Duration `yaml:"cacheTTL"`
}

// ServerConfig controls the HTTP surface of "sanesearch serve". RateLimit
// is requests per minute per client address; zero disables limiting.
// IngestMode "direct" writes POSTed documents into the served index;
// "kafka" queues them on kafka.topics.documentIngest for a consumer.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	IngestMode     string        `yaml:"ingestMode"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	RateLimit      int           `yaml:"rateLimit"`
	CORSOrigins    []string      `yaml:"corsOrigins"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// KafkaConfig holds broker and topic settings for the ingestion feeder.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Compression   string      `yaml:"compression"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to Kafka topic strings.
type KafkaTopics struct {
	DocumentIngest string `yaml:"documentIngest"`
	Analytics      string `yaml:"analytics"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// AnalyticsConfig controls search event recording. Sink is "postgres" or
// "kafka"; the kafka sink publishes to kafka.topics.analytics.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Sink             string        `yaml:"sink"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the schema declaration and numeric limits.
func (c *Config) Validate() error {
	if c.Index.Path == "" {
		return fmt.Errorf("index.path is required")
	}
	if c.Index.HeapSizeBytes <= 0 {
		return fmt.Errorf("index.heapSizeBytes must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	switch c.Server.IngestMode {
	case "direct", "kafka":
	default:
		return fmt.Errorf("server.ingestMode: unknown mode %q", c.Server.IngestMode)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rateLimit must not be negative")
	}
	switch c.Kafka.Compression {
	case "", "none", "gzip", "snappy", "lz4", "zstd":
	default:
		return fmt.Errorf("kafka.compression: unknown codec %q", c.Kafka.Compression)
	}
	switch c.Analytics.Sink {
	case "postgres", "kafka":
	default:
		return fmt.Errorf("analytics.sink: unknown sink %q", c.Analytics.Sink)
	}
	names := make(map[string]struct{}, len(c.Index.Fields))
	for i, f := range c.Index.Fields {
		if f.Name == "" {
			return fmt.Errorf("index.fields[%d]: name is required", i)
		}
		switch f.Type {
		case "text", "facet":
		default:
			return fmt.Errorf("index.fields[%d]: unknown type %q", i, f.Type)
		}
		names[f.Name] = struct{}{}
	}
	for _, name := range c.Index.DefaultFields {
		if _, ok := names[name]; !ok {
			return fmt.Errorf("index.defaultFields: %q is not a declared field", name)
		}
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Path:           "data/index",
			HeapSizeBytes:  50_000_000,
			CommitEvery:    1000,
			CommitInterval: 5 * time.Second,
		},
		Search: SearchConfig{
			CacheEnabled: false,
			CacheTTL:     60 * time.Second,
		},
		Server: ServerConfig{
			Port:           8080,
			IngestMode:     "direct",
			RequestTimeout: 10 * time.Second,
			RateLimit:      600,
			CORSOrigins:    []string{"*"},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "sanesearch-indexer",
			Compression:   "snappy",
			Topics: KafkaTopics{
				DocumentIngest: "document-ingest",
				Analytics:      "search-analytics",
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "sanesearch",
			User:            "sanesearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Analytics: AnalyticsConfig{
			Sink:             "postgres",
			BatchSize:        100,
			FlushInterval:    5 * time.Second,
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_INDEX_PATH"); v != "" {
		cfg.Index.Path = v
	}
	if v := os.Getenv("SP_INDEX_HEAP_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.HeapSizeBytes = n
		}
	}
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SP_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
