// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Corpus, Index, Search, Rerank, Benchmark, Redis, Kafka, Postgres).
package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Corpus    CorpusConfig    `yaml:"corpus"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Benchmark BenchmarkConfig `yaml:"benchmark"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Postgres  PostgresConfig  `yaml:"postgres"`
}

// CorpusConfig points at the document collection and its auxiliary files.
type CorpusConfig struct {
	Dir          string `yaml:"dir"`
	TopicsFile   string `yaml:"topicsFile"`
	QrelsFile    string `yaml:"qrelsFile"`
	SynonymsFile string `yaml:"synonymsFile"`
	StopWordFile string `yaml:"stopWordFile"`
}

// IndexConfig controls the BSBI build: shard count, worker parallelism, and
// the in-memory run buffer threshold.
type IndexConfig struct {
	Dir        string `yaml:"dir"`
	NumShards  int    `yaml:"numShards"`
	NumWorkers int    `yaml:"numWorkers"`
	BlockMiB   int    `yaml:"blockMiB"`
}

// BlockBytes returns the run buffer spill threshold in bytes.
func (c IndexConfig) BlockBytes() int {
	return c.BlockMiB * 1024 * 1024
}

// SearchConfig controls query execution limits.
type SearchConfig struct {
	MaxRerankCandidates int  `yaml:"maxRerankCandidates"`
	UseReranking        bool `yaml:"useReranking"`
	CacheResults        bool `yaml:"cacheResults"`
}

// RerankConfig holds the cross-encoder model paths and batching parameters.
type RerankConfig struct {
	ModelPath  string `yaml:"modelPath"`
	VocabPath  string `yaml:"vocabPath"`
	BatchSize  int    `yaml:"batchSize"`
	MaxSeqLen  int    `yaml:"maxSeqLen"`
	MaxWords   int    `yaml:"maxWords"`
	ChunkSize  int    `yaml:"chunkSize"`
	QueueDepth int    `yaml:"queueDepth"`
}

// BenchmarkConfig controls where benchmark sweeps write their results.
type BenchmarkConfig struct {
	ResultsDir      string `yaml:"resultsDir"`
	Label           string `yaml:"label"`
	PersistPostgres bool   `yaml:"persistPostgres"`
	PublishEvents   bool   `yaml:"publishEvents"`
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

// RedisConfig holds Redis connection and caching parameters for the optional
// cross-query result cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings for query analytics.
type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"`
	AnalyticsEvents string   `yaml:"analyticsEvents"`
}

// PostgresConfig holds PostgreSQL connection parameters for the optional
// benchmark result store.
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

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if cfg.Index.NumWorkers <= 0 {
		cfg.Index.NumWorkers = runtime.NumCPU()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Dir:          "corpus",
			TopicsFile:   "topics.txt",
			QrelsFile:    "qrels.txt",
			SynonymsFile: "synonyms.txt",
		},
		Index: IndexConfig{
			Dir:        "index",
			NumShards:  64,
			NumWorkers: runtime.NumCPU(),
			BlockMiB:   256,
		},
		Search: SearchConfig{
			MaxRerankCandidates: 1024,
			UseReranking:        true,
		},
		Rerank: RerankConfig{
			ModelPath:  "models/cross-encoder.onnx",
			VocabPath:  "models/vocab.txt",
			BatchSize:  128,
			MaxSeqLen:  256,
			MaxWords:   256,
			ChunkSize:  256,
			QueueDepth: 256,
		},
		Benchmark: BenchmarkConfig{
			ResultsDir: "results",
			Label:      "default",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:         []string{"localhost:9092"},
			AnalyticsEvents: "query-analytics",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "cascade",
			User:            "cascade",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}
}

// applyEnvOverrides reads the documented environment variables and overrides
// the corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("INDEX_DIR"); v != "" {
		cfg.Index.Dir = v
	}
	if v := os.Getenv("RESULTS_DIR"); v != "" {
		cfg.Benchmark.ResultsDir = v
	}
	if v := os.Getenv("MODEL_PATH"); v != "" {
		cfg.Rerank.ModelPath = v
	}
	if v := os.Getenv("VOCAB_PATH"); v != "" {
		cfg.Rerank.VocabPath = v
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Index.NumShards <= 0 {
		return fmt.Errorf("index.numShards must be positive, got %d", c.Index.NumShards)
	}
	if c.Index.NumWorkers <= 0 {
		return fmt.Errorf("index.numWorkers must be positive, got %d", c.Index.NumWorkers)
	}
	if c.Index.BlockMiB <= 0 {
		return fmt.Errorf("index.blockMiB must be positive, got %d", c.Index.BlockMiB)
	}
	if c.Rerank.BatchSize <= 0 {
		return fmt.Errorf("rerank.batchSize must be positive, got %d", c.Rerank.BatchSize)
	}
	if c.Rerank.MaxSeqLen <= 0 {
		return fmt.Errorf("rerank.maxSeqLen must be positive, got %d", c.Rerank.MaxSeqLen)
	}
	if c.Search.MaxRerankCandidates < 0 {
		return fmt.Errorf("search.maxRerankCandidates must be non-negative, got %d", c.Search.MaxRerankCandidates)
	}
	return nil
}
