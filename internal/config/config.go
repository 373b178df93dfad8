// Package config loads and validates the pipeline's YAML configuration file,
// with an environment-variable overlay for the settings operators most
// commonly need to override per-deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	validator "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Tier gates which stages beyond ingest a run executes.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// ServerConfig configures the observability HTTP surface (/healthz, /metrics).
type ServerConfig struct {
	MetricsPort string `yaml:"metrics_port"`
}

// PipelineConfig holds the run-level tier and selection bound.
type PipelineConfig struct {
	Tier           Tier `yaml:"tier"`
	MaxSelectEntries int `yaml:"max_select_entries"`
	RunDeadline    time.Duration `yaml:"run_deadline"`
	AbandonedRunAfter time.Duration `yaml:"abandoned_run_after"`
}

// FetcherConfig configures the bounded-concurrency HTTP fetch stage.
type FetcherConfig struct {
	MaxConcurrentFetches int           `yaml:"max_concurrent_fetches"`
	PerDomainConcurrency int           `yaml:"per_domain_concurrency"`
	FetchTimeout         time.Duration `yaml:"fetch_timeout_seconds"`
	RequestDelay         time.Duration `yaml:"request_delay_seconds"`
	CircuitFailureThreshold uint32     `yaml:"circuit_failure_threshold"`
	CircuitOpenDuration  time.Duration `yaml:"circuit_open_duration"`
	MaxRetries           int           `yaml:"max_retries"`
	PlaywrightEnabled    bool          `yaml:"playwright_enabled"`
	BrowserEndpoint      string        `yaml:"browser_endpoint"`
}

// ExtractorConfig configures the extraction cascade's acceptance threshold.
type ExtractorConfig struct {
	MinContentLength int `yaml:"min_content_length"`
}

// DedupeConfig configures exact and near-duplicate detection.
type DedupeConfig struct {
	MinHashThreshold float64 `yaml:"minhash_threshold"`
	ShingleSize      int     `yaml:"shingle_size"`
	NumHashes        int     `yaml:"num_hashes"`
}

// EmbeddingConfig configures the embedder and its backing vector store.
type EmbeddingConfig struct {
	Service   string `yaml:"service"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// ClusterConfig configures the per-flashpoint kNN graph and component sizing.
type ClusterConfig struct {
	KNNK             int     `yaml:"knn_k"`
	CosineThreshold  float64 `yaml:"cosine_threshold"`
}

// SummarizerConfig configures the two-stage summarization pipeline.
type SummarizerConfig struct {
	LocalWorkers      int           `yaml:"local_summarizer_workers"`
	OracleMaxRetries  int           `yaml:"oracle_max_retries"`
	OracleTimeout     time.Duration `yaml:"oracle_timeout"`
	PremiumPassFraction float64     `yaml:"premium_pass_fraction"`
}

// OracleConfig configures the external summarizer oracle provider.
type OracleConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	PremiumModel string `yaml:"premium_model"`
	APIKey      string `yaml:"api_key"`
	Region      string `yaml:"region"`
	MaxTokens   int    `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
}

// ScorerConfig configures the hotspot-score weights and top-K flagging.
type ScorerConfig struct {
	WeightMemberCount   float64 `yaml:"weight_member_count"`
	WeightDomainDiversity float64 `yaml:"weight_domain_diversity"`
	WeightLangDiversity float64 `yaml:"weight_language_diversity"`
	WeightBurstiness    float64 `yaml:"weight_burstiness"`
	TopK                int     `yaml:"top_k"`
}

// StorageConfig configures the Postgres connection pool.
type StorageConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig configures the Redis-backed content-addressed vector cache.
type CacheConfig struct {
	Addr    string        `yaml:"addr"`
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// AlertConfig configures the flagged-cluster alert dispatcher.
type AlertConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SlackWebhookURL string `yaml:"slack_webhook_url"`
}

// LoggingConfig configures the logrus-backed structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TopicConfig configures the optional topic-classification enricher.
type TopicConfig struct {
	Enabled bool `yaml:"enabled"`
}

// CompressionConfig configures the optional compressed_content write-back
// transform. Disabled leaves the column null.
type CompressionConfig struct {
	Enabled bool `yaml:"enabled"`
	Level   int  `yaml:"level"`
}

// NERConfig configures the multilingual NER tagger sidecar. An empty
// endpoint disables tagging: the enrich stage then leaves entities and
// geo_entities empty rather than failing the entry.
type NERConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Config is the root configuration object, loaded once at run start and
// threaded through every stage as an explicit value.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Fetcher    FetcherConfig    `yaml:"fetcher"`
	Extractor  ExtractorConfig  `yaml:"extractor"`
	Dedupe     DedupeConfig     `yaml:"dedupe"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Cluster    ClusterConfig    `yaml:"cluster"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Oracle     OracleConfig     `yaml:"oracle"`
	Scorer     ScorerConfig     `yaml:"scorer"`
	Storage    StorageConfig    `yaml:"storage"`
	Cache      CacheConfig      `yaml:"cache"`
	Alert      AlertConfig      `yaml:"alert"`
	Logging    LoggingConfig    `yaml:"logging"`
	Topic       TopicConfig       `yaml:"topic"`
	NER         NERConfig         `yaml:"ner"`
	Compression CompressionConfig `yaml:"compression"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{MetricsPort: "9090"},
		Pipeline: PipelineConfig{
			Tier:              TierB,
			MaxSelectEntries:  10000,
			RunDeadline:       4 * time.Hour,
			AbandonedRunAfter: 2 * time.Hour,
		},
		Fetcher: FetcherConfig{
			MaxConcurrentFetches:    50,
			PerDomainConcurrency:    3,
			FetchTimeout:            30 * time.Second,
			RequestDelay:            0,
			CircuitFailureThreshold: 5,
			CircuitOpenDuration:     5 * time.Minute,
			MaxRetries:              4,
		},
		Extractor: ExtractorConfig{MinContentLength: 250},
		Dedupe: DedupeConfig{
			MinHashThreshold: 0.8,
			ShingleSize:      5,
			NumHashes:        128,
		},
		Embedding: EmbeddingConfig{
			Service:   "local",
			Dimension: 384,
			BatchSize: 64,
		},
		Cluster: ClusterConfig{KNNK: 10, CosineThreshold: 0.65},
		Summarizer: SummarizerConfig{
			LocalWorkers:        8,
			OracleMaxRetries:    3,
			OracleTimeout:       60 * time.Second,
			PremiumPassFraction: 0.1,
		},
		Oracle: OracleConfig{
			Provider:    "anthropic",
			Model:       "claude-3-haiku-20240307",
			PremiumModel: "claude-3-5-sonnet-20240620",
			MaxTokens:   500,
			Temperature: 0.3,
		},
		Scorer: ScorerConfig{
			WeightMemberCount:     0.4,
			WeightDomainDiversity: 0.25,
			WeightLangDiversity:   0.15,
			WeightBurstiness:      0.2,
			TopK:                  10,
		},
		Storage: StorageConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Cache:   CacheConfig{TTL: 7 * 24 * time.Hour},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		NER:     NERConfig{Timeout: 10 * time.Second},
	}
}

// Load reads, parses, and validates the configuration at path, applying an
// environment-variable overlay before validation.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overlay: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

var validate10 = validator.New()

func validate(cfg *Config) error {
	switch cfg.Pipeline.Tier {
	case TierA, TierB, TierC:
	default:
		return fmt.Errorf("unsupported pipeline tier: %q", cfg.Pipeline.Tier)
	}

	if cfg.Fetcher.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("max concurrent fetches must be greater than 0")
	}
	if cfg.Fetcher.PerDomainConcurrency <= 0 {
		return fmt.Errorf("per domain concurrency must be greater than 0")
	}
	if cfg.Extractor.MinContentLength <= 0 {
		return fmt.Errorf("min content length must be greater than 0")
	}
	if cfg.Dedupe.MinHashThreshold < 0 || cfg.Dedupe.MinHashThreshold > 1 {
		return fmt.Errorf("minhash threshold must be between 0.0 and 1.0")
	}
	if cfg.Cluster.CosineThreshold < 0 || cfg.Cluster.CosineThreshold > 1 {
		return fmt.Errorf("cluster cosine threshold must be between 0.0 and 1.0")
	}
	if cfg.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be greater than 0")
	}
	if cfg.Oracle.Temperature < 0 || cfg.Oracle.Temperature > 1 {
		return fmt.Errorf("oracle temperature must be between 0.0 and 1.0")
	}
	if cfg.Pipeline.Tier == TierC {
		if cfg.Oracle.Model == "" {
			return fmt.Errorf("oracle model is required for tier C")
		}
	}
	if err := validate10.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("PIPELINE_TIER"); v != "" {
		cfg.Pipeline.Tier = Tier(v)
	}
	if v := os.Getenv("MAX_CONCURRENT_FETCHES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MAX_CONCURRENT_FETCHES: %w", err)
		}
		cfg.Fetcher.MaxConcurrentFetches = n
	}
	if v := os.Getenv("PER_DOMAIN_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PER_DOMAIN_CONCURRENCY: %w", err)
		}
		cfg.Fetcher.PerDomainConcurrency = n
	}
	if v := os.Getenv("FETCH_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FETCH_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Fetcher.FetchTimeout = time.Duration(n) * time.Second
	}
	if v := os.Getenv("REQUEST_DELAY_SECONDS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid REQUEST_DELAY_SECONDS: %w", err)
		}
		cfg.Fetcher.RequestDelay = time.Duration(f * float64(time.Second))
	}
	if v := os.Getenv("MIN_CONTENT_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MIN_CONTENT_LENGTH: %w", err)
		}
		cfg.Extractor.MinContentLength = n
	}
	if v := os.Getenv("MINHASH_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid MINHASH_THRESHOLD: %w", err)
		}
		cfg.Dedupe.MinHashThreshold = f
	}
	if v := os.Getenv("CLUSTER_COSINE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid CLUSTER_COSINE_THRESHOLD: %w", err)
		}
		cfg.Cluster.CosineThreshold = f
	}
	if v := os.Getenv("CLUSTER_KNN_K"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CLUSTER_KNN_K: %w", err)
		}
		cfg.Cluster.KNNK = n
	}
	if v := os.Getenv("EMBEDDING_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid EMBEDDING_BATCH_SIZE: %w", err)
		}
		cfg.Embedding.BatchSize = n
	}
	if v := os.Getenv("LOCAL_SUMMARIZER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LOCAL_SUMMARIZER_WORKERS: %w", err)
		}
		cfg.Summarizer.LocalWorkers = n
	}
	if v := os.Getenv("PLAYWRIGHT_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid PLAYWRIGHT_ENABLED: %w", err)
		}
		cfg.Fetcher.PlaywrightEnabled = b
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		cfg.Server.MetricsPort = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ORACLE_API_KEY"); v != "" {
		cfg.Oracle.APIKey = v
	}
	if v := os.Getenv("STORAGE_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("TOPIC_CLASSIFICATION_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TOPIC_CLASSIFICATION_ENABLED: %w", err)
		}
		cfg.Topic.Enabled = b
	}
	if v := os.Getenv("NER_ENDPOINT"); v != "" {
		cfg.NER.Endpoint = v
	}
	if v := os.Getenv("PLAYWRIGHT_ENDPOINT"); v != "" {
		cfg.Fetcher.BrowserEndpoint = v
	}
	return nil
}
