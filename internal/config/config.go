package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from environment variables
// with an optional .env file for local development.
type Config struct {
	// Embedding provider
	EmbeddingAPIKey  string
	EmbeddingModel   string
	EmbeddingBaseURL string

	// Vector store. Host points at an existing index's data plane; when it is
	// empty, IndexName must be set and the index is provisioned (and its host
	// resolved) through the control plane at startup.
	VectorStoreHost       string
	VectorStoreAPIKey     string
	VectorStoreIndexName  string
	VectorStoreControlURL string

	// Reranking (optional; search degrades to similarity order without it)
	RerankAPIKey  string
	RerankModel   string
	RerankBaseURL string

	// Topic segmentation (optional; transcripts fall back to one segment)
	SegmenterAPIKey  string
	SegmenterModel   string
	SegmenterBaseURL string

	// Redis backs the task queue and query cache when set; otherwise both
	// run in-process.
	RedisURL string

	// Retrieval tuning
	MinScore    float64
	CacheTTL    time.Duration
	DefaultTopK int

	// Worker
	WorkerConcurrency int
	DequeueTimeout    int
	QueueCapacity     int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	// Ignore a missing .env; it only exists in development.
	_ = godotenv.Load()

	cfg := &Config{
		EmbeddingAPIKey:  os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "voyage-3"),
		EmbeddingBaseURL: os.Getenv("EMBEDDING_BASE_URL"),

		VectorStoreHost:       os.Getenv("VECTOR_STORE_HOST"),
		VectorStoreAPIKey:     os.Getenv("VECTOR_STORE_API_KEY"),
		VectorStoreIndexName:  os.Getenv("VECTOR_STORE_INDEX_NAME"),
		VectorStoreControlURL: os.Getenv("VECTOR_STORE_CONTROL_URL"),

		RerankAPIKey:  os.Getenv("RERANK_API_KEY"),
		RerankModel:   getEnv("RERANK_MODEL", "rerank-v3.5"),
		RerankBaseURL: os.Getenv("RERANK_BASE_URL"),

		SegmenterAPIKey:  os.Getenv("SEGMENTER_API_KEY"),
		SegmenterModel:   getEnv("SEGMENTER_MODEL", "gpt-4o-mini"),
		SegmenterBaseURL: os.Getenv("SEGMENTER_BASE_URL"),

		RedisURL: os.Getenv("REDIS_URL"),

		MinScore:    getEnvFloat("RAG_MIN_SCORE", 0.5),
		CacheTTL:    time.Duration(getEnvInt("RAG_CACHE_TTL_SEC", 300)) * time.Second,
		DefaultTopK: getEnvInt("RAG_DEFAULT_TOP_K", 5),

		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 2),
		DequeueTimeout:    getEnvInt("WORKER_DEQUEUE_TIMEOUT", 5),
		QueueCapacity:     getEnvInt("QUEUE_CAPACITY", 1024),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.EmbeddingAPIKey == "" {
		return fmt.Errorf("EMBEDDING_API_KEY is required")
	}
	if c.VectorStoreHost == "" && c.VectorStoreIndexName == "" {
		return fmt.Errorf("VECTOR_STORE_HOST or VECTOR_STORE_INDEX_NAME is required")
	}
	if c.VectorStoreAPIKey == "" {
		return fmt.Errorf("VECTOR_STORE_API_KEY is required")
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("RAG_MIN_SCORE must be in [0,1], got %f", c.MinScore)
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	return nil
}

// RerankEnabled reports whether a reranking provider is configured.
func (c *Config) RerankEnabled() bool {
	return c.RerankAPIKey != ""
}

// SegmenterEnabled reports whether a topic segmentation provider is configured.
func (c *Config) SegmenterEnabled() bool {
	return c.SegmenterAPIKey != ""
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
