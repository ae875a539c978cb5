// Package ragcore wires the ingestion and retrieval stack into an embeddable
// client. The surrounding application calls Ingest on document save, Delete on
// document deletion, and Search as an agent tool; background workers drain the
// ingest queue through StartWorker.
package ragcore

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/ragcore/internal/adapters/driven/ai"
	"github.com/custodia-labs/ragcore/internal/adapters/driven/pinecone"
	memoryqueue "github.com/custodia-labs/ragcore/internal/adapters/driven/queue/memory"
	redisqueue "github.com/custodia-labs/ragcore/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/ragcore/internal/adapters/driven/redis"
	"github.com/custodia-labs/ragcore/internal/cache"
	"github.com/custodia-labs/ragcore/internal/chunking"
	"github.com/custodia-labs/ragcore/internal/config"
	"github.com/custodia-labs/ragcore/internal/core/domain"
	"github.com/custodia-labs/ragcore/internal/core/ports/driven"
	"github.com/custodia-labs/ragcore/internal/core/ports/driving"
	"github.com/custodia-labs/ragcore/internal/core/services"
	"github.com/custodia-labs/ragcore/internal/worker"
)

// Re-exported contract types. Callers build descriptors and requests from
// these without importing internal packages.
type (
	Config             = config.Config
	DocumentDescriptor = domain.DocumentDescriptor
	QueryRequest       = domain.QueryRequest
	QueryResult        = domain.QueryResult
	ScoredMatch        = domain.ScoredMatch
	MatchPreview       = domain.MatchPreview
	Metadata           = domain.Metadata
	IndexStats         = domain.IndexStats
)

// LoadConfig reads configuration from the environment (and a .env file in
// development).
func LoadConfig() (*Config, error) {
	return config.Load()
}

// Client is the assembled ingestion and retrieval stack.
type Client struct {
	ingestor driving.Ingestor
	searcher driving.Searcher
	store    *pinecone.Store
	queue    driven.TaskQueue
	worker   *worker.Worker
	redis    *redis.Client
	logger   *slog.Logger
}

// New builds a client from configuration. When the config names an index
// instead of a host, the index is provisioned (created if absent) through the
// control plane first. Reranking and topic segmentation are enabled only when
// their provider keys are configured; without Redis the task queue and query
// cache run in-process.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Embedding client
	embedder, err := ai.NewVoyageEmbedding(cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	// Vector index, provisioned if the config names one instead of a host
	host := cfg.VectorStoreHost
	if host == "" {
		provCfg := pinecone.DefaultProvisionerConfig(cfg.VectorStoreAPIKey)
		if cfg.VectorStoreControlURL != "" {
			provCfg.ControlURL = cfg.VectorStoreControlURL
		}
		provisioner, err := pinecone.NewProvisioner(provCfg, logger)
		if err != nil {
			return nil, err
		}
		host, err = provisioner.EnsureIndex(ctx, cfg.VectorStoreIndexName, embedder.Dimensions())
		if err != nil {
			return nil, fmt.Errorf("failed to provision index: %w", err)
		}
	}

	store, err := pinecone.NewStore(pinecone.DefaultConfig(host, cfg.VectorStoreAPIKey), embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	// Redis backs the queue and query cache when configured
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
	}

	var taskQueue driven.TaskQueue
	var queryCache driven.QueryCache
	if redisClient != nil {
		taskQueue, err = redisqueue.NewQueue(redisClient, fmt.Sprintf("worker-%d", os.Getpid()))
		if err != nil {
			return nil, fmt.Errorf("failed to create task queue: %w", err)
		}
		queryCache = redisadapter.NewQueryCache(redisClient, logger)
	} else {
		taskQueue = memoryqueue.NewQueue(cfg.QueueCapacity)
		queryCache = cache.NewMemory()
	}

	// Optional providers
	var reranker driven.Reranker
	if cfg.RerankEnabled() {
		r, err := ai.NewCohereReranker(cfg.RerankAPIKey, cfg.RerankModel, cfg.RerankBaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create reranker: %w", err)
		}
		reranker = r
	}

	var segmenter driven.TopicSegmenter
	if cfg.SegmenterEnabled() {
		seg, err := ai.NewOpenAISegmenter(cfg.SegmenterAPIKey, cfg.SegmenterModel, cfg.SegmenterBaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create topic segmenter: %w", err)
		}
		segmenter = seg
	}

	pipeline := services.NewSyncPipeline(services.SyncPipelineConfig{
		Store:   store,
		Chunker: chunking.NewEngine(segmenter, logger),
		Logger:  logger,
	})

	searcher := services.NewRetrievalService(services.RetrievalConfig{
		Store:       store,
		Reranker:    reranker,
		Cache:       queryCache,
		Logger:      logger,
		MinScore:    cfg.MinScore,
		CacheTTL:    cfg.CacheTTL,
		DefaultTopK: cfg.DefaultTopK,
	})

	return &Client{
		ingestor: services.NewIngestService(taskQueue, logger),
		searcher: searcher,
		store:    store,
		queue:    taskQueue,
		redis:    redisClient,
		logger:   logger,
		worker: worker.NewWorker(worker.WorkerConfig{
			TaskQueue:      taskQueue,
			Pipeline:       pipeline,
			Logger:         logger,
			Concurrency:    cfg.WorkerConcurrency,
			DequeueTimeout: cfg.DequeueTimeout,
		}),
	}, nil
}

// Ingest enqueues a document snapshot for indexing.
func (c *Client) Ingest(ctx context.Context, doc *DocumentDescriptor) error {
	return c.ingestor.Ingest(ctx, doc)
}

// Delete enqueues removal of a document's chunks from the index.
func (c *Client) Delete(ctx context.Context, documentID, namespace string) error {
	return c.ingestor.Delete(ctx, documentID, namespace)
}

// Search runs the retrieval flow. Failures come back as a result with
// Success false, never as a Go error.
func (c *Client) Search(ctx context.Context, req *QueryRequest) *QueryResult {
	return c.searcher.Search(ctx, req)
}

// StartWorker starts the background ingest workers. At least one process must
// run them or enqueued documents are never indexed.
func (c *Client) StartWorker(ctx context.Context) error {
	return c.worker.Start(ctx)
}

// StopWorker stops the ingest workers, waiting for in-flight tasks.
func (c *Client) StopWorker() {
	c.worker.Stop()
}

// HealthCheck verifies the vector store and queue are reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.store.HealthCheck(ctx); err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	if err := c.queue.Ping(ctx); err != nil {
		return fmt.Errorf("task queue: %w", err)
	}
	return nil
}

// Stats returns index dimension and per-namespace vector counts.
func (c *Client) Stats(ctx context.Context) (*IndexStats, error) {
	return c.store.Stats(ctx)
}

// Close stops the workers and releases queue and Redis resources.
func (c *Client) Close() error {
	c.worker.Stop()
	if err := c.queue.Close(); err != nil {
		return err
	}
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}
