package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/ragcore"
)

var version = "dev"

func main() {
	log.Printf("ragcore %s starting", version)

	cfg, err := ragcore.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	client, err := ragcore.New(ctx, cfg, slog.Default())
	if err != nil {
		log.Fatalf("Failed to build client: %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(ctx); err != nil {
		log.Printf("Warning: health check failed: %v (indexing may not work)", err)
	} else if stats, err := client.Stats(ctx); err == nil {
		log.Printf("Vector index ready (dimension=%d, vectors=%d)", stats.Dimension, stats.TotalVectors)
	}

	if cfg.RedisURL != "" {
		log.Println("Using Redis task queue and query cache")
	} else {
		log.Println("Using in-process task queue and query cache (state does not survive restarts)")
	}

	if err := client.StartWorker(ctx); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Printf("Worker started (concurrency=%d), processing tasks...", cfg.WorkerConcurrency)
	log.Println("Worker handles:")
	log.Println("  - ingest_document: Chunk, embed, and index one document snapshot")
	log.Println("  - delete_document: Remove a document's chunks from the index")

	// Wait for context cancellation
	<-ctx.Done()

	// Graceful shutdown
	log.Println("Stopping worker...")
	client.StopWorker()
	log.Println("Worker stopped")
}
