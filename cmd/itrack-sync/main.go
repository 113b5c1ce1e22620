// Command itrack-sync consumes record changes published by itrack and applies
// them to a replica SQLite database.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/sadopc/itrack/internal/amqp"
	"github.com/sadopc/itrack/internal/config"
	log "github.com/sadopc/itrack/internal/log"
	"github.com/sadopc/itrack/internal/store"
	"github.com/sadopc/itrack/internal/worker"
)

const statsInterval = time.Minute

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), Component: log.ComponentWorker})
	log.SetDefault(logger)
	logger.Info("Starting itrack-sync")

	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	replica, err := store.New(cfg.ReplicaDBPath)
	if err != nil {
		logger.Error("Failed to open replica database", log.FieldError, err, "path", cfg.ReplicaDBPath)
		os.Exit(1)
	}
	defer replica.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := worker.NewSyncWorker(replica, logger)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return client.ConsumeRecordChanges(gctx, w.Handle)
	})

	g.Go(func() error {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				applied, failed := w.Stats()
				logger.InfoContext(gctx, "Sync progress", "applied", applied, "failed", failed)
			}
		}
	})

	logger.Info("Consuming record changes", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue, "replica", cfg.ReplicaDBPath)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Sync worker stopped", log.FieldError, err)
		os.Exit(1)
	}

	applied, failed := w.Stats()
	logger.Info("itrack-sync stopped", "applied", applied, "failed", failed)
}
