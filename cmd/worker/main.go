// Package main is the entry point for the stockledger background worker.
// It relays outbox events and cleans up expired bookkeeping rows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/config"
	"stockledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Info("starting stockledger worker")

	if cfg.App.Storage != config.StoragePostgres {
		log.Fatalw("worker requires postgres storage", "storage", cfg.App.Storage)
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.DB.ConnectionString())
	poolCfg.MaxConns = 4
	poolCfg.MinConns = 1
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	worker := NewWorker(pool, cfg, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker delivers outbox events and runs periodic cleanup.
type Worker struct {
	pool        *postgres.Pool
	relay       *postgres.OutboxRelay
	idempotency *postgres.IdempotencyStore
	cfg         config.OutboxConfig
	log         *logger.Logger
}

// NewWorker creates a worker on one database pool.
func NewWorker(pool *postgres.Pool, cfg *config.Config, log *logger.Logger) *Worker {
	w := &Worker{
		pool: pool,
		cfg:  cfg.Outbox,
		log:  log.WithComponent("worker"),
	}
	w.relay = postgres.NewOutboxRelay(pool.Unwrap(), cfg.Outbox.BatchSize, postgres.OutboxHandlerFunc(w.publish))
	w.idempotency = postgres.NewIdempotencyStore(pool, postgres.NewTxManager(pool), cfg.Idempotency.TTL)
	return w
}

// Run polls the outbox until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(w.cfg.CleanupEvery)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOutbox(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

// publish is the downstream delivery of one event. Events are emitted as
// structured log lines; consumers tail them from the log pipeline.
func (w *Worker) publish(_ context.Context, msg *postgres.OutboxMessage) error {
	w.log.Infow("ledger event",
		"message_id", msg.ID,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
		"event_type", msg.EventType,
		"payload", string(msg.Payload),
		"created_at", msg.CreatedAt,
	)
	return nil
}

func (w *Worker) processOutbox(ctx context.Context) {
	// Drain full batches before waiting for the next tick
	for {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			return
		}
		if n > 0 {
			w.log.Debugw("processed outbox batch", "count", n)
		}
		if n < w.cfg.BatchSize || ctx.Err() != nil {
			return
		}
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	if moved, err := w.relay.MoveToDLQ(ctx); err != nil {
		w.log.Errorw("failed to move outbox messages to DLQ", "error", err)
	} else if moved > 0 {
		w.log.Warnw("moved outbox messages to DLQ", "count", moved)
	}

	retention := time.Duration(w.cfg.RetentionHours) * time.Hour
	if deleted, err := w.relay.CleanupPublished(ctx, retention); err != nil {
		w.log.Errorw("failed to clean up outbox", "error", err)
	} else if deleted > 0 {
		w.log.Infow("cleaned up published outbox messages", "count", deleted)
	}

	if deleted, err := w.idempotency.CleanupExpired(ctx); err != nil {
		w.log.Errorw("failed to clean up idempotency keys", "error", err)
	} else if deleted > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", deleted)
	}

	postgres.LogPoolStats(ctx, w.pool.Unwrap())
}
