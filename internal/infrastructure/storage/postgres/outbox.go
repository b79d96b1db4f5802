package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// maxOutboxRetries is the number of failed deliveries before a message is
// parked as failed and becomes eligible for the DLQ.
const maxOutboxRetries = 5

// OutboxMessage represents a message in the transactional outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"` // e.g. "Order", "StockItem"
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"` // e.g. "OrderApproved", "ReturnSubmitted"
	Payload       []byte       `db:"payload"`    // JSON payload
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

const insertOutboxSQL = `
	INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// OutboxPublisher writes events to the outbox table.
type OutboxPublisher struct {
	txManager *TxManager
}

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

var _ domain.EventPublisher = (*OutboxPublisher)(nil)

// Publish writes an event to the outbox within the current transaction.
// MUST be called inside a transaction context.
func (p *OutboxPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	payloadBytes, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = tx.Exec(ctx, insertOutboxSQL,
		id.New(), event.AggregateType, event.AggregateID, event.EventType,
		payloadBytes, OutboxStatusPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}

	return nil
}

// OutboxHandler processes outbox messages.
type OutboxHandler interface {
	// Handle processes a message and returns error if failed
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error {
	return f(ctx, msg)
}

// OutboxRelay reads and processes messages from the outbox.
// Used by the background worker to deliver ledger events downstream.
type OutboxRelay struct {
	pool      *pgxpool.Pool
	batchSize int
	handler   OutboxHandler
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(pool *pgxpool.Pool, batchSize int, handler OutboxHandler) *OutboxRelay {
	return &OutboxRelay{
		pool:      pool,
		batchSize: batchSize,
		handler:   handler,
	}
}

// ProcessBatch fetches and processes pending messages.
// Returns number of delivered messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin outbox batch: %w", err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	// Rows stay locked until commit so parallel workers skip them.
	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
		       retry_count, last_error, next_retry_at, created_at, published_at
		FROM sys_outbox
		WHERE status = $1
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, OutboxStatusPending, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch outbox messages: %w", err)
	}

	messages, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[OutboxMessage])
	if err != nil {
		return 0, fmt.Errorf("scan outbox messages: %w", err)
	}

	processed := 0
	for _, msg := range messages {
		if err := r.processMessage(ctx, tx, msg); err != nil {
			logger.Warn(ctx, "outbox delivery failed",
				"message_id", msg.ID,
				"event_type", msg.EventType,
				"retry_count", msg.RetryCount,
				"error", err)
			continue
		}
		processed++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit outbox batch: %w", err)
	}

	return processed, nil
}

// processMessage handles a single outbox message.
func (r *OutboxRelay) processMessage(ctx context.Context, tx pgx.Tx, msg *OutboxMessage) error {
	if err := r.handler.Handle(ctx, msg); err != nil {
		// Linear backoff, one minute per failed attempt
		nextRetry := time.Now().Add(time.Duration(msg.RetryCount+1) * time.Minute)

		_, updateErr := tx.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = retry_count + 1,
			    last_error = $1,
			    next_retry_at = $2,
			    status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE status END
			WHERE id = $5
		`, err.Error(), nextRetry, maxOutboxRetries, OutboxStatusFailed, msg.ID)
		if updateErr != nil {
			return fmt.Errorf("update failed message: %w", updateErr)
		}
		return err
	}

	_, err := tx.Exec(ctx, `
		UPDATE sys_outbox
		SET status = $1, published_at = $2
		WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msg.ID)

	return err
}

// MoveToDLQ moves failed messages to dead letter queue.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1 AND retry_count >= $2
			RETURNING *
		)
		INSERT INTO sys_outbox_dlq
		SELECT *, NOW() AS failed_at, last_error AS failure_reason FROM moved
	`, OutboxStatusFailed, maxOutboxRetries)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}

	return result.RowsAffected(), nil
}

// CleanupPublished removes delivered messages older than retention.
func (r *OutboxRelay) CleanupPublished(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM sys_outbox
		WHERE status = $1 AND published_at < $2
	`, OutboxStatusPublished, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("cleanup outbox: %w", err)
	}

	return result.RowsAffected(), nil
}
