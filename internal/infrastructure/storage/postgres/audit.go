// Package postgres provides PostgreSQL infrastructure components.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/audit"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID                id.ID              `db:"id"`
	EntityType        string             `db:"entity_type"`
	EntityID          id.ID              `db:"entity_id"`
	Action            domain.AuditAction `db:"action"`
	UserID            string             `db:"user_id"`
	UserEmail         string             `db:"user_email"`
	Changes           json.RawMessage    `db:"changes"`
	ChangesCompressed []byte             `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo    `db:"compression_algo"`
	Metadata          json.RawMessage    `db:"metadata"`
	CreatedAt         time.Time          `db:"created_at"`
}

// AuditService provides audit logging functionality.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	compressThreshold int // bytes, default 10KB
}

var _ domain.AuditLogger = (*AuditService)(nil)

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		compressThreshold: 10 * 1024, // 10KB
	}, nil
}

// Log records an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if entry.UserID == "" {
		entry.UserID = audit.Actor(ctx)
	}
	if entry.UserEmail == "" {
		if user := appctx.GetUser(ctx); user != nil {
			entry.UserEmail = user.Email
		}
	}

	// Generate ID if not set
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}

	// Set timestamp
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	s.pack(&entry)

	// Insert
	sql := `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, user_id, user_email,
			changes, changes_compressed, compression_algo, metadata,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	querier := s.txManager.GetQuerier(ctx)
	_, err := querier.Exec(ctx, sql,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action,
		entry.UserID, entry.UserEmail,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo,
		entry.Metadata, entry.CreatedAt,
	)

	return err
}

// LogChange is a convenience method for logging entity changes.
func (s *AuditService) LogChange(
	ctx context.Context,
	entityType string,
	entityID id.ID,
	action domain.AuditAction,
	changes map[string]any,
) error {
	changesJSON, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	return s.Log(ctx, AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Changes:    changesJSON,
	})
}

// pack compresses changes above the threshold.
func (s *AuditService) pack(entry *AuditEntry) {
	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) > s.compressThreshold {
		entry.ChangesCompressed = s.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}
}
