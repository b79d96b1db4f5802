package app

import (
	"fmt"

	"stockledger/internal/infrastructure/numerator"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/internal/infrastructure/storage/postgres/document_repo"
	"stockledger/internal/infrastructure/storage/postgres/ledger_repo"
)

// PostgresBackend wires the PostgreSQL repositories on one pool.
func PostgresBackend(pool *postgres.Pool) (Backend, error) {
	txm := postgres.NewTxManager(pool)

	auditService, err := postgres.NewAuditService(txm)
	if err != nil {
		return Backend{}, fmt.Errorf("init audit: %w", err)
	}

	return Backend{
		TxManager: txm,
		Items:     ledger_repo.NewStockItemRepo(txm),
		Movements: ledger_repo.NewMovementRepo(txm),
		Orders:    document_repo.NewOrderRepo(txm),
		Numerator: numerator.New(pool.Pool),
		Events:    postgres.NewOutboxPublisher(txm),
		Audit:     auditService,
	}, nil
}
