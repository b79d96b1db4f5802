package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

const movementsTable = "movements"

var movementColumns = postgres.ExtractDBColumns[entity.Movement]()

// MovementRepo implements ledger.MovementRepository.
// Rows are only ever inserted; SetStatusByOrder is the single UPDATE.
type MovementRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewMovementRepo creates a new movement log repository.
func NewMovementRepo(txm *postgres.TxManager) *MovementRepo {
	return &MovementRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

var _ ledger.MovementRepository = (*MovementRepo)(nil)

// Append inserts movements.
func (r *MovementRepo) Append(ctx context.Context, movements ...entity.Movement) error {
	if len(movements) == 0 {
		return nil
	}
	for i := range movements {
		if err := movements[i].Validate(); err != nil {
			return err
		}
	}

	rows := make([][]any, 0, len(movements))
	for i := range movements {
		data := postgres.StructToMap(&movements[i])
		row := make([]any, 0, len(movementColumns))
		for _, col := range movementColumns {
			row = append(row, data[col])
		}
		rows = append(rows, row)
	}

	// Fast path: COPY when inside a transaction.
	if r.txm.GetTx(ctx) != nil {
		if _, err := postgres.NewBatchInserter(r.txm).CopyFromSlice(ctx, movementsTable, movementColumns, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(movementsTable).Columns(movementColumns...)
	for _, row := range rows {
		q = q.Values(row...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}

	return nil
}

// ListByItem returns every movement of the item in insertion order.
func (r *MovementRepo) ListByItem(ctx context.Context, itemID id.ID) ([]entity.Movement, error) {
	return r.selectMovements(ctx, r.baseSelect().
		Where(squirrel.Eq{"item_id": itemID}).
		OrderBy("created_at", "id"))
}

// ListByOrder returns every movement linked to the order.
func (r *MovementRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]entity.Movement, error) {
	return r.selectMovements(ctx, r.baseSelect().
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("created_at", "id"))
}

// History returns the newest movements first.
func (r *MovementRepo) History(ctx context.Context, itemID id.ID, filter ledger.MovementFilter) (domain.ListResult[entity.Movement], error) {
	result := domain.ListResult[entity.Movement]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect().Where(squirrel.Eq{"item_id": itemID})
	if filter.OrderID != nil {
		q = q.Where(squirrel.Eq{"order_id": *filter.OrderID})
	}
	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": string(*filter.Kind)})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": string(*filter.Status)})
	}

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	q = q.OrderBy("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	items, err := r.selectMovements(ctx, q)
	if err != nil {
		return result, err
	}
	result.Items = items

	return result, nil
}

// SetStatusByOrder resolves the order's movements that are still in from.
func (r *MovementRepo) SetStatusByOrder(ctx context.Context, orderID id.ID, from, to entity.Status, at time.Time) (int64, error) {
	q := r.builder.
		Update(movementsTable).
		Set("status", string(to)).
		Set("resolved_at", at).
		Where(squirrel.Eq{"order_id": orderID}).
		Where(squirrel.Eq{"status": string(from)})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("update movement status: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *MovementRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(movementColumns...).From(movementsTable)
}

func (r *MovementRepo) selectMovements(ctx context.Context, q squirrel.SelectBuilder) ([]entity.Movement, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.Movement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}

	return movements, nil
}
