// Package ledger_repo provides PostgreSQL implementations for the stock
// ledger repositories.
package ledger_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	stockItemsTable = "stock_items"

	sqlStateUniqueViolation = "23505"
)

// StockItemRepo implements ledger.ItemRepository.
type StockItemRepo struct {
	txm        *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewStockItemRepo creates a new stock item repository.
func NewStockItemRepo(txm *postgres.TxManager) *StockItemRepo {
	return &StockItemRepo{
		txm:        txm,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[entity.StockItem](),
	}
}

var _ ledger.ItemRepository = (*StockItemRepo)(nil)

// Create inserts a new stock item.
func (r *StockItemRepo) Create(ctx context.Context, item *entity.StockItem) error {
	q := r.builder.
		Insert(stockItemsTable).
		SetMap(postgres.StructToMap(item))

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation {
			return apperror.NewDuplicate("stock item", "code", item.Code).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", stockItemsTable, err)
	}

	return nil
}

// GetByID retrieves a stock item by ID.
func (r *StockItemRepo) GetByID(ctx context.Context, itemID id.ID) (*entity.StockItem, error) {
	return r.findOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": itemID}), itemID.String())
}

// GetByCode retrieves a stock item by its internal code.
func (r *StockItemRepo) GetByCode(ctx context.Context, code string) (*entity.StockItem, error) {
	return r.findOne(ctx, r.baseSelect().Where(squirrel.Eq{"code": code}), code)
}

// GetForUpdate retrieves a stock item with a row lock.
func (r *StockItemRepo) GetForUpdate(ctx context.Context, itemID id.ID) (*entity.StockItem, error) {
	if r.txm.GetTx(ctx) == nil {
		return nil, fmt.Errorf("select for update requires transaction context")
	}
	return r.findOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": itemID}).Suffix("FOR UPDATE"), itemID.String())
}

// List retrieves stock items with standard filtering.
func (r *StockItemRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*entity.StockItem], error) {
	result := domain.ListResult[*entity.StockItem]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()
	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"code": "%" + filter.Search + "%"})
	}

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := parseOrderBy(filter.OrderBy, r.selectCols, "code ASC")
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}

	return result, nil
}

// Update saves the mutable fields with optimistic locking.
func (r *StockItemRepo) Update(ctx context.Context, item *entity.StockItem) error {
	q := r.builder.
		Update(stockItemsTable).
		Set("catalog_ref", item.CatalogRef).
		Set("baseline_qty", item.BaselineQty).
		Set("safety_stock", item.SafetyStock).
		Set("unit_price", item.UnitPrice).
		Set("deletion_mark", item.DeletionMark)

	return r.bump(ctx, item, q)
}

// BumpVersion increments the version without touching data.
func (r *StockItemRepo) BumpVersion(ctx context.Context, item *entity.StockItem) error {
	return r.bump(ctx, item, r.builder.Update(stockItemsTable))
}

func (r *StockItemRepo) bump(ctx context.Context, item *entity.StockItem, q squirrel.UpdateBuilder) error {
	q = q.
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": item.ID}).
		Where(squirrel.Eq{"version": item.Version}).
		Suffix("RETURNING version, updated_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	err = r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&item.Version, &item.UpdatedAt)
	if err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewConcurrentModification(stockItemsTable, item.ID.String())
		}
		return fmt.Errorf("update %s: %w", stockItemsTable, err)
	}

	return nil
}

func (r *StockItemRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder.Select(r.selectCols...).From(stockItemsTable)
}

func (r *StockItemRepo) findOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*entity.StockItem, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	item := &entity.StockItem{}
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock item", key)
		}
		return nil, fmt.Errorf("get stock item: %w", err)
	}

	return item, nil
}

// parseOrderBy turns "-field" / "+field" / "field" into a safe ORDER BY clause.
func parseOrderBy(orderBy string, allowedCols []string, fallback string) (string, error) {
	if strings.TrimSpace(orderBy) == "" {
		return fallback, nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	for _, col := range allowedCols {
		if col == field {
			return field + " " + direction, nil
		}
	}

	return "", apperror.NewValidation("invalid orderBy").
		WithDetail("orderBy", orderBy).
		WithDetail("field", field)
}
