package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/documents/order"
	"stockledger/internal/infrastructure/storage/postgres"
)

const (
	ordersTable     = "orders"
	orderLinesTable = "order_lines"
)

// OrderRepo implements order.Repository.
type OrderRepo struct {
	*BaseDocumentRepo[*order.Order]
}

// NewOrderRepo creates a new withdrawal order repository.
func NewOrderRepo(txm *postgres.TxManager) *OrderRepo {
	return &OrderRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*order.Order](
			txm,
			ordersTable,
			postgres.ExtractDBColumns[order.Order](),
			func() *order.Order { return &order.Order{} },
		),
	}
}

var _ order.Repository = (*OrderRepo)(nil)

// lineRow is an order line together with its owner, used for bulk loads.
type lineRow struct {
	DocumentID id.ID `db:"document_id"`
	order.Line
}

func (r *OrderRepo) GetLines(ctx context.Context, docID id.ID) ([]order.Line, error) {
	q := r.Builder().
		Select("line_no", "item_id", "quantity").
		From(orderLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []order.Line
	if err := pgxscan.Select(ctx, r.querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// SaveLines replaces the table part in one round-trip.
func (r *OrderRepo) SaveLines(ctx context.Context, docID id.ID, lines []order.Line) error {
	queries := []postgres.BatchQuery{{
		SQL:  "DELETE FROM " + orderLinesTable + " WHERE document_id = $1",
		Args: []any{docID},
	}}

	for _, line := range lines {
		queries = append(queries, postgres.BatchQuery{
			SQL: "INSERT INTO " + orderLinesTable + " (document_id, line_no, item_id, quantity) VALUES ($1, $2, $3, $4)",
			Args: []any{docID, line.LineNo, line.ItemID, line.Quantity},
		})
	}

	if err := postgres.NewBatchExecutor(r.txm).ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("save lines: %w", err)
	}

	return nil
}

func (r *OrderRepo) List(ctx context.Context, filter order.ListFilter) (domain.ListResult[*order.Order], error) {
	result, err := r.list(ctx, filter.ListFilter, func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
		if filter.Status != nil {
			q = q.Where(squirrel.Eq{"status": string(*filter.Status)})
		}
		if filter.RequestedBy != "" {
			q = q.Where(squirrel.Eq{"requested_by": filter.RequestedBy})
		}
		if filter.ItemID != nil {
			q = q.Where(squirrel.Expr(
				"EXISTS (SELECT 1 FROM "+orderLinesTable+" l WHERE l.document_id = "+ordersTable+".id AND l.item_id = ?)",
				*filter.ItemID,
			))
		}
		return q
	})
	if err != nil {
		return result, err
	}

	if err := r.attachLines(ctx, result.Items); err != nil {
		return result, err
	}

	return result, nil
}

// attachLines loads the lines of every listed order with a single query.
func (r *OrderRepo) attachLines(ctx context.Context, docs []*order.Order) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]id.ID, 0, len(docs))
	byID := make(map[id.ID]*order.Order, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
		byID[doc.ID] = doc
		doc.Lines = []order.Line{}
	}

	q := r.Builder().
		Select("document_id", "line_no", "item_id", "quantity").
		From(orderLinesTable).
		Where(squirrel.Eq{"document_id": ids}).
		OrderBy("document_id", "line_no")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var rows []lineRow
	if err := pgxscan.Select(ctx, r.querier(ctx), &rows, sql, args...); err != nil {
		return fmt.Errorf("list lines: %w", err)
	}

	for _, row := range rows {
		if doc, ok := byID[row.DocumentID]; ok {
			doc.Lines = append(doc.Lines, row.Line)
		}
	}

	return nil
}
