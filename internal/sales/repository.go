package sales

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository persists sales orders.
type Repository interface {
	Get(ctx context.Context, id int64) (SalesOrder, error)
	List(ctx context.Context, filter ListFilter) ([]SalesOrder, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	NextNumber(ctx context.Context, year int) (int64, error)
	Insert(ctx context.Context, so SalesOrder) (SalesOrder, error)
	GetForUpdate(ctx context.Context, id int64) (SalesOrder, error)
	Update(ctx context.Context, so SalesOrder) error
	UpdateStatus(ctx context.Context, so SalesOrder) error
}

const (
	orderColumns = `id, number, customer_id, status, order_date, expected_delivery, notes, tax_percent, shipping, order_discount, subtotal, discount_applied, tax_amount, total, confirmed_at, cancelled_at, cancellation_reason, created_by, created_at, updated_at`
	lineColumns  = `id, order_id, line_no, product_id, quantity, unit_price, discount, total_price`
)

type repository struct {
	pool    *pgxpool.Pool
	builder sq.StatementBuilderType
}

// NewRepository returns the PostgreSQL sales order repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func (r *repository) Get(ctx context.Context, id int64) (SalesOrder, error) {
	return getOrder(ctx, r.pool, `SELECT `+orderColumns+` FROM sales_orders WHERE id=$1`, id)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]SalesOrder, error) {
	q := r.builder.Select(orderColumns).From("sales_orders").OrderBy("order_date DESC", "id DESC")
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": filter.Status})
	}
	if filter.CustomerID > 0 {
		q = q.Where(sq.Eq{"customer_id": filter.CustomerID})
	}
	if filter.From != nil {
		q = q.Where(sq.GtOrEq{"order_date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(sq.LtOrEq{"order_date": *filter.To})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var orders []SalesOrder
	if err := pgxscan.Select(ctx, r.pool, &orders, sql, args...); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}
	ids := make([]int64, len(orders))
	byID := make(map[int64]int, len(orders))
	for i, so := range orders {
		ids[i] = so.ID
		byID[so.ID] = i
	}
	var lines []Line
	if err := pgxscan.Select(ctx, r.pool, &lines, `SELECT `+lineColumns+` FROM sales_order_lines WHERE order_id = ANY($1) ORDER BY order_id, line_no`, ids); err != nil {
		return nil, err
	}
	for _, line := range lines {
		i := byID[line.OrderID]
		orders[i].Lines = append(orders[i].Lines, line)
	}
	return orders, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) NextNumber(ctx context.Context, year int) (int64, error) {
	return db.NextSequence(ctx, r.tx, shared.PrefixSalesOrder, year)
}

func (r *txRepository) Insert(ctx context.Context, so SalesOrder) (SalesOrder, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO sales_orders (number, customer_id, status, order_date, expected_delivery, notes, tax_percent, shipping, order_discount, subtotal, discount_applied, tax_amount, total, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16) RETURNING id`,
		so.Number, so.CustomerID, so.Status, so.OrderDate, so.ExpectedDelivery, so.Notes,
		so.TaxPercent, so.Shipping, so.OrderDiscount, so.Subtotal, so.DiscountApplied, so.TaxAmount, so.Total,
		so.CreatedBy, so.CreatedAt, so.UpdatedAt).Scan(&so.ID)
	if err != nil {
		return SalesOrder{}, err
	}
	if err := r.insertLines(ctx, &so); err != nil {
		return SalesOrder{}, err
	}
	return so, nil
}

func (r *txRepository) insertLines(ctx context.Context, so *SalesOrder) error {
	batch := &pgx.Batch{}
	for i := range so.Lines {
		line := &so.Lines[i]
		line.OrderID = so.ID
		batch.Queue(`INSERT INTO sales_order_lines (order_id, line_no, product_id, quantity, unit_price, discount, total_price)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
			line.OrderID, line.LineNo, line.ProductID, line.Quantity, line.UnitPrice, line.Discount, line.TotalPrice).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&line.ID)
			})
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (SalesOrder, error) {
	return getOrder(ctx, r.tx, `SELECT `+orderColumns+` FROM sales_orders WHERE id=$1 FOR UPDATE`, id)
}

func (r *txRepository) Update(ctx context.Context, so SalesOrder) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE sales_orders SET customer_id=$2, order_date=$3, expected_delivery=$4, notes=$5, tax_percent=$6, shipping=$7, order_discount=$8,
subtotal=$9, discount_applied=$10, tax_amount=$11, total=$12, updated_at=$13 WHERE id=$1`,
		so.ID, so.CustomerID, so.OrderDate, so.ExpectedDelivery, so.Notes, so.TaxPercent, so.Shipping, so.OrderDiscount,
		so.Subtotal, so.DiscountApplied, so.TaxAmount, so.Total, so.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM sales_order_lines WHERE order_id=$1`, so.ID); err != nil {
		return err
	}
	return r.insertLines(ctx, &so)
}

func (r *txRepository) UpdateStatus(ctx context.Context, so SalesOrder) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE sales_orders SET status=$2, confirmed_at=$3, cancelled_at=$4, cancellation_reason=$5, updated_at=$6 WHERE id=$1`,
		so.ID, so.Status, so.ConfirmedAt, so.CancelledAt, so.CancellationReason, so.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func getOrder(ctx context.Context, q pgxscan.Querier, sql string, id int64) (SalesOrder, error) {
	var so SalesOrder
	if err := pgxscan.Get(ctx, q, &so, sql, id); err != nil {
		if pgxscan.NotFound(err) {
			return SalesOrder{}, ErrOrderNotFound
		}
		return SalesOrder{}, err
	}
	if err := pgxscan.Select(ctx, q, &so.Lines, `SELECT `+lineColumns+` FROM sales_order_lines WHERE order_id=$1 ORDER BY line_no`, id); err != nil {
		return SalesOrder{}, err
	}
	return so, nil
}
