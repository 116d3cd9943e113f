package procurement

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository persists purchase orders.
type Repository interface {
	Get(ctx context.Context, id int64) (PurchaseOrder, error)
	List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	NextNumber(ctx context.Context, year int) (int64, error)
	Insert(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	Update(ctx context.Context, po PurchaseOrder) error
	UpdateStatus(ctx context.Context, po PurchaseOrder) error
	UpdateReceipt(ctx context.Context, po PurchaseOrder) error
}

const (
	orderColumns = `id, number, vendor_id, status, order_date, expected_date, notes, tax_percent, shipping, order_discount, subtotal, discount_applied, tax_amount, total, created_by, created_at, updated_at`
	lineColumns  = `id, order_id, line_no, product_id, qty_ordered, qty_received, unit_price, discount, total_price`
)

type repository struct {
	pool    *pgxpool.Pool
	builder sq.StatementBuilderType
}

// NewRepository returns the PostgreSQL purchase order repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func (r *repository) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	return getOrder(ctx, r.pool, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	q := r.builder.Select(orderColumns).From("purchase_orders").OrderBy("order_date DESC", "id DESC")
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": filter.Status})
	}
	if filter.VendorID > 0 {
		q = q.Where(sq.Eq{"vendor_id": filter.VendorID})
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
	var orders []PurchaseOrder
	if err := pgxscan.Select(ctx, r.pool, &orders, sql, args...); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}
	ids := make([]int64, len(orders))
	byID := make(map[int64]int, len(orders))
	for i, po := range orders {
		ids[i] = po.ID
		byID[po.ID] = i
	}
	var lines []Line
	if err := pgxscan.Select(ctx, r.pool, &lines, `SELECT `+lineColumns+` FROM purchase_order_lines WHERE order_id = ANY($1) ORDER BY order_id, line_no`, ids); err != nil {
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
	return db.NextSequence(ctx, r.tx, shared.PrefixPurchaseOrder, year)
}

func (r *txRepository) Insert(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, vendor_id, status, order_date, expected_date, notes, tax_percent, shipping, order_discount, subtotal, discount_applied, tax_amount, total, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16) RETURNING id`,
		po.Number, po.VendorID, po.Status, po.OrderDate, po.ExpectedDate, po.Notes,
		po.TaxPercent, po.Shipping, po.OrderDiscount, po.Subtotal, po.DiscountApplied, po.TaxAmount, po.Total,
		po.CreatedBy, po.CreatedAt, po.UpdatedAt).Scan(&po.ID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if err := r.insertLines(ctx, &po); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

func (r *txRepository) insertLines(ctx context.Context, po *PurchaseOrder) error {
	batch := &pgx.Batch{}
	for i := range po.Lines {
		line := &po.Lines[i]
		line.OrderID = po.ID
		batch.Queue(`INSERT INTO purchase_order_lines (order_id, line_no, product_id, qty_ordered, qty_received, unit_price, discount, total_price)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
			line.OrderID, line.LineNo, line.ProductID, line.QtyOrdered, line.QtyReceived, line.UnitPrice, line.Discount, line.TotalPrice).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&line.ID)
			})
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return getOrder(ctx, r.tx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1 FOR UPDATE`, id)
}

func (r *txRepository) Update(ctx context.Context, po PurchaseOrder) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET vendor_id=$2, order_date=$3, expected_date=$4, notes=$5, tax_percent=$6, shipping=$7, order_discount=$8,
subtotal=$9, discount_applied=$10, tax_amount=$11, total=$12, updated_at=$13 WHERE id=$1`,
		po.ID, po.VendorID, po.OrderDate, po.ExpectedDate, po.Notes, po.TaxPercent, po.Shipping, po.OrderDiscount,
		po.Subtotal, po.DiscountApplied, po.TaxAmount, po.Total, po.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE order_id=$1`, po.ID); err != nil {
		return err
	}
	return r.insertLines(ctx, &po)
}

func (r *txRepository) UpdateStatus(ctx context.Context, po PurchaseOrder) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status=$2, updated_at=$3 WHERE id=$1`, po.ID, po.Status, po.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *txRepository) UpdateReceipt(ctx context.Context, po PurchaseOrder) error {
	if err := r.UpdateStatus(ctx, po); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, line := range po.Lines {
		batch.Queue(`UPDATE purchase_order_lines SET qty_received=$2 WHERE id=$1`, line.ID, line.QtyReceived)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func getOrder(ctx context.Context, q pgxscan.Querier, sql string, id int64) (PurchaseOrder, error) {
	var po PurchaseOrder
	if err := pgxscan.Get(ctx, q, &po, sql, id); err != nil {
		if pgxscan.NotFound(err) {
			return PurchaseOrder{}, ErrOrderNotFound
		}
		return PurchaseOrder{}, err
	}
	if err := pgxscan.Select(ctx, q, &po.Lines, `SELECT `+lineColumns+` FROM purchase_order_lines WHERE order_id=$1 ORDER BY line_no`, id); err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}
