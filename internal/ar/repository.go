package ar

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository persists invoices.
type Repository interface {
	Get(ctx context.Context, id int64) (Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, error)
	// PastDue returns ids of unsettled invoices due before asOf that are not
	// yet stored as OVERDUE.
	PastDue(ctx context.Context, asOf time.Time) ([]int64, error)
	// Outstanding returns unsettled invoices with a positive balance.
	Outstanding(ctx context.Context) ([]Invoice, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	NextNumber(ctx context.Context, year int) (int64, error)
	Insert(ctx context.Context, inv Invoice) (Invoice, error)
	GetForUpdate(ctx context.Context, id int64) (Invoice, error)
	Update(ctx context.Context, inv Invoice) error
	UpdateSettlement(ctx context.Context, inv Invoice) error
	InsertPayment(ctx context.Context, payment Payment) (Payment, error)
}

const (
	invoiceColumns = `id, number, customer_id, sales_order_id, status, issue_date, due_date, sent_at, voided_at, notes, tax_percent, shipping, order_discount, subtotal, discount_applied, tax_amount, total, amount_paid, balance_due, created_by, created_at, updated_at`
	lineColumns    = `id, invoice_id, line_no, product_id, quantity, unit_price, discount, total_price`
	paymentColumns = `id, invoice_id, amount, paid_on, method, reference, created_by, created_at`
)

var openStatuses = []Status{StatusDraft, StatusSent, StatusPartiallyPaid, StatusOverdue}

type repository struct {
	pool    *pgxpool.Pool
	builder sq.StatementBuilderType
}

// NewRepository returns the PostgreSQL invoice repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func (r *repository) Get(ctx context.Context, id int64) (Invoice, error) {
	inv, err := getInvoice(ctx, r.pool, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id)
	if err != nil {
		return Invoice{}, err
	}
	if err := pgxscan.Select(ctx, r.pool, &inv.Payments, `SELECT `+paymentColumns+` FROM invoice_payments WHERE invoice_id=$1 ORDER BY id`, id); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	q := r.builder.Select(invoiceColumns).From("invoices").OrderBy("issue_date DESC", "id DESC")
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": filter.Status})
	}
	if filter.CustomerID > 0 {
		q = q.Where(sq.Eq{"customer_id": filter.CustomerID})
	}
	if filter.From != nil {
		q = q.Where(sq.GtOrEq{"issue_date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(sq.LtOrEq{"issue_date": *filter.To})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return r.selectInvoices(ctx, q)
}

func (r *repository) PastDue(ctx context.Context, asOf time.Time) ([]int64, error) {
	sql, args, err := r.builder.Select("id").From("invoices").
		Where(sq.Eq{"status": []Status{StatusDraft, StatusSent, StatusPartiallyPaid}}).
		Where(sq.Lt{"due_date": asOf}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := pgxscan.Select(ctx, r.pool, &ids, sql, args...); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) Outstanding(ctx context.Context) ([]Invoice, error) {
	q := r.builder.Select(invoiceColumns).From("invoices").
		Where(sq.Eq{"status": openStatuses}).
		Where(sq.Gt{"balance_due": 0}).
		OrderBy("due_date", "id")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var invoices []Invoice
	if err := pgxscan.Select(ctx, r.pool, &invoices, sql, args...); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repository) selectInvoices(ctx context.Context, q sq.SelectBuilder) ([]Invoice, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var invoices []Invoice
	if err := pgxscan.Select(ctx, r.pool, &invoices, sql, args...); err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return invoices, nil
	}
	ids := make([]int64, len(invoices))
	byID := make(map[int64]int, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
		byID[inv.ID] = i
	}
	var lines []Line
	if err := pgxscan.Select(ctx, r.pool, &lines, `SELECT `+lineColumns+` FROM invoice_lines WHERE invoice_id = ANY($1) ORDER BY invoice_id, line_no`, ids); err != nil {
		return nil, err
	}
	for _, line := range lines {
		i := byID[line.InvoiceID]
		invoices[i].Lines = append(invoices[i].Lines, line)
	}
	return invoices, nil
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
	return db.NextSequence(ctx, r.tx, shared.PrefixInvoice, year)
}

func (r *txRepository) Insert(ctx context.Context, inv Invoice) (Invoice, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO invoices (number, customer_id, sales_order_id, status, issue_date, due_date, sent_at, voided_at, notes, tax_percent, shipping, order_discount,
subtotal, discount_applied, tax_amount, total, amount_paid, balance_due, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21) RETURNING id`,
		inv.Number, inv.CustomerID, inv.SalesOrderID, inv.Status, inv.IssueDate, inv.DueDate, inv.SentAt, inv.VoidedAt, inv.Notes,
		inv.TaxPercent, inv.Shipping, inv.OrderDiscount, inv.Subtotal, inv.DiscountApplied, inv.TaxAmount, inv.Total,
		inv.AmountPaid, inv.BalanceDue, inv.CreatedBy, inv.CreatedAt, inv.UpdatedAt).Scan(&inv.ID)
	if err != nil {
		return Invoice{}, err
	}
	if err := r.insertLines(ctx, &inv); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (r *txRepository) insertLines(ctx context.Context, inv *Invoice) error {
	batch := &pgx.Batch{}
	for i := range inv.Lines {
		line := &inv.Lines[i]
		line.InvoiceID = inv.ID
		batch.Queue(`INSERT INTO invoice_lines (invoice_id, line_no, product_id, quantity, unit_price, discount, total_price)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
			line.InvoiceID, line.LineNo, line.ProductID, line.Quantity, line.UnitPrice, line.Discount, line.TotalPrice).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&line.ID)
			})
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Invoice, error) {
	inv, err := getInvoice(ctx, r.tx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, id)
	if err != nil {
		return Invoice{}, err
	}
	if err := pgxscan.Select(ctx, r.tx, &inv.Payments, `SELECT `+paymentColumns+` FROM invoice_payments WHERE invoice_id=$1 ORDER BY id`, id); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (r *txRepository) Update(ctx context.Context, inv Invoice) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE invoices SET customer_id=$2, sales_order_id=$3, status=$4, issue_date=$5, due_date=$6, notes=$7, tax_percent=$8, shipping=$9,
order_discount=$10, subtotal=$11, discount_applied=$12, tax_amount=$13, total=$14, balance_due=$15, updated_at=$16 WHERE id=$1`,
		inv.ID, inv.CustomerID, inv.SalesOrderID, inv.Status, inv.IssueDate, inv.DueDate, inv.Notes, inv.TaxPercent, inv.Shipping,
		inv.OrderDiscount, inv.Subtotal, inv.DiscountApplied, inv.TaxAmount, inv.Total, inv.BalanceDue, inv.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id=$1`, inv.ID); err != nil {
		return err
	}
	return r.insertLines(ctx, &inv)
}

func (r *txRepository) UpdateSettlement(ctx context.Context, inv Invoice) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE invoices SET status=$2, amount_paid=$3, balance_due=$4, sent_at=$5, voided_at=$6, updated_at=$7 WHERE id=$1`,
		inv.ID, inv.Status, inv.AmountPaid, inv.BalanceDue, inv.SentAt, inv.VoidedAt, inv.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *txRepository) InsertPayment(ctx context.Context, payment Payment) (Payment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO invoice_payments (invoice_id, amount, paid_on, method, reference, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		payment.InvoiceID, payment.Amount, payment.PaidOn, payment.Method, payment.Reference, payment.CreatedBy, payment.CreatedAt).Scan(&payment.ID)
	if err != nil {
		if db.IsUniqueViolation(err, "uq_invoice_payments_reference") {
			return Payment{}, ErrDuplicatePayment.With("reference", *payment.Reference)
		}
		return Payment{}, err
	}
	return payment, nil
}

func getInvoice(ctx context.Context, q pgxscan.Querier, sql string, id int64) (Invoice, error) {
	var inv Invoice
	if err := pgxscan.Get(ctx, q, &inv, sql, id); err != nil {
		if pgxscan.NotFound(err) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	if err := pgxscan.Select(ctx, q, &inv.Lines, `SELECT `+lineColumns+` FROM invoice_lines WHERE invoice_id=$1 ORDER BY line_no`, id); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}
