package inventory

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository persists stock levels in PostgreSQL.
type Repository interface {
	Get(ctx context.Context, productID int64) (Stock, error)
	Movements(ctx context.Context, productID int64, limit int) ([]Movement, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	LockStock(ctx context.Context, productID int64) (Stock, error)
	SaveStock(ctx context.Context, stock Stock) error
	InsertMovement(ctx context.Context, mv Movement) (Movement, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL stock repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// Get reports zero on hand for catalogued products that never moved.
func (r *repository) Get(ctx context.Context, productID int64) (Stock, error) {
	var stock Stock
	err := pgxscan.Get(ctx, r.pool, &stock, `SELECT p.id AS product_id, COALESCE(s.on_hand, 0) AS on_hand, COALESCE(s.updated_at, p.created_at) AS updated_at
FROM products p LEFT JOIN inventory_stock s ON s.product_id = p.id
WHERE p.id=$1`, productID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return Stock{}, ErrStockNotFound
		}
		return Stock{}, err
	}
	return stock, nil
}

func (r *repository) Movements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 200
	}
	var out []Movement
	err := pgxscan.Select(ctx, r.pool, &out, `SELECT id, product_id, delta, on_hand_after, reference, created_by, created_at
FROM stock_movements WHERE product_id=$1 ORDER BY id DESC LIMIT $2`, productID, limit)
	return out, err
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

// LockStock creates the stock row on first use and locks it.
func (r *txRepository) LockStock(ctx context.Context, productID int64) (Stock, error) {
	if _, err := r.tx.Exec(ctx, `INSERT INTO inventory_stock (product_id, on_hand, updated_at)
SELECT id, 0, NOW() FROM products WHERE id=$1
ON CONFLICT (product_id) DO NOTHING`, productID); err != nil {
		return Stock{}, err
	}
	var stock Stock
	err := pgxscan.Get(ctx, r.tx, &stock, `SELECT product_id, on_hand, updated_at FROM inventory_stock WHERE product_id=$1 FOR UPDATE`, productID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return Stock{}, ErrStockNotFound
		}
		return Stock{}, err
	}
	return stock, nil
}

func (r *txRepository) SaveStock(ctx context.Context, stock Stock) error {
	_, err := r.tx.Exec(ctx, `UPDATE inventory_stock SET on_hand=$2, updated_at=$3 WHERE product_id=$1`,
		stock.ProductID, stock.OnHand, stock.UpdatedAt)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, mv Movement) (Movement, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, delta, on_hand_after, reference, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		mv.ProductID, mv.Delta, mv.OnHand, mv.Reference, mv.CreatedBy, mv.CreatedAt).Scan(&mv.ID)
	return mv, err
}
