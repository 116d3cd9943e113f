package accounts

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository exposes account persistence.
type Repository interface {
	List(ctx context.Context) ([]Account, error)
	ListByCodes(ctx context.Context, codes []string) ([]Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	LockByCode(ctx context.Context, code string) (Account, error)
	CountChildren(ctx context.Context, code string) (int, error)
	Insert(ctx context.Context, acc Account) (Account, error)
	Update(ctx context.Context, acc Account) (Account, error)
	Delete(ctx context.Context, id int64) error
}

const accountColumns = `id, code, name, type, parent_code, is_active, is_category, normal_balance, created_at, updated_at`

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL account repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := pgxscan.Select(ctx, r.pool, &accounts, `SELECT `+accountColumns+` FROM accounts ORDER BY code`); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repository) ListByCodes(ctx context.Context, codes []string) ([]Account, error) {
	var accounts []Account
	if err := pgxscan.Select(ctx, r.pool, &accounts, `SELECT `+accountColumns+` FROM accounts WHERE code = ANY($1) ORDER BY code`, codes); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	return getOne(ctx, r.pool, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id)
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	return getOne(ctx, r.pool, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Account, error) {
	return getOne(ctx, r.tx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 FOR UPDATE`, id)
}

func (r *txRepository) GetByCode(ctx context.Context, code string) (Account, error) {
	return getOne(ctx, r.tx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code)
}

// LockByCode reads the row FOR UPDATE so two parent changes walking the same
// chain serialize instead of both committing half of a cycle.
func (r *txRepository) LockByCode(ctx context.Context, code string) (Account, error) {
	return getOne(ctx, r.tx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1 FOR UPDATE`, code)
}

func (r *txRepository) CountChildren(ctx context.Context, code string) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE parent_code=$1`, code).Scan(&n)
	return n, err
}

func (r *txRepository) Insert(ctx context.Context, acc Account) (Account, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO accounts (code, name, type, parent_code, is_active, is_category, normal_balance, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		acc.Code, acc.Name, acc.Type, acc.ParentCode, acc.IsActive, acc.IsCategory, acc.NormalBalance, acc.CreatedAt, acc.UpdatedAt).
		Scan(&acc.ID)
	if err != nil {
		return Account{}, mapWriteError(err, acc.Code)
	}
	return acc, nil
}

// Update saves the row. Children and journal lines follow a code change
// through ON UPDATE CASCADE.
func (r *txRepository) Update(ctx context.Context, acc Account) (Account, error) {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET code=$2, name=$3, type=$4, parent_code=$5, is_active=$6, is_category=$7, normal_balance=$8, updated_at=$9
WHERE id=$1`, acc.ID, acc.Code, acc.Name, acc.Type, acc.ParentCode, acc.IsActive, acc.IsCategory, acc.NormalBalance, acc.UpdatedAt)
	if err != nil {
		return Account{}, mapWriteError(err, acc.Code)
	}
	if cmd.RowsAffected() == 0 {
		return Account{}, shared.ErrAccountNotFound
	}
	return acc, nil
}

func (r *txRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return shared.ErrAccountInUse.Wrap(err)
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

// SelectForShare loads accounts by code inside tx and holds FOR SHARE locks
// on them until the tx ends, so they cannot be deactivated or turned into
// category accounts while a posting against them is in flight.
func SelectForShare(ctx context.Context, tx pgx.Tx, codes []string) ([]Account, error) {
	var accounts []Account
	if len(codes) == 0 {
		return accounts, nil
	}
	if err := pgxscan.Select(ctx, tx, &accounts, `SELECT `+accountColumns+` FROM accounts WHERE code = ANY($1) ORDER BY code FOR SHARE`, codes); err != nil {
		return nil, err
	}
	return accounts, nil
}

func getOne(ctx context.Context, q pgxscan.Querier, sql string, args ...any) (Account, error) {
	var acc Account
	if err := pgxscan.Get(ctx, q, &acc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return Account{}, shared.ErrAccountNotFound
		}
		return Account{}, err
	}
	return acc, nil
}

func mapWriteError(err error, code string) error {
	if db.IsUniqueViolation(err, "uq_accounts_code") {
		return shared.ErrDuplicateCode.With("code", code)
	}
	if db.IsForeignKeyViolation(err) {
		return shared.ErrParentNotFound.Wrap(err)
	}
	return err
}
