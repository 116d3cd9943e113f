package masterdata

import (
	"context"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository persists parties and products.
type Repository interface {
	Reader
	ListParties(ctx context.Context, filter ListFilter) ([]Party, error)
	ListProducts(ctx context.Context, filter ListFilter) ([]Product, error)
	InsertParty(ctx context.Context, p Party) (Party, error)
	UpdateParty(ctx context.Context, p Party) (Party, error)
	InsertProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
}

const (
	partyColumns   = `id, code, name, kind, email, is_active, created_at, updated_at`
	productColumns = `id, sku, name, price, is_active, created_at, updated_at`
)

type repository struct {
	pool    *pgxpool.Pool
	builder sq.StatementBuilderType
}

// NewRepository returns the PostgreSQL master data repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func (r *repository) GetParty(ctx context.Context, id int64) (Party, error) {
	var p Party
	if err := pgxscan.Get(ctx, r.pool, &p, `SELECT `+partyColumns+` FROM parties WHERE id=$1`, id); err != nil {
		if pgxscan.NotFound(err) {
			return Party{}, ErrPartyNotFound
		}
		return Party{}, err
	}
	return p, nil
}

func (r *repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	if err := pgxscan.Get(ctx, r.pool, &p, `SELECT `+productColumns+` FROM products WHERE id=$1`, id); err != nil {
		if pgxscan.NotFound(err) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *repository) ListParties(ctx context.Context, filter ListFilter) ([]Party, error) {
	q := r.builder.Select(partyColumns).From("parties").OrderBy("code")
	if filter.Search != "" {
		like := "%" + strings.TrimSpace(filter.Search) + "%"
		q = q.Where(sq.Or{sq.ILike{"code": like}, sq.ILike{"name": like}})
	}
	if filter.Kind != "" {
		q = q.Where(sq.Eq{"kind": []PartyKind{filter.Kind, PartyBoth}})
	}
	if filter.Active != nil {
		q = q.Where(sq.Eq{"is_active": *filter.Active})
	}
	q = paginate(q, filter)
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var out []Party
	if err := pgxscan.Select(ctx, r.pool, &out, sql, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	q := r.builder.Select(productColumns).From("products").OrderBy("sku")
	if filter.Search != "" {
		like := "%" + strings.TrimSpace(filter.Search) + "%"
		q = q.Where(sq.Or{sq.ILike{"sku": like}, sq.ILike{"name": like}})
	}
	if filter.Active != nil {
		q = q.Where(sq.Eq{"is_active": *filter.Active})
	}
	q = paginate(q, filter)
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var out []Product
	if err := pgxscan.Select(ctx, r.pool, &out, sql, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func paginate(q sq.SelectBuilder, filter ListFilter) sq.SelectBuilder {
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	return q
}

func (r *repository) InsertParty(ctx context.Context, p Party) (Party, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO parties (code, name, kind, email, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		p.Code, p.Name, p.Kind, p.Email, p.IsActive, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return Party{}, partyWriteError(err, p.Code)
	}
	return p, nil
}

func (r *repository) UpdateParty(ctx context.Context, p Party) (Party, error) {
	cmd, err := r.pool.Exec(ctx, `UPDATE parties SET code=$2, name=$3, kind=$4, email=$5, is_active=$6, updated_at=$7 WHERE id=$1`,
		p.ID, p.Code, p.Name, p.Kind, p.Email, p.IsActive, p.UpdatedAt)
	if err != nil {
		return Party{}, partyWriteError(err, p.Code)
	}
	if cmd.RowsAffected() == 0 {
		return Party{}, ErrPartyNotFound
	}
	return r.GetParty(ctx, p.ID)
}

func (r *repository) InsertProduct(ctx context.Context, p Product) (Product, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO products (sku, name, price, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		p.SKU, p.Name, p.Price, p.IsActive, p.CreatedAt, p.UpdatedAt).Scan(&p.ID)
	if err != nil {
		return Product{}, productWriteError(err, p.SKU)
	}
	return p, nil
}

func (r *repository) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	cmd, err := r.pool.Exec(ctx, `UPDATE products SET sku=$2, name=$3, price=$4, is_active=$5, updated_at=$6 WHERE id=$1`,
		p.ID, p.SKU, p.Name, p.Price, p.IsActive, p.UpdatedAt)
	if err != nil {
		return Product{}, productWriteError(err, p.SKU)
	}
	if cmd.RowsAffected() == 0 {
		return Product{}, ErrProductNotFound
	}
	return r.GetProduct(ctx, p.ID)
}

func partyWriteError(err error, code string) error {
	if db.IsUniqueViolation(err, "uq_parties_code") {
		return ErrDuplicateCode.With("code", code)
	}
	return err
}

func productWriteError(err error, sku string) error {
	if db.IsUniqueViolation(err, "uq_products_sku") {
		return ErrDuplicateSKU.With("sku", sku)
	}
	return err
}
