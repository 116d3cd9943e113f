package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by pgx.Tx, pgx.Conn and pgxpool.Pool.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NextSequence allocates the next value of a year scoped counter. Callers run
// it inside the transaction that inserts the numbered document so a rollback
// also releases the row lock on the counter.
func NextSequence(ctx context.Context, q Querier, scope string, year int) (int64, error) {
	var next int64
	err := q.QueryRow(ctx, `INSERT INTO document_sequences (scope, year, last_value)
VALUES ($1, $2, 1)
ON CONFLICT (scope, year) DO UPDATE SET last_value = document_sequences.last_value + 1
RETURNING last_value`, scope, year).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("platform/db: next sequence %s/%d: %w", scope, year, err)
	}
	return next, nil
}
