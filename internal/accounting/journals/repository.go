package journals

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	core "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	Get(ctx context.Context, id int64) (JournalEntry, error)
	List(ctx context.Context, filter ListFilter) ([]JournalEntry, error)
	PostedTotals(ctx context.Context, asOf time.Time) ([]TrialBalanceLine, error)
	UnbalancedEntries(ctx context.Context) ([]IntegrityIssue, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	NextNumber(ctx context.Context, year int) (int64, error)
	Insert(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	GetForUpdate(ctx context.Context, id int64) (JournalEntry, error)
	ShareAccounts(ctx context.Context, codes []string) (map[string]accounts.Account, error)
	HasReversal(ctx context.Context, id int64) (bool, error)
	Update(ctx context.Context, entry JournalEntry) error
	Delete(ctx context.Context, id int64) error
}

const (
	entryColumns = `je.id, je.number, je.entry_date, je.description, je.status, je.posted_at, je.voided_at, je.void_reason, je.reversal_of, je.created_by, je.created_at, je.updated_at`
	lineColumns  = `id, entry_id, line_no, account_code, debit, credit, memo`
)

type repository struct {
	pool    *pgxpool.Pool
	builder sq.StatementBuilderType
}

// NewRepository returns the PostgreSQL journal repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func (r *repository) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return getEntry(ctx, r.pool, `SELECT `+entryColumns+` FROM journal_entries je WHERE je.id=$1`, id)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	q := r.builder.Select(entryColumns).From("journal_entries je")
	if filter.Status != "" {
		q = q.Where(sq.Eq{"je.status": filter.Status})
	}
	if filter.From != nil {
		q = q.Where(sq.GtOrEq{"je.entry_date": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(sq.LtOrEq{"je.entry_date": *filter.To})
	}
	if filter.AccountCode != "" {
		q = q.Where("EXISTS (SELECT 1 FROM journal_lines jl WHERE jl.entry_id = je.id AND jl.account_code = ?)", filter.AccountCode)
	}
	q = q.OrderBy("je.entry_date DESC", "je.id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var entries []JournalEntry
	if err := pgxscan.Select(ctx, r.pool, &entries, query, args...); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	var lines []JournalLine
	if err := pgxscan.Select(ctx, r.pool, &lines, `SELECT `+lineColumns+` FROM journal_lines WHERE entry_id = ANY($1) ORDER BY entry_id, line_no`, ids); err != nil {
		return nil, err
	}
	byEntry := make(map[int64][]JournalLine, len(entries))
	for _, line := range lines {
		byEntry[line.EntryID] = append(byEntry[line.EntryID], line)
	}
	for i := range entries {
		entries[i].Lines = byEntry[entries[i].ID]
	}
	return entries, nil
}

func (r *repository) PostedTotals(ctx context.Context, asOf time.Time) ([]TrialBalanceLine, error) {
	var lines []TrialBalanceLine
	err := pgxscan.Select(ctx, r.pool, &lines, `SELECT jl.account_code, SUM(jl.debit) AS debit, SUM(jl.credit) AS credit
FROM journal_lines jl
JOIN journal_entries je ON je.id = jl.entry_id
WHERE je.status = 'POSTED' AND je.entry_date <= $1
GROUP BY jl.account_code
ORDER BY jl.account_code`, asOf)
	return lines, err
}

func (r *repository) UnbalancedEntries(ctx context.Context) ([]IntegrityIssue, error) {
	var issues []IntegrityIssue
	err := pgxscan.Select(ctx, r.pool, &issues, `SELECT je.id AS entry_id, je.number, COALESCE(SUM(jl.debit),0) AS debit, COALESCE(SUM(jl.credit),0) AS credit
FROM journal_entries je
LEFT JOIN journal_lines jl ON jl.entry_id = je.id
WHERE je.status <> 'DRAFT'
GROUP BY je.id, je.number
HAVING COALESCE(SUM(jl.debit),0) <> COALESCE(SUM(jl.credit),0) OR COALESCE(SUM(jl.debit),0) = 0
ORDER BY je.id`)
	return issues, err
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
	return db.NextSequence(ctx, r.tx, core.PrefixJournal, year)
}

func (r *txRepository) Insert(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (number, entry_date, description, status, posted_at, voided_at, void_reason, reversal_of, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		entry.Number, entry.Date, entry.Description, entry.Status, entry.PostedAt, entry.VoidedAt, entry.VoidReason, entry.ReversalOf, entry.CreatedBy, entry.CreatedAt, entry.UpdatedAt).
		Scan(&entry.ID)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := r.insertLines(ctx, entry.ID, entry.Lines); err != nil {
		return JournalEntry{}, err
	}
	for i := range entry.Lines {
		entry.Lines[i].EntryID = entry.ID
	}
	return entry, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	return getEntry(ctx, r.tx, `SELECT `+entryColumns+` FROM journal_entries je WHERE je.id=$1 FOR UPDATE`, id)
}

func (r *txRepository) ShareAccounts(ctx context.Context, codes []string) (map[string]accounts.Account, error) {
	list, err := accounts.SelectForShare(ctx, r.tx, codes)
	if err != nil {
		return nil, err
	}
	out := make(map[string]accounts.Account, len(list))
	for _, acc := range list {
		out[acc.Code] = acc
	}
	return out, nil
}

func (r *txRepository) HasReversal(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_entries WHERE reversal_of=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) Update(ctx context.Context, entry JournalEntry) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET entry_date=$2, description=$3, status=$4, posted_at=$5, voided_at=$6, void_reason=$7, updated_at=$8
WHERE id=$1`, entry.ID, entry.Date, entry.Description, entry.Status, entry.PostedAt, entry.VoidedAt, entry.VoidReason, entry.UpdatedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id=$1`, entry.ID); err != nil {
		return err
	}
	return r.insertLines(ctx, entry.ID, entry.Lines)
}

func (r *txRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries WHERE id=$1 AND status='DRAFT'`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) insertLines(ctx context.Context, entryID int64, lines []JournalLine) error {
	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(`INSERT INTO journal_lines (entry_id, line_no, account_code, debit, credit, memo) VALUES ($1,$2,$3,$4,$5,$6)`,
			entryID, line.LineNo, line.AccountCode, line.Debit, line.Credit, line.Memo)
	}
	results := r.tx.SendBatch(ctx, batch)
	for range lines {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			if db.IsForeignKeyViolation(err) {
				return shared.ErrAccountNotFound.Wrap(err)
			}
			return err
		}
	}
	return results.Close()
}

func getEntry(ctx context.Context, q pgxscan.Querier, query string, id int64) (JournalEntry, error) {
	var entry JournalEntry
	if err := pgxscan.Get(ctx, q, &entry, query, id); err != nil {
		if pgxscan.NotFound(err) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	if err := pgxscan.Select(ctx, q, &entry.Lines, `SELECT `+lineColumns+` FROM journal_lines WHERE entry_id=$1 ORDER BY line_no`, id); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}
