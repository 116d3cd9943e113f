package journals

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type memoryRepo struct {
	mu          sync.Mutex
	entries     map[int64]JournalEntry
	counters    map[int]int64
	nextID      int64
	chart       chart
	sharedCodes [][]string
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[int64]JournalEntry), counters: make(map[int]int64), chart: testChart()}
}

func cloneEntry(e JournalEntry) JournalEntry {
	e.Lines = append([]JournalLine(nil), e.Lines...)
	return e
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (JournalEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return cloneEntry(e), nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []JournalEntry
	for _, e := range r.entries {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.From != nil && e.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.Date.After(*filter.To) {
			continue
		}
		if filter.AccountCode != "" && !touches(e, filter.AccountCode) {
			continue
		}
		out = append(out, cloneEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func touches(e JournalEntry, code string) bool {
	for _, line := range e.Lines {
		if line.AccountCode == code {
			return true
		}
	}
	return false
}

func (r *memoryRepo) PostedTotals(ctx context.Context, asOf time.Time) ([]TrialBalanceLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := map[string]*TrialBalanceLine{}
	for _, e := range r.entries {
		if e.Status != JournalStatusPosted || e.Date.After(asOf) {
			continue
		}
		for _, line := range e.Lines {
			t, ok := totals[line.AccountCode]
			if !ok {
				t = &TrialBalanceLine{AccountCode: line.AccountCode, Debit: decimal.Zero, Credit: decimal.Zero}
				totals[line.AccountCode] = t
			}
			t.Debit = t.Debit.Add(line.Debit)
			t.Credit = t.Credit.Add(line.Credit)
		}
	}
	out := make([]TrialBalanceLine, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	return out, nil
}

func (r *memoryRepo) UnbalancedEntries(ctx context.Context) ([]IntegrityIssue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []IntegrityIssue
	for _, e := range r.entries {
		if e.Status == JournalStatusDraft {
			continue
		}
		debit, credit := sumLines(e.Lines)
		if !debit.Equal(credit) || debit.IsZero() {
			out = append(out, IntegrityIssue{EntryID: e.ID, Number: e.Number, Debit: debit, Credit: credit})
		}
	}
	return out, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make(map[int64]JournalEntry, len(r.entries))
	for id, e := range r.entries {
		entries[id] = cloneEntry(e)
	}
	counters := make(map[int]int64, len(r.counters))
	for y, v := range r.counters {
		counters[y] = v
	}
	nextID := r.nextID
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.entries, r.counters, r.nextID = entries, counters, nextID
		return err
	}
	return nil
}

func (tx *memoryTx) NextNumber(ctx context.Context, year int) (int64, error) {
	tx.repo.counters[year]++
	return tx.repo.counters[year], nil
}

func (tx *memoryTx) Insert(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	for i := range entry.Lines {
		entry.Lines[i].EntryID = entry.ID
	}
	tx.repo.entries[entry.ID] = cloneEntry(entry)
	return entry, nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	e, ok := tx.repo.entries[id]
	if !ok {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return cloneEntry(e), nil
}

func (tx *memoryTx) ShareAccounts(ctx context.Context, codes []string) (map[string]accounts.Account, error) {
	tx.repo.sharedCodes = append(tx.repo.sharedCodes, append([]string(nil), codes...))
	return tx.repo.chart.Resolve(ctx, codes)
}

func (tx *memoryTx) HasReversal(ctx context.Context, id int64) (bool, error) {
	for _, e := range tx.repo.entries {
		if e.ReversalOf != nil && *e.ReversalOf == id {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) Update(ctx context.Context, entry JournalEntry) error {
	if _, ok := tx.repo.entries[entry.ID]; !ok {
		return shared.ErrJournalNotFound
	}
	tx.repo.entries[entry.ID] = cloneEntry(entry)
	return nil
}

func (tx *memoryTx) Delete(ctx context.Context, id int64) error {
	if _, ok := tx.repo.entries[id]; !ok {
		return shared.ErrJournalNotFound
	}
	delete(tx.repo.entries, id)
	return nil
}

type chart map[string]accounts.Account

func (c chart) Resolve(ctx context.Context, codes []string) (map[string]accounts.Account, error) {
	out := map[string]accounts.Account{}
	for _, code := range codes {
		if acc, ok := c[code]; ok {
			out[code] = acc
		}
	}
	return out, nil
}

func testChart() chart {
	mk := func(code, name string, typ accounts.AccountType) accounts.Account {
		return accounts.Account{Code: code, Name: name, Type: typ, IsActive: true, NormalBalance: accounts.NormalBalanceFor(typ)}
	}
	c := chart{
		"1100": mk("1100", "Cash", accounts.AccountTypeAsset),
		"1200": mk("1200", "Receivables", accounts.AccountTypeAsset),
		"4000": mk("4000", "Sales", accounts.AccountTypeRevenue),
		"5000": mk("5000", "COGS", accounts.AccountTypeCOGS),
	}
	header := mk("1000", "Assets", accounts.AccountTypeAsset)
	header.IsCategory = true
	c["1000"] = header
	old := mk("1900", "Old", accounts.AccountTypeAsset)
	old.IsActive = false
	c["1900"] = old
	return c
}
