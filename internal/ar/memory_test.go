package ar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	invoices map[int64]Invoice
	counters map[int]int64
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{invoices: map[int64]Invoice{}, counters: map[int]int64{}}
}

func cloneInvoice(inv Invoice) Invoice {
	inv.Lines = append([]Line(nil), inv.Lines...)
	inv.Payments = append([]Payment(nil), inv.Payments...)
	return inv
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return cloneInvoice(inv), nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invoice
	for _, inv := range r.invoices {
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		if filter.CustomerID != 0 && inv.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, cloneInvoice(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) PastDue(ctx context.Context, asOf time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for id, inv := range r.invoices {
		switch inv.Status {
		case StatusDraft, StatusSent, StatusPartiallyPaid:
			if inv.DueDate.Before(asOf) {
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *memoryRepo) Outstanding(ctx context.Context) ([]Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Invoice
	for _, inv := range r.invoices {
		if !inv.Status.Settled() && inv.BalanceDue.IsPositive() {
			out = append(out, cloneInvoice(inv))
		}
	}
	return out, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	invoices := make(map[int64]Invoice, len(r.invoices))
	for id, inv := range r.invoices {
		invoices[id] = cloneInvoice(inv)
	}
	counters := make(map[int]int64, len(r.counters))
	for y, v := range r.counters {
		counters[y] = v
	}
	nextID := r.nextID
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.invoices, r.counters, r.nextID = invoices, counters, nextID
		return err
	}
	return nil
}

func (tx *memoryTx) NextNumber(ctx context.Context, year int) (int64, error) {
	tx.repo.counters[year]++
	return tx.repo.counters[year], nil
}

func (tx *memoryTx) Insert(ctx context.Context, inv Invoice) (Invoice, error) {
	tx.repo.nextID++
	inv.ID = tx.repo.nextID
	for i := range inv.Lines {
		tx.repo.nextID++
		inv.Lines[i].ID = tx.repo.nextID
		inv.Lines[i].InvoiceID = inv.ID
	}
	tx.repo.invoices[inv.ID] = cloneInvoice(inv)
	return inv, nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, id int64) (Invoice, error) {
	inv, ok := tx.repo.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return cloneInvoice(inv), nil
}

func (tx *memoryTx) Update(ctx context.Context, inv Invoice) error {
	current, ok := tx.repo.invoices[inv.ID]
	if !ok {
		return ErrInvoiceNotFound
	}
	inv.Payments = current.Payments
	tx.repo.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (tx *memoryTx) UpdateSettlement(ctx context.Context, inv Invoice) error {
	current, ok := tx.repo.invoices[inv.ID]
	if !ok {
		return ErrInvoiceNotFound
	}
	current.Status = inv.Status
	current.AmountPaid = inv.AmountPaid
	current.BalanceDue = inv.BalanceDue
	current.SentAt = inv.SentAt
	current.VoidedAt = inv.VoidedAt
	current.UpdatedAt = inv.UpdatedAt
	tx.repo.invoices[inv.ID] = current
	return nil
}

func (tx *memoryTx) InsertPayment(ctx context.Context, payment Payment) (Payment, error) {
	current, ok := tx.repo.invoices[payment.InvoiceID]
	if !ok {
		return Payment{}, ErrInvoiceNotFound
	}
	tx.repo.nextID++
	payment.ID = tx.repo.nextID
	current.Payments = append(current.Payments, payment)
	tx.repo.invoices[payment.InvoiceID] = current
	return payment, nil
}

// memoryKeys mimics the idempotency table.
type memoryKeys struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryKeys() *memoryKeys {
	return &memoryKeys{keys: map[string]string{}}
}

func (m *memoryKeys) CheckAndInsert(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = module
	return nil
}

func (m *memoryKeys) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type directoryStub struct {
	parties  map[int64]masterdata.Party
	products map[int64]masterdata.Product
}

func newDirectoryStub() *directoryStub {
	return &directoryStub{
		parties: map[int64]masterdata.Party{
			1: {ID: 1, Code: "SUPP", Name: "Supplies Ltd", Kind: masterdata.PartyVendor, IsActive: true},
			2: {ID: 2, Code: "ACME", Name: "Acme Corp", Kind: masterdata.PartyCustomer, IsActive: true},
		},
		products: map[int64]masterdata.Product{
			10: {ID: 10, SKU: "W-1", Name: "Widget", IsActive: true},
			11: {ID: 11, SKU: "W-2", Name: "Gadget", IsActive: true},
		},
	}
}

func (d *directoryStub) Customer(ctx context.Context, id int64) (masterdata.Party, error) {
	p, ok := d.parties[id]
	if !ok || !p.IsCustomer() {
		return masterdata.Party{}, masterdata.ErrNotCustomer.With("party_id", id)
	}
	return p, nil
}

func (d *directoryStub) Products(ctx context.Context, ids []int64) (map[int64]masterdata.Product, error) {
	out := map[int64]masterdata.Product{}
	for _, id := range ids {
		p, ok := d.products[id]
		if !ok {
			return nil, masterdata.ErrProductNotFound.With("product_id", id)
		}
		out[id] = p
	}
	return out, nil
}
