package sales

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
)

type memoryRepo struct {
	mu       sync.Mutex
	orders   map[int64]SalesOrder
	counters map[int]int64
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: map[int64]SalesOrder{}, counters: map[int]int64{}}
}

func cloneOrder(so SalesOrder) SalesOrder {
	so.Lines = append([]Line(nil), so.Lines...)
	return so
}

// atColumnScale rounds every numeric field to its column scale, as PostgreSQL does
// for NUMERIC(p,s) on write.
func atColumnScale(so SalesOrder) SalesOrder {
	so = cloneOrder(so)
	so.TaxPercent = so.TaxPercent.Round(4)
	for _, v := range []*decimal.Decimal{&so.Shipping, &so.OrderDiscount, &so.Subtotal, &so.DiscountApplied, &so.TaxAmount, &so.Total} {
		*v = v.Round(2)
	}
	for i := range so.Lines {
		l := &so.Lines[i]
		l.Quantity = l.Quantity.Round(4)
		l.UnitPrice = l.UnitPrice.Round(2)
		l.Discount = l.Discount.Round(2)
		l.TotalPrice = l.TotalPrice.Round(2)
	}
	return so
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (SalesOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	so, ok := r.orders[id]
	if !ok {
		return SalesOrder{}, ErrOrderNotFound
	}
	return cloneOrder(so), nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]SalesOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SalesOrder
	for _, so := range r.orders {
		if filter.Status != "" && so.Status != filter.Status {
			continue
		}
		if filter.CustomerID != 0 && so.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, cloneOrder(so))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	orders := make(map[int64]SalesOrder, len(r.orders))
	for id, so := range r.orders {
		orders[id] = cloneOrder(so)
	}
	counters := make(map[int]int64, len(r.counters))
	for y, v := range r.counters {
		counters[y] = v
	}
	nextID := r.nextID
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.orders, r.counters, r.nextID = orders, counters, nextID
		return err
	}
	return nil
}

func (tx *memoryTx) NextNumber(ctx context.Context, year int) (int64, error) {
	tx.repo.counters[year]++
	return tx.repo.counters[year], nil
}

func (tx *memoryTx) Insert(ctx context.Context, so SalesOrder) (SalesOrder, error) {
	tx.repo.nextID++
	so.ID = tx.repo.nextID
	for i := range so.Lines {
		tx.repo.nextID++
		so.Lines[i].ID = tx.repo.nextID
		so.Lines[i].OrderID = so.ID
	}
	tx.repo.orders[so.ID] = atColumnScale(so)
	return so, nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, id int64) (SalesOrder, error) {
	so, ok := tx.repo.orders[id]
	if !ok {
		return SalesOrder{}, ErrOrderNotFound
	}
	return cloneOrder(so), nil
}

func (tx *memoryTx) Update(ctx context.Context, so SalesOrder) error {
	if _, ok := tx.repo.orders[so.ID]; !ok {
		return ErrOrderNotFound
	}
	tx.repo.orders[so.ID] = atColumnScale(so)
	return nil
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, so SalesOrder) error {
	current, ok := tx.repo.orders[so.ID]
	if !ok {
		return ErrOrderNotFound
	}
	current.Status = so.Status
	current.ConfirmedAt = so.ConfirmedAt
	current.CancelledAt = so.CancelledAt
	current.CancellationReason = so.CancellationReason
	current.UpdatedAt = so.UpdatedAt
	tx.repo.orders[so.ID] = current
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
			10: {ID: 10, SKU: "W-1", Name: "Widget", Price: decimal.RequireFromString("12.50"), IsActive: true},
			11: {ID: 11, SKU: "W-2", Name: "Gadget", Price: decimal.RequireFromString("40"), IsActive: true},
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
