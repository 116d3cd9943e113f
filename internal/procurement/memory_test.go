package procurement

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
)

type memoryRepo struct {
	mu        sync.Mutex
	orders    map[int64]PurchaseOrder
	counters  map[int]int64
	nextID    int64
	commitErr error
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: map[int64]PurchaseOrder{}, counters: map[int]int64{}}
}

func cloneOrder(po PurchaseOrder) PurchaseOrder {
	po.Lines = append([]Line(nil), po.Lines...)
	return po
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	po, ok := r.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	return cloneOrder(po), nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []PurchaseOrder
	for _, po := range r.orders {
		if filter.Status != "" && po.Status != filter.Status {
			continue
		}
		if filter.VendorID != 0 && po.VendorID != filter.VendorID {
			continue
		}
		out = append(out, cloneOrder(po))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	orders := make(map[int64]PurchaseOrder, len(r.orders))
	for id, po := range r.orders {
		orders[id] = cloneOrder(po)
	}
	counters := make(map[int]int64, len(r.counters))
	for y, v := range r.counters {
		counters[y] = v
	}
	nextID := r.nextID
	err := fn(ctx, &memoryTx{repo: r})
	if err == nil && r.commitErr != nil {
		err = r.commitErr
	}
	if err != nil {
		r.orders, r.counters, r.nextID = orders, counters, nextID
		return err
	}
	return nil
}

func (tx *memoryTx) NextNumber(ctx context.Context, year int) (int64, error) {
	tx.repo.counters[year]++
	return tx.repo.counters[year], nil
}

func (tx *memoryTx) Insert(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	tx.repo.nextID++
	po.ID = tx.repo.nextID
	for i := range po.Lines {
		tx.repo.nextID++
		po.Lines[i].ID = tx.repo.nextID
		po.Lines[i].OrderID = po.ID
	}
	tx.repo.orders[po.ID] = cloneOrder(po)
	return po, nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := tx.repo.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrOrderNotFound
	}
	return cloneOrder(po), nil
}

func (tx *memoryTx) Update(ctx context.Context, po PurchaseOrder) error {
	if _, ok := tx.repo.orders[po.ID]; !ok {
		return ErrOrderNotFound
	}
	for i := range po.Lines {
		tx.repo.nextID++
		po.Lines[i].ID = tx.repo.nextID
		po.Lines[i].OrderID = po.ID
	}
	tx.repo.orders[po.ID] = cloneOrder(po)
	return nil
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, po PurchaseOrder) error {
	current, ok := tx.repo.orders[po.ID]
	if !ok {
		return ErrOrderNotFound
	}
	current.Status = po.Status
	current.UpdatedAt = po.UpdatedAt
	tx.repo.orders[po.ID] = current
	return nil
}

func (tx *memoryTx) UpdateReceipt(ctx context.Context, po PurchaseOrder) error {
	if _, ok := tx.repo.orders[po.ID]; !ok {
		return ErrOrderNotFound
	}
	tx.repo.orders[po.ID] = cloneOrder(po)
	return nil
}

type adjustment struct {
	productID int64
	delta     decimal.Decimal
	ref       string
}

// stockStub applies adjustments in memory and fails for chosen products.
type stockStub struct {
	mu           sync.Mutex
	onHand       map[int64]decimal.Decimal
	calls        []adjustment
	failFor      map[int64]error
	failReversal map[int64]error
}

func newStockStub() *stockStub {
	return &stockStub{onHand: map[int64]decimal.Decimal{}, failFor: map[int64]error{}, failReversal: map[int64]error{}}
}

var errStockDown = errors.New("stock service unavailable")

func (s *stockStub) Adjust(ctx context.Context, productID int64, delta decimal.Decimal, ref string) (inventory.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, adjustment{productID: productID, delta: delta, ref: ref})
	failures := s.failFor
	if delta.IsNegative() {
		failures = s.failReversal
	}
	if err, ok := failures[productID]; ok {
		return inventory.Stock{}, err
	}
	s.onHand[productID] = s.onHand[productID].Add(delta)
	return inventory.Stock{ProductID: productID, OnHand: s.onHand[productID]}, nil
}

func (s *stockStub) level(productID int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onHand[productID]
}

type directoryStub struct {
	vendors  map[int64]masterdata.Party
	products map[int64]masterdata.Product
}

func newDirectoryStub() *directoryStub {
	return &directoryStub{
		vendors: map[int64]masterdata.Party{
			1: {ID: 1, Code: "SUPP", Name: "Supplies Ltd", Kind: masterdata.PartyVendor, IsActive: true},
			2: {ID: 2, Code: "CUST", Name: "Customer", Kind: masterdata.PartyCustomer, IsActive: true},
		},
		products: map[int64]masterdata.Product{
			10: {ID: 10, SKU: "W-1", Name: "Widget", IsActive: true},
			11: {ID: 11, SKU: "W-2", Name: "Gadget", IsActive: true},
			12: {ID: 12, SKU: "W-3", Name: "Gizmo", IsActive: true},
		},
	}
}

func (d *directoryStub) Vendor(ctx context.Context, id int64) (masterdata.Party, error) {
	p, ok := d.vendors[id]
	if !ok || !p.IsVendor() {
		return masterdata.Party{}, masterdata.ErrNotVendor.With("party_id", id)
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
