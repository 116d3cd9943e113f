package masterdata

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

type memoryRepo struct {
	mu           sync.Mutex
	parties      map[int64]Party
	products     map[int64]Product
	nextID       int64
	partyReads   atomic.Int64
	productReads atomic.Int64
	gate         chan struct{}
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{parties: map[int64]Party{}, products: map[int64]Product{}}
}

func (r *memoryRepo) GetParty(ctx context.Context, id int64) (Party, error) {
	r.partyReads.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.parties[id]
	if !ok {
		return Party{}, ErrPartyNotFound
	}
	return p, nil
}

func (r *memoryRepo) GetProduct(ctx context.Context, id int64) (Product, error) {
	r.productReads.Add(1)
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListParties(ctx context.Context, filter ListFilter) ([]Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Party
	for _, p := range r.parties {
		if filter.Kind != "" && p.Kind != filter.Kind && p.Kind != PartyBoth {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memoryRepo) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Product
	for _, p := range r.products {
		if filter.Active != nil && p.IsActive != *filter.Active {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r *memoryRepo) InsertParty(ctx context.Context, p Party) (Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.parties {
		if existing.Code == p.Code {
			return Party{}, ErrDuplicateCode.With("code", p.Code)
		}
	}
	r.nextID++
	p.ID = r.nextID
	r.parties[p.ID] = p
	return p, nil
}

func (r *memoryRepo) UpdateParty(ctx context.Context, p Party) (Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.parties[p.ID]
	if !ok {
		return Party{}, ErrPartyNotFound
	}
	p.CreatedAt = current.CreatedAt
	r.parties[p.ID] = p
	return p, nil
}

func (r *memoryRepo) InsertProduct(ctx context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.products {
		if existing.SKU == p.SKU {
			return Product{}, ErrDuplicateSKU.With("sku", p.SKU)
		}
	}
	r.nextID++
	p.ID = r.nextID
	r.products[p.ID] = p
	return p, nil
}

func (r *memoryRepo) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.products[p.ID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	p.CreatedAt = current.CreatedAt
	r.products[p.ID] = p
	return p, nil
}
