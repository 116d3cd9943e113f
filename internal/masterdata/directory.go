package masterdata

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// Reader loads parties and products from the system of record.
type Reader interface {
	GetParty(ctx context.Context, id int64) (Party, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
}

// Directory serves party and product lookups for the document services
// through the shared cache.
type Directory struct {
	reader Reader
	cache  *Cache
	group  singleflight.Group
}

// NewDirectory builds a Directory. cache may be nil.
func NewDirectory(reader Reader, cache *Cache) *Directory {
	return &Directory{reader: reader, cache: cache}
}

// Party returns a party by id.
func (d *Directory) Party(ctx context.Context, id int64) (Party, error) {
	var party Party
	err := d.fetch(ctx, &party, "party", id, func(ctx context.Context) (any, error) {
		return d.reader.GetParty(ctx, id)
	})
	return party, err
}

// Customer returns the party when it may be invoiced.
func (d *Directory) Customer(ctx context.Context, id int64) (Party, error) {
	party, err := d.Party(ctx, id)
	if errors.Is(err, ErrPartyNotFound) {
		return Party{}, ErrNotCustomer.With("party_id", id).Wrap(err)
	}
	if err != nil {
		return Party{}, err
	}
	if !party.IsCustomer() {
		return Party{}, ErrNotCustomer.With("party_id", id)
	}
	return party, nil
}

// Vendor returns the party when purchase orders may be raised against it.
func (d *Directory) Vendor(ctx context.Context, id int64) (Party, error) {
	party, err := d.Party(ctx, id)
	if errors.Is(err, ErrPartyNotFound) {
		return Party{}, ErrNotVendor.With("party_id", id).Wrap(err)
	}
	if err != nil {
		return Party{}, err
	}
	if !party.IsVendor() {
		return Party{}, ErrNotVendor.With("party_id", id)
	}
	return party, nil
}

// Product returns a product by id.
func (d *Directory) Product(ctx context.Context, id int64) (Product, error) {
	var product Product
	err := d.fetch(ctx, &product, "product", id, func(ctx context.Context) (any, error) {
		return d.reader.GetProduct(ctx, id)
	})
	return product, err
}

// Products resolves every id and fails on the first unknown or inactive one.
func (d *Directory) Products(ctx context.Context, ids []int64) (map[int64]Product, error) {
	out := make(map[int64]Product, len(ids))
	for _, id := range ids {
		if _, ok := out[id]; ok {
			continue
		}
		product, err := d.Product(ctx, id)
		if err != nil {
			return nil, err
		}
		if !product.IsActive {
			return nil, ErrInactiveProduct.With("product_id", id)
		}
		out[id] = product
	}
	return out, nil
}

// Invalidate drops every cached lookup.
func (d *Directory) Invalidate(ctx context.Context) error {
	return d.cache.Bump(ctx)
}

func (d *Directory) fetch(ctx context.Context, dest any, kind string, id int64, loader func(context.Context) (any, error)) error {
	key, err := d.cache.BuildKey(ctx, kind, strconv.FormatInt(id, 10))
	if err != nil {
		return err
	}
	shared := func(ctx context.Context) (any, error) {
		ch := d.group.DoChan(key, func() (any, error) {
			return loader(ctx)
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			return res.Val, res.Err
		}
	}
	return d.cache.FetchJSON(ctx, key, dest, shared)
}
