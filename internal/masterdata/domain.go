package masterdata

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// PartyKind tells whether a party buys from us, sells to us, or both.
type PartyKind string

const (
	PartyCustomer PartyKind = "CUSTOMER"
	PartyVendor   PartyKind = "VENDOR"
	PartyBoth     PartyKind = "BOTH"
)

// Valid reports whether k is a known kind.
func (k PartyKind) Valid() bool {
	switch k {
	case PartyCustomer, PartyVendor, PartyBoth:
		return true
	}
	return false
}

var (
	ErrPartyNotFound   = shared.NewNotFound("PARTY_NOT_FOUND", "masterdata: party not found")
	ErrProductNotFound = shared.NewNotFound("PRODUCT_NOT_FOUND", "masterdata: product not found")
	ErrNotCustomer     = shared.NewNotFound("CUSTOMER_NOT_FOUND", "masterdata: party is not an active customer")
	ErrNotVendor       = shared.NewNotFound("VENDOR_NOT_FOUND", "masterdata: party is not an active vendor")
	ErrInactiveProduct = shared.NewValidation("INACTIVE_PRODUCT", "masterdata: product is inactive")
	ErrDuplicateCode   = shared.NewValidation("DUPLICATE_PARTY_CODE", "masterdata: party code already exists")
	ErrDuplicateSKU    = shared.NewValidation("DUPLICATE_SKU", "masterdata: product sku already exists")
	ErrInvalidCode     = shared.NewValidation("INVALID_CODE", "masterdata: code required")
	ErrInvalidName     = shared.NewValidation("INVALID_NAME", "masterdata: name required")
	ErrInvalidKind     = shared.NewValidation("INVALID_PARTY_KIND", "masterdata: unknown party kind")
	ErrInvalidPrice    = shared.NewValidation("INVALID_PRICE", "masterdata: price must not be negative and allows at most 2 decimal places")
)

// Party is a customer or vendor.
type Party struct {
	ID        int64     `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	Kind      PartyKind `json:"kind" db:"kind"`
	Email     string    `json:"email,omitempty" db:"email"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsCustomer reports whether invoices and sales orders may name the party.
func (p Party) IsCustomer() bool {
	return p.IsActive && (p.Kind == PartyCustomer || p.Kind == PartyBoth)
}

// IsVendor reports whether purchase orders may name the party.
func (p Party) IsVendor() bool {
	return p.IsActive && (p.Kind == PartyVendor || p.Kind == PartyBoth)
}

// Product is a catalogue item.
type Product struct {
	ID        int64           `json:"id" db:"id"`
	SKU       string          `json:"sku" db:"sku"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	IsActive  bool            `json:"is_active" db:"is_active"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// PartyInput carries party fields for create and update.
type PartyInput struct {
	Code     string
	Name     string
	Kind     PartyKind
	Email    string
	IsActive bool
}

// ProductInput carries product fields for create and update.
type ProductInput struct {
	SKU      string
	Name     string
	Price    decimal.Decimal
	IsActive bool
}

// ListFilter represents list filters shared by parties and products.
type ListFilter struct {
	Search string
	Kind   PartyKind
	Active *bool
	Limit  int
	Offset int
}
