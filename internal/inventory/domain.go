package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var (
	// ErrStockNotFound indicates the product has no stock record.
	ErrStockNotFound = shared.NewNotFound("STOCK_NOT_FOUND", "inventory: product not found")
	// ErrInvalidQuantity indicates a zero adjustment.
	ErrInvalidQuantity = shared.NewValidation("INVALID_QUANTITY", "inventory: adjustment quantity must be non-zero with at most 4 decimal places")
	// ErrNegativeStock indicates the adjustment would take on-hand below zero.
	ErrNegativeStock = shared.NewValidation("NEGATIVE_STOCK", "inventory: insufficient stock on hand")
)

// Stock is the on-hand quantity of one product.
type Stock struct {
	ProductID int64           `json:"product_id" db:"product_id"`
	OnHand    decimal.Decimal `json:"on_hand" db:"on_hand"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Movement records one change to a stock level.
type Movement struct {
	ID        int64           `json:"id" db:"id"`
	ProductID int64           `json:"product_id" db:"product_id"`
	Delta     decimal.Decimal `json:"delta" db:"delta"`
	OnHand    decimal.Decimal `json:"on_hand" db:"on_hand_after"`
	Reference string          `json:"reference" db:"reference"`
	CreatedBy string          `json:"created_by" db:"created_by"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
