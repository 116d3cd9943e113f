package documents

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var (
	ErrNoLines              = shared.NewValidation("DOCUMENT_NO_LINES", "documents: at least one line is required")
	ErrInvalidQuantity      = shared.NewValidation("DOCUMENT_INVALID_QUANTITY", "documents: quantity must be greater than zero")
	ErrInvalidPrice         = shared.NewValidation("DOCUMENT_INVALID_PRICE", "documents: unit price must not be negative")
	ErrInvalidDiscount      = shared.NewValidation("DOCUMENT_INVALID_DISCOUNT", "documents: discount must be between zero and unit price")
	ErrInvalidProduct       = shared.NewValidation("DOCUMENT_INVALID_PRODUCT", "documents: line product required")
	ErrInvalidTax           = shared.NewValidation("DOCUMENT_INVALID_TAX", "documents: tax percent must not be negative")
	ErrInvalidShipping      = shared.NewValidation("DOCUMENT_INVALID_SHIPPING", "documents: shipping must not be negative")
	ErrInvalidOrderDiscount = shared.NewValidation("DOCUMENT_INVALID_ORDER_DISCOUNT", "documents: order discount must be between zero and subtotal")
	ErrInvalidPrecision     = shared.NewValidation("DOCUMENT_INVALID_PRECISION", "documents: amounts allow 2 decimal places, quantities and tax percent 4")
	ErrTotalsDiverged       = shared.NewInvalidState("DOCUMENT_TOTALS_DIVERGED", "documents: stored totals diverge from line items")
)

// Validate rejects inputs ComputeTotals does not accept.
func Validate(items []LineItem, h Header) error {
	if len(items) == 0 {
		return ErrNoLines
	}
	subtotal := decimal.Zero
	for idx, item := range items {
		switch {
		case item.ProductID <= 0:
			return ErrInvalidProduct.With("line", idx)
		case !item.Quantity.IsPositive():
			return ErrInvalidQuantity.With("line", idx)
		case item.UnitPrice.IsNegative():
			return ErrInvalidPrice.With("line", idx)
		case item.Discount.IsNegative() || item.Discount.GreaterThan(item.UnitPrice):
			return ErrInvalidDiscount.With("line", idx)
		case !shared.FitsScale(item.Quantity, shared.QuantityScale):
			return ErrInvalidPrecision.With("line", idx).With("field", "quantity")
		case !shared.FitsScale(item.UnitPrice, shared.MoneyScale):
			return ErrInvalidPrecision.With("line", idx).With("field", "unit_price")
		case !shared.FitsScale(item.Discount, shared.MoneyScale):
			return ErrInvalidPrecision.With("line", idx).With("field", "discount")
		}
		total, _ := lineAmounts(item)
		subtotal = subtotal.Add(total)
	}
	if h.TaxPercent.IsNegative() {
		return ErrInvalidTax
	}
	if h.Shipping.IsNegative() {
		return ErrInvalidShipping
	}
	switch {
	case !shared.FitsScale(h.TaxPercent, shared.RateScale):
		return ErrInvalidPrecision.With("field", "tax_percent")
	case !shared.FitsScale(h.Shipping, shared.MoneyScale):
		return ErrInvalidPrecision.With("field", "shipping")
	case !shared.FitsScale(h.OrderDiscount, shared.MoneyScale):
		return ErrInvalidPrecision.With("field", "order_discount")
	}
	if h.OrderDiscount.IsNegative() || h.OrderDiscount.GreaterThan(subtotal) {
		return ErrInvalidOrderDiscount
	}
	return nil
}

// ProductIDs lists the distinct products referenced by items in first-seen order.
func ProductIDs(items []LineItem) []int64 {
	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
