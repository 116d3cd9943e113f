// Package documents holds the money model shared by sales orders, purchase
// orders and invoices.
package documents

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// TaxScale is the number of decimal places tax amounts are rounded to.
const TaxScale = shared.MoneyScale

var hundred = decimal.NewFromInt(100)

// LineItem is one priced line of a document. Discount is per unit.
type LineItem struct {
	ProductID  int64           `json:"product_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Discount   decimal.Decimal `json:"discount"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Header carries the document level inputs of the totals computation.
type Header struct {
	TaxPercent    decimal.Decimal `json:"tax_percent"`
	Shipping      decimal.Decimal `json:"shipping"`
	OrderDiscount decimal.Decimal `json:"order_discount"`
}

// Totals is the output of ComputeTotals.
type Totals struct {
	Items           []LineItem
	Subtotal        decimal.Decimal
	DiscountApplied decimal.Decimal
	TaxAmount       decimal.Decimal
	Total           decimal.Decimal
}

// lineAmounts prices one line. Gross and discount are each rounded half to
// even at cent scale so the stored total is exactly gross minus discount.
func lineAmounts(item LineItem) (total, discount decimal.Decimal) {
	gross := shared.RoundMoney(item.Quantity.Mul(item.UnitPrice))
	discount = shared.RoundMoney(item.Quantity.Mul(item.Discount))
	return gross.Sub(discount), discount
}

// ComputeTotals derives line totals and document totals. Inputs are assumed
// validated; see Validate. The items slice is not modified. Every amount in
// the result is at cent scale when the inputs fit their scales.
func ComputeTotals(items []LineItem, taxPercent, shipping, orderDiscount decimal.Decimal) Totals {
	out := Totals{Items: make([]LineItem, len(items))}
	subtotal := decimal.Zero
	itemDiscounts := decimal.Zero
	for i, item := range items {
		lineTotal, lineDiscount := lineAmounts(item)
		item.TotalPrice = lineTotal
		out.Items[i] = item
		subtotal = subtotal.Add(lineTotal)
		itemDiscounts = itemDiscounts.Add(lineDiscount)
	}
	taxable := subtotal.Sub(orderDiscount)
	tax := taxable.Mul(taxPercent).Div(hundred).RoundBank(TaxScale)

	out.Subtotal = subtotal
	out.DiscountApplied = itemDiscounts.Add(orderDiscount)
	out.TaxAmount = tax
	out.Total = taxable.Add(tax).Add(shipping)
	return out
}

// Compute runs ComputeTotals with the header inputs.
func (h Header) Compute(items []LineItem) Totals {
	return ComputeTotals(items, h.TaxPercent, h.Shipping, h.OrderDiscount)
}

// Matches reports whether two computations agree on every amount.
func (t Totals) Matches(other Totals) bool {
	if len(t.Items) != len(other.Items) {
		return false
	}
	for i := range t.Items {
		if !t.Items[i].TotalPrice.Equal(other.Items[i].TotalPrice) {
			return false
		}
	}
	return t.Subtotal.Equal(other.Subtotal) &&
		t.DiscountApplied.Equal(other.DiscountApplied) &&
		t.TaxAmount.Equal(other.TaxAmount) &&
		t.Total.Equal(other.Total)
}

// Amounts is the stored money block of a document header.
type Amounts struct {
	TaxPercent      decimal.Decimal `json:"tax_percent" db:"tax_percent"`
	Shipping        decimal.Decimal `json:"shipping" db:"shipping"`
	OrderDiscount   decimal.Decimal `json:"order_discount" db:"order_discount"`
	Subtotal        decimal.Decimal `json:"subtotal" db:"subtotal"`
	DiscountApplied decimal.Decimal `json:"discount_applied" db:"discount_applied"`
	TaxAmount       decimal.Decimal `json:"tax_amount" db:"tax_amount"`
	Total           decimal.Decimal `json:"total" db:"total"`
}

// NewAmounts combines header inputs with their computed totals.
func NewAmounts(h Header, t Totals) Amounts {
	return Amounts{
		TaxPercent:      h.TaxPercent,
		Shipping:        h.Shipping,
		OrderDiscount:   h.OrderDiscount,
		Subtotal:        t.Subtotal,
		DiscountApplied: t.DiscountApplied,
		TaxAmount:       t.TaxAmount,
		Total:           t.Total,
	}
}

// Header returns the inputs the amounts were computed from.
func (a Amounts) Header() Header {
	return Header{TaxPercent: a.TaxPercent, Shipping: a.Shipping, OrderDiscount: a.OrderDiscount}
}

// Totals returns the stored amounts as a Totals over items.
func (a Amounts) Totals(items []LineItem) Totals {
	return Totals{
		Items:           items,
		Subtotal:        a.Subtotal,
		DiscountApplied: a.DiscountApplied,
		TaxAmount:       a.TaxAmount,
		Total:           a.Total,
	}
}

// Consistent reports whether the stored amounts equal a fresh recomputation
// over items and fit the columns they are stored in.
func (a Amounts) Consistent(items []LineItem) bool {
	stored := a.Totals(items)
	if !stored.Matches(a.Header().Compute(items)) {
		return false
	}
	for _, item := range items {
		if !shared.FitsScale(item.TotalPrice, shared.MoneyScale) {
			return false
		}
	}
	for _, v := range []decimal.Decimal{a.Subtotal, a.DiscountApplied, a.TaxAmount, a.Total} {
		if !shared.FitsScale(v, shared.MoneyScale) {
			return false
		}
	}
	return true
}

// Verify returns ErrTotalsDiverged unless Consistent holds. Save paths call
// it right before writing.
func (a Amounts) Verify(items []LineItem) error {
	if !a.Consistent(items) {
		return ErrTotalsDiverged.With("total", a.Total.String())
	}
	return nil
}

// Prepare validates the inputs and prices them in one step.
func Prepare(items []LineItem, h Header) ([]LineItem, Amounts, error) {
	if err := Validate(items, h); err != nil {
		return nil, Amounts{}, err
	}
	t := h.Compute(items)
	amounts := NewAmounts(h, t)
	if err := amounts.Verify(t.Items); err != nil {
		return nil, Amounts{}, err
	}
	return t.Items, amounts, nil
}

// Figures lists the presentable amounts keyed by their JSON names.
func (a Amounts) Figures() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"subtotal":         a.Subtotal,
		"discount_applied": a.DiscountApplied,
		"tax_amount":       a.TaxAmount,
		"shipping":         a.Shipping,
		"total":            a.Total,
	}
}
