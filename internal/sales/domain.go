package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Status enumerates sales order statuses.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

var (
	ErrOrderNotFound   = shared.NewNotFound("SALES_ORDER_NOT_FOUND", "sales: order not found")
	ErrNotDraft        = shared.NewInvalidState("SALES_ORDER_NOT_DRAFT", "sales: only draft orders can change")
	ErrCannotCancel    = shared.NewInvalidState("SALES_ORDER_CANNOT_CANCEL", "sales: order cannot be cancelled")
	ErrDuplicateLine   = shared.NewValidation("SALES_ORDER_DUPLICATE_LINE", "sales: product listed more than once")
	ErrInvalidDelivery = shared.NewValidation("SALES_ORDER_INVALID_DELIVERY", "sales: expected delivery precedes order date")
)

// SalesOrder is a customer order with computed totals.
type SalesOrder struct {
	ID               int64      `json:"id" db:"id"`
	Number           string     `json:"number" db:"number"`
	CustomerID       int64      `json:"customer_id" db:"customer_id"`
	Status           Status     `json:"status" db:"status"`
	OrderDate        time.Time  `json:"order_date" db:"order_date"`
	ExpectedDelivery *time.Time `json:"expected_delivery,omitempty" db:"expected_delivery"`
	Notes            string     `json:"notes" db:"notes"`
	documents.Amounts
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancellationReason string     `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CreatedBy          string     `json:"created_by" db:"created_by"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
	Lines              []Line     `json:"lines" db:"-"`
}

// Line is one ordered product.
type Line struct {
	ID         int64           `json:"id" db:"id"`
	OrderID    int64           `json:"order_id" db:"order_id"`
	LineNo     int             `json:"line_no" db:"line_no"`
	ProductID  int64           `json:"product_id" db:"product_id"`
	Quantity   decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"`
	Discount   decimal.Decimal `json:"discount" db:"discount"`
	TotalPrice decimal.Decimal `json:"total_price" db:"total_price"`
}

func linesFromItems(items []documents.LineItem) []Line {
	lines := make([]Line, len(items))
	for i, item := range items {
		lines[i] = Line{
			LineNo:     i + 1,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Discount:   item.Discount,
			TotalPrice: item.TotalPrice,
		}
	}
	return lines
}

func (so SalesOrder) lineItems() []documents.LineItem {
	items := make([]documents.LineItem, len(so.Lines))
	for i, l := range so.Lines {
		items[i] = documents.LineItem{
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			Discount:   l.Discount,
			TotalPrice: l.TotalPrice,
		}
	}
	return items
}

// verify fails when the stored totals would not match the lines.
func (so SalesOrder) verify() error {
	return so.Amounts.Verify(so.lineItems())
}

// LineInput is one requested line. A nil UnitPrice takes the catalogue
// price; an explicit zero records a free line.
type LineInput struct {
	ProductID int64
	Quantity  decimal.Decimal
	UnitPrice *decimal.Decimal
	Discount  decimal.Decimal
}

// OrderInput describes an order to create or replace.
type OrderInput struct {
	CustomerID       int64
	OrderDate        time.Time
	ExpectedDelivery *time.Time
	Notes            string
	Header           documents.Header
	Lines            []LineInput
}

// ListFilter narrows List results.
type ListFilter struct {
	Status     Status
	CustomerID int64
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
