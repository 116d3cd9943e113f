package procurement

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Status enumerates purchase order lifecycle values.
type Status string

const (
	StatusPendingApproval   Status = "PENDING_APPROVAL"
	StatusOrdered           Status = "ORDERED"
	StatusPartiallyReceived Status = "PARTIALLY_RECEIVED"
	StatusReceived          Status = "RECEIVED"
	StatusCancelled         Status = "CANCELLED"
)

// Receivable reports whether goods may be received against the status.
func (s Status) Receivable() bool {
	return s == StatusOrdered || s == StatusPartiallyReceived
}

var (
	ErrOrderNotFound        = shared.NewNotFound("PO_NOT_FOUND", "procurement: purchase order not found")
	ErrLineNotFound         = shared.NewNotFound("PO_LINE_NOT_FOUND", "procurement: product is not on the purchase order")
	ErrNegativeQuantity     = shared.NewValidation("NEGATIVE_QUANTITY", "procurement: received quantity must not be negative")
	ErrQuantityPrecision    = shared.NewValidation("QUANTITY_PRECISION", "procurement: received quantity allows at most 4 decimal places")
	ErrOverReceipt          = shared.NewValidation("OVER_RECEIPT", "procurement: received quantity exceeds outstanding quantity")
	ErrEmptyReceipt         = shared.NewValidation("EMPTY_RECEIPT", "procurement: receipt has no quantities")
	ErrDuplicateLine        = shared.NewValidation("DUPLICATE_LINE", "procurement: product appears on more than one line")
	ErrInvalidReceiptStatus = shared.NewValidation("INVALID_RECEIPT_STATUS", "procurement: receipt status must be PARTIALLY_RECEIVED or RECEIVED")
	ErrOrderClosed          = shared.NewInvalidState("PO_CLOSED", "procurement: purchase order is not open for receiving")
	ErrNotPending           = shared.NewInvalidState("PO_NOT_PENDING", "procurement: purchase order is no longer pending approval")
	ErrCannotCancel         = shared.NewInvalidState("PO_CANNOT_CANCEL", "procurement: purchase order cannot be cancelled")
)

// PurchaseOrder is an order placed with a vendor.
type PurchaseOrder struct {
	ID           int64      `json:"id" db:"id"`
	Number       string     `json:"number" db:"number"`
	VendorID     int64      `json:"vendor_id" db:"vendor_id"`
	Status       Status     `json:"status" db:"status"`
	OrderDate    time.Time  `json:"order_date" db:"order_date"`
	ExpectedDate *time.Time `json:"expected_date,omitempty" db:"expected_date"`
	Notes        string     `json:"notes" db:"notes"`
	documents.Amounts
	CreatedBy string    `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	Lines     []Line    `json:"lines" db:"-"`
}

// Line is one ordered product with its receiving progress.
type Line struct {
	ID          int64           `json:"id" db:"id"`
	OrderID     int64           `json:"order_id" db:"order_id"`
	LineNo      int             `json:"line_no" db:"line_no"`
	ProductID   int64           `json:"product_id" db:"product_id"`
	QtyOrdered  decimal.Decimal `json:"qty_ordered" db:"qty_ordered"`
	QtyReceived decimal.Decimal `json:"qty_received" db:"qty_received"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	Discount    decimal.Decimal `json:"discount" db:"discount"`
	TotalPrice  decimal.Decimal `json:"total_price" db:"total_price"`
}

// Outstanding is the quantity still expected from the vendor.
func (l Line) Outstanding() decimal.Decimal {
	return l.QtyOrdered.Sub(l.QtyReceived)
}

func (po PurchaseOrder) lineItems() []documents.LineItem {
	items := make([]documents.LineItem, len(po.Lines))
	for i, l := range po.Lines {
		items[i] = documents.LineItem{
			ProductID:  l.ProductID,
			Quantity:   l.QtyOrdered,
			UnitPrice:  l.UnitPrice,
			Discount:   l.Discount,
			TotalPrice: l.TotalPrice,
		}
	}
	return items
}

// verify fails when the stored totals would not match the lines.
func (po PurchaseOrder) verify() error {
	return po.Amounts.Verify(po.lineItems())
}

func linesFromItems(items []documents.LineItem) []Line {
	lines := make([]Line, len(items))
	for i, item := range items {
		lines[i] = Line{
			LineNo:      i + 1,
			ProductID:   item.ProductID,
			QtyOrdered:  item.Quantity,
			QtyReceived: decimal.Zero,
			UnitPrice:   item.UnitPrice,
			Discount:    item.Discount,
			TotalPrice:  item.TotalPrice,
		}
	}
	return lines
}

// OrderInput describes a purchase order to create or replace.
type OrderInput struct {
	VendorID     int64
	OrderDate    time.Time
	ExpectedDate *time.Time
	Notes        string
	Header       documents.Header
	Lines        []documents.LineItem
}

// ReceiptLine is a quantity physically received for a product.
type ReceiptLine struct {
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// Receipt is the outcome of ReceiveItems.
type Receipt struct {
	Order         PurchaseOrder `json:"order"`
	DerivedStatus Status        `json:"derived_status"`
}

// ReceiptError reports a receipt whose stock adjustments failed. The order
// itself was not changed. Applied adjustments were reversed except those
// listed in Uncompensated.
type ReceiptError struct {
	OrderID       int64         `json:"order_id"`
	Applied       []ReceiptLine `json:"applied"`
	Failed        *ReceiptLine  `json:"failed,omitempty"`
	Uncompensated []ReceiptLine `json:"uncompensated,omitempty"`
	Err           error         `json:"-"`
}

func (e *ReceiptError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "procurement: receipt for order %d failed", e.OrderID)
	if e.Failed != nil {
		fmt.Fprintf(&b, " at product %d", e.Failed.ProductID)
	}
	if len(e.Uncompensated) > 0 {
		fmt.Fprintf(&b, " (%d stock adjustments could not be reversed)", len(e.Uncompensated))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ReceiptError) Unwrap() error {
	return e.Err
}

// ListFilter narrows List results.
type ListFilter struct {
	Status   Status
	VendorID int64
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}
