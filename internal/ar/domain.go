package ar

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Status enumerates invoice statuses.
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusSent          Status = "SENT"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
	StatusOverdue       Status = "OVERDUE"
	StatusVoid          Status = "VOID"
)

// Settled reports whether the status accepts no further payments.
func (s Status) Settled() bool {
	return s == StatusPaid || s == StatusVoid
}

// Payment methods accepted by RecordPayment.
const (
	MethodCash         = "CASH"
	MethodBankTransfer = "BANK_TRANSFER"
	MethodCard         = "CARD"
	MethodCheck        = "CHECK"
)

var (
	ErrInvoiceNotFound  = shared.NewNotFound("INVOICE_NOT_FOUND", "ar: invoice not found")
	ErrInvalidAmount    = shared.NewValidation("INVALID_AMOUNT", "ar: payment amount must be greater than zero with at most 2 decimal places")
	ErrOverPayment      = shared.NewValidation("OVER_PAYMENT", "ar: payment exceeds balance due")
	ErrInvalidMethod    = shared.NewValidation("INVALID_PAYMENT_METHOD", "ar: unknown payment method")
	ErrInvalidDueDate   = shared.NewValidation("INVALID_DUE_DATE", "ar: due date must not precede issue date")
	ErrAlreadySettled   = shared.NewInvalidState("ALREADY_SETTLED", "ar: invoice is already paid or void")
	ErrCannotVoidPaid   = shared.NewInvalidState("CANNOT_VOID_PAID", "ar: paid invoices cannot be voided")
	ErrAlreadyVoid      = shared.NewInvalidState("ALREADY_VOID", "ar: invoice is already void")
	ErrAlreadySent      = shared.NewInvalidState("ALREADY_SENT", "ar: invoice was already sent")
	ErrNotEditable      = shared.NewInvalidState("INVOICE_NOT_EDITABLE", "ar: invoice with payments or a final status cannot change")
	ErrDuplicatePayment = shared.NewConflict("DUPLICATE_PAYMENT", "ar: payment reference already recorded")
)

// Invoice is a customer bill with its settlement state.
type Invoice struct {
	ID           int64      `json:"id" db:"id"`
	Number       string     `json:"number" db:"number"`
	CustomerID   int64      `json:"customer_id" db:"customer_id"`
	SalesOrderID *int64     `json:"sales_order_id,omitempty" db:"sales_order_id"`
	Status       Status     `json:"status" db:"status"`
	IssueDate    time.Time  `json:"issue_date" db:"issue_date"`
	DueDate      time.Time  `json:"due_date" db:"due_date"`
	SentAt       *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	VoidedAt     *time.Time `json:"voided_at,omitempty" db:"voided_at"`
	Notes        string     `json:"notes" db:"notes"`
	documents.Amounts
	AmountPaid decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	BalanceDue decimal.Decimal `json:"balance_due" db:"balance_due"`
	CreatedBy  string          `json:"created_by" db:"created_by"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
	Lines      []Line          `json:"lines" db:"-"`
	Payments   []Payment       `json:"payments" db:"-"`
}

// baseStatus is the status an invoice has before any payment or deadline
// applies to it.
func (inv Invoice) baseStatus() Status {
	if inv.SentAt != nil {
		return StatusSent
	}
	return StatusDraft
}

// Line is one billed product.
type Line struct {
	ID         int64           `json:"id" db:"id"`
	InvoiceID  int64           `json:"invoice_id" db:"invoice_id"`
	LineNo     int             `json:"line_no" db:"line_no"`
	ProductID  int64           `json:"product_id" db:"product_id"`
	Quantity   decimal.Decimal `json:"quantity" db:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"`
	Discount   decimal.Decimal `json:"discount" db:"discount"`
	TotalPrice decimal.Decimal `json:"total_price" db:"total_price"`
}

func (inv Invoice) lineItems() []documents.LineItem {
	items := make([]documents.LineItem, len(inv.Lines))
	for i, l := range inv.Lines {
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
func (inv Invoice) verify() error {
	return inv.Amounts.Verify(inv.lineItems())
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

// Payment is money received against an invoice.
type Payment struct {
	ID        int64           `json:"id" db:"id"`
	InvoiceID int64           `json:"invoice_id" db:"invoice_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	PaidOn    time.Time       `json:"paid_on" db:"paid_on"`
	Method    string          `json:"method" db:"method"`
	Reference *string         `json:"reference,omitempty" db:"reference"`
	CreatedBy string          `json:"created_by" db:"created_by"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// InvoiceInput describes an invoice to create or replace.
type InvoiceInput struct {
	CustomerID   int64
	SalesOrderID *int64
	IssueDate    time.Time
	DueDate      time.Time
	Notes        string
	Header       documents.Header
	Lines        []documents.LineItem
}

// PaymentInput describes a payment to record.
type PaymentInput struct {
	InvoiceID int64
	Amount    decimal.Decimal
	Date      time.Time
	Method    string
	Reference string
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

// Aging buckets outstanding balances by days past due.
type Aging struct {
	AsOf       time.Time       `json:"as_of"`
	Current    decimal.Decimal `json:"current"`
	Days1To30  decimal.Decimal `json:"days_1_30"`
	Days31To60 decimal.Decimal `json:"days_31_60"`
	Days61To90 decimal.Decimal `json:"days_61_90"`
	Over90     decimal.Decimal `json:"over_90"`
	Total      decimal.Decimal `json:"total"`
}
