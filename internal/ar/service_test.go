package ar

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type auditSpy struct {
	actions []string
}

func (a *auditSpy) Record(ctx context.Context, log shared.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

type clock struct {
	at time.Time
}

func (c *clock) now() time.Time { return c.at }

func q(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc   *Service
	repo  *memoryRepo
	keys  *memoryKeys
	audit *auditSpy
	clock *clock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		repo:  newMemoryRepo(),
		keys:  newMemoryKeys(),
		audit: &auditSpy{},
		clock: &clock{at: time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)},
	}
	f.svc = NewService(f.repo, newDirectoryStub(), f.keys, f.audit, nil)
	f.svc.WithNow(f.clock.now)
	return f
}

// invoiceInput bills a single widget for 100.
func invoiceInput(due time.Time) InvoiceInput {
	return InvoiceInput{
		CustomerID: 2,
		DueDate:    due,
		Lines:      []documents.LineItem{{ProductID: 10, Quantity: q("1"), UnitPrice: q("100")}},
	}
}

func (f fixture) invoice(t *testing.T) Invoice {
	t.Helper()
	inv, err := f.svc.Create(context.Background(), invoiceInput(day(2025, 6, 19)))
	require.NoError(t, err)
	return inv
}

func pay(id int64, amount string, ref string) PaymentInput {
	return PaymentInput{InvoiceID: id, Amount: q(amount), Method: MethodBankTransfer, Reference: ref}
}

func TestCreateDraftInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := invoiceInput(day(2025, 6, 19))
	in.Header = documents.Header{TaxPercent: q("10")}
	in.Lines = append(in.Lines, documents.LineItem{ProductID: 11, Quantity: q("2"), UnitPrice: q("25"), Discount: q("5")})
	inv, err := f.svc.Create(ctx, in)
	require.NoError(t, err)
	require.Equal(t, "INV-2025-0001", inv.Number)
	require.Equal(t, StatusDraft, inv.Status)
	require.Equal(t, day(2025, 5, 20), inv.IssueDate)
	require.True(t, inv.Subtotal.Equal(q("140")))
	require.True(t, inv.TaxAmount.Equal(q("14")))
	require.True(t, inv.Total.Equal(q("154")))
	require.True(t, inv.BalanceDue.Equal(inv.Total))
	require.True(t, inv.AmountPaid.IsZero())

	second := f.invoice(t)
	require.Equal(t, "INV-2025-0002", second.Number)
	require.Equal(t, []string{"invoice.create", "invoice.create"}, f.audit.actions)
}

func TestVerifyGuardsSavedTotals(t *testing.T) {
	f := newFixture(t)
	inv := f.invoice(t)
	require.NoError(t, inv.verify())

	inv.Lines[0].TotalPrice = inv.Lines[0].TotalPrice.Add(q("0.004"))
	require.ErrorIs(t, inv.verify(), documents.ErrTotalsDiverged)

	in := invoiceInput(day(2025, 6, 19))
	in.Lines[0].Quantity = q("1.5")
	in.Lines[0].UnitPrice = q("0.33")
	in.Header = documents.Header{TaxPercent: q("10")}
	created, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.True(t, created.Total.Equal(q("0.55")), created.Total.String())
	require.True(t, created.BalanceDue.Equal(q("0.55")))
}

func TestCreateRejectsInvalidInvoices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := invoiceInput(day(2025, 5, 1))
	in.IssueDate = day(2025, 5, 10)
	_, err := f.svc.Create(ctx, in)
	require.ErrorIs(t, err, ErrInvalidDueDate)

	_, err = f.svc.Create(ctx, invoiceInput(time.Time{}))
	require.ErrorIs(t, err, ErrInvalidDueDate)

	in = invoiceInput(day(2025, 6, 19))
	in.CustomerID = 1
	_, err = f.svc.Create(ctx, in)
	require.ErrorIs(t, err, masterdata.ErrNotCustomer)

	in = invoiceInput(day(2025, 6, 19))
	in.Lines[0].Quantity = q("0")
	_, err = f.svc.Create(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = invoiceInput(day(2025, 6, 19))
	in.Lines[0].ProductID = 99
	_, err = f.svc.Create(ctx, in)
	require.ErrorIs(t, err, masterdata.ErrProductNotFound)

	require.Empty(t, f.repo.invoices)
}

func TestFullPaymentSettlesInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t)

	paid, err := f.svc.RecordPayment(ctx, pay(inv.ID, "100", ""))
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.True(t, paid.BalanceDue.IsZero())
	require.True(t, paid.AmountPaid.Equal(q("100")))
	require.Len(t, paid.Payments, 1)
	require.Equal(t, day(2025, 5, 20), paid.Payments[0].PaidOn)

	_, err = f.svc.RecordPayment(ctx, pay(inv.ID, "1", ""))
	require.ErrorIs(t, err, ErrAlreadySettled)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestPartialPayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t)

	partial, err := f.svc.RecordPayment(ctx, pay(inv.ID, "40", ""))
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyPaid, partial.Status)
	require.True(t, partial.BalanceDue.Equal(q("60")))

	paid, err := f.svc.RecordPayment(ctx, pay(inv.ID, "60", ""))
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.True(t, paid.BalanceDue.IsZero())

	stored, err := f.svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, stored.Payments, 2)
	require.Equal(t, StatusPaid, stored.Status)
}

func TestPaymentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t)

	_, err := f.svc.RecordPayment(ctx, pay(inv.ID, "150", ""))
	require.ErrorIs(t, err, ErrOverPayment)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.RecordPayment(ctx, pay(inv.ID, "0", ""))
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.svc.RecordPayment(ctx, pay(inv.ID, "-5", ""))
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.svc.RecordPayment(ctx, pay(inv.ID, "99.995", ""))
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.svc.RecordPayment(ctx, PaymentInput{InvoiceID: inv.ID, Amount: q("5"), Method: "BARTER"})
	require.ErrorIs(t, err, ErrInvalidMethod)

	_, err = f.svc.RecordPayment(ctx, pay(404, "5", ""))
	require.ErrorIs(t, err, ErrInvoiceNotFound)

	stored, err := f.svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.True(t, stored.BalanceDue.Equal(q("100")))
	require.Empty(t, stored.Payments)
}

func TestPaymentReferenceIsRecordedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t)

	// A rejected payment releases its reference.
	_, err := f.svc.RecordPayment(ctx, pay(inv.ID, "150", "BANK-1"))
	require.ErrorIs(t, err, ErrOverPayment)
	require.NotContains(t, f.keys.keys, idempotencyModule+":BANK-1")

	first, err := f.svc.RecordPayment(ctx, pay(inv.ID, "50", "BANK-1"))
	require.NoError(t, err)
	require.Equal(t, "BANK-1", *first.Payments[0].Reference)

	_, err = f.svc.RecordPayment(ctx, pay(inv.ID, "50", "BANK-1"))
	require.ErrorIs(t, err, ErrDuplicatePayment)
	require.ErrorIs(t, err, shared.ErrConflict)

	stored, err := f.svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.True(t, stored.BalanceDue.Equal(q("50")))
}

func TestVoid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paid := f.invoice(t)
	_, err := f.svc.RecordPayment(ctx, pay(paid.ID, "100", ""))
	require.NoError(t, err)
	_, err = f.svc.Void(ctx, paid.ID)
	require.ErrorIs(t, err, ErrCannotVoidPaid)

	open := f.invoice(t)
	_, err = f.svc.RecordPayment(ctx, pay(open.ID, "30", ""))
	require.NoError(t, err)
	voided, err := f.svc.Void(ctx, open.ID)
	require.NoError(t, err)
	require.Equal(t, StatusVoid, voided.Status)
	require.True(t, voided.BalanceDue.IsZero())
	require.NotNil(t, voided.VoidedAt)

	_, err = f.svc.Void(ctx, open.ID)
	require.ErrorIs(t, err, ErrAlreadyVoid)
	_, err = f.svc.RecordPayment(ctx, pay(open.ID, "10", ""))
	require.ErrorIs(t, err, ErrAlreadySettled)
}

func TestSendAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t)

	sent, err := f.svc.Send(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	_, err = f.svc.Send(ctx, inv.ID)
	require.ErrorIs(t, err, ErrAlreadySent)

	in := invoiceInput(day(2025, 6, 30))
	in.Lines[0].Quantity = q("3")
	updated, err := f.svc.Update(ctx, inv.ID, in)
	require.NoError(t, err)
	require.Equal(t, StatusSent, updated.Status)
	require.True(t, updated.Total.Equal(q("300")))
	require.True(t, updated.BalanceDue.Equal(q("300")))

	_, err = f.svc.RecordPayment(ctx, pay(inv.ID, "10", ""))
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, inv.ID, in)
	require.ErrorIs(t, err, ErrNotEditable)
}

func TestOverdueIsDerivedOnReadAndSwept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invoice(t)
	_, err := f.svc.Send(ctx, inv.ID)
	require.NoError(t, err)

	f.clock.at = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	got, err := f.svc.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusOverdue, got.Status)
	require.Equal(t, StatusSent, f.repo.invoices[inv.ID].Status)

	overdue, err := f.svc.List(ctx, ListFilter{Status: StatusOverdue})
	require.NoError(t, err)
	require.Len(t, overdue, 1)

	partial, err := f.svc.RecordPayment(ctx, pay(inv.ID, "25", ""))
	require.NoError(t, err)
	require.Equal(t, StatusOverdue, partial.Status)

	late := invoiceInput(day(2025, 6, 19))
	late.IssueDate = day(2025, 6, 1)
	other, err := f.svc.Create(ctx, late)
	require.NoError(t, err)
	require.Equal(t, StatusOverdue, other.Status)

	fresh, err := f.svc.Create(ctx, invoiceInput(day(2025, 7, 10)))
	require.NoError(t, err)
	swept, err := f.svc.SweepOverdue(ctx, day(2025, 7, 20))
	require.NoError(t, err)
	require.Equal(t, 1, swept)
	require.Equal(t, StatusOverdue, f.repo.invoices[fresh.ID].Status)

	swept, err = f.svc.SweepOverdue(ctx, day(2025, 7, 20))
	require.NoError(t, err)
	require.Zero(t, swept)
	require.Contains(t, f.audit.actions, "invoice.overdue")
}

func TestAgingBuckets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	asOf := day(2025, 9, 30)

	dues := []time.Time{
		day(2025, 10, 5), // current
		day(2025, 9, 30), // current
		day(2025, 9, 15), // 15 days
		day(2025, 8, 20), // 41 days
		day(2025, 7, 10), // 82 days
		day(2025, 5, 31), // 122 days
	}
	for _, due := range dues {
		in := invoiceInput(due)
		in.IssueDate = day(2025, 5, 1)
		_, err := f.svc.Create(ctx, in)
		require.NoError(t, err)
	}
	voided := f.invoice(t)
	_, err := f.svc.Void(ctx, voided.ID)
	require.NoError(t, err)

	report, err := f.svc.Aging(ctx, asOf)
	require.NoError(t, err)
	require.True(t, report.Current.Equal(q("200")))
	require.True(t, report.Days1To30.Equal(q("100")))
	require.True(t, report.Days31To60.Equal(q("100")))
	require.True(t, report.Days61To90.Equal(q("100")))
	require.True(t, report.Over90.Equal(q("100")))
	require.True(t, report.Total.Equal(q("600")))
}

func TestDeriveStatus(t *testing.T) {
	today := day(2025, 5, 20)
	sent := today.Add(-time.Hour)
	cases := []struct {
		name string
		inv  Invoice
		want Status
	}{
		{"draft", Invoice{Status: StatusDraft, DueDate: today, BalanceDue: q("100")}, StatusDraft},
		{"sent", Invoice{Status: StatusSent, SentAt: &sent, DueDate: today, BalanceDue: q("100")}, StatusSent},
		{"partially paid", Invoice{Status: StatusSent, SentAt: &sent, DueDate: today, AmountPaid: q("10"), BalanceDue: q("90")}, StatusPartiallyPaid},
		{"overdue", Invoice{Status: StatusSent, SentAt: &sent, DueDate: day(2025, 5, 19), BalanceDue: q("100")}, StatusOverdue},
		{"overdue beats partial", Invoice{Status: StatusPartiallyPaid, DueDate: day(2025, 5, 1), AmountPaid: q("10"), BalanceDue: q("90")}, StatusOverdue},
		{"fully paid", Invoice{Status: StatusOverdue, DueDate: day(2025, 5, 1), AmountPaid: q("100"), BalanceDue: q("0")}, StatusPaid},
		{"paid is final", Invoice{Status: StatusPaid, DueDate: day(2025, 5, 1)}, StatusPaid},
		{"void is final", Invoice{Status: StatusVoid, DueDate: day(2025, 5, 1), BalanceDue: q("0")}, StatusVoid},
		{"overdue reverts when due date moves", Invoice{Status: StatusOverdue, DueDate: day(2025, 6, 1), BalanceDue: q("100")}, StatusDraft},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DeriveStatus(tc.inv, today))
		})
	}
}
