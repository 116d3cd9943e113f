package ar

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const idempotencyModule = "ar.payment"

// Directory resolves customers and products.
type Directory interface {
	Customer(ctx context.Context, id int64) (masterdata.Party, error)
	Products(ctx context.Context, ids []int64) (map[int64]masterdata.Product, error)
}

// IdempotencyPort claims payment references.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service manages invoices and their settlement.
type Service struct {
	repo        Repository
	directory   Directory
	idempotency IdempotencyPort
	audit       shared.AuditPort
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs the AR service. idempotency may be nil, in which
// case payment references are only guarded by the database.
func NewService(repo Repository, directory Directory, idempotency IdempotencyPort, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, directory: directory, idempotency: idempotency, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns an invoice with lines and payments, its status derived for today.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	inv.Status = DeriveStatus(inv, s.now())
	return inv, nil
}

// List returns invoices matching the filter. Statuses are derived for today
// before the status filter applies.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	wanted := filter.Status
	filter.Status = ""
	if wanted != "" {
		// Overdue invoices are stored under their previous status until swept.
		limit, offset := filter.Limit, filter.Offset
		filter.Limit, filter.Offset = 0, 0
		invoices, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		out := make([]Invoice, 0, len(invoices))
		for _, inv := range invoices {
			inv.Status = DeriveStatus(inv, s.now())
			if inv.Status == wanted {
				out = append(out, inv)
			}
		}
		return page(out, limit, offset), nil
	}
	invoices, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		invoices[i].Status = DeriveStatus(invoices[i], s.now())
	}
	return invoices, nil
}

// Create records a draft invoice.
func (s *Service) Create(ctx context.Context, input InvoiceInput) (Invoice, error) {
	now := s.now()
	issued := dateOnly(issueDate(input.IssueDate, now))
	lines, amounts, err := s.prepare(ctx, input, issued)
	if err != nil {
		return Invoice{}, err
	}
	inv := Invoice{
		CustomerID:   input.CustomerID,
		SalesOrderID: input.SalesOrderID,
		IssueDate:    issued,
		DueDate:      dateOnly(input.DueDate),
		Notes:        strings.TrimSpace(input.Notes),
		Amounts:      amounts,
		AmountPaid:   decimal.Zero,
		BalanceDue:   amounts.Total,
		CreatedBy:    shared.ActorFromContext(ctx),
		CreatedAt:    now,
		UpdatedAt:    now,
		Lines:        lines,
	}
	inv.Status = DeriveStatus(inv, now)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		year := shared.NumberYear(inv.IssueDate)
		seq, err := tx.NextNumber(ctx, year)
		if err != nil {
			return err
		}
		inv.Number = shared.FormatNumber(shared.PrefixInvoice, year, seq)
		if err := inv.verify(); err != nil {
			return err
		}
		inv, err = tx.Insert(ctx, inv)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, "invoice.create", inv, map[string]any{"total": inv.Total.String()})
	return inv, nil
}

// Update replaces customer, dates and lines of an invoice that has no
// payments and is not final.
func (s *Service) Update(ctx context.Context, id int64, input InvoiceInput) (Invoice, error) {
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status.Settled() || current.AmountPaid.IsPositive() {
			return ErrNotEditable.With("status", string(current.Status))
		}
		issued := dateOnly(issueDate(input.IssueDate, current.IssueDate))
		lines, amounts, err := s.prepare(ctx, input, issued)
		if err != nil {
			return err
		}
		now := s.now()
		current.CustomerID = input.CustomerID
		current.SalesOrderID = input.SalesOrderID
		current.IssueDate = issued
		current.DueDate = dateOnly(input.DueDate)
		current.Notes = strings.TrimSpace(input.Notes)
		current.Amounts = amounts
		current.BalanceDue = amounts.Total
		current.Lines = lines
		current.UpdatedAt = now
		current.Status = DeriveStatus(current, now)
		if err := current.verify(); err != nil {
			return err
		}
		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		inv = current
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, "invoice.update", inv, map[string]any{"total": inv.Total.String()})
	return inv, nil
}

// Send marks a draft invoice as issued to the customer.
func (s *Service) Send(ctx context.Context, id int64) (Invoice, error) {
	inv, err := s.settle(ctx, id, func(inv *Invoice, now time.Time) error {
		if inv.Status.Settled() {
			return ErrAlreadySettled.With("status", string(inv.Status))
		}
		if inv.SentAt != nil {
			return ErrAlreadySent
		}
		inv.SentAt = &now
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, "invoice.send", inv, nil)
	return inv, nil
}

// RecordPayment applies a payment to an open invoice. A non-empty reference
// may be recorded only once.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (Invoice, error) {
	if !input.Amount.IsPositive() || !shared.FitsScale(input.Amount, shared.MoneyScale) {
		return Invoice{}, ErrInvalidAmount.With("amount", input.Amount.String())
	}
	method := strings.ToUpper(strings.TrimSpace(input.Method))
	if method == "" {
		method = MethodBankTransfer
	}
	if !validMethod(method) {
		return Invoice{}, ErrInvalidMethod.With("method", input.Method)
	}
	reference := strings.TrimSpace(input.Reference)
	key := ""
	if reference != "" && s.idempotency != nil {
		key = idempotencyModule + ":" + reference
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Invoice{}, ErrDuplicatePayment.With("reference", reference)
			}
			return Invoice{}, err
		}
	}

	var payment Payment
	inv, err := s.settle(ctx, input.InvoiceID, func(inv *Invoice, now time.Time) error {
		if inv.Status.Settled() {
			return ErrAlreadySettled.With("status", string(inv.Status))
		}
		if input.Amount.GreaterThan(inv.BalanceDue) {
			return ErrOverPayment.
				With("amount", input.Amount.String()).
				With("balance_due", inv.BalanceDue.String())
		}
		inv.AmountPaid = inv.AmountPaid.Add(input.Amount)
		inv.BalanceDue = inv.Total.Sub(inv.AmountPaid)
		if inv.BalanceDue.IsPositive() {
			inv.Status = StatusPartiallyPaid
		} else {
			inv.Status = StatusPaid
		}
		payment = Payment{
			InvoiceID: inv.ID,
			Amount:    input.Amount,
			PaidOn:    dateOnly(issueDate(input.Date, now)),
			Method:    method,
			CreatedBy: shared.ActorFromContext(ctx),
			CreatedAt: now,
		}
		if reference != "" {
			payment.Reference = &reference
		}
		return nil
	}, func(ctx context.Context, tx TxRepository) error {
		var err error
		payment, err = tx.InsertPayment(ctx, payment)
		return err
	})
	if err != nil {
		if key != "" {
			if derr := s.idempotency.Delete(context.WithoutCancel(ctx), key); derr != nil {
				s.logger.Warn("release payment reference failed", slog.String("key", key), slog.Any("error", derr))
			}
		}
		return Invoice{}, err
	}
	inv.Payments = append(inv.Payments, payment)
	s.record(ctx, "invoice.payment", inv, map[string]any{
		"amount":      payment.Amount.String(),
		"method":      payment.Method,
		"balance_due": inv.BalanceDue.String(),
		"status":      string(inv.Status),
	})
	return inv, nil
}

// Void cancels an invoice that is not paid. The balance due drops to zero.
func (s *Service) Void(ctx context.Context, id int64) (Invoice, error) {
	inv, err := s.settle(ctx, id, func(inv *Invoice, now time.Time) error {
		switch inv.Status {
		case StatusVoid:
			return ErrAlreadyVoid
		case StatusPaid:
			return ErrCannotVoidPaid
		}
		inv.Status = StatusVoid
		inv.BalanceDue = decimal.Zero
		inv.VoidedAt = &now
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.record(ctx, "invoice.void", inv, nil)
	return inv, nil
}

// SweepOverdue persists OVERDUE for open invoices whose due date passed
// before asOf and reports how many changed.
func (s *Service) SweepOverdue(ctx context.Context, asOf time.Time) (int, error) {
	ids, err := s.repo.PastDue(ctx, dateOnly(asOf))
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, id := range ids {
		var (
			inv     Invoice
			changed bool
		)
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			current, err := tx.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			status := DeriveStatus(current, asOf)
			if status == current.Status {
				return nil
			}
			current.Status = status
			current.UpdatedAt = s.now()
			if err := tx.UpdateSettlement(ctx, current); err != nil {
				return err
			}
			inv, changed = current, true
			return nil
		})
		if err != nil {
			return swept, err
		}
		if changed {
			swept++
			s.record(ctx, "invoice.overdue", inv, map[string]any{"due_date": inv.DueDate.Format(time.DateOnly)})
		}
	}
	return swept, nil
}

// Aging buckets the balance due of open invoices by days past due as of asOf.
func (s *Service) Aging(ctx context.Context, asOf time.Time) (Aging, error) {
	invoices, err := s.repo.Outstanding(ctx)
	if err != nil {
		return Aging{}, err
	}
	asOf = dateOnly(asOf)
	report := Aging{
		AsOf:       asOf,
		Current:    decimal.Zero,
		Days1To30:  decimal.Zero,
		Days31To60: decimal.Zero,
		Days61To90: decimal.Zero,
		Over90:     decimal.Zero,
		Total:      decimal.Zero,
	}
	for _, inv := range invoices {
		if !inv.BalanceDue.IsPositive() || inv.Status.Settled() {
			continue
		}
		days := int(asOf.Sub(dateOnly(inv.DueDate)).Hours() / 24)
		switch {
		case days <= 0:
			report.Current = report.Current.Add(inv.BalanceDue)
		case days <= 30:
			report.Days1To30 = report.Days1To30.Add(inv.BalanceDue)
		case days <= 60:
			report.Days31To60 = report.Days31To60.Add(inv.BalanceDue)
		case days <= 90:
			report.Days61To90 = report.Days61To90.Add(inv.BalanceDue)
		default:
			report.Over90 = report.Over90.Add(inv.BalanceDue)
		}
		report.Total = report.Total.Add(inv.BalanceDue)
	}
	return report, nil
}

// settle locks an invoice, applies mutate and persists the settlement
// fields. Extra steps run in the same transaction afterwards.
func (s *Service) settle(ctx context.Context, id int64, mutate func(*Invoice, time.Time) error, extra ...func(context.Context, TxRepository) error) (Invoice, error) {
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		current.Status = DeriveStatus(current, now)
		if err := mutate(&current, now); err != nil {
			return err
		}
		current.Status = DeriveStatus(current, now)
		current.UpdatedAt = now
		if err := tx.UpdateSettlement(ctx, current); err != nil {
			return err
		}
		for _, step := range extra {
			if err := step(ctx, tx); err != nil {
				return err
			}
		}
		inv = current
		return nil
	})
	return inv, err
}

func (s *Service) prepare(ctx context.Context, input InvoiceInput, issued time.Time) ([]Line, documents.Amounts, error) {
	if input.DueDate.IsZero() {
		return nil, documents.Amounts{}, ErrInvalidDueDate.With("due_date", "missing")
	}
	if dateOnly(input.DueDate).Before(issued) {
		return nil, documents.Amounts{}, ErrInvalidDueDate.
			With("issue_date", issued.Format(time.DateOnly)).
			With("due_date", input.DueDate.Format(time.DateOnly))
	}
	items, amounts, err := documents.Prepare(input.Lines, input.Header)
	if err != nil {
		return nil, documents.Amounts{}, err
	}
	ids := documents.ProductIDs(items)
	if _, err := s.directory.Customer(ctx, input.CustomerID); err != nil {
		return nil, documents.Amounts{}, err
	}
	if _, err := s.directory.Products(ctx, ids); err != nil {
		return nil, documents.Amounts{}, err
	}
	return linesFromItems(items), amounts, nil
}

func (s *Service) record(ctx context.Context, action string, inv Invoice, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["number"] = inv.Number
	if err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "invoice",
		EntityID: strconv.FormatInt(inv.ID, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func validMethod(method string) bool {
	switch method {
	case MethodCash, MethodBankTransfer, MethodCard, MethodCheck:
		return true
	}
	return false
}

func issueDate(requested, fallback time.Time) time.Time {
	if requested.IsZero() {
		return fallback
	}
	return requested
}

func page(invoices []Invoice, limit, offset int) []Invoice {
	if offset >= len(invoices) {
		return []Invoice{}
	}
	invoices = invoices[offset:]
	if limit > 0 && limit < len(invoices) {
		invoices = invoices[:limit]
	}
	return invoices
}
