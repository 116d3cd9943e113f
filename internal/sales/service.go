package sales

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Directory resolves customers and products.
type Directory interface {
	Customer(ctx context.Context, id int64) (masterdata.Party, error)
	Products(ctx context.Context, ids []int64) (map[int64]masterdata.Product, error)
}

// Service manages sales orders.
type Service struct {
	repo      Repository
	directory Directory
	audit     shared.AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the sales service.
func NewService(repo Repository, directory Directory, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, directory: directory, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns a sales order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (SalesOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns sales orders matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]SalesOrder, error) {
	return s.repo.List(ctx, filter)
}

// Create records a draft sales order.
func (s *Service) Create(ctx context.Context, input OrderInput) (SalesOrder, error) {
	now := s.now()
	date := orderDate(input.OrderDate, now)
	lines, amounts, err := s.prepare(ctx, input, date)
	if err != nil {
		return SalesOrder{}, err
	}
	so := SalesOrder{
		CustomerID:       input.CustomerID,
		Status:           StatusDraft,
		OrderDate:        date,
		ExpectedDelivery: input.ExpectedDelivery,
		Notes:            strings.TrimSpace(input.Notes),
		Amounts:          amounts,
		CreatedBy:        shared.ActorFromContext(ctx),
		CreatedAt:        now,
		UpdatedAt:        now,
		Lines:            lines,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		year := shared.NumberYear(so.OrderDate)
		seq, err := tx.NextNumber(ctx, year)
		if err != nil {
			return err
		}
		so.Number = shared.FormatNumber(shared.PrefixSalesOrder, year, seq)
		if err := so.verify(); err != nil {
			return err
		}
		so, err = tx.Insert(ctx, so)
		return err
	})
	if err != nil {
		return SalesOrder{}, err
	}
	s.record(ctx, "so.create", so, map[string]any{"total": so.Total.String()})
	return so, nil
}

// Update replaces customer, header and lines of a draft order.
func (s *Service) Update(ctx context.Context, id int64, input OrderInput) (SalesOrder, error) {
	var so SalesOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return ErrNotDraft.With("status", string(current.Status))
		}
		date := orderDate(input.OrderDate, current.OrderDate)
		lines, amounts, err := s.prepare(ctx, input, date)
		if err != nil {
			return err
		}
		current.CustomerID = input.CustomerID
		current.OrderDate = date
		current.ExpectedDelivery = input.ExpectedDelivery
		current.Notes = strings.TrimSpace(input.Notes)
		current.Amounts = amounts
		current.Lines = lines
		current.UpdatedAt = s.now()
		if err := current.verify(); err != nil {
			return err
		}
		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		so = current
		return nil
	})
	if err != nil {
		return SalesOrder{}, err
	}
	s.record(ctx, "so.update", so, map[string]any{"total": so.Total.String()})
	return so, nil
}

// Confirm accepts a draft order.
func (s *Service) Confirm(ctx context.Context, id int64) (SalesOrder, error) {
	so, err := s.transition(ctx, id, func(so *SalesOrder, now time.Time) error {
		if so.Status != StatusDraft {
			return ErrNotDraft.With("status", string(so.Status))
		}
		so.Status = StatusConfirmed
		so.ConfirmedAt = &now
		return nil
	})
	if err != nil {
		return SalesOrder{}, err
	}
	s.record(ctx, "so.confirm", so, nil)
	return so, nil
}

// Cancel withdraws a draft or confirmed order.
func (s *Service) Cancel(ctx context.Context, id int64, reason string) (SalesOrder, error) {
	reason = strings.TrimSpace(reason)
	so, err := s.transition(ctx, id, func(so *SalesOrder, now time.Time) error {
		if so.Status != StatusDraft && so.Status != StatusConfirmed {
			return ErrCannotCancel.With("status", string(so.Status))
		}
		so.Status = StatusCancelled
		so.CancelledAt = &now
		so.CancellationReason = reason
		return nil
	})
	if err != nil {
		return SalesOrder{}, err
	}
	s.record(ctx, "so.cancel", so, map[string]any{"reason": reason})
	return so, nil
}

func (s *Service) transition(ctx context.Context, id int64, mutate func(*SalesOrder, time.Time) error) (SalesOrder, error) {
	var so SalesOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		if err := mutate(&current, now); err != nil {
			return err
		}
		current.UpdatedAt = now
		if err := tx.UpdateStatus(ctx, current); err != nil {
			return err
		}
		so = current
		return nil
	})
	return so, err
}

func (s *Service) prepare(ctx context.Context, input OrderInput, date time.Time) ([]Line, documents.Amounts, error) {
	if input.ExpectedDelivery != nil && input.ExpectedDelivery.Before(date) {
		return nil, documents.Amounts{}, ErrInvalidDelivery
	}
	if len(input.Lines) == 0 {
		return nil, documents.Amounts{}, documents.ErrNoLines
	}
	items := make([]documents.LineItem, len(input.Lines))
	for i, line := range input.Lines {
		if line.ProductID <= 0 {
			return nil, documents.Amounts{}, documents.ErrInvalidProduct.With("line", i)
		}
		items[i] = documents.LineItem{ProductID: line.ProductID, Quantity: line.Quantity, Discount: line.Discount}
	}
	ids := documents.ProductIDs(items)
	if len(ids) != len(items) {
		return nil, documents.Amounts{}, ErrDuplicateLine
	}
	if _, err := s.directory.Customer(ctx, input.CustomerID); err != nil {
		return nil, documents.Amounts{}, err
	}
	products, err := s.directory.Products(ctx, ids)
	if err != nil {
		return nil, documents.Amounts{}, err
	}
	for i, line := range input.Lines {
		if line.UnitPrice != nil {
			items[i].UnitPrice = *line.UnitPrice
		} else {
			items[i].UnitPrice = products[line.ProductID].Price
		}
	}
	items, amounts, err := documents.Prepare(items, input.Header)
	if err != nil {
		return nil, documents.Amounts{}, err
	}
	return linesFromItems(items), amounts, nil
}

func (s *Service) record(ctx context.Context, action string, so SalesOrder, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["number"] = so.Number
	if err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "sales_order",
		EntityID: strconv.FormatInt(so.ID, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

func orderDate(requested, fallback time.Time) time.Time {
	if requested.IsZero() {
		requested = fallback
	}
	y, m, d := requested.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
