package procurement

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// InventoryPort adjusts on-hand stock.
type InventoryPort interface {
	Adjust(ctx context.Context, productID int64, delta decimal.Decimal, ref string) (inventory.Stock, error)
}

// Directory resolves vendors and products.
type Directory interface {
	Vendor(ctx context.Context, id int64) (masterdata.Party, error)
	Products(ctx context.Context, ids []int64) (map[int64]masterdata.Product, error)
}

// Service orchestrates purchase orders and goods receipts.
type Service struct {
	repo      Repository
	inventory InventoryPort
	directory Directory
	audit     shared.AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the procurement service.
func NewService(repo Repository, inventory InventoryPort, directory Directory, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, inventory: inventory, directory: directory, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns a purchase order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.Get(ctx, id)
}

// List returns purchase orders matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	return s.repo.List(ctx, filter)
}

// Create records a purchase order awaiting approval.
func (s *Service) Create(ctx context.Context, input OrderInput) (PurchaseOrder, error) {
	lines, amounts, err := s.prepare(ctx, input)
	if err != nil {
		return PurchaseOrder{}, err
	}
	now := s.now()
	po := PurchaseOrder{
		VendorID:     input.VendorID,
		Status:       StatusPendingApproval,
		OrderDate:    orderDate(input.OrderDate, now),
		ExpectedDate: input.ExpectedDate,
		Notes:        strings.TrimSpace(input.Notes),
		Amounts:      amounts,
		CreatedBy:    shared.ActorFromContext(ctx),
		CreatedAt:    now,
		UpdatedAt:    now,
		Lines:        lines,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		year := shared.NumberYear(po.OrderDate)
		seq, err := tx.NextNumber(ctx, year)
		if err != nil {
			return err
		}
		po.Number = shared.FormatNumber(shared.PrefixPurchaseOrder, year, seq)
		if err := po.verify(); err != nil {
			return err
		}
		po, err = tx.Insert(ctx, po)
		return err
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.record(ctx, "po.create", po, map[string]any{"total": po.Total.String()})
	return po, nil
}

// Update replaces vendor, header and lines of a pending order.
func (s *Service) Update(ctx context.Context, id int64, input OrderInput) (PurchaseOrder, error) {
	lines, amounts, err := s.prepare(ctx, input)
	if err != nil {
		return PurchaseOrder{}, err
	}
	var po PurchaseOrder
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusPendingApproval {
			return ErrNotPending.With("status", string(current.Status))
		}
		current.VendorID = input.VendorID
		current.OrderDate = orderDate(input.OrderDate, current.OrderDate)
		current.ExpectedDate = input.ExpectedDate
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
		po = current
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.record(ctx, "po.update", po, map[string]any{"total": po.Total.String()})
	return po, nil
}

// Approve releases a pending order to the vendor.
func (s *Service) Approve(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := s.transition(ctx, id, StatusOrdered, func(po PurchaseOrder) error {
		if po.Status != StatusPendingApproval {
			return ErrNotPending.With("status", string(po.Status))
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.record(ctx, "po.approve", po, nil)
	return po, nil
}

// Cancel withdraws an order on which nothing was received yet.
func (s *Service) Cancel(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := s.transition(ctx, id, StatusCancelled, func(po PurchaseOrder) error {
		if po.Status != StatusPendingApproval && po.Status != StatusOrdered {
			return ErrCannotCancel.With("status", string(po.Status))
		}
		if DeriveReceiptStatus(po.Lines) != StatusOrdered {
			return ErrCannotCancel.With("reason", "goods received")
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.record(ctx, "po.cancel", po, nil)
	return po, nil
}

func (s *Service) transition(ctx context.Context, id int64, to Status, guard func(PurchaseOrder) error) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := guard(current); err != nil {
			return err
		}
		current.Status = to
		current.UpdatedAt = s.now()
		if err := tx.UpdateStatus(ctx, current); err != nil {
			return err
		}
		po = current
		return nil
	})
	return po, err
}

// ReceiveItems books received quantities against an open order and raises
// stock for each product. Quantities for the same product are summed and zero
// quantities are skipped. An explicit status of PARTIALLY_RECEIVED or RECEIVED
// overrides the derived one.
//
// The order row stays locked while stock is adjusted. When an adjustment
// fails, earlier adjustments are reversed, the order is left untouched and a
// *ReceiptError is returned.
func (s *Service) ReceiveItems(ctx context.Context, id int64, lines []ReceiptLine, explicit *Status) (Receipt, error) {
	if explicit != nil && *explicit != StatusPartiallyReceived && *explicit != StatusReceived {
		return Receipt{}, ErrInvalidReceiptStatus.With("status", string(*explicit))
	}
	wanted, err := aggregate(lines)
	if err != nil {
		return Receipt{}, err
	}
	if len(wanted) == 0 && explicit == nil {
		return Receipt{}, ErrEmptyReceipt
	}

	var (
		receipt  Receipt
		applied  []ReceiptLine
		stockSet bool
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !po.Status.Receivable() {
			return ErrOrderClosed.With("status", string(po.Status))
		}
		for _, want := range wanted {
			idx := lineIndex(po.Lines, want.ProductID)
			if idx < 0 {
				return ErrLineNotFound.With("product_id", want.ProductID)
			}
			line := &po.Lines[idx]
			if want.Quantity.GreaterThan(line.Outstanding()) {
				return ErrOverReceipt.
					With("product_id", want.ProductID).
					With("quantity", want.Quantity.String()).
					With("outstanding", line.Outstanding().String())
			}
			line.QtyReceived = line.QtyReceived.Add(want.Quantity)
		}
		derived := DeriveReceiptStatus(po.Lines)
		po.Status = derived
		if explicit != nil {
			po.Status = *explicit
		}
		po.UpdatedAt = s.now()
		if err := tx.UpdateReceipt(ctx, po); err != nil {
			return err
		}

		for i, want := range wanted {
			if _, err := s.inventory.Adjust(ctx, want.ProductID, want.Quantity, po.Number); err != nil {
				return s.compensate(ctx, po, applied, &wanted[i], err)
			}
			applied = append(applied, want)
		}
		stockSet = true
		receipt = Receipt{Order: po, DerivedStatus: derived}
		return nil
	})
	if err != nil {
		if stockSet {
			// The stock moved but the order did not commit.
			return Receipt{}, s.compensate(ctx, receipt.Order, applied, nil, err)
		}
		return Receipt{}, err
	}

	meta := map[string]any{"status": string(receipt.Order.Status), "derived_status": string(receipt.DerivedStatus)}
	for _, line := range wanted {
		meta["product_"+strconv.FormatInt(line.ProductID, 10)] = line.Quantity.String()
	}
	s.record(ctx, "po.receive", receipt.Order, meta)
	return receipt, nil
}

// compensate reverses applied stock adjustments, newest first.
func (s *Service) compensate(ctx context.Context, po PurchaseOrder, applied []ReceiptLine, failed *ReceiptLine, cause error) *ReceiptError {
	rerr := &ReceiptError{OrderID: po.ID, Applied: append([]ReceiptLine(nil), applied...), Failed: failed, Err: cause}
	// Reversals must run even when the request was cancelled.
	ctx = context.WithoutCancel(ctx)
	for i := len(applied) - 1; i >= 0; i-- {
		line := applied[i]
		if _, err := s.inventory.Adjust(ctx, line.ProductID, line.Quantity.Neg(), po.Number+":reversal"); err != nil {
			s.logger.Error("stock compensation failed",
				slog.Int64("po_id", po.ID),
				slog.Int64("product_id", line.ProductID),
				slog.String("quantity", line.Quantity.String()),
				slog.Any("error", err))
			rerr.Uncompensated = append(rerr.Uncompensated, line)
		}
	}
	return rerr
}

func (s *Service) prepare(ctx context.Context, input OrderInput) ([]Line, documents.Amounts, error) {
	items, amounts, err := documents.Prepare(input.Lines, input.Header)
	if err != nil {
		return nil, documents.Amounts{}, err
	}
	ids := documents.ProductIDs(items)
	if len(ids) != len(items) {
		return nil, documents.Amounts{}, ErrDuplicateLine
	}
	if _, err := s.directory.Vendor(ctx, input.VendorID); err != nil {
		return nil, documents.Amounts{}, err
	}
	if _, err := s.directory.Products(ctx, ids); err != nil {
		return nil, documents.Amounts{}, err
	}
	return linesFromItems(items), amounts, nil
}

func (s *Service) record(ctx context.Context, action string, po PurchaseOrder, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["number"] = po.Number
	if err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "purchase_order",
		EntityID: strconv.FormatInt(po.ID, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

// aggregate sums quantities per product in first-seen order.
func aggregate(lines []ReceiptLine) ([]ReceiptLine, error) {
	var out []ReceiptLine
	index := map[int64]int{}
	for i, line := range lines {
		if line.Quantity.IsNegative() {
			return nil, ErrNegativeQuantity.With("line", i).With("product_id", line.ProductID)
		}
		if !shared.FitsScale(line.Quantity, shared.QuantityScale) {
			return nil, ErrQuantityPrecision.With("line", i).With("product_id", line.ProductID)
		}
		if line.Quantity.IsZero() {
			continue
		}
		if at, ok := index[line.ProductID]; ok {
			out[at].Quantity = out[at].Quantity.Add(line.Quantity)
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out, nil
}

func lineIndex(lines []Line, productID int64) int {
	for i, line := range lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

func orderDate(requested, fallback time.Time) time.Time {
	if requested.IsZero() {
		requested = fallback
	}
	y, m, d := requested.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
