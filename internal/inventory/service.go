package inventory

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Service coordinates stock level changes.
type Service struct {
	repo  Repository
	audit shared.AuditPort
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo Repository, audit shared.AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns the current stock level.
func (s *Service) Get(ctx context.Context, productID int64) (Stock, error) {
	return s.repo.Get(ctx, productID)
}

// Movements lists recent movements for a product, newest first.
func (s *Service) Movements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	if _, err := s.repo.Get(ctx, productID); err != nil {
		return nil, err
	}
	return s.repo.Movements(ctx, productID, limit)
}

// Adjust applies delta to the on-hand quantity and appends a movement.
func (s *Service) Adjust(ctx context.Context, productID int64, delta decimal.Decimal, ref string) (Stock, error) {
	if delta.IsZero() || !shared.FitsScale(delta, shared.QuantityScale) {
		return Stock{}, ErrInvalidQuantity.With("delta", delta.String())
	}
	var stock Stock
	var mv Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockStock(ctx, productID)
		if err != nil {
			return err
		}
		next := current.OnHand.Add(delta)
		if next.IsNegative() {
			return ErrNegativeStock.With("product_id", productID).With("on_hand", current.OnHand.String())
		}
		now := s.now()
		current.OnHand = next
		current.UpdatedAt = now
		if err := tx.SaveStock(ctx, current); err != nil {
			return err
		}
		mv, err = tx.InsertMovement(ctx, Movement{
			ProductID: productID,
			Delta:     delta,
			OnHand:    next,
			Reference: ref,
			CreatedBy: shared.ActorFromContext(ctx),
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		stock = current
		return nil
	})
	if err != nil {
		return Stock{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    shared.ActorFromContext(ctx),
			Action:   "stock.adjust",
			Entity:   "stock",
			EntityID: strconv.FormatInt(productID, 10),
			Meta:     map[string]any{"delta": delta.String(), "on_hand": stock.OnHand.String(), "reference": ref, "movement_id": mv.ID},
			At:       s.now(),
		})
	}
	return stock, nil
}
