package masterdata

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Invalidator drops cached lookups after a write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service maintains parties and products.
type Service struct {
	repo        Repository
	invalidator Invalidator
	audit       shared.AuditPort
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service. invalidator may be nil.
func NewService(repo Repository, invalidator Invalidator, audit shared.AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, invalidator: invalidator, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) ListParties(ctx context.Context, filter ListFilter) ([]Party, error) {
	return s.repo.ListParties(ctx, filter)
}

func (s *Service) GetParty(ctx context.Context, id int64) (Party, error) {
	return s.repo.GetParty(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	return s.repo.ListProducts(ctx, filter)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// CreateParty registers a customer or vendor.
func (s *Service) CreateParty(ctx context.Context, in PartyInput) (Party, error) {
	in, err := normalizeParty(in)
	if err != nil {
		return Party{}, err
	}
	now := s.now()
	party, err := s.repo.InsertParty(ctx, Party{
		Code: in.Code, Name: in.Name, Kind: in.Kind, Email: in.Email, IsActive: in.IsActive,
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		return Party{}, err
	}
	s.afterWrite(ctx, "party.create", "party", party.ID)
	return party, nil
}

// UpdateParty replaces the party fields.
func (s *Service) UpdateParty(ctx context.Context, id int64, in PartyInput) (Party, error) {
	in, err := normalizeParty(in)
	if err != nil {
		return Party{}, err
	}
	party, err := s.repo.UpdateParty(ctx, Party{
		ID: id, Code: in.Code, Name: in.Name, Kind: in.Kind, Email: in.Email, IsActive: in.IsActive,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return Party{}, err
	}
	s.afterWrite(ctx, "party.update", "party", id)
	return party, nil
}

// CreateProduct adds a catalogue item.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	in, err := normalizeProduct(in)
	if err != nil {
		return Product{}, err
	}
	now := s.now()
	product, err := s.repo.InsertProduct(ctx, Product{
		SKU: in.SKU, Name: in.Name, Price: in.Price, IsActive: in.IsActive,
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		return Product{}, err
	}
	s.afterWrite(ctx, "product.create", "product", product.ID)
	return product, nil
}

// UpdateProduct replaces the product fields.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error) {
	in, err := normalizeProduct(in)
	if err != nil {
		return Product{}, err
	}
	product, err := s.repo.UpdateProduct(ctx, Product{
		ID: id, SKU: in.SKU, Name: in.Name, Price: in.Price, IsActive: in.IsActive,
		UpdatedAt: s.now(),
	})
	if err != nil {
		return Product{}, err
	}
	s.afterWrite(ctx, "product.update", "product", id)
	return product, nil
}

func (s *Service) afterWrite(ctx context.Context, action, entity string, id int64) {
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			s.logger.Warn("masterdata cache invalidation failed", slog.String("action", action), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    shared.ActorFromContext(ctx),
			Action:   action,
			Entity:   entity,
			EntityID: strconv.FormatInt(id, 10),
			At:       s.now(),
		})
	}
}

func normalizeParty(in PartyInput) (PartyInput, error) {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Code == "" {
		return in, ErrInvalidCode
	}
	if in.Name == "" {
		return in, ErrInvalidName
	}
	if !in.Kind.Valid() {
		return in, ErrInvalidKind.With("kind", string(in.Kind))
	}
	return in, nil
}

func normalizeProduct(in ProductInput) (ProductInput, error) {
	in.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	in.Name = strings.TrimSpace(in.Name)
	if in.SKU == "" {
		return in, ErrInvalidCode
	}
	if in.Name == "" {
		return in, ErrInvalidName
	}
	if in.Price.IsNegative() || !shared.FitsScale(in.Price, shared.MoneyScale) {
		return in, ErrInvalidPrice.With("price", in.Price.String())
	}
	return in, nil
}
