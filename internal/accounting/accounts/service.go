package accounts

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	core "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var codePattern = regexp.MustCompile(`^[0-9]+$`)

// Service owns the chart of accounts.
type Service struct {
	repo  Repository
	audit core.AuditPort
	now   func() time.Time
}

// NewService constructs the account registry.
func NewService(repo Repository, audit core.AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns every account ordered by code.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	sortByCode(accounts)
	return accounts, nil
}

// Get returns the account with the given id.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// GetByCode returns the account with the given code.
func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, strings.TrimSpace(code))
}

// Resolve loads the accounts for codes keyed by code. Unknown codes are absent.
func (s *Service) Resolve(ctx context.Context, codes []string) (map[string]Account, error) {
	if len(codes) == 0 {
		return map[string]Account{}, nil
	}
	accounts, err := s.repo.ListByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Account, len(accounts))
	for _, acc := range accounts {
		out[acc.Code] = acc
	}
	return out, nil
}

// CategoryAccounts returns accounts that may act as parents.
func (s *Service) CategoryAccounts(ctx context.Context) ([]Account, error) {
	accounts, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(accounts))
	for _, acc := range accounts {
		if acc.IsCategory || acc.IsRoot() {
			out = append(out, acc)
		}
	}
	return out, nil
}

// Tree returns the chart of accounts as a forest.
func (s *Service) Tree(ctx context.Context) ([]*Node, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return BuildTree(accounts), nil
}

// Add creates an account.
func (s *Service) Add(ctx context.Context, input CreateInput) (Account, error) {
	acc := Account{
		Code:       strings.TrimSpace(input.Code),
		Name:       strings.TrimSpace(input.Name),
		Type:       input.Type,
		ParentCode: normalizeParent(input.ParentCode),
		IsActive:   !input.Inactive,
		IsCategory: input.IsCategory,
	}
	if err := validateAccount(acc); err != nil {
		return Account{}, err
	}
	acc.NormalBalance = NormalBalanceFor(acc.Type)

	var created Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetByCode(ctx, acc.Code); err == nil {
			return shared.ErrDuplicateCode.With("code", acc.Code)
		} else if !errors.Is(err, shared.ErrAccountNotFound) {
			return err
		}
		if err := ensureParent(ctx, tx, acc.ParentCode, acc.Code); err != nil {
			return err
		}
		now := s.now()
		acc.CreatedAt, acc.UpdatedAt = now, now
		inserted, err := tx.Insert(ctx, acc)
		if err != nil {
			return err
		}
		created = inserted
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.record(ctx, "account.create", created, nil)
	return created, nil
}

// Update applies patch to the account with the given id.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (Account, error) {
	var updated Account
	var previousCode string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next := applyPatch(current, patch)
		if err := validateAccount(next); err != nil {
			return err
		}
		next.NormalBalance = NormalBalanceFor(next.Type)
		if next.Code != current.Code {
			other, err := tx.GetByCode(ctx, next.Code)
			if err == nil && other.ID != current.ID {
				return shared.ErrDuplicateCode.With("code", next.Code)
			}
			if err != nil && !errors.Is(err, shared.ErrAccountNotFound) {
				return err
			}
		}
		if err := ensureParent(ctx, tx, next.ParentCode, current.Code, next.Code); err != nil {
			return err
		}
		next.UpdatedAt = s.now()
		saved, err := tx.Update(ctx, next)
		if err != nil {
			return err
		}
		previousCode = current.Code
		updated = saved
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	meta := map[string]any{}
	if previousCode != updated.Code {
		meta["previous_code"] = previousCode
	}
	s.record(ctx, "account.update", updated, meta)
	return updated, nil
}

// Delete removes a childless account.
func (s *Service) Delete(ctx context.Context, id int64) error {
	var deleted Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		acc, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		children, err := tx.CountChildren(ctx, acc.Code)
		if err != nil {
			return err
		}
		if children > 0 {
			return shared.ErrHasChildren.With("children", children)
		}
		if err := tx.Delete(ctx, acc.ID); err != nil {
			return err
		}
		deleted = acc
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, "account.delete", deleted, nil)
	return nil
}

// ensureParent checks that parent exists and that walking up from it never
// reaches one of selfCodes. Every ancestor visited stays locked until the
// transaction ends.
func ensureParent(ctx context.Context, tx TxRepository, parent *string, selfCodes ...string) error {
	if parent == nil {
		return nil
	}
	self := make(map[string]struct{}, len(selfCodes))
	for _, code := range selfCodes {
		self[code] = struct{}{}
	}
	seen := make(map[string]struct{})
	cursor := *parent
	first := true
	for cursor != "" {
		if _, ok := self[cursor]; ok {
			return shared.ErrCircularParent.With("parent_code", *parent)
		}
		if _, ok := seen[cursor]; ok {
			return shared.ErrCircularParent.With("parent_code", *parent)
		}
		seen[cursor] = struct{}{}
		acc, err := tx.LockByCode(ctx, cursor)
		if err != nil {
			if first && errors.Is(err, shared.ErrAccountNotFound) {
				return shared.ErrParentNotFound.With("parent_code", *parent)
			}
			if errors.Is(err, shared.ErrAccountNotFound) {
				return nil
			}
			return err
		}
		first = false
		if acc.ParentCode == nil {
			return nil
		}
		cursor = *acc.ParentCode
	}
	return nil
}

func applyPatch(acc Account, patch Patch) Account {
	if patch.Code != nil {
		acc.Code = strings.TrimSpace(*patch.Code)
	}
	if patch.Name != nil {
		acc.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Type != nil {
		acc.Type = *patch.Type
	}
	if patch.ParentCode != nil {
		acc.ParentCode = normalizeParent(patch.ParentCode)
	}
	if patch.IsActive != nil {
		acc.IsActive = *patch.IsActive
	}
	if patch.IsCategory != nil {
		acc.IsCategory = *patch.IsCategory
	}
	return acc
}

func normalizeParent(code *string) *string {
	if code == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*code)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func validateAccount(acc Account) error {
	if !codePattern.MatchString(acc.Code) {
		return shared.ErrInvalidCode.With("code", acc.Code)
	}
	if acc.Name == "" {
		return shared.ErrInvalidName
	}
	if !acc.Type.Valid() {
		return shared.ErrInvalidType.With("type", string(acc.Type))
	}
	if acc.ParentCode != nil && *acc.ParentCode == acc.Code {
		return shared.ErrCircularParent.With("parent_code", acc.Code)
	}
	return nil
}

func (s *Service) record(ctx context.Context, action string, acc Account, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["code"] = acc.Code
	_ = s.audit.Record(ctx, core.AuditLog{
		Actor:    core.ActorFromContext(ctx),
		Action:   action,
		Entity:   "account",
		EntityID: strconv.FormatInt(acc.ID, 10),
		Meta:     meta,
		At:       s.now(),
	})
}
