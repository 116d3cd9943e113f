package accounts

import (
	"context"
	"sync"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	accounts map[int64]Account
	nextID   int64
	inUse    map[string]bool
	locked   []string
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: make(map[int64]Account), inUse: make(map[string]bool)}
}

func (r *memoryRepo) List(ctx context.Context) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Account, 0, len(r.accounts))
	for _, acc := range r.accounts {
		out = append(out, acc)
	}
	return out, nil
}

func (r *memoryRepo) ListByCodes(ctx context.Context, codes []string) ([]Account, error) {
	all, _ := r.List(ctx)
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}
	var out []Account
	for _, acc := range all {
		if want[acc.Code] {
			out = append(out, acc)
		}
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return Account{}, shared.ErrAccountNotFound
	}
	return acc, nil
}

func (r *memoryRepo) GetByCode(ctx context.Context, code string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byCode(code)
}

func (r *memoryRepo) byCode(code string) (Account, error) {
	for _, acc := range r.accounts {
		if acc.Code == code {
			return acc, nil
		}
	}
	return Account{}, shared.ErrAccountNotFound
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[int64]Account, len(r.accounts))
	for id, acc := range r.accounts {
		snapshot[id] = acc
	}
	nextID := r.nextID
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.accounts = snapshot
		r.nextID = nextID
		return err
	}
	return nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, id int64) (Account, error) {
	acc, ok := tx.repo.accounts[id]
	if !ok {
		return Account{}, shared.ErrAccountNotFound
	}
	return acc, nil
}

func (tx *memoryTx) GetByCode(ctx context.Context, code string) (Account, error) {
	return tx.repo.byCode(code)
}

func (tx *memoryTx) LockByCode(ctx context.Context, code string) (Account, error) {
	tx.repo.locked = append(tx.repo.locked, code)
	return tx.repo.byCode(code)
}

func (tx *memoryTx) CountChildren(ctx context.Context, code string) (int, error) {
	n := 0
	for _, acc := range tx.repo.accounts {
		if acc.ParentCode != nil && *acc.ParentCode == code {
			n++
		}
	}
	return n, nil
}

func (tx *memoryTx) Insert(ctx context.Context, acc Account) (Account, error) {
	if _, err := tx.repo.byCode(acc.Code); err == nil {
		return Account{}, shared.ErrDuplicateCode
	}
	tx.repo.nextID++
	acc.ID = tx.repo.nextID
	tx.repo.accounts[acc.ID] = acc
	return acc, nil
}

func (tx *memoryTx) Update(ctx context.Context, acc Account) (Account, error) {
	prev, ok := tx.repo.accounts[acc.ID]
	if !ok {
		return Account{}, shared.ErrAccountNotFound
	}
	if prev.Code != acc.Code {
		for id, child := range tx.repo.accounts {
			if child.ParentCode != nil && *child.ParentCode == prev.Code {
				code := acc.Code
				child.ParentCode = &code
				tx.repo.accounts[id] = child
			}
		}
	}
	tx.repo.accounts[acc.ID] = acc
	return acc, nil
}

func (tx *memoryTx) Delete(ctx context.Context, id int64) error {
	acc, ok := tx.repo.accounts[id]
	if !ok {
		return shared.ErrAccountNotFound
	}
	if tx.repo.inUse[acc.Code] {
		return shared.ErrAccountInUse
	}
	delete(tx.repo.accounts, id)
	return nil
}
