package accounts

import "time"

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
	AccountTypeCOGS      AccountType = "COST_OF_GOODS_SOLD"
)

// Valid reports whether t is a known category.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeRevenue, AccountTypeExpense, AccountTypeCOGS:
		return true
	}
	return false
}

// NormalBalance is the side on which an account's balance increases.
type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "DEBIT"
	NormalBalanceCredit NormalBalance = "CREDIT"
)

// NormalBalanceFor derives the normal side from the account category.
func NormalBalanceFor(t AccountType) NormalBalance {
	switch t {
	case AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue:
		return NormalBalanceCredit
	default:
		return NormalBalanceDebit
	}
}

// Account models a chart of accounts node.
type Account struct {
	ID            int64         `json:"id" db:"id"`
	Code          string        `json:"code" db:"code"`
	Name          string        `json:"name" db:"name"`
	Type          AccountType   `json:"type" db:"type"`
	ParentCode    *string       `json:"parent_code,omitempty" db:"parent_code"`
	IsActive      bool          `json:"is_active" db:"is_active"`
	IsCategory    bool          `json:"is_category" db:"is_category"`
	NormalBalance NormalBalance `json:"normal_balance" db:"normal_balance"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// IsRoot reports whether the account has no parent.
func (a Account) IsRoot() bool {
	return a.ParentCode == nil || *a.ParentCode == ""
}

// Postable reports whether journal lines may reference the account.
func (a Account) Postable() bool {
	return a.IsActive && !a.IsCategory
}

// CreateInput describes a new account.
type CreateInput struct {
	Code       string
	Name       string
	Type       AccountType
	ParentCode *string
	IsCategory bool
	Inactive   bool
}

// Patch lists account fields to change; nil fields stay as they are.
// A ParentCode pointing at "" moves the account to the root.
type Patch struct {
	Code       *string
	Name       *string
	Type       *AccountType
	ParentCode *string
	IsActive   *bool
	IsCategory *bool
}
