package journals

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusDraft  JournalStatus = "DRAFT"
	JournalStatusPosted JournalStatus = "POSTED"
	JournalStatusVoided JournalStatus = "VOIDED"
)

// JournalEntry is a double-entry posting with its lines.
type JournalEntry struct {
	ID          int64           `json:"id" db:"id"`
	Number      string          `json:"number" db:"number"`
	Date        time.Time       `json:"date" db:"entry_date"`
	Description string          `json:"description" db:"description"`
	Status      JournalStatus   `json:"status" db:"status"`
	PostedAt    *time.Time      `json:"posted_at,omitempty" db:"posted_at"`
	VoidedAt    *time.Time      `json:"voided_at,omitempty" db:"voided_at"`
	VoidReason  string          `json:"void_reason,omitempty" db:"void_reason"`
	ReversalOf  *int64          `json:"reversal_of,omitempty" db:"reversal_of"`
	CreatedBy   string          `json:"created_by" db:"created_by"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
	Lines       []JournalLine   `json:"lines" db:"-"`
	TotalDebit  decimal.Decimal `json:"total_debit" db:"-"`
	TotalCredit decimal.Decimal `json:"total_credit" db:"-"`
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID          int64           `json:"id" db:"id"`
	EntryID     int64           `json:"entry_id" db:"entry_id"`
	LineNo      int             `json:"line_no" db:"line_no"`
	AccountCode string          `json:"account_code" db:"account_code"`
	AccountName string          `json:"account_name,omitempty" db:"-"`
	Debit       decimal.Decimal `json:"debit" db:"debit"`
	Credit      decimal.Decimal `json:"credit" db:"credit"`
	Memo        string          `json:"memo,omitempty" db:"memo"`
}

// computeTotals fills TotalDebit and TotalCredit from the lines.
func (e *JournalEntry) computeTotals() {
	e.TotalDebit, e.TotalCredit = sumLines(e.Lines)
}

func sumLines(lines []JournalLine) (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status      JournalStatus
	From        *time.Time
	To          *time.Time
	AccountCode string
	Limit       int
	Offset      int
}

// TrialBalanceLine is the posted activity of one account.
type TrialBalanceLine struct {
	AccountCode   string          `json:"account_code" db:"account_code"`
	AccountName   string          `json:"account_name" db:"-"`
	NormalBalance string          `json:"normal_balance" db:"-"`
	Debit         decimal.Decimal `json:"debit" db:"debit"`
	Credit        decimal.Decimal `json:"credit" db:"credit"`
	Balance       decimal.Decimal `json:"balance" db:"-"`
}

// TrialBalance aggregates posted activity up to a date.
type TrialBalance struct {
	AsOf        time.Time          `json:"as_of"`
	Lines       []TrialBalanceLine `json:"lines"`
	TotalDebit  decimal.Decimal    `json:"total_debit"`
	TotalCredit decimal.Decimal    `json:"total_credit"`
}

// IntegrityIssue reports a stored entry whose lines do not balance.
type IntegrityIssue struct {
	EntryID int64           `json:"entry_id" db:"entry_id"`
	Number  string          `json:"number" db:"number"`
	Debit   decimal.Decimal `json:"debit" db:"debit"`
	Credit  decimal.Decimal `json:"credit" db:"credit"`
}
