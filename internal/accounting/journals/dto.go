package journals

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	core "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// LineInput describes a journal line for create and update requests.
type LineInput struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Memo        string
}

// EntryInput groups fields required to create or replace a journal entry.
// An empty Status means DRAFT on create and "unchanged" on update.
type EntryInput struct {
	Date        time.Time
	Description string
	Status      JournalStatus
	PostedAt    *time.Time
	Lines       []LineInput
}

// Validate checks the double-entry invariants of the input.
func (in EntryInput) Validate() error {
	if in.Date.IsZero() {
		return shared.ErrMissingDate
	}
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range in.Lines {
		if strings.TrimSpace(line.AccountCode) == "" {
			return shared.ErrMissingAccount.With("line", idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return shared.ErrNegativeAmount.With("line", idx)
		}
		if !core.FitsScale(line.Debit, core.MoneyScale) || !core.FitsScale(line.Credit, core.MoneyScale) {
			return shared.ErrAmountPrecision.With("line", idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return shared.ErrUnbalanced.With("total_debit", debit.String()).With("total_credit", credit.String())
	}
	if debit.IsZero() {
		return shared.ErrZeroAmount
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	return nil
}

// accountCodes lists the distinct codes referenced by the input.
func (in EntryInput) accountCodes() []string {
	seen := make(map[string]struct{}, len(in.Lines))
	codes := make([]string, 0, len(in.Lines))
	for _, line := range in.Lines {
		code := strings.TrimSpace(line.AccountCode)
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

func (in EntryInput) toLines() []JournalLine {
	lines := make([]JournalLine, len(in.Lines))
	for i, line := range in.Lines {
		lines[i] = JournalLine{
			LineNo:      i + 1,
			AccountCode: strings.TrimSpace(line.AccountCode),
			Debit:       line.Debit,
			Credit:      line.Credit,
			Memo:        strings.TrimSpace(line.Memo),
		}
	}
	return lines
}

// dateOnly truncates t to its UTC calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
