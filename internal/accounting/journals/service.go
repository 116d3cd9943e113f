package journals

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	core "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// AccountResolver looks up accounts by code.
type AccountResolver interface {
	Resolve(ctx context.Context, codes []string) (map[string]accounts.Account, error)
}

// Service owns journal entries.
type Service struct {
	repo     Repository
	accounts AccountResolver
	audit    core.AuditPort
	now      func() time.Time
}

// NewService constructs the ledger engine.
func NewService(repo Repository, accounts AccountResolver, audit core.AuditPort) *Service {
	return &Service{repo: repo, accounts: accounts, audit: audit, now: time.Now}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns one entry with account names resolved.
func (s *Service) Get(ctx context.Context, id int64) (JournalEntry, error) {
	entry, err := s.repo.Get(ctx, id)
	if err != nil {
		return JournalEntry{}, err
	}
	entries := []JournalEntry{entry}
	if err := s.enrich(ctx, entries); err != nil {
		return JournalEntry{}, err
	}
	return entries[0], nil
}

// List returns entries newest first with account names resolved.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].ID > entries[j].ID
	})
	if err := s.enrich(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Create validates and stores a new entry.
func (s *Service) Create(ctx context.Context, input EntryInput) (JournalEntry, error) {
	input.Date = dateOnly(input.Date)
	if input.Status == "" {
		input.Status = JournalStatusDraft
	}
	if input.Status != JournalStatusDraft && input.Status != JournalStatusPosted {
		return JournalEntry{}, shared.ErrInvalidStatus.With("status", string(input.Status))
	}
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	now := s.now()
	entry := JournalEntry{
		Date:        input.Date,
		Description: strings.TrimSpace(input.Description),
		Status:      input.Status,
		CreatedBy:   core.ActorFromContext(ctx),
		CreatedAt:   now,
		UpdatedAt:   now,
		Lines:       input.toLines(),
	}
	if entry.Status == JournalStatusPosted {
		entry.PostedAt = postedAt(input.PostedAt, now)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := checkAccounts(ctx, tx, input.accountCodes()); err != nil {
			return err
		}
		year := core.NumberYear(entry.Date)
		seq, err := tx.NextNumber(ctx, year)
		if err != nil {
			return err
		}
		entry.Number = core.FormatNumber(core.PrefixJournal, year, seq)
		inserted, err := tx.Insert(ctx, entry)
		if err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	entry.computeTotals()
	s.record(ctx, "journal.create", entry, map[string]any{"status": string(entry.Status)})
	return entry, nil
}

// Update replaces the header and lines of an entry that is not voided.
func (s *Service) Update(ctx context.Context, id int64, input EntryInput) (JournalEntry, error) {
	input.Date = dateOnly(input.Date)
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	var firstPost bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == JournalStatusVoided {
			return shared.ErrVoidedImmutable
		}
		target := input.Status
		if target == "" {
			target = current.Status
		}
		switch {
		case target == JournalStatusVoided:
			return shared.ErrInvalidStatus.With("status", string(target))
		case current.Status == JournalStatusPosted && target == JournalStatusDraft:
			return shared.ErrInvalidStatus.With("status", string(target))
		}
		if err := checkAccounts(ctx, tx, input.accountCodes()); err != nil {
			return err
		}
		now := s.now()
		next := current
		next.Date = input.Date
		next.Description = strings.TrimSpace(input.Description)
		next.Status = target
		next.Lines = input.toLines()
		next.UpdatedAt = now
		if target == JournalStatusPosted && current.PostedAt == nil {
			next.PostedAt = postedAt(input.PostedAt, now)
			firstPost = true
		}
		if err := tx.Update(ctx, next); err != nil {
			return err
		}
		entry = next
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	entry.computeTotals()
	s.record(ctx, "journal.update", entry, nil)
	if firstPost {
		s.record(ctx, "journal.post", entry, nil)
	}
	return entry, nil
}

// Post moves a draft to POSTED. Posting a posted entry returns it unchanged.
func (s *Service) Post(ctx context.Context, id int64) (JournalEntry, error) {
	var entry JournalEntry
	var changed bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch current.Status {
		case JournalStatusVoided:
			return shared.ErrVoidedImmutable
		case JournalStatusPosted:
			entry = current
			return nil
		}
		pending := inputFromEntry(current)
		if err := pending.Validate(); err != nil {
			return err
		}
		if err := checkAccounts(ctx, tx, pending.accountCodes()); err != nil {
			return err
		}
		now := s.now()
		current.Status = JournalStatusPosted
		current.PostedAt = &now
		current.UpdatedAt = now
		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		entry = current
		changed = true
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	entry.computeTotals()
	if changed {
		s.record(ctx, "journal.post", entry, nil)
	}
	return entry, nil
}

// Void marks a posted entry voided with a structured reason.
func (s *Service) Void(ctx context.Context, id int64, reason string) (JournalEntry, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return JournalEntry{}, shared.ErrVoidReason
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch current.Status {
		case JournalStatusVoided:
			return shared.ErrAlreadyVoided
		case JournalStatusDraft:
			return shared.ErrNotPosted
		}
		now := s.now()
		current.Status = JournalStatusVoided
		current.VoidedAt = &now
		current.VoidReason = reason
		current.UpdatedAt = now
		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	entry.computeTotals()
	s.record(ctx, "journal.void", entry, map[string]any{"reason": reason})
	return entry, nil
}

// Reverse posts a new entry that mirrors a posted one with sides swapped.
func (s *Service) Reverse(ctx context.Context, id int64, date *time.Time) (JournalEntry, error) {
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if original.Status != JournalStatusPosted {
			return shared.ErrNotPosted
		}
		reversed, err := tx.HasReversal(ctx, original.ID)
		if err != nil {
			return err
		}
		if reversed {
			return shared.ErrAlreadyReversed
		}
		now := s.now()
		entryDate := dateOnly(now)
		if date != nil && !date.IsZero() {
			entryDate = dateOnly(*date)
		}
		lines := make([]JournalLine, len(original.Lines))
		for i, line := range original.Lines {
			lines[i] = JournalLine{
				LineNo:      i + 1,
				AccountCode: line.AccountCode,
				Debit:       line.Credit,
				Credit:      line.Debit,
				Memo:        line.Memo,
			}
		}
		originalID := original.ID
		next := JournalEntry{
			Date:        entryDate,
			Description: original.Description,
			Status:      JournalStatusPosted,
			PostedAt:    &now,
			ReversalOf:  &originalID,
			CreatedBy:   core.ActorFromContext(ctx),
			CreatedAt:   now,
			UpdatedAt:   now,
			Lines:       lines,
		}
		year := core.NumberYear(next.Date)
		seq, err := tx.NextNumber(ctx, year)
		if err != nil {
			return err
		}
		next.Number = core.FormatNumber(core.PrefixJournal, year, seq)
		inserted, err := tx.Insert(ctx, next)
		if err != nil {
			return err
		}
		reversal = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	reversal.computeTotals()
	s.record(ctx, "journal.reverse", reversal, map[string]any{"reversal_of": id})
	return reversal, nil
}

// DeleteDraft removes an entry that was never posted.
func (s *Service) DeleteDraft(ctx context.Context, id int64) error {
	var deleted JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != JournalStatusDraft {
			return shared.ErrNotDraft.With("status", string(current.Status))
		}
		deleted = current
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "journal.delete", deleted, nil)
	return nil
}

// TrialBalance sums posted activity per account up to asOf. Balances are
// signed by each account's normal side.
func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	asOf = dateOnly(asOf)
	lines, err := s.repo.PostedTotals(ctx, asOf)
	if err != nil {
		return TrialBalance{}, err
	}
	codes := make([]string, len(lines))
	for i, line := range lines {
		codes[i] = line.AccountCode
	}
	resolved, err := s.accounts.Resolve(ctx, codes)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := TrialBalance{AsOf: asOf, Lines: lines}
	for i := range tb.Lines {
		line := &tb.Lines[i]
		acc := resolved[line.AccountCode]
		line.AccountName = acc.Name
		normal := accounts.NormalBalanceFor(acc.Type)
		line.NormalBalance = string(normal)
		if normal == accounts.NormalBalanceCredit {
			line.Balance = line.Credit.Sub(line.Debit)
		} else {
			line.Balance = line.Debit.Sub(line.Credit)
		}
		tb.TotalDebit = tb.TotalDebit.Add(line.Debit)
		tb.TotalCredit = tb.TotalCredit.Add(line.Credit)
	}
	sort.Slice(tb.Lines, func(i, j int) bool { return tb.Lines[i].AccountCode < tb.Lines[j].AccountCode })
	return tb, nil
}

// CheckIntegrity lists stored entries whose lines do not balance.
func (s *Service) CheckIntegrity(ctx context.Context) ([]IntegrityIssue, error) {
	return s.repo.UnbalancedEntries(ctx)
}

// checkAccounts resolves the line accounts through tx so the rules hold at
// commit time, not only when the request arrived.
func checkAccounts(ctx context.Context, tx TxRepository, codes []string) error {
	resolved, err := tx.ShareAccounts(ctx, codes)
	if err != nil {
		return err
	}
	for _, code := range codes {
		acc, ok := resolved[code]
		if !ok {
			return shared.ErrAccountNotFound.With("account_code", code)
		}
		if acc.IsCategory {
			return shared.ErrCategoryAccount.With("account_code", code)
		}
		if !acc.IsActive {
			return shared.ErrInactiveAccount.With("account_code", code)
		}
	}
	return nil
}

func (s *Service) enrich(ctx context.Context, entries []JournalEntry) error {
	var codes []string
	seen := map[string]struct{}{}
	for _, entry := range entries {
		for _, line := range entry.Lines {
			if _, ok := seen[line.AccountCode]; ok {
				continue
			}
			seen[line.AccountCode] = struct{}{}
			codes = append(codes, line.AccountCode)
		}
	}
	resolved, err := s.accounts.Resolve(ctx, codes)
	if err != nil {
		return err
	}
	for i := range entries {
		for j := range entries[i].Lines {
			entries[i].Lines[j].AccountName = resolved[entries[i].Lines[j].AccountCode].Name
		}
		entries[i].computeTotals()
	}
	return nil
}

func (s *Service) record(ctx context.Context, action string, entry JournalEntry, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["number"] = entry.Number
	meta["total"] = entry.TotalDebit.String()
	_ = s.audit.Record(ctx, core.AuditLog{
		Actor:    core.ActorFromContext(ctx),
		Action:   action,
		Entity:   "journal_entry",
		EntityID: strconv.FormatInt(entry.ID, 10),
		Meta:     meta,
		At:       s.now(),
	})
}

func inputFromEntry(entry JournalEntry) EntryInput {
	in := EntryInput{Date: entry.Date, Description: entry.Description, Status: entry.Status}
	for _, line := range entry.Lines {
		in.Lines = append(in.Lines, LineInput{AccountCode: line.AccountCode, Debit: line.Debit, Credit: line.Credit, Memo: line.Memo})
	}
	return in
}

func postedAt(requested *time.Time, now time.Time) *time.Time {
	if requested != nil && !requested.IsZero() {
		t := *requested
		return &t
	}
	return &now
}
