package journals

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	core "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type auditSpy struct {
	actions []string
}

func (a *auditSpy) Record(ctx context.Context, log core.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*Service, *memoryRepo, *auditSpy, *clock) {
	t.Helper()
	repo := newMemoryRepo()
	audit := &auditSpy{}
	clk := &clock{now: time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)}
	svc := NewService(repo, repo.chart, audit)
	svc.WithNow(clk.Now)
	return svc, repo, audit, clk
}

func saleInput(date time.Time, amount string, status JournalStatus) EntryInput {
	return EntryInput{
		Date:        date,
		Description: "cash sale",
		Status:      status,
		Lines: []LineInput{
			{AccountCode: "1100", Debit: amt(amount)},
			{AccountCode: "4000", Credit: amt(amount)},
		},
	}
}

func TestCreateRejectsUnbalanced(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	_, err := svc.Create(context.Background(), EntryInput{
		Date: day(2025, 3, 1),
		Lines: []LineInput{
			{AccountCode: "1100", Debit: amt("100")},
			{AccountCode: "4000", Credit: amt("99")},
		},
	})
	require.ErrorIs(t, err, shared.ErrUnbalanced)
	require.ErrorIs(t, err, core.ErrValidation)
	require.Empty(t, repo.entries)
}

func TestCreateRejectsZeroAmount(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Create(context.Background(), EntryInput{
		Date: day(2025, 3, 1),
		Lines: []LineInput{
			{AccountCode: "1100", Debit: decimal.Zero, Credit: decimal.Zero},
			{AccountCode: "4000", Debit: decimal.Zero, Credit: decimal.Zero},
		},
	})
	require.ErrorIs(t, err, shared.ErrZeroAmount)
}

func TestCreateValidatesLinesAndAccounts(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	cases := []struct {
		name  string
		input EntryInput
		err   error
	}{
		{name: "negative", input: EntryInput{Date: day(2025, 3, 1), Lines: []LineInput{{AccountCode: "1100", Debit: amt("-5")}, {AccountCode: "4000", Credit: amt("-5")}}}, err: shared.ErrNegativeAmount},
		{name: "single line", input: EntryInput{Date: day(2025, 3, 1), Lines: []LineInput{{AccountCode: "1100", Debit: amt("5"), Credit: amt("5")}}}, err: shared.ErrTooFewLines},
		{name: "missing date", input: EntryInput{Lines: []LineInput{{AccountCode: "1100", Debit: amt("5")}, {AccountCode: "4000", Credit: amt("5")}}}, err: shared.ErrMissingDate},
		{name: "unknown account", input: EntryInput{Date: day(2025, 3, 1), Lines: []LineInput{{AccountCode: "1100", Debit: amt("5")}, {AccountCode: "4999", Credit: amt("5")}}}, err: shared.ErrAccountNotFound},
		{name: "category account", input: EntryInput{Date: day(2025, 3, 1), Lines: []LineInput{{AccountCode: "1000", Debit: amt("5")}, {AccountCode: "4000", Credit: amt("5")}}}, err: shared.ErrCategoryAccount},
		{name: "inactive account", input: EntryInput{Date: day(2025, 3, 1), Lines: []LineInput{{AccountCode: "1900", Debit: amt("5")}, {AccountCode: "4000", Credit: amt("5")}}}, err: shared.ErrInactiveAccount},
		{name: "voided status", input: saleInput(day(2025, 3, 1), "5", JournalStatusVoided), err: shared.ErrInvalidStatus},
		{name: "sub cent amounts", input: EntryInput{Date: day(2025, 3, 1), Lines: []LineInput{{AccountCode: "1100", Debit: amt("0.005")}, {AccountCode: "1200", Debit: amt("0.005")}, {AccountCode: "4000", Credit: amt("0.01")}}}, err: shared.ErrAmountPrecision},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.input)
			require.ErrorIs(t, err, tc.err)
		})
	}
	_, err := svc.Create(ctx, cases[3].input)
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestCreateNumbersPerYear(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, saleInput(day(2025, 1, 5), "10", ""))
	require.NoError(t, err)
	second, err := svc.Create(ctx, saleInput(day(2025, 2, 5), "10", ""))
	require.NoError(t, err)
	nextYear, err := svc.Create(ctx, saleInput(day(2026, 1, 2), "10", ""))
	require.NoError(t, err)

	require.Equal(t, "JE-2025-0001", first.Number)
	require.Equal(t, "JE-2025-0002", second.Number)
	require.Equal(t, "JE-2026-0001", nextYear.Number)
	require.Equal(t, JournalStatusDraft, first.Status)
	require.Nil(t, first.PostedAt)
	require.True(t, first.TotalDebit.Equal(amt("10")))
}

func TestCreatePostedStampsPostedAt(t *testing.T) {
	svc, _, audit, clk := newTestService(t)
	ctx := context.Background()

	entry, err := svc.Create(ctx, saleInput(day(2025, 3, 1), "50", JournalStatusPosted))
	require.NoError(t, err)
	require.NotNil(t, entry.PostedAt)
	require.Equal(t, clk.now, *entry.PostedAt)

	supplied := time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC)
	in := saleInput(day(2025, 3, 2), "50", JournalStatusPosted)
	in.PostedAt = &supplied
	entry, err = svc.Create(ctx, in)
	require.NoError(t, err)
	require.Equal(t, supplied, *entry.PostedAt)
	require.Equal(t, []string{"journal.create", "journal.create"}, audit.actions)
}

func TestUpdateLifecycle(t *testing.T) {
	svc, _, audit, clk := newTestService(t)
	ctx := context.Background()

	draft, err := svc.Create(ctx, saleInput(day(2025, 3, 1), "20", ""))
	require.NoError(t, err)

	_, err = svc.Update(ctx, draft.ID, EntryInput{
		Date:  day(2025, 3, 1),
		Lines: []LineInput{{AccountCode: "1100", Debit: amt("20")}, {AccountCode: "4000", Credit: amt("19.99")}},
	})
	require.ErrorIs(t, err, shared.ErrUnbalanced)

	posted, err := svc.Update(ctx, draft.ID, saleInput(day(2025, 3, 1), "25", JournalStatusPosted))
	require.NoError(t, err)
	require.Equal(t, JournalStatusPosted, posted.Status)
	require.Equal(t, draft.Number, posted.Number)
	firstPostedAt := *posted.PostedAt

	clk.now = clk.now.Add(time.Hour)
	again, err := svc.Update(ctx, draft.ID, saleInput(day(2025, 3, 1), "30", JournalStatusPosted))
	require.NoError(t, err)
	require.Equal(t, firstPostedAt, *again.PostedAt)
	require.True(t, again.TotalCredit.Equal(amt("30")))

	_, err = svc.Update(ctx, draft.ID, saleInput(day(2025, 3, 1), "30", JournalStatusDraft))
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
	require.ErrorIs(t, err, core.ErrInvalidState)

	_, err = svc.Update(ctx, 404, saleInput(day(2025, 3, 1), "30", ""))
	require.ErrorIs(t, err, shared.ErrJournalNotFound)

	require.Contains(t, audit.actions, "journal.post")
}

func TestPostIsIdempotent(t *testing.T) {
	svc, _, audit, clk := newTestService(t)
	ctx := context.Background()

	draft, err := svc.Create(ctx, saleInput(day(2025, 3, 1), "20", ""))
	require.NoError(t, err)
	posted, err := svc.Post(ctx, draft.ID)
	require.NoError(t, err)
	stamp := *posted.PostedAt

	clk.now = clk.now.Add(24 * time.Hour)
	again, err := svc.Post(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, stamp, *again.PostedAt)

	posts := 0
	for _, a := range audit.actions {
		if a == "journal.post" {
			posts++
		}
	}
	require.Equal(t, 1, posts)
}

func TestPostRechecksAccountsInsideTransaction(t *testing.T) {
	svc, repo, audit, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.Create(ctx, saleInput(day(2025, 3, 1), "20", ""))
	require.NoError(t, err)
	require.Equal(t, [][]string{{"1100", "4000"}}, repo.sharedCodes)

	cash := repo.chart["1100"]
	cash.IsActive = false
	repo.chart["1100"] = cash

	_, err = svc.Post(ctx, draft.ID)
	require.ErrorIs(t, err, shared.ErrInactiveAccount)
	stored, err := repo.Get(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, JournalStatusDraft, stored.Status)
	require.NotContains(t, audit.actions, "journal.post")

	cash.IsActive = true
	cash.IsCategory = true
	repo.chart["1100"] = cash
	_, err = svc.Update(ctx, draft.ID, saleInput(day(2025, 3, 2), "25", JournalStatusPosted))
	require.ErrorIs(t, err, shared.ErrCategoryAccount)

	cash.IsCategory = false
	repo.chart["1100"] = cash
	posted, err := svc.Post(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, JournalStatusPosted, posted.Status)
}

func TestVoidEntry(t *testing.T) {
	svc, _, _, clk := newTestService(t)
	ctx := context.Background()

	draft, err := svc.Create(ctx, saleInput(day(2025, 3, 1), "20", ""))
	require.NoError(t, err)
	_, err = svc.Void(ctx, draft.ID, "mistake")
	require.ErrorIs(t, err, shared.ErrNotPosted)
	require.ErrorIs(t, err, core.ErrInvalidState)

	posted, err := svc.Create(ctx, saleInput(day(2025, 3, 1), "20", JournalStatusPosted))
	require.NoError(t, err)

	_, err = svc.Void(ctx, posted.ID, "  ")
	require.ErrorIs(t, err, shared.ErrVoidReason)

	voided, err := svc.Void(ctx, posted.ID, "duplicate invoice")
	require.NoError(t, err)
	require.Equal(t, JournalStatusVoided, voided.Status)
	require.Equal(t, "duplicate invoice", voided.VoidReason)
	require.Equal(t, "cash sale", voided.Description)
	require.Equal(t, clk.now, *voided.VoidedAt)

	_, err = svc.Void(ctx, posted.ID, "again")
	require.ErrorIs(t, err, shared.ErrAlreadyVoided)

	_, err = svc.Update(ctx, posted.ID, saleInput(day(2025, 3, 1), "20", ""))
	require.ErrorIs(t, err, shared.ErrVoidedImmutable)

	_, err = svc.Post(ctx, posted.ID)
	require.ErrorIs(t, err, shared.ErrVoidedImmutable)
}

func TestDeleteDraft(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	draft, err := svc.Create(ctx, saleInput(day(2025, 3, 1), "20", ""))
	require.NoError(t, err)
	posted, err := svc.Create(ctx, saleInput(day(2025, 3, 1), "20", JournalStatusPosted))
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteDraft(ctx, posted.ID), shared.ErrNotDraft)
	require.NoError(t, svc.DeleteDraft(ctx, draft.ID))
	require.ErrorIs(t, svc.DeleteDraft(ctx, draft.ID), shared.ErrJournalNotFound)
	require.Len(t, repo.entries, 1)
}

func TestReverseEntry(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	posted, err := svc.Create(ctx, saleInput(day(2025, 3, 1), "75", JournalStatusPosted))
	require.NoError(t, err)

	date := day(2025, 3, 31)
	reversal, err := svc.Reverse(ctx, posted.ID, &date)
	require.NoError(t, err)
	require.Equal(t, JournalStatusPosted, reversal.Status)
	require.Equal(t, posted.ID, *reversal.ReversalOf)
	require.Equal(t, "JE-2025-0002", reversal.Number)
	require.Equal(t, "1100", reversal.Lines[0].AccountCode)
	require.True(t, reversal.Lines[0].Credit.Equal(amt("75")))
	require.True(t, reversal.Lines[1].Debit.Equal(amt("75")))

	_, err = svc.Reverse(ctx, posted.ID, nil)
	require.ErrorIs(t, err, shared.ErrAlreadyReversed)

	draft, err := svc.Create(ctx, saleInput(day(2025, 3, 1), "5", ""))
	require.NoError(t, err)
	_, err = svc.Reverse(ctx, draft.ID, nil)
	require.ErrorIs(t, err, shared.ErrNotPosted)
}

func TestListSortsAndEnriches(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, saleInput(day(2025, 1, 10), "1", ""))
	require.NoError(t, err)
	_, err = svc.Create(ctx, saleInput(day(2025, 3, 10), "2", JournalStatusPosted))
	require.NoError(t, err)
	_, err = svc.Create(ctx, saleInput(day(2025, 2, 10), "3", ""))
	require.NoError(t, err)

	entries, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, day(2025, 3, 10), entries[0].Date)
	require.Equal(t, day(2025, 2, 10), entries[1].Date)
	require.Equal(t, day(2025, 1, 10), entries[2].Date)
	require.Equal(t, "Cash", entries[0].Lines[0].AccountName)
	require.Equal(t, "Sales", entries[0].Lines[1].AccountName)
	require.True(t, entries[0].TotalDebit.Equal(amt("2")))

	posted, err := svc.List(ctx, ListFilter{Status: JournalStatusPosted})
	require.NoError(t, err)
	require.Len(t, posted, 1)

	got, err := svc.Get(ctx, entries[0].ID)
	require.NoError(t, err)
	require.Equal(t, "Cash", got.Lines[0].AccountName)
}

func TestTrialBalanceSignsByNormalSide(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, saleInput(day(2025, 3, 1), "100", JournalStatusPosted))
	require.NoError(t, err)
	_, err = svc.Create(ctx, EntryInput{
		Date:   day(2025, 3, 2),
		Status: JournalStatusPosted,
		Lines: []LineInput{
			{AccountCode: "5000", Debit: amt("40")},
			{AccountCode: "1100", Credit: amt("40")},
		},
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, saleInput(day(2025, 3, 3), "999", ""))
	require.NoError(t, err)

	tb, err := svc.TrialBalance(ctx, day(2025, 3, 31))
	require.NoError(t, err)
	require.True(t, tb.TotalDebit.Equal(tb.TotalCredit))
	require.Len(t, tb.Lines, 3)
	require.Equal(t, "1100", tb.Lines[0].AccountCode)
	require.True(t, tb.Lines[0].Balance.Equal(amt("60")))
	require.Equal(t, "4000", tb.Lines[1].AccountCode)
	require.Equal(t, "CREDIT", tb.Lines[1].NormalBalance)
	require.True(t, tb.Lines[1].Balance.Equal(amt("100")))
	require.True(t, tb.Lines[2].Balance.Equal(amt("40")))
}

func TestCheckIntegrity(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	ctx := context.Background()

	entry, err := svc.Create(ctx, saleInput(day(2025, 3, 1), "10", JournalStatusPosted))
	require.NoError(t, err)
	issues, err := svc.CheckIntegrity(ctx)
	require.NoError(t, err)
	require.Empty(t, issues)

	broken := repo.entries[entry.ID]
	broken.Lines[1].Credit = amt("9")
	repo.entries[entry.ID] = broken

	issues, err = svc.CheckIntegrity(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, entry.Number, issues[0].Number)
}
