package shared

import core "github.com/odyssey-erp/odyssey-ledger/internal/shared"

// Chart of accounts failures.
var (
	ErrAccountNotFound = core.NewNotFound("ACCOUNT_NOT_FOUND", "accounting: account not found")
	ErrParentNotFound  = core.NewNotFound("PARENT_NOT_FOUND", "accounting: parent account not found")
	ErrDuplicateCode   = core.NewValidation("DUPLICATE_CODE", "accounting: account code already exists")
	ErrInvalidCode     = core.NewValidation("INVALID_CODE", "accounting: account code must be digits")
	ErrInvalidName     = core.NewValidation("INVALID_NAME", "accounting: account name required")
	ErrInvalidType     = core.NewValidation("INVALID_TYPE", "accounting: unknown account category")
	ErrCircularParent  = core.NewValidation("CIRCULAR_PARENT", "accounting: account cannot be its own ancestor")
	ErrHasChildren     = core.NewValidation("HAS_CHILDREN", "accounting: account has child accounts")
	ErrAccountInUse    = core.NewValidation("ACCOUNT_IN_USE", "accounting: account referenced by journal lines")
	ErrCategoryAccount = core.NewValidation("CATEGORY_ACCOUNT", "accounting: category accounts cannot carry postings")
	ErrInactiveAccount = core.NewValidation("INACTIVE_ACCOUNT", "accounting: account is inactive")
)

// Journal failures.
var (
	ErrUnbalanced      = core.NewValidation("UNBALANCED", "accounting: journal lines must balance")
	ErrZeroAmount      = core.NewValidation("ZERO_AMOUNT", "accounting: journal total must not be zero")
	ErrNegativeAmount  = core.NewValidation("NEGATIVE_AMOUNT", "accounting: line amounts must not be negative")
	ErrAmountPrecision = core.NewValidation("AMOUNT_PRECISION", "accounting: line amounts allow at most 2 decimal places")
	ErrTooFewLines     = core.NewValidation("TOO_FEW_LINES", "accounting: journal requires at least two lines")
	ErrMissingAccount  = core.NewValidation("MISSING_ACCOUNT", "accounting: line account required")
	ErrMissingDate     = core.NewValidation("MISSING_DATE", "accounting: entry date required")
	ErrVoidReason      = core.NewValidation("VOID_REASON_REQUIRED", "accounting: void reason required")
	ErrJournalNotFound = core.NewNotFound("ENTRY_NOT_FOUND", "accounting: journal entry not found")
	ErrVoidedImmutable = core.NewInvalidState("VOIDED_IMMUTABLE", "accounting: voided entries cannot change")
	ErrAlreadyVoided   = core.NewInvalidState("ALREADY_VOIDED", "accounting: entry already voided")
	ErrNotPosted       = core.NewInvalidState("NOT_POSTED", "accounting: only posted entries can be voided or reversed")
	ErrNotDraft        = core.NewInvalidState("NOT_DRAFT", "accounting: only draft entries can be deleted")
	ErrInvalidStatus   = core.NewInvalidState("INVALID_STATUS", "accounting: invalid status transition")
)

// ErrAlreadyReversed indicates a reversing entry already exists.
var ErrAlreadyReversed = core.NewInvalidState("ALREADY_REVERSED", "accounting: entry already reversed")
