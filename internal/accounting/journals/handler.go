package journals

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	core "github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler exposes journal entries over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type lineRequest struct {
	AccountCode string          `json:"account_code" validate:"required,numeric"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        string          `json:"memo" validate:"max=500"`
}

type entryRequest struct {
	Date        httpx.Date    `json:"date"`
	Description string        `json:"description" validate:"max=1000"`
	Status      string        `json:"status" validate:"omitempty,oneof=DRAFT POSTED"`
	PostedAt    *time.Time    `json:"posted_at"`
	Lines       []lineRequest `json:"lines" validate:"required,dive"`
}

func (req entryRequest) input() EntryInput {
	in := EntryInput{
		Date:        req.Date.Time,
		Description: req.Description,
		Status:      JournalStatus(req.Status),
		PostedAt:    req.PostedAt,
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, LineInput{AccountCode: line.AccountCode, Debit: line.Debit, Credit: line.Credit, Memo: line.Memo})
	}
	return in
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type reverseRequest struct {
	Date httpx.Date `json:"date"`
}

// List returns entries newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, perPage := core.NormalizePage(httpx.QueryInt(r, "page", 1), httpx.QueryInt(r, "per_page", 50))
	filter := ListFilter{
		Status:      JournalStatus(query.Get("status")),
		AccountCode: query.Get("account_code"),
		Limit:       perPage,
		Offset:      (page - 1) * perPage,
	}
	if from, err := time.Parse(httpx.DateLayout, query.Get("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(httpx.DateLayout, query.Get("to")); err == nil {
		filter.To = &to
	}
	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, h.logger, "list journals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries, "page": page, "per_page": perPage})
}

// Get returns one entry.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "get journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

// Create stores a new entry.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Create(r.Context(), req.input())
	if err != nil {
		httpx.Fail(w, h.logger, "create journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

// Update replaces an entry.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Update(r.Context(), id, req.input())
	if err != nil {
		httpx.Fail(w, h.logger, "update journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

// Post moves a draft to POSTED.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Post(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "post journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

// Void voids a posted entry.
func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Void(r.Context(), id, req.Reason)
	if err != nil {
		httpx.Fail(w, h.logger, "void journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

// Reverse posts a reversing entry.
func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reverseRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	entry, err := h.service.Reverse(r.Context(), id, req.Date.Ptr())
	if err != nil {
		httpx.Fail(w, h.logger, "reverse journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

// Delete removes a draft.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteDraft(r.Context(), id); err != nil {
		httpx.Fail(w, h.logger, "delete journal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TrialBalance reports posted balances per account.
func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(httpx.DateLayout, raw)
		if err != nil {
			httpx.RespondError(w, httpx.ErrBadRequest.With("param", "as_of"))
			return
		}
		asOf = parsed
	}
	tb, err := h.service.TrialBalance(r.Context(), asOf)
	if err != nil {
		httpx.Fail(w, h.logger, "trial balance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, tb)
}
