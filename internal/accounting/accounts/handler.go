package accounts

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes the chart of accounts over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes attaches account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/tree", h.tree)
	r.Get("/categories", h.categories)
	r.Get("/code/{code}", h.getByCode)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type createRequest struct {
	Code       string  `json:"code" validate:"required,numeric,max=20"`
	Name       string  `json:"name" validate:"required,max=200"`
	Type       string  `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE COST_OF_GOODS_SOLD"`
	ParentCode *string `json:"parent_code" validate:"omitempty,numeric"`
	IsCategory bool    `json:"is_category"`
	Inactive   bool    `json:"inactive"`
}

type patchRequest struct {
	Code       *string `json:"code" validate:"omitempty,numeric,max=20"`
	Name       *string `json:"name" validate:"omitempty,max=200"`
	Type       *string `json:"type" validate:"omitempty,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE COST_OF_GOODS_SOLD"`
	ParentCode *string `json:"parent_code" validate:"omitempty,numeric"`
	IsActive   *bool   `json:"is_active"`
	IsCategory *bool   `json:"is_category"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) tree(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.service.Tree(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, "account tree", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tree": nodes})
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.CategoryAccounts(r.Context())
	if err != nil {
		httpx.Fail(w, h.logger, "category accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	acc, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "get account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) getByCode(w http.ResponseWriter, r *http.Request) {
	acc, err := h.service.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		httpx.Fail(w, h.logger, "get account by code", err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	acc, err := h.service.Add(r.Context(), CreateInput{
		Code:       req.Code,
		Name:       req.Name,
		Type:       AccountType(req.Type),
		ParentCode: req.ParentCode,
		IsCategory: req.IsCategory,
		Inactive:   req.Inactive,
	})
	if err != nil {
		httpx.Fail(w, h.logger, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, acc)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req patchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	patch := Patch{
		Code:       req.Code,
		Name:       req.Name,
		ParentCode: req.ParentCode,
		IsActive:   req.IsActive,
		IsCategory: req.IsCategory,
	}
	if req.Type != nil {
		t := AccountType(*req.Type)
		patch.Type = &t
	}
	acc, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		httpx.Fail(w, h.logger, "update account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, acc)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.Fail(w, h.logger, "delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
