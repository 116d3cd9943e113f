package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler wires HTTP endpoints for stock levels.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{productID}", h.get)
	r.Get("/{productID}/movements", h.movements)
	r.Post("/{productID}/adjustments", h.adjust)
}

type adjustRequest struct {
	Delta     decimal.Decimal `json:"delta"`
	Reference string          `json:"reference" validate:"required,max=100"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	stock, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "get stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	list, err := h.service.Movements(r.Context(), id, httpx.QueryInt(r, "limit", 200))
	if err != nil {
		httpx.Fail(w, h.logger, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": list})
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	stock, err := h.service.Adjust(r.Context(), id, req.Delta, req.Reference)
	if err != nil {
		httpx.Fail(w, h.logger, "adjust stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}
