package masterdata

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler manages party and product endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a new master data handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers parties under /parties and products under /products.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/parties", func(r chi.Router) {
		r.Get("/", h.listParties)
		r.Post("/", h.createParty)
		r.Get("/{id}", h.getParty)
		r.Put("/{id}", h.updateParty)
	})
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.listProducts)
		r.Post("/", h.createProduct)
		r.Get("/{id}", h.getProduct)
		r.Put("/{id}", h.updateProduct)
	})
}

type partyRequest struct {
	Code     string `json:"code" validate:"required,max=40"`
	Name     string `json:"name" validate:"required,max=200"`
	Kind     string `json:"kind" validate:"required,oneof=CUSTOMER VENDOR BOTH"`
	Email    string `json:"email" validate:"omitempty,email"`
	IsActive *bool  `json:"is_active"`
}

func (req partyRequest) input() PartyInput {
	return PartyInput{Code: req.Code, Name: req.Name, Kind: PartyKind(req.Kind), Email: req.Email, IsActive: req.IsActive == nil || *req.IsActive}
}

type productRequest struct {
	SKU      string          `json:"sku" validate:"required,max=60"`
	Name     string          `json:"name" validate:"required,max=200"`
	Price    decimal.Decimal `json:"price"`
	IsActive *bool           `json:"is_active"`
}

func (req productRequest) input() ProductInput {
	return ProductInput{SKU: req.SKU, Name: req.Name, Price: req.Price, IsActive: req.IsActive == nil || *req.IsActive}
}

func listFilter(r *http.Request) (ListFilter, shared.Pagination) {
	query := r.URL.Query()
	page, perPage := shared.NormalizePage(httpx.QueryInt(r, "page", 1), httpx.QueryInt(r, "per_page", 20))
	filter := ListFilter{Search: query.Get("q"), Kind: PartyKind(query.Get("kind")), Limit: perPage, Offset: (page - 1) * perPage}
	if raw := query.Get("active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filter.Active = &active
		}
	}
	return filter, shared.Pagination{Page: page, PerPage: perPage}
}

func (h *Handler) listParties(w http.ResponseWriter, r *http.Request) {
	filter, page := listFilter(r)
	parties, err := h.service.ListParties(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, h.logger, "list parties", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"parties": parties, "pagination": page})
}

func (h *Handler) getParty(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	party, err := h.service.GetParty(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "get party", err)
		return
	}
	httpx.JSON(w, http.StatusOK, party)
}

func (h *Handler) createParty(w http.ResponseWriter, r *http.Request) {
	var req partyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	party, err := h.service.CreateParty(r.Context(), req.input())
	if err != nil {
		httpx.Fail(w, h.logger, "create party", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, party)
}

func (h *Handler) updateParty(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req partyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	party, err := h.service.UpdateParty(r.Context(), id, req.input())
	if err != nil {
		httpx.Fail(w, h.logger, "update party", err)
		return
	}
	httpx.JSON(w, http.StatusOK, party)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	filter, page := listFilter(r)
	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, h.logger, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products, "pagination": page})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.CreateProduct(r.Context(), req.input())
	if err != nil {
		httpx.Fail(w, h.logger, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.UpdateProduct(r.Context(), id, req.input())
	if err != nil {
		httpx.Fail(w, h.logger, "update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}
