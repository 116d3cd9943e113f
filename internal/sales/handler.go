package sales

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Handler wires sales order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sales order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/confirm", h.confirm)
	r.Post("/{id}/cancel", h.cancel)
}

type lineRequest struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal  `json:"discount"`
}

type orderRequest struct {
	CustomerID       int64           `json:"customer_id" validate:"required,gt=0"`
	OrderDate        httpx.Date      `json:"order_date"`
	ExpectedDelivery httpx.Date      `json:"expected_delivery"`
	Notes            string          `json:"notes" validate:"max=2000"`
	TaxPercent       decimal.Decimal `json:"tax_percent"`
	Shipping         decimal.Decimal `json:"shipping"`
	OrderDiscount    decimal.Decimal `json:"order_discount"`
	Lines            []lineRequest   `json:"lines" validate:"required,min=1,dive"`
}

func (req orderRequest) input() OrderInput {
	in := OrderInput{
		CustomerID:       req.CustomerID,
		OrderDate:        req.OrderDate.Time,
		ExpectedDelivery: req.ExpectedDelivery.Ptr(),
		Notes:            req.Notes,
		Header:           documents.Header{TaxPercent: req.TaxPercent, Shipping: req.Shipping, OrderDiscount: req.OrderDiscount},
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, LineInput{ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: line.UnitPrice, Discount: line.Discount})
	}
	return in
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type orderResponse struct {
	SalesOrder
	Display map[string]string `json:"display"`
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, so SalesOrder) {
	httpx.JSON(w, status, orderResponse{SalesOrder: so, Display: httpx.DisplayAmounts(r, so.Figures())})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, perPage := shared.NormalizePage(httpx.QueryInt(r, "page", 1), httpx.QueryInt(r, "per_page", 20))
	filter := ListFilter{Status: Status(query.Get("status")), Limit: perPage, Offset: (page - 1) * perPage}
	if customer, err := strconv.ParseInt(query.Get("customer_id"), 10, 64); err == nil {
		filter.CustomerID = customer
	}
	if from, err := time.Parse(httpx.DateLayout, query.Get("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(httpx.DateLayout, query.Get("to")); err == nil {
		filter.To = &to
	}
	orders, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, h.logger, "list sales orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders, "page": page, "per_page": perPage})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	so, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "get sales order", err)
		return
	}
	h.respond(w, r, http.StatusOK, so)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	so, err := h.service.Create(r.Context(), req.input())
	if err != nil {
		httpx.Fail(w, h.logger, "create sales order", err)
		return
	}
	h.respond(w, r, http.StatusCreated, so)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req orderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	so, err := h.service.Update(r.Context(), id, req.input())
	if err != nil {
		httpx.Fail(w, h.logger, "update sales order", err)
		return
	}
	h.respond(w, r, http.StatusOK, so)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	so, err := h.service.Confirm(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "confirm sales order", err)
		return
	}
	h.respond(w, r, http.StatusOK, so)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req cancelRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	so, err := h.service.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		httpx.Fail(w, h.logger, "cancel sales order", err)
		return
	}
	h.respond(w, r, http.StatusOK, so)
}
