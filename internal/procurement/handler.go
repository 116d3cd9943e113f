package procurement

import (
	"errors"
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

// Handler wires purchase order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the procurement handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/cancel", h.cancel)
	r.Post("/{id}/receipts", h.receive)
}

type lineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

type orderRequest struct {
	VendorID      int64           `json:"vendor_id" validate:"required,gt=0"`
	OrderDate     httpx.Date      `json:"order_date"`
	ExpectedDate  httpx.Date      `json:"expected_date"`
	Notes         string          `json:"notes" validate:"max=2000"`
	TaxPercent    decimal.Decimal `json:"tax_percent"`
	Shipping      decimal.Decimal `json:"shipping"`
	OrderDiscount decimal.Decimal `json:"order_discount"`
	Lines         []lineRequest   `json:"lines" validate:"required,min=1,dive"`
}

func (req orderRequest) input() OrderInput {
	in := OrderInput{
		VendorID:     req.VendorID,
		OrderDate:    req.OrderDate.Time,
		ExpectedDate: req.ExpectedDate.Ptr(),
		Notes:        req.Notes,
		Header:       documents.Header{TaxPercent: req.TaxPercent, Shipping: req.Shipping, OrderDiscount: req.OrderDiscount},
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, documents.LineItem{ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: line.UnitPrice, Discount: line.Discount})
	}
	return in
}

type receiptRequest struct {
	Status *string       `json:"status" validate:"omitempty,oneof=PARTIALLY_RECEIVED RECEIVED"`
	Lines  []ReceiptLine `json:"lines"`
}

type orderResponse struct {
	PurchaseOrder
	Display map[string]string `json:"display"`
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, po PurchaseOrder) {
	httpx.JSON(w, status, orderResponse{PurchaseOrder: po, Display: httpx.DisplayAmounts(r, po.Figures())})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, perPage := shared.NormalizePage(httpx.QueryInt(r, "page", 1), httpx.QueryInt(r, "per_page", 20))
	filter := ListFilter{Status: Status(query.Get("status")), Limit: perPage, Offset: (page - 1) * perPage}
	if vendor, err := strconv.ParseInt(query.Get("vendor_id"), 10, 64); err == nil {
		filter.VendorID = vendor
	}
	if from, err := time.Parse(httpx.DateLayout, query.Get("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(httpx.DateLayout, query.Get("to")); err == nil {
		filter.To = &to
	}
	orders, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, h.logger, "list purchase orders", err)
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
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "get purchase order", err)
		return
	}
	h.respond(w, r, http.StatusOK, po)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.Create(r.Context(), req.input())
	if err != nil {
		httpx.Fail(w, h.logger, "create purchase order", err)
		return
	}
	h.respond(w, r, http.StatusCreated, po)
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
	po, err := h.service.Update(r.Context(), id, req.input())
	if err != nil {
		httpx.Fail(w, h.logger, "update purchase order", err)
		return
	}
	h.respond(w, r, http.StatusOK, po)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.Approve(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "approve purchase order", err)
		return
	}
	h.respond(w, r, http.StatusOK, po)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "cancel purchase order", err)
		return
	}
	h.respond(w, r, http.StatusOK, po)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var explicit *Status
	if req.Status != nil {
		st := Status(*req.Status)
		explicit = &st
	}
	receipt, err := h.service.ReceiveItems(r.Context(), id, req.Lines, explicit)
	if err != nil {
		var rerr *ReceiptError
		if errors.As(err, &rerr) {
			h.logger.Warn("goods receipt rolled back", slog.Int64("po_id", id), slog.Any("error", err))
			httpx.JSON(w, httpx.StatusFor(err), map[string]any{"error": err.Error(), "receipt": rerr})
			return
		}
		httpx.Fail(w, h.logger, "receive purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"order":          orderResponse{PurchaseOrder: receipt.Order, Display: httpx.DisplayAmounts(r, receipt.Order.Figures())},
		"derived_status": receipt.DerivedStatus,
	})
}
