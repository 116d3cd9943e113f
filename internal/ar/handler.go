package ar

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

// Handler wires invoice endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the AR handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/aging", h.aging)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Post("/{id}/send", h.send)
	r.Post("/{id}/payments", h.pay)
	r.Post("/{id}/void", h.void)
}

type lineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

type invoiceRequest struct {
	CustomerID    int64           `json:"customer_id" validate:"required,gt=0"`
	SalesOrderID  *int64          `json:"sales_order_id" validate:"omitempty,gt=0"`
	IssueDate     httpx.Date      `json:"issue_date"`
	DueDate       httpx.Date      `json:"due_date"`
	Notes         string          `json:"notes" validate:"max=2000"`
	TaxPercent    decimal.Decimal `json:"tax_percent"`
	Shipping      decimal.Decimal `json:"shipping"`
	OrderDiscount decimal.Decimal `json:"order_discount"`
	Lines         []lineRequest   `json:"lines" validate:"required,min=1,dive"`
}

func (req invoiceRequest) input() InvoiceInput {
	in := InvoiceInput{
		CustomerID:   req.CustomerID,
		SalesOrderID: req.SalesOrderID,
		IssueDate:    req.IssueDate.Time,
		DueDate:      req.DueDate.Time,
		Notes:        req.Notes,
		Header:       documents.Header{TaxPercent: req.TaxPercent, Shipping: req.Shipping, OrderDiscount: req.OrderDiscount},
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, documents.LineItem{ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: line.UnitPrice, Discount: line.Discount})
	}
	return in
}

type paymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Date      httpx.Date      `json:"date"`
	Method    string          `json:"method" validate:"omitempty,oneof=CASH BANK_TRANSFER CARD CHECK"`
	Reference string          `json:"reference" validate:"max=120"`
}

type invoiceResponse struct {
	Invoice
	Display map[string]string `json:"display"`
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, inv Invoice) {
	figures := inv.Figures()
	figures["amount_paid"] = inv.AmountPaid
	figures["balance_due"] = inv.BalanceDue
	httpx.JSON(w, status, invoiceResponse{Invoice: inv, Display: httpx.DisplayAmounts(r, figures)})
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
	invoices, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.Fail(w, h.logger, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices, "page": page, "per_page": perPage})
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(httpx.DateLayout, raw)
		if err != nil {
			httpx.RespondError(w, shared.NewValidation("INVALID_DATE", "as_of must be YYYY-MM-DD").Wrap(err))
			return
		}
		asOf = parsed
	}
	report, err := h.service.Aging(r.Context(), asOf)
	if err != nil {
		httpx.Fail(w, h.logger, "invoice aging", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "get invoice", err)
		return
	}
	h.respond(w, r, http.StatusOK, inv)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Create(r.Context(), req.input())
	if err != nil {
		httpx.Fail(w, h.logger, "create invoice", err)
		return
	}
	h.respond(w, r, http.StatusCreated, inv)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req invoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Update(r.Context(), id, req.input())
	if err != nil {
		httpx.Fail(w, h.logger, "update invoice", err)
		return
	}
	h.respond(w, r, http.StatusOK, inv)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Send(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "send invoice", err)
		return
	}
	h.respond(w, r, http.StatusOK, inv)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.RecordPayment(r.Context(), PaymentInput{
		InvoiceID: id,
		Amount:    req.Amount,
		Date:      req.Date.Time,
		Method:    req.Method,
		Reference: req.Reference,
	})
	if err != nil {
		httpx.Fail(w, h.logger, "record payment", err)
		return
	}
	h.respond(w, r, http.StatusOK, inv)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.Void(r.Context(), id)
	if err != nil {
		httpx.Fail(w, h.logger, "void invoice", err)
		return
	}
	h.respond(w, r, http.StatusOK, inv)
}
