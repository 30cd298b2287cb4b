package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/dukerupert/saga/internal/domain"
	"github.com/dukerupert/saga/internal/telemetry"
)

// InvoiceHandler exposes the invoice ledger endpoints.
type InvoiceHandler struct {
	invoiceService domain.InvoiceService
	paymentService domain.PaymentService
	logger         *slog.Logger
}

// NewInvoiceHandler creates a new invoice handler.
func NewInvoiceHandler(invoiceService domain.InvoiceService, paymentService domain.PaymentService, logger *slog.Logger) *InvoiceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceHandler{
		invoiceService: invoiceService,
		paymentService: paymentService,
		logger:         logger,
	}
}

// Create handles POST /api/v1/invoices
func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params domain.CreateInvoiceParams
	if err := DecodeJSON(r, &params); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	inv, err := h.invoiceService.CreateInvoice(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.InvoicesCreated.WithLabelValues(inv.Currency).Inc()
		amount, _ := inv.TotalAmount.Float64()
		telemetry.Business.InvoiceValue.WithLabelValues(inv.Currency).Observe(amount)
	}

	JSONResponse(w, http.StatusCreated, inv)
}

// Get handles GET /api/v1/invoices/{id}
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		// Fall back to lookup by invoice number (INV-202603-0001).
		inv, nerr := h.invoiceService.GetInvoiceByNumber(r.Context(), r.PathValue("id"))
		if nerr != nil {
			ErrorResponse(w, r, domain.NotFound("handler.invoice.get", "invoice", r.PathValue("id")))
			return
		}
		JSONResponse(w, http.StatusOK, inv)
		return
	}

	inv, err := h.invoiceService.GetInvoice(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	JSONResponse(w, http.StatusOK, inv)
}

// List handles GET /api/v1/invoices
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := invoiceFilterFromQuery(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	invoices, err := h.invoiceService.ListInvoices(r.Context(), filter)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if invoices == nil {
		invoices = []domain.Invoice{}
	}
	JSONResponse(w, http.StatusOK, invoices)
}

// Update handles PATCH /api/v1/invoices/{id}
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.invoice.update", "invalid invoice id"))
		return
	}

	var params domain.UpdateInvoiceParams
	if err := DecodeJSON(r, &params); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	inv, err := h.invoiceService.UpdateInvoice(r.Context(), id, params)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	JSONResponse(w, http.StatusOK, inv)
}

// Cancel handles POST /api/v1/invoices/{id}/cancel
func (h *InvoiceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.invoice.cancel", "invalid invoice id"))
		return
	}

	inv, err := h.invoiceService.CancelInvoice(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.InvoicesCanceled.WithLabelValues(inv.Currency).Inc()
	}

	JSONResponse(w, http.StatusOK, inv)
}

// Delete handles DELETE /api/v1/invoices/{id}
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.invoice.delete", "invalid invoice id"))
		return
	}

	if err := h.invoiceService.DeleteInvoice(r.Context(), id); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reconcile handles POST /api/v1/invoices/{id}/reconcile
func (h *InvoiceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.invoice.reconcile", "invalid invoice id"))
		return
	}

	inv, err := h.paymentService.ReconcileInvoice(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	JSONResponse(w, http.StatusOK, inv)
}

// ListPayments handles GET /api/v1/invoices/{id}/payments
func (h *InvoiceHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.invoice.payments", "invalid invoice id"))
		return
	}

	records, err := h.paymentService.ListPaymentRecords(r.Context(), domain.PaymentFilter{InvoiceID: &id})
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if records == nil {
		records = []domain.PaymentRecord{}
	}
	JSONResponse(w, http.StatusOK, records)
}

func invoiceFilterFromQuery(r *http.Request) (domain.InvoiceFilter, error) {
	var filter domain.InvoiceFilter
	q := r.URL.Query()

	if v := q.Get("owner_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, domain.Invalid("handler.invoice.list", "invalid owner_id filter")
		}
		filter.OwnerID = &id
	}
	if v := q.Get("customer_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, domain.Invalid("handler.invoice.list", "invalid customer_id filter")
		}
		filter.CustomerID = &id
	}
	if v := q.Get("status"); v != "" {
		status := domain.InvoiceStatus(v)
		if !status.Valid() {
			return filter, domain.Invalid("handler.invoice.list", "invalid status filter")
		}
		filter.Status = &status
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, domain.Invalid("handler.invoice.list", "invalid limit")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, domain.Invalid("handler.invoice.list", "invalid offset")
		}
		filter.Offset = n
	}

	return filter, nil
}
