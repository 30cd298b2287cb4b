package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/dukerupert/saga/internal/domain"
	"github.com/dukerupert/saga/internal/telemetry"
)

// PaymentHandler exposes payment intent, refund, and payment record
// endpoints.
type PaymentHandler struct {
	service domain.PaymentService
	logger  *slog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(service domain.PaymentService, logger *slog.Logger) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentHandler{
		service: service,
		logger:  logger,
	}
}

// CreateIntent handles POST /api/v1/payments
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var params domain.CreatePaymentIntentParams
	if err := DecodeJSON(r, &params); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	result, err := h.service.CreatePaymentIntent(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.PaymentAttempts.WithLabelValues(result.Currency).Inc()
	}

	JSONResponse(w, http.StatusCreated, result)
}

// CreateRefund handles POST /api/v1/refunds
func (h *PaymentHandler) CreateRefund(w http.ResponseWriter, r *http.Request) {
	var params domain.CreateRefundParams
	if err := DecodeJSON(r, &params); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	result, err := h.service.ProcessRefund(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.RefundsIssued.WithLabelValues(result.Currency).Inc()
		amount, _ := result.Amount.Float64()
		telemetry.Business.RefundAmount.WithLabelValues(result.Currency).Add(amount)
	}

	JSONResponse(w, http.StatusCreated, result)
}

// Get handles GET /api/v1/payments/{id}
func (h *PaymentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.payment.get", "invalid payment record id"))
		return
	}

	rec, err := h.service.GetPaymentRecord(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	JSONResponse(w, http.StatusOK, rec)
}

// List handles GET /api/v1/payments
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := paymentFilterFromQuery(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	records, err := h.service.ListPaymentRecords(r.Context(), filter)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if records == nil {
		records = []domain.PaymentRecord{}
	}
	JSONResponse(w, http.StatusOK, records)
}

// ListByCustomer handles GET /api/v1/customers/{id}/payments
func (h *PaymentHandler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.payment.list_by_customer", "invalid customer id"))
		return
	}

	records, err := h.service.ListCustomerPayments(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if records == nil {
		records = []domain.PaymentRecord{}
	}
	JSONResponse(w, http.StatusOK, records)
}

// ListByOwner handles GET /api/v1/owners/{id}/payments
func (h *PaymentHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.payment.list_by_owner", "invalid owner id"))
		return
	}

	records, err := h.service.ListOwnerPayments(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	if records == nil {
		records = []domain.PaymentRecord{}
	}
	JSONResponse(w, http.StatusOK, records)
}

func paymentFilterFromQuery(r *http.Request) (domain.PaymentFilter, error) {
	var filter domain.PaymentFilter
	q := r.URL.Query()

	if v := q.Get("invoice_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, domain.Invalid("handler.payment.list", "invalid invoice_id filter")
		}
		filter.InvoiceID = &id
	}
	if v := q.Get("status"); v != "" {
		status := domain.PaymentStatus(v)
		if !status.Valid() {
			return filter, domain.Invalid("handler.payment.list", "invalid status filter")
		}
		filter.Status = &status
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, domain.Invalid("handler.payment.list", "invalid limit")
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, domain.Invalid("handler.payment.list", "invalid offset")
		}
		filter.Offset = n
	}

	return filter, nil
}
