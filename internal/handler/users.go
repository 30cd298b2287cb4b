package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dukerupert/saga/internal/domain"
)

// UserHandler exposes business owner and customer endpoints.
type UserHandler struct {
	service domain.UserService
	logger  *slog.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(service domain.UserService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{
		service: service,
		logger:  logger,
	}
}

// CreateOwner handles POST /api/v1/owners
func (h *UserHandler) CreateOwner(w http.ResponseWriter, r *http.Request) {
	var params domain.CreateBusinessOwnerParams
	if err := DecodeJSON(r, &params); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	owner, err := h.service.CreateBusinessOwner(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	JSONResponse(w, http.StatusCreated, owner)
}

// GetOwner handles GET /api/v1/owners/{id}
func (h *UserHandler) GetOwner(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.owner.get", "invalid owner id"))
		return
	}

	owner, err := h.service.GetBusinessOwner(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	JSONResponse(w, http.StatusOK, owner)
}

// DeleteOwner handles DELETE /api/v1/owners/{id}
func (h *UserHandler) DeleteOwner(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.owner.delete", "invalid owner id"))
		return
	}

	if err := h.service.DeleteBusinessOwner(r.Context(), id); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateCustomer handles POST /api/v1/owners/{id}/customers
func (h *UserHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	ownerID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.customer.create", "invalid owner id"))
		return
	}

	var params domain.CreateCustomerParams
	if err := DecodeJSON(r, &params); err != nil {
		ErrorResponse(w, r, err)
		return
	}
	params.OwnerID = ownerID

	customer, err := h.service.CreateCustomer(r.Context(), params)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	JSONResponse(w, http.StatusCreated, customer)
}

// ListCustomers handles GET /api/v1/owners/{id}/customers
func (h *UserHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	ownerID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.customer.list", "invalid owner id"))
		return
	}

	customers, err := h.service.ListCustomers(r.Context(), ownerID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	JSONResponse(w, http.StatusOK, customers)
}

// GetCustomer handles GET /api/v1/customers/{id}
func (h *UserHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.customer.get", "invalid customer id"))
		return
	}

	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	JSONResponse(w, http.StatusOK, customer)
}

// DeleteCustomer handles DELETE /api/v1/customers/{id}
func (h *UserHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("handler.customer.delete", "invalid customer id"))
		return
	}

	if err := h.service.DeleteCustomer(r.Context(), id); err != nil {
		ErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
