package routes

import (
	"net/http"

	"github.com/dukerupert/saga/internal/handler"
	"github.com/dukerupert/saga/internal/router"
)

// APIDeps contains dependencies for the JSON API routes.
type APIDeps struct {
	UserHandler    *handler.UserHandler
	InvoiceHandler *handler.InvoiceHandler
	PaymentHandler *handler.PaymentHandler
	HealthHandler  *handler.HealthHandler
}

// WebhookDeps contains dependencies for webhook routes.
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}

// RegisterAPIRoutes registers the invoicing and payment API.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	// Owners and customers
	r.Post("/api/v1/owners", deps.UserHandler.CreateOwner)
	r.Get("/api/v1/owners/{id}", deps.UserHandler.GetOwner)
	r.Delete("/api/v1/owners/{id}", deps.UserHandler.DeleteOwner)
	r.Post("/api/v1/owners/{id}/customers", deps.UserHandler.CreateCustomer)
	r.Get("/api/v1/owners/{id}/customers", deps.UserHandler.ListCustomers)
	r.Get("/api/v1/owners/{id}/payments", deps.PaymentHandler.ListByOwner)
	r.Get("/api/v1/customers/{id}", deps.UserHandler.GetCustomer)
	r.Delete("/api/v1/customers/{id}", deps.UserHandler.DeleteCustomer)
	r.Get("/api/v1/customers/{id}/payments", deps.PaymentHandler.ListByCustomer)

	// Invoice ledger
	r.Post("/api/v1/invoices", deps.InvoiceHandler.Create)
	r.Get("/api/v1/invoices", deps.InvoiceHandler.List)
	r.Get("/api/v1/invoices/{id}", deps.InvoiceHandler.Get)
	r.Patch("/api/v1/invoices/{id}", deps.InvoiceHandler.Update)
	r.Delete("/api/v1/invoices/{id}", deps.InvoiceHandler.Delete)
	r.Post("/api/v1/invoices/{id}/cancel", deps.InvoiceHandler.Cancel)
	r.Post("/api/v1/invoices/{id}/reconcile", deps.InvoiceHandler.Reconcile)
	r.Get("/api/v1/invoices/{id}/payments", deps.InvoiceHandler.ListPayments)

	// Payments and refunds
	r.Post("/api/v1/payments", deps.PaymentHandler.CreateIntent)
	r.Get("/api/v1/payments", deps.PaymentHandler.List)
	r.Get("/api/v1/payments/{id}", deps.PaymentHandler.Get)
	r.Post("/api/v1/refunds", deps.PaymentHandler.CreateRefund)

	// Health
	r.Get("/healthz", deps.HealthHandler.Healthz)
}

// RegisterWebhookRoutes registers payment processor webhook endpoints.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/webhooks/stripe", deps.StripeHandler)
}
