package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence boundary for all domain entities.
// Implementations are safe for concurrent use.
type Repository interface {
	// RunInTx executes fn inside a single database transaction. The
	// Repository passed to fn is bound to that transaction; the
	// transaction commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(Repository) error) error

	// Business owners and customers.
	CreateBusinessOwner(ctx context.Context, params CreateBusinessOwnerParams) (*BusinessOwner, error)
	GetBusinessOwner(ctx context.Context, id uuid.UUID) (*BusinessOwner, error)
	DeleteBusinessOwner(ctx context.Context, id uuid.UUID) error
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error)
	ListCustomers(ctx context.Context, ownerID uuid.UUID) ([]Customer, error)
	DeleteCustomer(ctx context.Context, id uuid.UUID) error

	// Invoices.
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// GetInvoiceForUpdate locks the invoice row for the duration of the
	// enclosing transaction. Must be called inside RunInTx.
	GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	// NextInvoiceSequence returns the next sequence number for the
	// given billing month, starting at 1.
	NextInvoiceSequence(ctx context.Context, year int, month time.Month) (int, error)
	MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int, error)
	// DeleteInvoice removes the invoice and, via the schema's cascade,
	// its payment records.
	DeleteInvoice(ctx context.Context, id uuid.UUID) error

	// Payment records.
	CreatePaymentRecord(ctx context.Context, rec *PaymentRecord) error
	GetPaymentRecord(ctx context.Context, id uuid.UUID) (*PaymentRecord, error)
	GetPaymentRecordByProviderID(ctx context.Context, providerPaymentID string) (*PaymentRecord, error)
	ListPaymentRecords(ctx context.Context, filter PaymentFilter) ([]PaymentRecord, error)
	ListPaymentRecordsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]PaymentRecord, error)
	ListPaymentRecordsByCustomer(ctx context.Context, customerID uuid.UUID) ([]PaymentRecord, error)
	ListPaymentRecordsByOwner(ctx context.Context, ownerID uuid.UUID) ([]PaymentRecord, error)
	UpdatePaymentRecord(ctx context.Context, rec *PaymentRecord) error
}
