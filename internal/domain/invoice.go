package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when invoice creation omits a currency.
const DefaultCurrency = "CAD"

// Invoice lifecycle statuses.
type InvoiceStatus string

const (
	InvoiceStatusSent     InvoiceStatus = "sent"
	InvoiceStatusPartial  InvoiceStatus = "partial"
	InvoiceStatusPaid     InvoiceStatus = "paid"
	InvoiceStatusCanceled InvoiceStatus = "canceled"
	InvoiceStatusOverdue  InvoiceStatus = "overdue"
	InvoiceStatusRefunded InvoiceStatus = "refunded"
)

// Valid returns true if s is a known invoice status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusSent, InvoiceStatusPartial, InvoiceStatusPaid,
		InvoiceStatusCanceled, InvoiceStatusOverdue, InvoiceStatusRefunded:
		return true
	}
	return false
}

// Invoice is a bill issued to a customer. Amounts are stored as exact
// decimals in major currency units (dollars, not cents). PaymentStatus
// is the processor-side view of collection, written only by
// reconciliation.
type Invoice struct {
	ID            uuid.UUID       `json:"id"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	Number        string          `json:"number"`
	Status        InvoiceStatus   `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Currency      string          `json:"currency"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// AmountDue returns the outstanding balance: total minus paid.
// Over-refunded invoices can owe more than the total.
func (i *Invoice) AmountDue() decimal.Decimal {
	return i.TotalAmount.Sub(i.AmountPaid)
}

// IsPaid reports whether the paid amount covers the full total.
func (i *Invoice) IsPaid() bool {
	return i.AmountPaid.GreaterThanOrEqual(i.TotalAmount)
}

// IsPartiallyPaid reports whether some, but not all, of the total is paid.
func (i *Invoice) IsPartiallyPaid() bool {
	return i.AmountPaid.IsPositive() && i.AmountPaid.LessThan(i.TotalAmount)
}

// FormatInvoiceNumber builds the canonical invoice number for a billing
// month and sequence: INV-202603-0001. Sequences are global per month,
// not per owner.
func FormatInvoiceNumber(year int, month time.Month, seq int) string {
	return fmt.Sprintf("INV-%d%02d-%04d", year, int(month), seq)
}

type CreateInvoiceParams struct {
	OwnerID     uuid.UUID       `json:"owner_id" validate:"required"`
	CustomerID  uuid.UUID       `json:"customer_id" validate:"required"`
	Currency    string          `json:"currency" validate:"omitempty,len=3"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	DueDate     *time.Time      `json:"due_date"`
	Description string          `json:"description" validate:"omitempty,max=1000"`
}

type UpdateInvoiceParams struct {
	Status      *InvoiceStatus `json:"status"`
	DueDate     *time.Time     `json:"due_date"`
	Description *string        `json:"description"`
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	OwnerID    *uuid.UUID
	CustomerID *uuid.UUID
	Status     *InvoiceStatus
	Limit      int
	Offset     int
}

// InvoiceService manages the invoice ledger.
type InvoiceService interface {
	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	UpdateInvoice(ctx context.Context, id uuid.UUID, params UpdateInvoiceParams) (*Invoice, error)
	CancelInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
	DeleteInvoice(ctx context.Context, id uuid.UUID) error
	MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int, error)
}
