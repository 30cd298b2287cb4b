package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment record statuses. These mirror the processor's intent lifecycle
// plus a terminal refunded state.
type PaymentStatus string

const (
	PaymentStatusRequiresPaymentMethod PaymentStatus = "requires_payment_method"
	PaymentStatusRequiresConfirmation  PaymentStatus = "requires_confirmation"
	PaymentStatusRequiresAction        PaymentStatus = "requires_action"
	PaymentStatusProcessing            PaymentStatus = "processing"
	PaymentStatusSucceeded             PaymentStatus = "succeeded"
	PaymentStatusCanceled              PaymentStatus = "canceled"
	PaymentStatusRefunded              PaymentStatus = "refunded"
)

// Valid returns true if s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusRequiresPaymentMethod, PaymentStatusRequiresConfirmation,
		PaymentStatusRequiresAction, PaymentStatusProcessing,
		PaymentStatusSucceeded, PaymentStatusCanceled, PaymentStatusRefunded:
		return true
	}
	return false
}

// providerStatusMapping maps processor intent statuses to local payment
// statuses. Statuses outside this table leave the record unchanged.
var providerStatusMapping = map[string]PaymentStatus{
	"requires_payment_method": PaymentStatusRequiresPaymentMethod,
	"requires_confirmation":   PaymentStatusRequiresConfirmation,
	"requires_action":         PaymentStatusRequiresAction,
	"processing":              PaymentStatusProcessing,
	"succeeded":               PaymentStatusSucceeded,
	"canceled":                PaymentStatusCanceled,
}

// MapProviderStatus translates a processor status string into a local
// PaymentStatus. The second return is false for unmapped statuses.
func MapProviderStatus(providerStatus string) (PaymentStatus, bool) {
	s, ok := providerStatusMapping[providerStatus]
	return s, ok
}

// DefaultPaymentMethod is recorded when the processor does not report
// a specific payment method type.
const DefaultPaymentMethod = "card"

// Metadata keys attached to processor objects so webhook events can be
// traced back to local records.
const (
	MetaInvoiceID             = "invoice_id"
	MetaInvoiceNumber         = "invoice_number"
	MetaCustomerEmail         = "customer_email"
	MetaRefundID              = "refund_id"
	MetaOriginalPaymentIntent = "original_payment_intent"
	MetaRefundAmount          = "refund_amount"
	MetaPaymentAmount         = "payment_amount"
)

// PaymentRecord tracks a single payment attempt or refund against an
// invoice. ProviderPaymentID is the processor's intent id, or a
// composite refund id for refund records.
type PaymentRecord struct {
	ID                uuid.UUID         `json:"id"`
	InvoiceID         uuid.UUID         `json:"invoice_id"`
	ProviderPaymentID string            `json:"provider_payment_id"`
	ClientSecret      string            `json:"client_secret,omitempty"`
	Amount            decimal.Decimal   `json:"amount"`
	Currency          string            `json:"currency"`
	Status            PaymentStatus     `json:"status"`
	PaymentMethod     string            `json:"payment_method"`
	PaymentMethodID   string            `json:"payment_method_id,omitempty"`
	FailureCode       string            `json:"failure_code,omitempty"`
	FailureMessage    string            `json:"failure_message,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	ProviderCreatedAt *time.Time        `json:"provider_created_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// RefundRecordID builds the composite provider id under which a refund
// is stored: {intentID}_refund_{refundID}. Keeps refund rows distinct
// from the payment rows they reverse while remaining traceable.
func RefundRecordID(intentID, refundID string) string {
	return fmt.Sprintf("%s_refund_%s", intentID, refundID)
}

// ApplyProviderUpdate maps a processor status onto the record. Returns
// true if the status changed. Unmapped statuses are ignored.
func (p *PaymentRecord) ApplyProviderUpdate(providerStatus string) bool {
	mapped, ok := MapProviderStatus(providerStatus)
	if !ok || p.Status == mapped {
		return false
	}
	p.Status = mapped
	return true
}

// ApplyProviderIntent copies the intent's mutable fields onto the
// record: status, client secret, payment method, failure details, and
// any metadata keys the processor added. Returns true if anything
// changed.
func (p *PaymentRecord) ApplyProviderIntent(intent ProviderIntent) bool {
	changed := p.ApplyProviderUpdate(intent.Status)

	if intent.ClientSecret != "" && intent.ClientSecret != p.ClientSecret {
		p.ClientSecret = intent.ClientSecret
		changed = true
	}
	if intent.PaymentMethodID != "" && intent.PaymentMethodID != p.PaymentMethodID {
		p.PaymentMethodID = intent.PaymentMethodID
		changed = true
	}
	if intent.FailureCode != p.FailureCode || intent.FailureMessage != p.FailureMessage {
		p.FailureCode = intent.FailureCode
		p.FailureMessage = intent.FailureMessage
		changed = true
	}
	if !intent.CreatedAt.IsZero() && p.ProviderCreatedAt == nil {
		t := intent.CreatedAt
		p.ProviderCreatedAt = &t
		changed = true
	}
	for k, v := range intent.Metadata {
		if p.Metadata[k] != v {
			if p.Metadata == nil {
				p.Metadata = make(map[string]string)
			}
			p.Metadata[k] = v
			changed = true
		}
	}

	return changed
}

// ProviderIntent is a processor-neutral view of a payment intent.
type ProviderIntent struct {
	ID              string
	ClientSecret    string
	Status          string
	Amount          int64 // minor units
	Currency        string
	PaymentMethodID string
	FailureCode     string
	FailureMessage  string
	Metadata        map[string]string
	CreatedAt       time.Time
}

// ProviderRefund is a processor-neutral view of a refund.
type ProviderRefund struct {
	ID            string
	PaymentIntent string
	Status        string
	Amount        int64 // minor units
	Currency      string
	Metadata      map[string]string
}

// CreatePaymentIntentParams requests a payment intent for an invoice.
// A nil Amount means the full amount due; a given amount must be
// positive.
type CreatePaymentIntentParams struct {
	InvoiceID uuid.UUID        `json:"invoice_id" validate:"required"`
	Amount    *decimal.Decimal `json:"amount"`
}

// PaymentIntentResult is returned to the client so it can complete the
// payment with the processor.
type PaymentIntentResult struct {
	ClientSecret    string          `json:"client_secret"`
	PaymentIntentID string          `json:"payment_intent_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	InvoiceNumber   string          `json:"invoice_number"`
}

type CreateRefundParams struct {
	PaymentRecordID uuid.UUID       `json:"payment_record_id" validate:"required"`
	Amount          decimal.Decimal `json:"amount"` // zero means full refund
	Reason          string          `json:"reason" validate:"omitempty,oneof=duplicate fraudulent requested_by_customer"`
}

// RefundResult reports the outcome of a refund request.
type RefundResult struct {
	RefundID        string          `json:"refund_id"`
	PaymentIntentID string          `json:"payment_intent_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
}

// PaymentFilter narrows payment record listings.
type PaymentFilter struct {
	InvoiceID *uuid.UUID
	Status    *PaymentStatus
	Limit     int
	Offset    int
}

// PaymentService orchestrates payment intents, refunds, processor event
// handling, and invoice reconciliation.
type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntentResult, error)
	ProcessRefund(ctx context.Context, params CreateRefundParams) (*RefundResult, error)

	GetPaymentRecord(ctx context.Context, id uuid.UUID) (*PaymentRecord, error)
	ListPaymentRecords(ctx context.Context, filter PaymentFilter) ([]PaymentRecord, error)
	ListCustomerPayments(ctx context.Context, customerID uuid.UUID) ([]PaymentRecord, error)
	ListOwnerPayments(ctx context.Context, ownerID uuid.UUID) ([]PaymentRecord, error)

	// Processor event entry points, driven by the webhook dispatcher.
	ProcessSuccessfulPayment(ctx context.Context, intent ProviderIntent) error
	ProcessFailedPayment(ctx context.Context, intent ProviderIntent) error
	ProcessRefundEvent(ctx context.Context, refund ProviderRefund) error
	ProcessDispute(ctx context.Context, chargeID, paymentIntentID, reason string) error

	// ReconcileInvoice recomputes an invoice's paid amount and status
	// from its payment records.
	ReconcileInvoice(ctx context.Context, invoiceID uuid.UUID) (*Invoice, error)
}
