package billing

import (
	"context"
	"time"
)

// Provider defines the interface for payment processing.
// Implementations can use Stripe, PayPal, Square, etc.
type Provider interface {
	// CreatePaymentIntent creates a payment intent for an invoice charge.
	// Returns the intent with client_secret for frontend confirmation.
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntent retrieves an existing payment intent.
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)

	// CreateRefund refunds a payment intent, in full or in part.
	CreateRefund(ctx context.Context, params RefundParams) (*Refund, error)

	// VerifyWebhookSignature verifies that a webhook request is authentic.
	// Must be called on the raw request body before parsing.
	VerifyWebhookSignature(payload []byte, signature string, secret string) error
}

// CreatePaymentIntentParams contains parameters for creating a payment intent.
type CreatePaymentIntentParams struct {
	// AmountCents is the amount in smallest currency unit (cents)
	AmountCents int64

	// Currency code (ISO 4217) - e.g., "cad", "usd"
	Currency string

	// CustomerEmail is used to prefill the payment sheet and send receipts
	CustomerEmail string

	// Description appears on the customer's statement and in the dashboard
	Description string

	// Metadata for tracing webhook events back to local records
	// (always include invoice_id and invoice_number)
	Metadata map[string]string

	// IdempotencyKey prevents duplicate payment intents
	IdempotencyKey string
}

// PaymentIntent represents a payment intent at the provider.
type PaymentIntent struct {
	// ID is the provider's payment intent ID (pi_...)
	ID string

	// ClientSecret is used by the frontend to confirm payment
	ClientSecret string

	// AmountCents is the amount in smallest currency unit
	AmountCents int64

	// Currency code
	Currency string

	// Status: requires_payment_method, requires_confirmation, succeeded, etc.
	Status string

	// PaymentMethodID is the provider's payment method id, if attached (pm_...)
	PaymentMethodID string

	// PaymentMethodType is the method used, if known (e.g., "card")
	PaymentMethodType string

	// Metadata passed during creation
	Metadata map[string]string

	// CreatedAt is when the payment intent was created
	CreatedAt time.Time

	// LastPaymentError contains details if payment failed
	LastPaymentError *PaymentError
}

// PaymentError contains details about a failed payment attempt.
type PaymentError struct {
	Code        string // provider error code
	Message     string // human-readable message
	DeclineCode string // reason card was declined (if applicable)
}

// RefundParams contains parameters for creating a refund.
type RefundParams struct {
	PaymentIntentID string
	AmountCents     int64  // if 0, refunds the full amount
	Reason          string // "duplicate", "fraudulent", "requested_by_customer"
	Metadata        map[string]string
	IdempotencyKey  string
}

// Refund represents a payment refund.
type Refund struct {
	ID              string
	PaymentIntentID string
	AmountCents     int64
	Currency        string
	Status          string // succeeded, pending, failed, canceled
	Metadata        map[string]string
	CreatedAt       time.Time
}
