package billing

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider implements Provider using the Stripe Go SDK.
type StripeProvider struct {
	config StripeConfig
}

// NewStripeProvider creates a new Stripe billing provider.
// The API key, retry count, and HTTP timeout are installed globally for
// the SDK's package-level clients.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	stripe.Key = config.APIKey

	backendConfig := &stripe.BackendConfig{}
	if config.MaxRetries > 0 {
		backendConfig.MaxNetworkRetries = stripe.Int64(int64(config.MaxRetries))
	}
	if config.TimeoutSeconds > 0 {
		backendConfig.HTTPClient = &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		}
	}
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig))

	return &StripeProvider{config: config}, nil
}

// CreatePaymentIntent creates a Stripe payment intent with an explicit
// payment method list; automatic payment methods stay disabled.
func (s *StripeProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	piParams := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(params.AmountCents),
		Currency:           stripe.String(params.Currency),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	piParams.Context = ctx

	if params.CustomerEmail != "" {
		piParams.ReceiptEmail = stripe.String(params.CustomerEmail)
	}
	if params.Description != "" {
		piParams.Description = stripe.String(params.Description)
	}
	for k, v := range params.Metadata {
		piParams.AddMetadata(k, v)
	}
	if params.IdempotencyKey != "" {
		piParams.IdempotencyKey = stripe.String(params.IdempotencyKey)
	}

	pi, err := paymentintent.New(piParams)
	if err != nil {
		return nil, wrapStripeError(err, "create payment intent")
	}

	return paymentIntentFromStripe(pi), nil
}

// GetPaymentIntent retrieves an existing payment intent.
func (s *StripeProvider) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	piParams := &stripe.PaymentIntentParams{}
	piParams.Context = ctx

	pi, err := paymentintent.Get(paymentIntentID, piParams)
	if err != nil {
		return nil, wrapStripeError(err, "get payment intent")
	}

	return paymentIntentFromStripe(pi), nil
}

// CreateRefund refunds a payment intent. AmountCents of 0 refunds the
// full remaining amount.
func (s *StripeProvider) CreateRefund(ctx context.Context, params RefundParams) (*Refund, error) {
	rParams := &stripe.RefundParams{
		PaymentIntent: stripe.String(params.PaymentIntentID),
	}
	rParams.Context = ctx

	if params.AmountCents > 0 {
		rParams.Amount = stripe.Int64(params.AmountCents)
	}
	if params.Reason != "" {
		rParams.Reason = stripe.String(params.Reason)
	}
	for k, v := range params.Metadata {
		rParams.AddMetadata(k, v)
	}
	if params.IdempotencyKey != "" {
		rParams.IdempotencyKey = stripe.String(params.IdempotencyKey)
	}

	r, err := refund.New(rParams)
	if err != nil {
		return nil, wrapStripeError(err, "create refund")
	}

	return &Refund{
		ID:              r.ID,
		PaymentIntentID: params.PaymentIntentID,
		AmountCents:     r.Amount,
		Currency:        string(r.Currency),
		Status:          string(r.Status),
		Metadata:        r.Metadata,
		CreatedAt:       timeFromUnix(r.Created),
	}, nil
}

// VerifyWebhookSignature verifies a Stripe webhook signature against the
// raw request payload. Tolerance follows the SDK default (5 minutes).
func (s *StripeProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	_, err := webhook.ConstructEvent(payload, signature, secret)
	if err != nil {
		return ErrInvalidWebhookSignature
	}
	return nil
}

func paymentIntentFromStripe(pi *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
		CreatedAt:    timeFromUnix(pi.Created),
	}

	if pi.PaymentMethod != nil {
		out.PaymentMethodID = pi.PaymentMethod.ID
		out.PaymentMethodType = string(pi.PaymentMethod.Type)
	}

	if pi.LastPaymentError != nil {
		out.LastPaymentError = &PaymentError{
			Code:        string(pi.LastPaymentError.Code),
			Message:     pi.LastPaymentError.Msg,
			DeclineCode: string(pi.LastPaymentError.DeclineCode),
		}
	}

	return out
}

func timeFromUnix(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// wrapStripeError converts SDK errors into StripeError, mapping known
// codes onto sentinel errors for callers that branch on them.
func wrapStripeError(err error, op string) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return &StripeError{
			Message:       op + " failed",
			OriginalError: err,
		}
	}

	wrapped := &StripeError{
		Message:       stripeErr.Msg,
		Code:          string(stripeErr.Code),
		DeclineCode:   string(stripeErr.DeclineCode),
		RequestID:     stripeErr.RequestID,
		OriginalError: err,
	}

	switch stripeErr.Code {
	case stripe.ErrorCodeChargeAlreadyRefunded:
		wrapped.OriginalError = ErrAlreadyRefunded
	case stripe.ErrorCodeAmountTooSmall:
		wrapped.OriginalError = ErrAmountTooSmall
	case stripe.ErrorCodeResourceMissing:
		wrapped.OriginalError = ErrPaymentIntentNotFound
	case stripe.ErrorCodeCardDeclined:
		wrapped.OriginalError = ErrPaymentFailed
	}

	return wrapped
}
