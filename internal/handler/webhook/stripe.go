package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/dukerupert/saga/internal/billing"
	"github.com/dukerupert/saga/internal/domain"
	"github.com/dukerupert/saga/internal/handler"
	"github.com/dukerupert/saga/internal/telemetry"
)

// StripeHandler handles Stripe webhook events.
type StripeHandler struct {
	provider       billing.Provider
	paymentService domain.PaymentService
	config         StripeWebhookConfig
	logger         *slog.Logger
}

// StripeWebhookConfig contains configuration for Stripe webhook handling.
type StripeWebhookConfig struct {
	// WebhookSecret is the webhook signing secret from the Stripe dashboard
	WebhookSecret string
}

// NewStripeHandler creates a new Stripe webhook handler.
func NewStripeHandler(provider billing.Provider, paymentService domain.PaymentService, config StripeWebhookConfig, logger *slog.Logger) *StripeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeHandler{
		provider:       provider,
		paymentService: paymentService,
		config:         config,
		logger:         logger,
	}
}

// HandleWebhook processes incoming Stripe webhook events.
//
// The raw body is read once: the same bytes are used for signature
// verification and event parsing. Unknown event types are acknowledged
// with 200 so Stripe stops redelivering them; a recognized event that
// fails to process is rejected so Stripe retries it.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:8080/webhooks/stripe
//	stripe trigger payment_intent.succeeded
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	if r.Method != http.MethodPost {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Method not allowed"))
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook payload", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Error reading request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		h.logger.Warn("webhook request missing Stripe-Signature header")
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Missing signature"))
		return
	}

	if h.config.WebhookSecret == "" {
		h.logger.Error("webhook secret is not configured")
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINTERNAL, "", "Webhook not configured"))
		return
	}

	if err := h.provider.VerifyWebhookSignature(payload, signature, h.config.WebhookSecret); err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "", "Invalid signature"))
		return
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("failed to parse webhook JSON", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "", "Invalid JSON"))
		return
	}

	h.logger.Info("received stripe webhook event", "type", event.Type, "id", event.ID)

	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(string(event.Type)).Inc()
		defer func() {
			telemetry.Business.WebhookLatency.WithLabelValues(string(event.Type)).Observe(time.Since(startTime).Seconds())
		}()
	}

	var handleErr error
	switch event.Type {
	case "payment_intent.succeeded":
		handleErr = h.handlePaymentIntentSucceeded(r, event)

	case "payment_intent.payment_failed":
		handleErr = h.handlePaymentIntentFailed(r, event)

	case "payment_intent.created":
		// No action needed, logged for monitoring.
		h.logger.Debug("payment intent created", "event_id", event.ID)

	case "refund.created", "refund.updated":
		handleErr = h.handleRefundEvent(r, event)

	case "charge.dispute.created":
		handleErr = h.handleDisputeCreated(r, event)

	default:
		// Acknowledge unhandled event types so Stripe stops retrying.
		h.logger.Info("unhandled webhook event type", "type", event.Type, "id", event.ID)
	}

	// A recognized event that failed to process is not acknowledged;
	// Stripe will redeliver it.
	if handleErr != nil {
		handler.ErrorResponse(w, r, handleErr)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received": true}`))
}

// intentFromEvent converts the event payload into the processor-neutral
// intent the payment service consumes.
func intentFromEvent(event stripe.Event) (domain.ProviderIntent, error) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return domain.ProviderIntent{}, err
	}

	intent := domain.ProviderIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
	if pi.PaymentMethod != nil {
		intent.PaymentMethodID = pi.PaymentMethod.ID
	}
	if pi.Created != 0 {
		intent.CreatedAt = time.Unix(pi.Created, 0).UTC()
	}
	if pi.LastPaymentError != nil {
		intent.FailureCode = string(pi.LastPaymentError.Code)
		intent.FailureMessage = pi.LastPaymentError.Msg
	}

	return intent, nil
}

func (h *StripeHandler) handlePaymentIntentSucceeded(r *http.Request, event stripe.Event) error {
	intent, err := intentFromEvent(event)
	if err != nil {
		h.logger.Error("failed to parse payment intent from webhook", "event_id", event.ID, "error", err)
		h.trackFailure(event, "parse_error")
		return domain.Errorf(domain.EINVALID, "", "Invalid payload")
	}

	h.logger.Info("payment succeeded",
		"payment_intent_id", intent.ID,
		"amount", intent.Amount,
		"currency", intent.Currency)

	if err := h.paymentService.ProcessSuccessfulPayment(r.Context(), intent); err != nil {
		h.logger.Error("failed to process successful payment",
			"payment_intent_id", intent.ID, "error", err)
		h.trackFailure(event, "processing_error")
		return domain.Errorf(domain.EINVALID, "", "Webhook processing failed")
	}

	if telemetry.Business != nil {
		telemetry.Business.PaymentSucceeded.WithLabelValues(intent.Currency).Inc()
		telemetry.Business.RevenueCollected.WithLabelValues(intent.Currency).Add(float64(intent.Amount) / 100)
		telemetry.Business.WebhookProcessed.WithLabelValues(string(event.Type)).Inc()
	}

	return nil
}

func (h *StripeHandler) handlePaymentIntentFailed(r *http.Request, event stripe.Event) error {
	intent, err := intentFromEvent(event)
	if err != nil {
		h.logger.Error("failed to parse payment intent from webhook", "event_id", event.ID, "error", err)
		h.trackFailure(event, "parse_error")
		return domain.Errorf(domain.EINVALID, "", "Invalid payload")
	}

	failureReason := "unknown"
	if intent.FailureCode != "" {
		failureReason = intent.FailureCode
		h.logger.Warn("payment failed",
			"payment_intent_id", intent.ID,
			"reason", intent.FailureMessage,
			"code", intent.FailureCode)
	} else {
		h.logger.Warn("payment failed", "payment_intent_id", intent.ID)
	}

	if err := h.paymentService.ProcessFailedPayment(r.Context(), intent); err != nil {
		h.logger.Error("failed to process failed payment",
			"payment_intent_id", intent.ID, "error", err)
		h.trackFailure(event, "processing_error")
		return domain.Errorf(domain.EINVALID, "", "Webhook processing failed")
	}

	if telemetry.Business != nil {
		telemetry.Business.PaymentFailed.WithLabelValues(intent.Currency, failureReason).Inc()
		telemetry.Business.WebhookProcessed.WithLabelValues(string(event.Type)).Inc()
	}

	return nil
}

func (h *StripeHandler) handleRefundEvent(r *http.Request, event stripe.Event) error {
	var sr stripe.Refund
	if err := json.Unmarshal(event.Data.Raw, &sr); err != nil {
		h.logger.Error("failed to parse refund from webhook", "event_id", event.ID, "error", err)
		h.trackFailure(event, "parse_error")
		return domain.Errorf(domain.EINVALID, "", "Invalid payload")
	}

	refund := domain.ProviderRefund{
		ID:       sr.ID,
		Status:   string(sr.Status),
		Amount:   sr.Amount,
		Currency: string(sr.Currency),
		Metadata: sr.Metadata,
	}
	if sr.PaymentIntent != nil {
		refund.PaymentIntent = sr.PaymentIntent.ID
	}

	h.logger.Info("refund event",
		"refund_id", refund.ID,
		"payment_intent_id", refund.PaymentIntent,
		"status", refund.Status,
		"amount", refund.Amount)

	if refund.PaymentIntent == "" {
		h.logger.Warn("refund event has no payment intent reference", "refund_id", refund.ID)
		return nil
	}

	// Both refund.created and refund.updated fire on intermediate
	// states; only the final succeeded state is recorded. The payment
	// service repeats this check for refunds reaching it by other paths.
	if refund.Status != "succeeded" {
		h.logger.Info("ignoring refund event in non-succeeded state",
			"refund_id", refund.ID, "status", refund.Status)
		return nil
	}

	if err := h.paymentService.ProcessRefundEvent(r.Context(), refund); err != nil {
		h.logger.Error("failed to process refund event",
			"refund_id", refund.ID, "error", err)
		h.trackFailure(event, "processing_error")
		return domain.Errorf(domain.EINVALID, "", "Webhook processing failed")
	}

	if telemetry.Business != nil {
		telemetry.Business.RefundsIssued.WithLabelValues(refund.Currency).Inc()
		telemetry.Business.RefundAmount.WithLabelValues(refund.Currency).Add(float64(refund.Amount) / 100)
		telemetry.Business.WebhookProcessed.WithLabelValues(string(event.Type)).Inc()
	}

	return nil
}

func (h *StripeHandler) handleDisputeCreated(r *http.Request, event stripe.Event) error {
	var dispute stripe.Dispute
	if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
		h.logger.Error("failed to parse dispute from webhook", "event_id", event.ID, "error", err)
		h.trackFailure(event, "parse_error")
		return domain.Errorf(domain.EINVALID, "", "Invalid payload")
	}

	var chargeID, paymentIntentID string
	if dispute.Charge != nil {
		chargeID = dispute.Charge.ID
	}
	if dispute.PaymentIntent != nil {
		paymentIntentID = dispute.PaymentIntent.ID
	}

	if err := h.paymentService.ProcessDispute(r.Context(), chargeID, paymentIntentID, string(dispute.Reason)); err != nil {
		h.logger.Error("failed to process dispute", "charge_id", chargeID, "error", err)
		h.trackFailure(event, "processing_error")
		return domain.Errorf(domain.EINVALID, "", "Webhook processing failed")
	}

	if telemetry.Business != nil {
		telemetry.Business.DisputesOpened.WithLabelValues(string(dispute.Reason)).Inc()
		telemetry.Business.WebhookProcessed.WithLabelValues(string(event.Type)).Inc()
	}

	return nil
}

func (h *StripeHandler) trackFailure(event stripe.Event, reason string) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookFailed.WithLabelValues(string(event.Type), reason).Inc()
	}
}
