package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/saga/internal/billing"
	"github.com/dukerupert/saga/internal/domain"
	"github.com/dukerupert/saga/internal/events"
)

// minimumPaymentAmount is the smallest charge the processor accepts,
// in major units.
var minimumPaymentAmount = decimal.NewFromInt(1)

type paymentService struct {
	repo      domain.Repository
	provider  billing.Provider
	publisher events.Publisher
	logger    *slog.Logger
}

// Compile-time check that paymentService implements domain.PaymentService.
var _ domain.PaymentService = (*paymentService)(nil)

// NewPaymentService creates a new payment service.
func NewPaymentService(repo domain.Repository, provider billing.Provider, publisher events.Publisher, logger *slog.Logger) domain.PaymentService {
	return &paymentService{
		repo:      repo,
		provider:  provider,
		publisher: publisher,
		logger:    logger,
	}
}

// toMinorUnits converts a major-unit amount to processor minor units,
// truncating anything beyond two decimal places.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).IntPart()
}

// fromMinorUnits converts processor minor units back to a major-unit
// decimal.
func fromMinorUnits(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}

// CreatePaymentIntent validates a payment request against the invoice
// ledger, creates the intent at the processor, and records it locally.
// An omitted amount defaults to the full amount due.
func (s *paymentService) CreatePaymentIntent(ctx context.Context, params domain.CreatePaymentIntentParams) (*domain.PaymentIntentResult, error) {
	inv, err := s.repo.GetInvoice(ctx, params.InvoiceID)
	if err != nil {
		return nil, err
	}

	if inv.IsPaid() {
		return nil, ErrInvoiceAlreadyPaid
	}

	amount := inv.AmountDue()
	if params.Amount != nil {
		amount = *params.Amount
	}

	if !amount.IsPositive() {
		return nil, ErrInvalidPaymentAmount
	}
	if amount.GreaterThan(inv.AmountDue()) {
		return nil, ErrAmountExceedsBalance
	}
	if amount.LessThan(minimumPaymentAmount) {
		return nil, ErrAmountBelowMinimum
	}

	customer, err := s.repo.GetCustomer(ctx, inv.CustomerID)
	if err != nil {
		return nil, err
	}

	pi, err := s.provider.CreatePaymentIntent(ctx, billing.CreatePaymentIntentParams{
		AmountCents:   toMinorUnits(amount),
		Currency:      strings.ToLower(inv.Currency),
		CustomerEmail: customer.Email,
		Description:   "Payment for invoice " + inv.Number,
		Metadata: map[string]string{
			domain.MetaInvoiceID:     inv.ID.String(),
			domain.MetaInvoiceNumber: inv.Number,
			domain.MetaCustomerEmail: customer.Email,
		},
	})
	if err != nil {
		return nil, domain.WrapError(err, domain.EPAYMENT, "payment.create_intent", "payment processor rejected the request")
	}

	status, ok := domain.MapProviderStatus(pi.Status)
	if !ok {
		status = domain.PaymentStatusRequiresPaymentMethod
	}

	rec := &domain.PaymentRecord{
		ID:                uuid.New(),
		InvoiceID:         inv.ID,
		ProviderPaymentID: pi.ID,
		ClientSecret:      pi.ClientSecret,
		Amount:            amount,
		Currency:          inv.Currency,
		Status:            status,
		PaymentMethod:     domain.DefaultPaymentMethod,
		Metadata:          pi.Metadata,
	}
	if !pi.CreatedAt.IsZero() {
		t := pi.CreatedAt
		rec.ProviderCreatedAt = &t
	}

	if err := s.repo.CreatePaymentRecord(ctx, rec); err != nil {
		return nil, err
	}

	s.publish(domain.NewPaymentEvent("intent_created", map[string]string{
		"invoice_id":        inv.ID.String(),
		"invoice_number":    inv.Number,
		"payment_intent_id": pi.ID,
		"amount":            amount.StringFixed(2),
	}))

	return &domain.PaymentIntentResult{
		ClientSecret:    pi.ClientSecret,
		PaymentIntentID: pi.ID,
		Amount:          amount,
		Currency:        inv.Currency,
		InvoiceNumber:   inv.Number,
	}, nil
}

// ProcessRefund refunds a succeeded payment, in full or in part. The
// refund is stored as its own payment record under a composite id so
// reconciliation nets it against the original payment.
func (s *paymentService) ProcessRefund(ctx context.Context, params domain.CreateRefundParams) (*domain.RefundResult, error) {
	original, err := s.repo.GetPaymentRecord(ctx, params.PaymentRecordID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			return nil, ErrPaymentNotRefundable
		}
		return nil, err
	}

	if original.Status != domain.PaymentStatusSucceeded {
		return nil, ErrPaymentNotRefundable
	}

	amount := params.Amount
	if amount.IsZero() {
		amount = original.Amount
	}

	if !amount.IsPositive() {
		return nil, ErrInvalidPaymentAmount
	}
	if amount.GreaterThan(original.Amount) {
		return nil, ErrRefundExceedsPayment
	}

	// A prior refund of this intent already has a record; don't ask the
	// processor again. This check and the processor call both run before
	// the row lock below, so two concurrent calls can each reach the
	// processor; the processor's own already-refunded rejection and the
	// composite-id unique constraint are the backstop.
	existing, err := s.repo.ListPaymentRecordsByInvoice(ctx, original.InvoiceID)
	if err != nil {
		return nil, err
	}
	for _, rec := range existing {
		if rec.Status == domain.PaymentStatusRefunded &&
			rec.Metadata[domain.MetaOriginalPaymentIntent] == original.ProviderPaymentID {
			return nil, ErrAlreadyRefunded
		}
	}

	refund, err := s.provider.CreateRefund(ctx, billing.RefundParams{
		PaymentIntentID: original.ProviderPaymentID,
		AmountCents:     toMinorUnits(amount),
		Reason:          params.Reason,
		Metadata: map[string]string{
			domain.MetaInvoiceID:     original.InvoiceID.String(),
			domain.MetaPaymentAmount: original.Amount.StringFixed(2),
		},
	})
	if err != nil {
		if errors.Is(err, billing.ErrAlreadyRefunded) {
			return nil, ErrAlreadyRefunded
		}
		return nil, domain.WrapError(err, domain.EPAYMENT, "payment.refund", "payment processor rejected the refund")
	}

	var inv *domain.Invoice
	err = s.repo.RunInTx(ctx, func(repo domain.Repository) error {
		locked, err := repo.GetInvoiceForUpdate(ctx, original.InvoiceID)
		if err != nil {
			return err
		}

		rec := &domain.PaymentRecord{
			ID:                uuid.New(),
			InvoiceID:         original.InvoiceID,
			ProviderPaymentID: domain.RefundRecordID(original.ProviderPaymentID, refund.ID),
			Amount:            amount,
			Currency:          original.Currency,
			Status:            domain.PaymentStatusRefunded,
			PaymentMethod:     original.PaymentMethod,
			Metadata: map[string]string{
				domain.MetaRefundID:              refund.ID,
				domain.MetaOriginalPaymentIntent: original.ProviderPaymentID,
				domain.MetaRefundAmount:          amount.StringFixed(2),
				domain.MetaInvoiceID:             locked.ID.String(),
				domain.MetaInvoiceNumber:         locked.Number,
				domain.MetaPaymentAmount:         original.Amount.StringFixed(2),
			},
		}
		if err := repo.CreatePaymentRecord(ctx, rec); err != nil {
			return err
		}

		inv = locked
		return s.reconcileLocked(ctx, repo, locked)
	})
	if err != nil {
		if domain.IsCode(err, domain.ECONFLICT) {
			return nil, ErrAlreadyRefunded
		}
		return nil, err
	}

	s.publish(domain.NewRefundEvent("created", map[string]string{
		"invoice_id":        inv.ID.String(),
		"invoice_number":    inv.Number,
		"payment_intent_id": original.ProviderPaymentID,
		"refund_id":         refund.ID,
		"amount":            amount.StringFixed(2),
	}))

	return &domain.RefundResult{
		RefundID:        refund.ID,
		PaymentIntentID: original.ProviderPaymentID,
		Amount:          amount,
		Currency:        original.Currency,
		Status:          refund.Status,
	}, nil
}

func (s *paymentService) GetPaymentRecord(ctx context.Context, id uuid.UUID) (*domain.PaymentRecord, error) {
	return s.repo.GetPaymentRecord(ctx, id)
}

func (s *paymentService) ListPaymentRecords(ctx context.Context, filter domain.PaymentFilter) ([]domain.PaymentRecord, error) {
	return s.repo.ListPaymentRecords(ctx, filter)
}

// ListCustomerPayments returns payment records across all of a
// customer's invoices.
func (s *paymentService) ListCustomerPayments(ctx context.Context, customerID uuid.UUID) ([]domain.PaymentRecord, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListPaymentRecordsByCustomer(ctx, customerID)
}

// ListOwnerPayments returns payment records across all invoices issued
// by a business owner.
func (s *paymentService) ListOwnerPayments(ctx context.Context, ownerID uuid.UUID) ([]domain.PaymentRecord, error) {
	if _, err := s.repo.GetBusinessOwner(ctx, ownerID); err != nil {
		return nil, err
	}
	return s.repo.ListPaymentRecordsByOwner(ctx, ownerID)
}

// ProcessSuccessfulPayment handles a payment_intent.succeeded event.
// The record is updated when known, or created from intent metadata
// when the intent originated outside this system, then the invoice is
// reconciled in the same transaction.
func (s *paymentService) ProcessSuccessfulPayment(ctx context.Context, intent domain.ProviderIntent) error {
	var inv *domain.Invoice

	err := s.repo.RunInTx(ctx, func(repo domain.Repository) error {
		rec, err := repo.GetPaymentRecordByProviderID(ctx, intent.ID)
		if err != nil {
			if !domain.IsCode(err, domain.ENOTFOUND) {
				return err
			}
			rec, err = s.recordFromIntent(ctx, repo, intent)
			if err != nil {
				return err
			}
		}

		locked, err := repo.GetInvoiceForUpdate(ctx, rec.InvoiceID)
		if err != nil {
			return err
		}

		if rec.ApplyProviderIntent(intent) {
			if err := repo.UpdatePaymentRecord(ctx, rec); err != nil {
				return err
			}
		}

		// Only a succeeded record moves invoice totals; an out-of-order
		// event leaving the record in another state changes nothing.
		if rec.Status != domain.PaymentStatusSucceeded {
			return nil
		}

		inv = locked
		return s.reconcileLocked(ctx, repo, locked)
	})
	if err != nil {
		return err
	}

	if inv != nil {
		s.publish(domain.NewPaymentEvent("succeeded", map[string]string{
			"invoice_id":        inv.ID.String(),
			"invoice_number":    inv.Number,
			"payment_intent_id": intent.ID,
			"amount":            fromMinorUnits(intent.Amount).StringFixed(2),
		}))
	}

	return nil
}

// ProcessFailedPayment handles a payment_intent.payment_failed event.
// The record's status tracks the processor's; failed payments never
// change invoice totals.
func (s *paymentService) ProcessFailedPayment(ctx context.Context, intent domain.ProviderIntent) error {
	rec, err := s.repo.GetPaymentRecordByProviderID(ctx, intent.ID)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			s.logger.Warn("failed payment for unknown intent", "payment_intent_id", intent.ID)
			return nil
		}
		return err
	}

	if rec.ApplyProviderIntent(intent) {
		if err := s.repo.UpdatePaymentRecord(ctx, rec); err != nil {
			return err
		}
	}

	s.publish(domain.NewPaymentEvent("failed", map[string]string{
		"invoice_id":        rec.InvoiceID.String(),
		"payment_intent_id": intent.ID,
	}))

	return nil
}

// ProcessRefundEvent handles refund events from the processor. Refunds
// initiated through ProcessRefund already have a record under the
// composite id and are skipped; refunds initiated in the processor
// dashboard get a record created here. Only a succeeded refund is
// recorded: the processor emits events for pending and failed states
// too, and none of those may move invoice totals.
func (s *paymentService) ProcessRefundEvent(ctx context.Context, refund domain.ProviderRefund) error {
	if refund.Status != "succeeded" {
		s.logger.Info("ignoring refund event in non-succeeded state",
			"refund_id", refund.ID, "status", refund.Status)
		return nil
	}

	original, err := s.repo.GetPaymentRecordByProviderID(ctx, refund.PaymentIntent)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			s.logger.Warn("refund for unknown payment intent",
				"refund_id", refund.ID, "payment_intent_id", refund.PaymentIntent)
			return nil
		}
		return err
	}

	compositeID := domain.RefundRecordID(refund.PaymentIntent, refund.ID)
	amount := fromMinorUnits(refund.Amount)

	var inv *domain.Invoice
	err = s.repo.RunInTx(ctx, func(repo domain.Repository) error {
		locked, err := repo.GetInvoiceForUpdate(ctx, original.InvoiceID)
		if err != nil {
			return err
		}

		_, err = repo.GetPaymentRecordByProviderID(ctx, compositeID)
		switch {
		case err == nil:
			// Already recorded by ProcessRefund; reconcile anyway so
			// redelivered events converge.
		case domain.IsCode(err, domain.ENOTFOUND):
			rec := &domain.PaymentRecord{
				ID:                uuid.New(),
				InvoiceID:         original.InvoiceID,
				ProviderPaymentID: compositeID,
				Amount:            amount,
				Currency:          original.Currency,
				Status:            domain.PaymentStatusRefunded,
				PaymentMethod:     original.PaymentMethod,
				Metadata: map[string]string{
					domain.MetaRefundID:              refund.ID,
					domain.MetaOriginalPaymentIntent: refund.PaymentIntent,
					domain.MetaRefundAmount:          amount.StringFixed(2),
					domain.MetaInvoiceID:             locked.ID.String(),
					domain.MetaInvoiceNumber:         locked.Number,
					domain.MetaPaymentAmount:         original.Amount.StringFixed(2),
				},
			}
			if err := repo.CreatePaymentRecord(ctx, rec); err != nil {
				return err
			}
		default:
			return err
		}

		inv = locked
		return s.reconcileLocked(ctx, repo, locked)
	})
	if err != nil {
		return err
	}

	s.publish(domain.NewRefundEvent("recorded", map[string]string{
		"invoice_id":        inv.ID.String(),
		"invoice_number":    inv.Number,
		"payment_intent_id": refund.PaymentIntent,
		"refund_id":         refund.ID,
		"amount":            amount.StringFixed(2),
	}))

	return nil
}

// ProcessDispute records a charge dispute. Disputes do not change
// invoice state until resolved; they are surfaced as events for
// operators to act on.
func (s *paymentService) ProcessDispute(ctx context.Context, chargeID, paymentIntentID, reason string) error {
	attrs := map[string]string{
		"charge_id": chargeID,
		"reason":    reason,
	}

	if paymentIntentID != "" {
		attrs["payment_intent_id"] = paymentIntentID
		rec, err := s.repo.GetPaymentRecordByProviderID(ctx, paymentIntentID)
		if err == nil {
			attrs["invoice_id"] = rec.InvoiceID.String()
		}
	}

	s.logger.Warn("charge disputed", "charge_id", chargeID,
		"payment_intent_id", paymentIntentID, "reason", reason)
	s.publish(domain.NewDisputeEvent("opened", attrs))

	return nil
}

// ReconcileInvoice recomputes an invoice's paid amount and status from
// its payment records, holding a row lock for the duration.
func (s *paymentService) ReconcileInvoice(ctx context.Context, invoiceID uuid.UUID) (*domain.Invoice, error) {
	var inv *domain.Invoice

	err := s.repo.RunInTx(ctx, func(repo domain.Repository) error {
		locked, err := repo.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}

		inv = locked
		return s.reconcileLocked(ctx, repo, locked)
	})
	if err != nil {
		return nil, err
	}

	return inv, nil
}

// reconcileLocked recomputes the invoice from its payment records and
// persists the result. The invoice must already be locked by the
// enclosing transaction.
func (s *paymentService) reconcileLocked(ctx context.Context, repo domain.Repository, inv *domain.Invoice) error {
	records, err := repo.ListPaymentRecordsByInvoice(ctx, inv.ID)
	if err != nil {
		return err
	}

	result := domain.Reconcile(inv, records)

	if result.AmountPaid.Equal(inv.AmountPaid) && !result.StatusChanged &&
		result.PaymentStatus == inv.PaymentStatus {
		return nil
	}

	previous := inv.Status
	inv.AmountPaid = result.AmountPaid
	inv.Status = result.Status
	inv.PaymentStatus = result.PaymentStatus

	if err := repo.UpdateInvoice(ctx, inv); err != nil {
		return err
	}

	if result.StatusChanged {
		s.logger.Info("invoice status changed",
			"invoice_id", inv.ID,
			"invoice_number", inv.Number,
			"from", previous,
			"to", inv.Status,
			"amount_paid", inv.AmountPaid)
		s.publish(domain.NewInvoiceEvent("status_changed", map[string]string{
			"invoice_id":     inv.ID.String(),
			"invoice_number": inv.Number,
			"from":           string(previous),
			"to":             string(inv.Status),
			"amount_paid":    inv.AmountPaid.StringFixed(2),
		}))
	}

	return nil
}

// recordFromIntent creates a payment record for an intent first seen in
// a webhook. The intent metadata must reference an invoice; a succeeded
// payment this system cannot attribute is an error, not a no-op.
func (s *paymentService) recordFromIntent(ctx context.Context, repo domain.Repository, intent domain.ProviderIntent) (*domain.PaymentRecord, error) {
	invoiceIDStr, ok := intent.Metadata[domain.MetaInvoiceID]
	if !ok {
		s.logger.Error("payment intent has no invoice reference", "payment_intent_id", intent.ID)
		return nil, domain.Invalid("payment.record_from_intent",
			"payment intent does not reference an invoice")
	}

	invoiceID, err := uuid.Parse(invoiceIDStr)
	if err != nil {
		s.logger.Error("payment intent has malformed invoice reference",
			"payment_intent_id", intent.ID, "invoice_id", invoiceIDStr)
		return nil, domain.Invalid("payment.record_from_intent",
			"payment intent invoice reference is malformed")
	}

	currency := strings.ToUpper(intent.Currency)
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	rec := &domain.PaymentRecord{
		ID:                uuid.New(),
		InvoiceID:         invoiceID,
		ProviderPaymentID: intent.ID,
		ClientSecret:      intent.ClientSecret,
		Amount:            fromMinorUnits(intent.Amount),
		Currency:          currency,
		Status:            domain.PaymentStatusRequiresPaymentMethod,
		PaymentMethod:     domain.DefaultPaymentMethod,
		PaymentMethodID:   intent.PaymentMethodID,
		Metadata:          intent.Metadata,
	}
	if !intent.CreatedAt.IsZero() {
		t := intent.CreatedAt
		rec.ProviderCreatedAt = &t
	}

	if err := repo.CreatePaymentRecord(ctx, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

func (s *paymentService) publish(event domain.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Warn("failed to publish event", "subject", event.Subject(), "error", err)
	}
}
