package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/saga/internal/domain"
	"github.com/dukerupert/saga/internal/events"
)

// invoiceNumberRetries bounds how many times invoice creation retries
// after losing a sequence race to a concurrent writer.
const invoiceNumberRetries = 3

// startOfToday returns midnight UTC of the current day. Due dates are
// compared at day granularity, so today is still a valid due date.
func startOfToday() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

type invoiceService struct {
	repo      domain.Repository
	publisher events.Publisher
	logger    *slog.Logger
}

// Compile-time check that invoiceService implements domain.InvoiceService.
var _ domain.InvoiceService = (*invoiceService)(nil)

// NewInvoiceService creates a new invoice service.
func NewInvoiceService(repo domain.Repository, publisher events.Publisher, logger *slog.Logger) domain.InvoiceService {
	return &invoiceService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateInvoice creates an invoice in "sent" status with the next
// invoice number for the current billing month. Numbers are assigned
// globally per month; a concurrent writer taking the same sequence
// trips the unique constraint and the insert is retried.
func (s *invoiceService) CreateInvoice(ctx context.Context, params domain.CreateInvoiceParams) (*domain.Invoice, error) {
	if params.TotalAmount.IsNegative() {
		return nil, ErrInvalidInvoiceTotal
	}

	if params.DueDate != nil && params.DueDate.Before(startOfToday()) {
		return nil, ErrDueDateInPast
	}

	currency := strings.ToUpper(params.Currency)
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	if _, err := s.repo.GetCustomer(ctx, params.CustomerID); err != nil {
		return nil, err
	}

	var created *domain.Invoice
	var lastErr error

	for attempt := 0; attempt < invoiceNumberRetries; attempt++ {
		err := s.repo.RunInTx(ctx, func(repo domain.Repository) error {
			now := time.Now().UTC()
			seq, err := repo.NextInvoiceSequence(ctx, now.Year(), now.Month())
			if err != nil {
				return err
			}

			inv := &domain.Invoice{
				ID:            uuid.New(),
				OwnerID:       params.OwnerID,
				CustomerID:    params.CustomerID,
				Number:        domain.FormatInvoiceNumber(now.Year(), now.Month(), seq),
				Status:        domain.InvoiceStatusSent,
				PaymentStatus: domain.PaymentStatusRequiresPaymentMethod,
				Currency:      currency,
				TotalAmount:   params.TotalAmount,
				DueDate:       params.DueDate,
				Description:   params.Description,
			}

			if err := repo.CreateInvoice(ctx, inv); err != nil {
				return err
			}

			created = inv
			return nil
		})
		if err == nil {
			break
		}

		lastErr = err
		if !domain.IsCode(err, domain.ECONFLICT) {
			return nil, err
		}
		s.logger.Debug("invoice number collision, retrying", "attempt", attempt+1)
	}

	if created == nil {
		if lastErr != nil {
			return nil, ErrDuplicateInvoiceNumber
		}
		return nil, domain.Internal(nil, "invoice.create", "invoice creation did not complete")
	}

	s.publish(domain.NewInvoiceEvent("created", map[string]string{
		"invoice_id":     created.ID.String(),
		"invoice_number": created.Number,
		"total_amount":   created.TotalAmount.StringFixed(2),
		"currency":       created.Currency,
	}))

	return created, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *invoiceService) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	return s.repo.GetInvoiceByNumber(ctx, number)
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	return s.repo.ListInvoices(ctx, filter)
}

// UpdateInvoice applies partial updates to an invoice. Status changes
// through this path are limited to manual transitions; paid and partial
// are owned by reconciliation.
func (s *invoiceService) UpdateInvoice(ctx context.Context, id uuid.UUID, params domain.UpdateInvoiceParams) (*domain.Invoice, error) {
	var updated *domain.Invoice

	err := s.repo.RunInTx(ctx, func(repo domain.Repository) error {
		inv, err := repo.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if params.Status != nil {
			if !params.Status.Valid() {
				return ErrInvalidInvoiceStatus
			}
			inv.Status = *params.Status
		}
		if params.DueDate != nil {
			if params.DueDate.Before(startOfToday()) {
				return ErrDueDateInPast
			}
			inv.DueDate = params.DueDate
		}
		if params.Description != nil {
			inv.Description = *params.Description
		}

		if err := repo.UpdateInvoice(ctx, inv); err != nil {
			return err
		}

		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// CancelInvoice cancels an unpaid invoice. Paid and partially paid
// invoices must be refunded instead.
func (s *invoiceService) CancelInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var canceled *domain.Invoice

	err := s.repo.RunInTx(ctx, func(repo domain.Repository) error {
		inv, err := repo.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if inv.IsPaid() || inv.IsPartiallyPaid() {
			return ErrInvoiceNotCancelable
		}

		inv.Status = domain.InvoiceStatusCanceled
		if err := repo.UpdateInvoice(ctx, inv); err != nil {
			return err
		}

		canceled = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(domain.NewInvoiceEvent("canceled", map[string]string{
		"invoice_id":     canceled.ID.String(),
		"invoice_number": canceled.Number,
	}))

	return canceled, nil
}

// DeleteInvoice removes an invoice and its payment records. Paid and
// partially paid invoices cannot be deleted; their payment history must
// survive.
func (s *invoiceService) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	var number string

	err := s.repo.RunInTx(ctx, func(repo domain.Repository) error {
		inv, err := repo.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if inv.IsPaid() || inv.IsPartiallyPaid() {
			return ErrInvoiceNotDeletable
		}

		number = inv.Number
		return repo.DeleteInvoice(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("invoice deleted", "invoice_id", id, "invoice_number", number)
	s.publish(domain.NewInvoiceEvent("deleted", map[string]string{
		"invoice_id":     id.String(),
		"invoice_number": number,
	}))

	return nil
}

// MarkOverdueInvoices flips sent invoices past their due date to
// overdue. Intended to run on a schedule.
func (s *invoiceService) MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int, error) {
	n, err := s.repo.MarkOverdueInvoices(ctx, asOf)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.logger.Info("marked invoices overdue", "count", n, "as_of", asOf)
	}

	return n, nil
}

// publish sends a domain event, logging and swallowing failures so
// event delivery never fails the operation that produced it.
func (s *invoiceService) publish(event domain.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Warn("failed to publish event", "subject", event.Subject(), "error", err)
	}
}
