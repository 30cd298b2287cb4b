package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/saga/internal/domain"
)

const paymentColumns = `id, invoice_id, provider_payment_id, client_secret, amount,
	currency, status, payment_method, payment_method_id, failure_code,
	failure_message, metadata, provider_created_at, created_at, updated_at`

// joinPaymentColumns qualifies every payment column with the p alias
// for queries that join against invoices.
const joinPaymentColumns = `id, p.invoice_id, p.provider_payment_id, p.client_secret, p.amount,
	p.currency, p.status, p.payment_method, p.payment_method_id, p.failure_code,
	p.failure_message, p.metadata, p.provider_created_at, p.created_at, p.updated_at`

func scanPaymentRecord(row pgx.Row) (*domain.PaymentRecord, error) {
	var (
		rec    domain.PaymentRecord
		amount pgtype.Numeric
	)

	err := row.Scan(
		&rec.ID, &rec.InvoiceID, &rec.ProviderPaymentID, &rec.ClientSecret,
		&amount, &rec.Currency, &rec.Status, &rec.PaymentMethod,
		&rec.PaymentMethodID, &rec.FailureCode, &rec.FailureMessage,
		&rec.Metadata, &rec.ProviderCreatedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rec.Amount, err = decimalFromNumeric(amount); err != nil {
		return nil, err
	}

	return &rec, nil
}

// CreatePaymentRecord inserts a new payment record. A duplicate
// provider payment id maps to ECONFLICT, which webhook handlers treat
// as an already-processed event.
func (s *Store) CreatePaymentRecord(ctx context.Context, rec *domain.PaymentRecord) error {
	amount, err := numericFromDecimal(rec.Amount)
	if err != nil {
		return domain.Internal(err, "postgres.payment.create", "failed to encode amount")
	}

	row := s.conn().QueryRow(ctx, `
		INSERT INTO payment_records (id, invoice_id, provider_payment_id, client_secret,
			amount, currency, status, payment_method, payment_method_id,
			failure_code, failure_message, metadata, provider_created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		rec.ID, rec.InvoiceID, rec.ProviderPaymentID, rec.ClientSecret,
		amount, rec.Currency, rec.Status, rec.PaymentMethod, rec.PaymentMethodID,
		rec.FailureCode, rec.FailureMessage, rec.Metadata, rec.ProviderCreatedAt,
	)

	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if isUniqueViolation(err, "payment_records_provider_payment_id_key") {
			return domain.Conflict("postgres.payment.create", "payment record already exists for this provider id")
		}
		if isForeignKeyViolation(err) {
			return domain.Invalid("postgres.payment.create", "invoice does not exist")
		}
		return domain.Internal(err, "postgres.payment.create", "failed to create payment record")
	}

	return nil
}

func (s *Store) GetPaymentRecord(ctx context.Context, id uuid.UUID) (*domain.PaymentRecord, error) {
	row := s.conn().QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payment_records WHERE id = $1`, id)

	rec, err := scanPaymentRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("postgres.payment.get", "payment record", id.String())
		}
		return nil, domain.Internal(err, "postgres.payment.get", "failed to get payment record")
	}
	return rec, nil
}

func (s *Store) GetPaymentRecordByProviderID(ctx context.Context, providerPaymentID string) (*domain.PaymentRecord, error) {
	row := s.conn().QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payment_records WHERE provider_payment_id = $1`,
		providerPaymentID)

	rec, err := scanPaymentRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("postgres.payment.get_by_provider_id", "payment record", providerPaymentID)
		}
		return nil, domain.Internal(err, "postgres.payment.get_by_provider_id", "failed to get payment record")
	}
	return rec, nil
}

func (s *Store) ListPaymentRecords(ctx context.Context, filter domain.PaymentFilter) ([]domain.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE 1=1`
	args := []any{}

	if filter.InvoiceID != nil {
		args = append(args, *filter.InvoiceID)
		query += ` AND invoice_id = $` + itoa(len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += ` AND status = $` + itoa(len(args))
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + itoa(len(args))
	}

	rows, err := s.conn().Query(ctx, query, args...)
	if err != nil {
		return nil, domain.Internal(err, "postgres.payment.list", "failed to list payment records")
	}
	defer rows.Close()

	return collectPaymentRecords(rows)
}

// ListPaymentRecordsByInvoice returns every payment record for an
// invoice, oldest first. This is the reconciliation working set.
func (s *Store) ListPaymentRecordsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.PaymentRecord, error) {
	rows, err := s.conn().Query(ctx,
		`SELECT `+paymentColumns+` FROM payment_records
		WHERE invoice_id = $1 ORDER BY created_at ASC`,
		invoiceID)
	if err != nil {
		return nil, domain.Internal(err, "postgres.payment.list_by_invoice", "failed to list payment records")
	}
	defer rows.Close()

	return collectPaymentRecords(rows)
}

// ListPaymentRecordsByCustomer returns payment records across every
// invoice issued to a customer, newest first.
func (s *Store) ListPaymentRecordsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.PaymentRecord, error) {
	rows, err := s.conn().Query(ctx,
		`SELECT p.`+joinPaymentColumns+` FROM payment_records p
		JOIN invoices i ON i.id = p.invoice_id
		WHERE i.customer_id = $1 ORDER BY p.created_at DESC`,
		customerID)
	if err != nil {
		return nil, domain.Internal(err, "postgres.payment.list_by_customer", "failed to list payment records")
	}
	defer rows.Close()

	return collectPaymentRecords(rows)
}

// ListPaymentRecordsByOwner returns payment records across every
// invoice issued by a business owner, newest first.
func (s *Store) ListPaymentRecordsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.PaymentRecord, error) {
	rows, err := s.conn().Query(ctx,
		`SELECT p.`+joinPaymentColumns+` FROM payment_records p
		JOIN invoices i ON i.id = p.invoice_id
		WHERE i.owner_id = $1 ORDER BY p.created_at DESC`,
		ownerID)
	if err != nil {
		return nil, domain.Internal(err, "postgres.payment.list_by_owner", "failed to list payment records")
	}
	defer rows.Close()

	return collectPaymentRecords(rows)
}

func collectPaymentRecords(rows pgx.Rows) ([]domain.PaymentRecord, error) {
	var records []domain.PaymentRecord
	for rows.Next() {
		rec, err := scanPaymentRecord(rows)
		if err != nil {
			return nil, domain.Internal(err, "postgres.payment.scan", "failed to scan payment record")
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "postgres.payment.scan", "failed to read payment records")
	}
	return records, nil
}

func (s *Store) UpdatePaymentRecord(ctx context.Context, rec *domain.PaymentRecord) error {
	row := s.conn().QueryRow(ctx, `
		UPDATE payment_records
		SET status = $2, payment_method = $3, payment_method_id = $4,
			client_secret = $5, failure_code = $6, failure_message = $7,
			metadata = $8, provider_created_at = $9, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		rec.ID, rec.Status, rec.PaymentMethod, rec.PaymentMethodID,
		rec.ClientSecret, rec.FailureCode, rec.FailureMessage,
		rec.Metadata, rec.ProviderCreatedAt,
	)

	if err := row.Scan(&rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFound("postgres.payment.update", "payment record", rec.ID.String())
		}
		return domain.Internal(err, "postgres.payment.update", "failed to update payment record")
	}

	return nil
}
