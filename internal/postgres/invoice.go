package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/saga/internal/domain"
)

const invoiceColumns = `id, owner_id, customer_id, number, status, payment_status,
	currency, total_amount, amount_paid, due_date, description, created_at, updated_at`

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var (
		inv         domain.Invoice
		totalAmount pgtype.Numeric
		amountPaid  pgtype.Numeric
		dueDate     pgtype.Timestamptz
	)

	err := row.Scan(
		&inv.ID, &inv.OwnerID, &inv.CustomerID, &inv.Number, &inv.Status,
		&inv.PaymentStatus, &inv.Currency, &totalAmount, &amountPaid, &dueDate,
		&inv.Description, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if inv.TotalAmount, err = decimalFromNumeric(totalAmount); err != nil {
		return nil, err
	}
	if inv.AmountPaid, err = decimalFromNumeric(amountPaid); err != nil {
		return nil, err
	}
	if dueDate.Valid {
		t := dueDate.Time
		inv.DueDate = &t
	}

	return &inv, nil
}

// CreateInvoice inserts a new invoice. A duplicate invoice number maps
// to ECONFLICT so callers can retry with a fresh sequence.
func (s *Store) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	totalAmount, err := numericFromDecimal(inv.TotalAmount)
	if err != nil {
		return domain.Internal(err, "postgres.invoice.create", "failed to encode total amount")
	}
	amountPaid, err := numericFromDecimal(inv.AmountPaid)
	if err != nil {
		return domain.Internal(err, "postgres.invoice.create", "failed to encode amount paid")
	}

	row := s.conn().QueryRow(ctx, `
		INSERT INTO invoices (id, owner_id, customer_id, number, status,
			payment_status, currency, total_amount, amount_paid, due_date, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		inv.ID, inv.OwnerID, inv.CustomerID, inv.Number, inv.Status,
		inv.PaymentStatus, inv.Currency, totalAmount, amountPaid, inv.DueDate, inv.Description,
	)

	if err := row.Scan(&inv.CreatedAt, &inv.UpdatedAt); err != nil {
		if isUniqueViolation(err, "invoices_number_key") {
			return domain.Conflict("postgres.invoice.create", "invoice number already exists")
		}
		if isForeignKeyViolation(err) {
			return domain.Invalid("postgres.invoice.create", "owner or customer does not exist")
		}
		return domain.Internal(err, "postgres.invoice.create", "failed to create invoice")
	}

	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	row := s.conn().QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)

	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("postgres.invoice.get", "invoice", id.String())
		}
		return nil, domain.Internal(err, "postgres.invoice.get", "failed to get invoice")
	}
	return inv, nil
}

// GetInvoiceForUpdate locks the invoice row until the enclosing
// transaction ends. Outside a transaction the lock is released
// immediately, so this is only meaningful inside RunInTx.
func (s *Store) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	row := s.conn().QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)

	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("postgres.invoice.get_for_update", "invoice", id.String())
		}
		return nil, domain.Internal(err, "postgres.invoice.get_for_update", "failed to lock invoice")
	}
	return inv, nil
}

func (s *Store) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	row := s.conn().QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE number = $1`, number)

	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("postgres.invoice.get_by_number", "invoice", number)
		}
		return nil, domain.Internal(err, "postgres.invoice.get_by_number", "failed to get invoice")
	}
	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		query += ` AND owner_id = $` + itoa(len(args))
	}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		query += ` AND customer_id = $` + itoa(len(args))
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
		return nil, domain.Internal(err, "postgres.invoice.list", "failed to list invoices")
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, domain.Internal(err, "postgres.invoice.list", "failed to scan invoice")
		}
		invoices = append(invoices, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "postgres.invoice.list", "failed to read invoices")
	}

	return invoices, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	amountPaid, err := numericFromDecimal(inv.AmountPaid)
	if err != nil {
		return domain.Internal(err, "postgres.invoice.update", "failed to encode amount paid")
	}

	row := s.conn().QueryRow(ctx, `
		UPDATE invoices
		SET status = $2, payment_status = $3, amount_paid = $4, due_date = $5,
			description = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		inv.ID, inv.Status, inv.PaymentStatus, amountPaid, inv.DueDate, inv.Description,
	)

	if err := row.Scan(&inv.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NotFound("postgres.invoice.update", "invoice", inv.ID.String())
		}
		return domain.Internal(err, "postgres.invoice.update", "failed to update invoice")
	}

	return nil
}

// DeleteInvoice removes an invoice; the payment_records cascade removes
// its records.
func (s *Store) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	tag, err := s.conn().Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, "postgres.invoice.delete", "failed to delete invoice")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("postgres.invoice.delete", "invoice", id.String())
	}
	return nil
}

// NextInvoiceSequence computes the next sequence number for a billing
// month by parsing the highest existing number with that prefix.
// Concurrent callers can race to the same sequence; the unique
// constraint on number catches the loser.
func (s *Store) NextInvoiceSequence(ctx context.Context, year int, month time.Month) (int, error) {
	prefix := domain.FormatInvoiceNumber(year, month, 0)
	prefix = prefix[:len(prefix)-4] // strip the sequence digits

	var maxSeq int
	err := s.conn().QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(RIGHT(number, 4) AS INTEGER)), 0)
		FROM invoices
		WHERE number LIKE $1 || '%'`,
		prefix,
	).Scan(&maxSeq)
	if err != nil {
		return 0, domain.Internal(err, "postgres.invoice.next_sequence", "failed to compute invoice sequence")
	}

	return maxSeq + 1, nil
}

// MarkOverdueInvoices flips sent invoices past their due date to
// overdue. Returns the number of invoices updated.
func (s *Store) MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int, error) {
	tag, err := s.conn().Exec(ctx, `
		UPDATE invoices
		SET status = $1, updated_at = now()
		WHERE status = $2 AND due_date IS NOT NULL AND due_date < $3`,
		domain.InvoiceStatusOverdue, domain.InvoiceStatusSent, asOf,
	)
	if err != nil {
		return 0, domain.Internal(err, "postgres.invoice.mark_overdue", "failed to mark overdue invoices")
	}

	return int(tag.RowsAffected()), nil
}
