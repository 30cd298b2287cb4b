package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/saga/internal/domain"
)

func (s *Store) CreateBusinessOwner(ctx context.Context, params domain.CreateBusinessOwnerParams) (*domain.BusinessOwner, error) {
	owner := &domain.BusinessOwner{
		ID:           uuid.New(),
		Email:        params.Email,
		BusinessName: params.BusinessName,
	}

	row := s.conn().QueryRow(ctx, `
		INSERT INTO business_owners (id, email, business_name)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		owner.ID, owner.Email, owner.BusinessName,
	)

	if err := row.Scan(&owner.CreatedAt, &owner.UpdatedAt); err != nil {
		if isUniqueViolation(err, "business_owners_email_key") {
			return nil, domain.Conflict("postgres.owner.create", "a business owner with this email already exists")
		}
		return nil, domain.Internal(err, "postgres.owner.create", "failed to create business owner")
	}

	return owner, nil
}

func (s *Store) GetBusinessOwner(ctx context.Context, id uuid.UUID) (*domain.BusinessOwner, error) {
	var owner domain.BusinessOwner

	err := s.conn().QueryRow(ctx, `
		SELECT id, email, business_name, created_at, updated_at
		FROM business_owners WHERE id = $1`, id,
	).Scan(&owner.ID, &owner.Email, &owner.BusinessName, &owner.CreatedAt, &owner.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("postgres.owner.get", "business owner", id.String())
		}
		return nil, domain.Internal(err, "postgres.owner.get", "failed to get business owner")
	}

	return &owner, nil
}

// DeleteBusinessOwner removes an owner and, via the schema's cascades,
// their customers, invoices, and payment records.
func (s *Store) DeleteBusinessOwner(ctx context.Context, id uuid.UUID) error {
	tag, err := s.conn().Exec(ctx, `DELETE FROM business_owners WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, "postgres.owner.delete", "failed to delete business owner")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("postgres.owner.delete", "business owner", id.String())
	}
	return nil
}

func (s *Store) CreateCustomer(ctx context.Context, params domain.CreateCustomerParams) (*domain.Customer, error) {
	customer := &domain.Customer{
		ID:      uuid.New(),
		OwnerID: params.OwnerID,
		Email:   params.Email,
		Name:    params.Name,
		Phone:   params.Phone,
	}

	row := s.conn().QueryRow(ctx, `
		INSERT INTO customers (id, owner_id, email, name, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		customer.ID, customer.OwnerID, customer.Email, customer.Name, customer.Phone,
	)

	if err := row.Scan(&customer.CreatedAt, &customer.UpdatedAt); err != nil {
		if isForeignKeyViolation(err) {
			return nil, domain.Invalid("postgres.customer.create", "business owner does not exist")
		}
		return nil, domain.Internal(err, "postgres.customer.create", "failed to create customer")
	}

	return customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	var customer domain.Customer

	err := s.conn().QueryRow(ctx, `
		SELECT id, owner_id, email, name, phone, created_at, updated_at
		FROM customers WHERE id = $1`, id,
	).Scan(&customer.ID, &customer.OwnerID, &customer.Email, &customer.Name,
		&customer.Phone, &customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("postgres.customer.get", "customer", id.String())
		}
		return nil, domain.Internal(err, "postgres.customer.get", "failed to get customer")
	}

	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context, ownerID uuid.UUID) ([]domain.Customer, error) {
	rows, err := s.conn().Query(ctx, `
		SELECT id, owner_id, email, name, phone, created_at, updated_at
		FROM customers WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, domain.Internal(err, "postgres.customer.list", "failed to list customers")
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		var c domain.Customer
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Email, &c.Name, &c.Phone,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, domain.Internal(err, "postgres.customer.list", "failed to scan customer")
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "postgres.customer.list", "failed to read customers")
	}

	return customers, nil
}

func (s *Store) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	tag, err := s.conn().Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return domain.Internal(err, "postgres.customer.delete", "failed to delete customer")
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("postgres.customer.delete", "customer", id.String())
	}
	return nil
}
