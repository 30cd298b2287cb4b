package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BusinessOwner is the account that issues invoices and collects payments.
type BusinessOwner struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	BusinessName string    `json:"business_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Customer is a party that receives invoices from a business owner.
type Customer struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateBusinessOwnerParams struct {
	Email        string `json:"email" validate:"required,email"`
	BusinessName string `json:"business_name" validate:"required,min=1,max=255"`
}

type CreateCustomerParams struct {
	OwnerID uuid.UUID `json:"owner_id"`
	Email   string    `json:"email" validate:"required,email"`
	Name    string    `json:"name" validate:"required,min=1,max=255"`
	Phone   string    `json:"phone" validate:"omitempty,max=32"`
}

// UserService manages business owners and their customers.
type UserService interface {
	CreateBusinessOwner(ctx context.Context, params CreateBusinessOwnerParams) (*BusinessOwner, error)
	GetBusinessOwner(ctx context.Context, id uuid.UUID) (*BusinessOwner, error)
	DeleteBusinessOwner(ctx context.Context, id uuid.UUID) error
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (*Customer, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*Customer, error)
	ListCustomers(ctx context.Context, ownerID uuid.UUID) ([]Customer, error)
	DeleteCustomer(ctx context.Context, id uuid.UUID) error
}
