package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dukerupert/saga/internal/domain"
)

type userService struct {
	repo   domain.Repository
	logger *slog.Logger
}

// Compile-time check that userService implements domain.UserService.
var _ domain.UserService = (*userService)(nil)

// NewUserService creates a new user service.
func NewUserService(repo domain.Repository, logger *slog.Logger) domain.UserService {
	return &userService{
		repo:   repo,
		logger: logger,
	}
}

func (s *userService) CreateBusinessOwner(ctx context.Context, params domain.CreateBusinessOwnerParams) (*domain.BusinessOwner, error) {
	owner, err := s.repo.CreateBusinessOwner(ctx, params)
	if err != nil {
		return nil, err
	}

	s.logger.Info("business owner created", "owner_id", owner.ID, "email", owner.Email)
	return owner, nil
}

func (s *userService) GetBusinessOwner(ctx context.Context, id uuid.UUID) (*domain.BusinessOwner, error) {
	return s.repo.GetBusinessOwner(ctx, id)
}

func (s *userService) DeleteBusinessOwner(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetBusinessOwner(ctx, id); err != nil {
		return err
	}

	if err := s.repo.DeleteBusinessOwner(ctx, id); err != nil {
		return err
	}

	s.logger.Info("business owner deleted", "owner_id", id)
	return nil
}

func (s *userService) CreateCustomer(ctx context.Context, params domain.CreateCustomerParams) (*domain.Customer, error) {
	if _, err := s.repo.GetBusinessOwner(ctx, params.OwnerID); err != nil {
		return nil, err
	}

	customer, err := s.repo.CreateCustomer(ctx, params)
	if err != nil {
		return nil, err
	}

	s.logger.Info("customer created", "customer_id", customer.ID, "owner_id", customer.OwnerID)
	return customer, nil
}

func (s *userService) GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

func (s *userService) ListCustomers(ctx context.Context, ownerID uuid.UUID) ([]domain.Customer, error) {
	return s.repo.ListCustomers(ctx, ownerID)
}

func (s *userService) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetCustomer(ctx, id); err != nil {
		return err
	}

	if err := s.repo.DeleteCustomer(ctx, id); err != nil {
		return err
	}

	s.logger.Info("customer deleted", "customer_id", id)
	return nil
}
