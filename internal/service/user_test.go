package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/saga/internal/domain"
)

func newUserFixture() (*fakeRepo, domain.UserService) {
	repo := newFakeRepo()
	svc := NewUserService(repo, testLogger())
	return repo, svc
}

func Test_DeleteCustomer(t *testing.T) {
	repo, svc := newUserFixture()
	customer := repo.seedCustomer()

	inv := repo.seedInvoice(domain.Invoice{
		OwnerID:     customer.OwnerID,
		CustomerID:  customer.ID,
		Number:      "INV-202608-0001",
		Status:      domain.InvoiceStatusSent,
		TotalAmount: dec("100.00"),
	})

	err := svc.DeleteCustomer(context.Background(), customer.ID)
	require.NoError(t, err)

	_, err = repo.GetCustomer(context.Background(), customer.ID)
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))

	// Invoices go with the customer.
	_, err = repo.GetInvoice(context.Background(), inv.ID)
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))
}

func Test_DeleteCustomer_NotFound(t *testing.T) {
	_, svc := newUserFixture()

	err := svc.DeleteCustomer(context.Background(), uuid.New())
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))
}

func Test_DeleteBusinessOwner(t *testing.T) {
	repo, svc := newUserFixture()
	customer := repo.seedCustomer()

	err := svc.DeleteBusinessOwner(context.Background(), customer.OwnerID)
	require.NoError(t, err)

	_, err = repo.GetBusinessOwner(context.Background(), customer.OwnerID)
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))

	// Customers go with the owner.
	_, err = repo.GetCustomer(context.Background(), customer.ID)
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))
}

func Test_DeleteBusinessOwner_NotFound(t *testing.T) {
	_, svc := newUserFixture()

	err := svc.DeleteBusinessOwner(context.Background(), uuid.New())
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))
}
