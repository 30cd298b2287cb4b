package service

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/saga/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRepo is an in-memory domain.Repository for service tests.
// RunInTx runs the callback against the same store, so transactional
// code paths execute without a database.
type fakeRepo struct {
	owners    map[uuid.UUID]domain.BusinessOwner
	customers map[uuid.UUID]domain.Customer
	invoices  map[uuid.UUID]domain.Invoice
	payments  map[uuid.UUID]domain.PaymentRecord

	paymentsByProvider map[string]uuid.UUID
	paymentOrder       []uuid.UUID

	// invoiceConflicts makes CreateInvoice fail with a conflict this
	// many times before succeeding, simulating sequence races.
	invoiceConflicts int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		owners:             make(map[uuid.UUID]domain.BusinessOwner),
		customers:          make(map[uuid.UUID]domain.Customer),
		invoices:           make(map[uuid.UUID]domain.Invoice),
		payments:           make(map[uuid.UUID]domain.PaymentRecord),
		paymentsByProvider: make(map[string]uuid.UUID),
	}
}

var _ domain.Repository = (*fakeRepo)(nil)

func (f *fakeRepo) RunInTx(ctx context.Context, fn func(domain.Repository) error) error {
	return fn(f)
}

func (f *fakeRepo) CreateBusinessOwner(ctx context.Context, params domain.CreateBusinessOwnerParams) (*domain.BusinessOwner, error) {
	for _, o := range f.owners {
		if o.Email == params.Email {
			return nil, domain.Conflict("fake.create_owner", "A business owner with this email already exists")
		}
	}

	now := time.Now().UTC()
	owner := domain.BusinessOwner{
		ID:           uuid.New(),
		Email:        params.Email,
		BusinessName: params.BusinessName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.owners[owner.ID] = owner
	return &owner, nil
}

func (f *fakeRepo) GetBusinessOwner(ctx context.Context, id uuid.UUID) (*domain.BusinessOwner, error) {
	owner, ok := f.owners[id]
	if !ok {
		return nil, domain.NotFound("fake.get_owner", "Business owner", id.String())
	}
	return &owner, nil
}

func (f *fakeRepo) DeleteBusinessOwner(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.owners[id]; !ok {
		return domain.NotFound("fake.delete_owner", "Business owner", id.String())
	}
	delete(f.owners, id)
	for cid, c := range f.customers {
		if c.OwnerID == id {
			delete(f.customers, cid)
		}
	}
	for iid, inv := range f.invoices {
		if inv.OwnerID == id {
			f.deleteInvoiceCascade(iid)
		}
	}
	return nil
}

func (f *fakeRepo) CreateCustomer(ctx context.Context, params domain.CreateCustomerParams) (*domain.Customer, error) {
	now := time.Now().UTC()
	customer := domain.Customer{
		ID:        uuid.New(),
		OwnerID:   params.OwnerID,
		Email:     params.Email,
		Name:      params.Name,
		Phone:     params.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.customers[customer.ID] = customer
	return &customer, nil
}

func (f *fakeRepo) GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	customer, ok := f.customers[id]
	if !ok {
		return nil, domain.NotFound("fake.get_customer", "Customer", id.String())
	}
	return &customer, nil
}

func (f *fakeRepo) ListCustomers(ctx context.Context, ownerID uuid.UUID) ([]domain.Customer, error) {
	var out []domain.Customer
	for _, c := range f.customers {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteCustomer(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.customers[id]; !ok {
		return domain.NotFound("fake.delete_customer", "Customer", id.String())
	}
	delete(f.customers, id)
	for iid, inv := range f.invoices {
		if inv.CustomerID == id {
			f.deleteInvoiceCascade(iid)
		}
	}
	return nil
}

func (f *fakeRepo) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	if f.invoiceConflicts > 0 {
		f.invoiceConflicts--
		return domain.Conflict("fake.create_invoice", "An invoice with this number already exists")
	}
	for _, existing := range f.invoices {
		if existing.Number == inv.Number {
			return domain.Conflict("fake.create_invoice", "An invoice with this number already exists")
		}
	}

	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	f.invoices[inv.ID] = *inv
	return nil
}

func (f *fakeRepo) GetInvoice(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, domain.NotFound("fake.get_invoice", "Invoice", id.String())
	}
	return &inv, nil
}

func (f *fakeRepo) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return f.GetInvoice(ctx, id)
}

func (f *fakeRepo) GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.Number == number {
			out := inv
			return &out, nil
		}
	}
	return nil, domain.NotFound("fake.get_invoice_by_number", "Invoice", number)
}

func (f *fakeRepo) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	var out []domain.Invoice
	for _, inv := range f.invoices {
		if filter.OwnerID != nil && inv.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.CustomerID != nil && inv.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && inv.Status != *filter.Status {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (f *fakeRepo) UpdateInvoice(ctx context.Context, inv *domain.Invoice) error {
	if _, ok := f.invoices[inv.ID]; !ok {
		return domain.NotFound("fake.update_invoice", "Invoice", inv.ID.String())
	}
	inv.UpdatedAt = time.Now().UTC()
	f.invoices[inv.ID] = *inv
	return nil
}

func (f *fakeRepo) NextInvoiceSequence(ctx context.Context, year int, month time.Month) (int, error) {
	prefix := strings.TrimSuffix(domain.FormatInvoiceNumber(year, month, 0), "0000")
	max := 0
	for _, inv := range f.invoices {
		if !strings.HasPrefix(inv.Number, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(inv.Number, prefix))
		if err == nil && n > max {
			max = n
		}
	}
	return max + 1, nil
}

func (f *fakeRepo) MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int, error) {
	count := 0
	for id, inv := range f.invoices {
		if inv.Status == domain.InvoiceStatusSent && inv.DueDate != nil && inv.DueDate.Before(asOf) {
			inv.Status = domain.InvoiceStatusOverdue
			inv.UpdatedAt = time.Now().UTC()
			f.invoices[id] = inv
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	if _, ok := f.invoices[id]; !ok {
		return domain.NotFound("fake.delete_invoice", "Invoice", id.String())
	}
	f.deleteInvoiceCascade(id)
	return nil
}

// deleteInvoiceCascade removes an invoice and its payment records, the
// way the schema's ON DELETE CASCADE does.
func (f *fakeRepo) deleteInvoiceCascade(id uuid.UUID) {
	delete(f.invoices, id)
	for pid, rec := range f.payments {
		if rec.InvoiceID != id {
			continue
		}
		delete(f.payments, pid)
		delete(f.paymentsByProvider, rec.ProviderPaymentID)
		for i, oid := range f.paymentOrder {
			if oid == pid {
				f.paymentOrder = append(f.paymentOrder[:i], f.paymentOrder[i+1:]...)
				break
			}
		}
	}
}

func (f *fakeRepo) CreatePaymentRecord(ctx context.Context, rec *domain.PaymentRecord) error {
	if _, exists := f.paymentsByProvider[rec.ProviderPaymentID]; exists {
		return domain.Conflict("fake.create_payment_record", "A payment record for this provider id already exists")
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	f.payments[rec.ID] = *rec
	f.paymentsByProvider[rec.ProviderPaymentID] = rec.ID
	f.paymentOrder = append(f.paymentOrder, rec.ID)
	return nil
}

func (f *fakeRepo) GetPaymentRecord(ctx context.Context, id uuid.UUID) (*domain.PaymentRecord, error) {
	rec, ok := f.payments[id]
	if !ok {
		return nil, domain.NotFound("fake.get_payment_record", "Payment record", id.String())
	}
	return &rec, nil
}

func (f *fakeRepo) GetPaymentRecordByProviderID(ctx context.Context, providerPaymentID string) (*domain.PaymentRecord, error) {
	id, ok := f.paymentsByProvider[providerPaymentID]
	if !ok {
		return nil, domain.NotFound("fake.get_payment_record", "Payment record", providerPaymentID)
	}
	rec := f.payments[id]
	return &rec, nil
}

func (f *fakeRepo) ListPaymentRecords(ctx context.Context, filter domain.PaymentFilter) ([]domain.PaymentRecord, error) {
	var out []domain.PaymentRecord
	for _, id := range f.paymentOrder {
		rec := f.payments[id]
		if filter.InvoiceID != nil && rec.InvoiceID != *filter.InvoiceID {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeRepo) ListPaymentRecordsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.PaymentRecord, error) {
	return f.ListPaymentRecords(ctx, domain.PaymentFilter{InvoiceID: &invoiceID})
}

func (f *fakeRepo) ListPaymentRecordsByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.PaymentRecord, error) {
	var out []domain.PaymentRecord
	for _, id := range f.paymentOrder {
		rec := f.payments[id]
		if inv, ok := f.invoices[rec.InvoiceID]; ok && inv.CustomerID == customerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListPaymentRecordsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.PaymentRecord, error) {
	var out []domain.PaymentRecord
	for _, id := range f.paymentOrder {
		rec := f.payments[id]
		if inv, ok := f.invoices[rec.InvoiceID]; ok && inv.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdatePaymentRecord(ctx context.Context, rec *domain.PaymentRecord) error {
	if _, ok := f.payments[rec.ID]; !ok {
		return domain.NotFound("fake.update_payment_record", "Payment record", rec.ID.String())
	}
	rec.UpdatedAt = time.Now().UTC()
	f.payments[rec.ID] = *rec
	return nil
}

// seedCustomer inserts a customer with a fresh owner and returns it.
func (f *fakeRepo) seedCustomer() domain.Customer {
	owner := domain.BusinessOwner{ID: uuid.New(), Email: "owner@example.com", BusinessName: "Acme Ltd"}
	f.owners[owner.ID] = owner

	customer := domain.Customer{
		ID:      uuid.New(),
		OwnerID: owner.ID,
		Email:   "customer@example.com",
		Name:    "Jordan Lee",
	}
	f.customers[customer.ID] = customer
	return customer
}

// seedInvoice inserts an invoice directly, bypassing number assignment.
func (f *fakeRepo) seedInvoice(inv domain.Invoice) domain.Invoice {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.Currency == "" {
		inv.Currency = domain.DefaultCurrency
	}
	if inv.PaymentStatus == "" {
		inv.PaymentStatus = domain.PaymentStatusRequiresPaymentMethod
	}
	f.invoices[inv.ID] = inv
	return inv
}

// seedPayment inserts a payment record directly.
func (f *fakeRepo) seedPayment(rec domain.PaymentRecord) domain.PaymentRecord {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	f.payments[rec.ID] = rec
	f.paymentsByProvider[rec.ProviderPaymentID] = rec.ID
	f.paymentOrder = append(f.paymentOrder, rec.ID)
	return rec
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	events []domain.Event
}

func (p *capturePublisher) Publish(event domain.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() {}

func (p *capturePublisher) subjects() []string {
	var out []string
	for _, e := range p.events {
		out = append(out, e.Subject())
	}
	return out
}
