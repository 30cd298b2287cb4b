package domain

import "github.com/shopspring/decimal"

// ReconcileResult is the outcome of recomputing an invoice from its
// payment records.
type ReconcileResult struct {
	AmountPaid    decimal.Decimal
	Status        InvoiceStatus
	PaymentStatus PaymentStatus
	StatusChanged bool
}

// Reconcile derives an invoice's paid amount and status from the full
// set of its payment records. The paid amount is the sum of succeeded
// payments minus the sum of refunds, deliberately unclamped: an
// over-refunded invoice carries a negative paid amount.
//
// Status precedence, first match wins: refunded when refunds wiped out
// (or exceeded) the captured payments, then fully paid, then partially
// paid. When none apply the current status is kept, so canceled and
// overdue invoices are not resurrected by reconciliation.
func Reconcile(inv *Invoice, records []PaymentRecord) ReconcileResult {
	succeeded := decimal.Zero
	refunded := decimal.Zero

	for _, r := range records {
		switch r.Status {
		case PaymentStatusSucceeded:
			succeeded = succeeded.Add(r.Amount)
		case PaymentStatusRefunded:
			refunded = refunded.Add(r.Amount)
		}
	}

	amountPaid := succeeded.Sub(refunded)

	status := inv.Status
	paymentStatus := inv.PaymentStatus
	switch {
	case !amountPaid.IsPositive() && refunded.IsPositive():
		status = InvoiceStatusRefunded
		paymentStatus = PaymentStatusRefunded
	case amountPaid.GreaterThanOrEqual(inv.TotalAmount):
		status = InvoiceStatusPaid
		paymentStatus = PaymentStatusSucceeded
	case amountPaid.IsPositive() && amountPaid.LessThan(inv.TotalAmount):
		status = InvoiceStatusPartial
	}

	return ReconcileResult{
		AmountPaid:    amountPaid,
		Status:        status,
		PaymentStatus: paymentStatus,
		StatusChanged: status != inv.Status,
	}
}
