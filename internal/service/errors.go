package service

import (
	"github.com/dukerupert/saga/internal/domain"
)

// Invoice errors
var (
	ErrInvoiceAlreadyPaid     = domain.Errorf(domain.ECONFLICT, "", "Invoice is already paid in full")
	ErrInvoiceNotCancelable   = domain.Errorf(domain.ECONFLICT, "", "Only unpaid invoices can be canceled")
	ErrInvoiceNotDeletable    = domain.Errorf(domain.ECONFLICT, "", "Invoices with recorded payments cannot be deleted")
	ErrDuplicateInvoiceNumber = domain.Errorf(domain.ECONFLICT, "", "Invoice number already exists")
	ErrInvalidInvoiceTotal    = domain.Errorf(domain.EINVALID, "", "Total amount must be non-negative")
	ErrInvalidInvoiceStatus   = domain.Errorf(domain.EINVALID, "", "Invalid invoice status")
	ErrDueDateInPast          = domain.Errorf(domain.EINVALID, "", "Due date cannot be in the past")
)

// Payment errors
var (
	ErrInvalidPaymentAmount = domain.Errorf(domain.EINVALID, "", "Payment amount must be greater than zero")
	ErrAmountExceedsBalance = domain.Errorf(domain.EINVALID, "", "Payment amount exceeds the amount due")
	ErrAmountBelowMinimum   = domain.Errorf(domain.EINVALID, "", "Payment amount must be at least 1.00")
	ErrPaymentNotRefundable = domain.Errorf(domain.EINVALID, "", "Invalid payment for refund")
	ErrRefundExceedsPayment = domain.Errorf(domain.EINVALID, "", "Refund amount exceeds the original payment")
	ErrAlreadyRefunded      = domain.Errorf(domain.ECONFLICT, "", "Payment has already been refunded")
)
