package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefundRecordID(t *testing.T) {
	assert.Equal(t, "pi_abc123_refund_re_xyz789", RefundRecordID("pi_abc123", "re_xyz789"))
}

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		provider string
		want     PaymentStatus
		mapped   bool
	}{
		{"requires_payment_method", PaymentStatusRequiresPaymentMethod, true},
		{"requires_confirmation", PaymentStatusRequiresConfirmation, true},
		{"requires_action", PaymentStatusRequiresAction, true},
		{"processing", PaymentStatusProcessing, true},
		{"succeeded", PaymentStatusSucceeded, true},
		{"canceled", PaymentStatusCanceled, true},
		// Refunded is assigned locally, never from an intent status.
		{"refunded", "", false},
		{"requires_capture", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			got, ok := MapProviderStatus(tt.provider)
			assert.Equal(t, tt.mapped, ok)
			if tt.mapped {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestPaymentRecord_ApplyProviderUpdate(t *testing.T) {
	rec := &PaymentRecord{Status: PaymentStatusRequiresPaymentMethod}

	assert.True(t, rec.ApplyProviderUpdate("succeeded"))
	assert.Equal(t, PaymentStatusSucceeded, rec.Status)

	// Same status again is a no-op.
	assert.False(t, rec.ApplyProviderUpdate("succeeded"))
	assert.Equal(t, PaymentStatusSucceeded, rec.Status)

	// Unmapped statuses leave the record untouched.
	assert.False(t, rec.ApplyProviderUpdate("requires_capture"))
	assert.Equal(t, PaymentStatusSucceeded, rec.Status)
}

func TestPaymentRecord_ApplyProviderIntent(t *testing.T) {
	created := time.Date(2026, time.August, 20, 10, 30, 0, 0, time.UTC)

	rec := &PaymentRecord{Status: PaymentStatusRequiresPaymentMethod}

	changed := rec.ApplyProviderIntent(ProviderIntent{
		Status:          "succeeded",
		ClientSecret:    "pi_1_secret_abc",
		PaymentMethodID: "pm_visa",
		CreatedAt:       created,
		Metadata:        map[string]string{"receipt_number": "1042"},
	})
	assert.True(t, changed)
	assert.Equal(t, PaymentStatusSucceeded, rec.Status)
	assert.Equal(t, "pi_1_secret_abc", rec.ClientSecret)
	assert.Equal(t, "pm_visa", rec.PaymentMethodID)
	assert.Equal(t, "1042", rec.Metadata["receipt_number"])
	if assert.NotNil(t, rec.ProviderCreatedAt) {
		assert.True(t, rec.ProviderCreatedAt.Equal(created))
	}

	// Replaying the same intent is a no-op.
	assert.False(t, rec.ApplyProviderIntent(ProviderIntent{
		Status:          "succeeded",
		ClientSecret:    "pi_1_secret_abc",
		PaymentMethodID: "pm_visa",
		CreatedAt:       created,
		Metadata:        map[string]string{"receipt_number": "1042"},
	}))

	// The provider timestamp is recorded once; later events never move it.
	later := created.Add(time.Hour)
	assert.False(t, rec.ApplyProviderIntent(ProviderIntent{Status: "succeeded", CreatedAt: later}))
	assert.True(t, rec.ProviderCreatedAt.Equal(created))

	// Failure details carry over and clear again on the next event.
	assert.True(t, rec.ApplyProviderIntent(ProviderIntent{
		Status:         "requires_payment_method",
		FailureCode:    "card_declined",
		FailureMessage: "Your card was declined.",
	}))
	assert.Equal(t, "card_declined", rec.FailureCode)

	assert.True(t, rec.ApplyProviderIntent(ProviderIntent{Status: "processing"}))
	assert.Empty(t, rec.FailureCode)
	assert.Empty(t, rec.FailureMessage)
}

func TestPaymentStatus_Valid(t *testing.T) {
	valid := []PaymentStatus{
		PaymentStatusRequiresPaymentMethod, PaymentStatusRequiresConfirmation,
		PaymentStatusRequiresAction, PaymentStatusProcessing,
		PaymentStatusSucceeded, PaymentStatusCanceled, PaymentStatusRefunded,
	}
	for _, s := range valid {
		assert.True(t, s.Valid(), "expected %q to be valid", s)
	}

	assert.False(t, PaymentStatus("pending").Valid())
}

func TestEvent_Subject(t *testing.T) {
	assert.Equal(t, "saga.invoice.created", NewInvoiceEvent("created", nil).Subject())
	assert.Equal(t, "saga.payment.succeeded", NewPaymentEvent("succeeded", nil).Subject())
	assert.Equal(t, "saga.refund.recorded", NewRefundEvent("recorded", nil).Subject())
	assert.Equal(t, "saga.dispute.opened", NewDisputeEvent("opened", nil).Subject())
}
