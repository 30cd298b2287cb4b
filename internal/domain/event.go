package domain

import "time"

// Event categories group related domain events for subscribers.
const (
	EventCategoryInvoice = "invoice"
	EventCategoryPayment = "payment"
	EventCategoryRefund  = "refund"
	EventCategoryDispute = "dispute"
)

// Event is a domain event emitted after a state change is committed.
type Event struct {
	Category   string            `json:"category"`
	Name       string            `json:"name"`
	OccurredAt time.Time         `json:"occurred_at"`
	Context    map[string]string `json:"context,omitempty"`
}

func newEvent(category, name string, ctx map[string]string) Event {
	return Event{
		Category:   category,
		Name:       name,
		OccurredAt: time.Now().UTC(),
		Context:    ctx,
	}
}

// NewInvoiceEvent builds an invoice lifecycle event, e.g. "created",
// "status_changed", "canceled".
func NewInvoiceEvent(name string, ctx map[string]string) Event {
	return newEvent(EventCategoryInvoice, name, ctx)
}

// NewPaymentEvent builds a payment lifecycle event, e.g.
// "intent_created", "succeeded", "failed".
func NewPaymentEvent(name string, ctx map[string]string) Event {
	return newEvent(EventCategoryPayment, name, ctx)
}

// NewRefundEvent builds a refund lifecycle event, e.g. "created",
// "recorded".
func NewRefundEvent(name string, ctx map[string]string) Event {
	return newEvent(EventCategoryRefund, name, ctx)
}

// NewDisputeEvent builds a dispute event, e.g. "opened".
func NewDisputeEvent(name string, ctx map[string]string) Event {
	return newEvent(EventCategoryDispute, name, ctx)
}

// Subject returns the message subject for this event, e.g.
// "saga.invoice.created".
func (e Event) Subject() string {
	return "saga." + e.Category + "." + e.Name
}
