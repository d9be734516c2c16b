package kafka

import (
	"time"

	"movie-membership/internal/domain"
)

const (
	EventPaymentCreated = "payment.created"
	EventPaymentPaid    = "payment.paid"
	EventPaymentFailed  = "payment.failed"
)

type PaymentEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	PlanID     string    `json:"plan_id"`
	Amount     int64     `json:"amount"`
	Status     string    `json:"status"`
	TransID    string    `json:"trans_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewPaymentEvent(eventID string, o *domain.Order, at time.Time) PaymentEvent {
	typ := EventPaymentCreated
	switch o.Status {
	case domain.OrderPaid:
		typ = EventPaymentPaid
	case domain.OrderFailed:
		typ = EventPaymentFailed
	}
	return PaymentEvent{
		EventID:    eventID,
		Type:       typ,
		OrderID:    o.OrderID,
		UserID:     o.UserID,
		PlanID:     o.PlanID,
		Amount:     o.Amount,
		Status:     string(o.Status),
		TransID:    o.TransID,
		OccurredAt: at,
	}
}
