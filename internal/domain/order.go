package domain

import (
	"encoding/json"
	"time"
)

type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderPaid    OrderStatus = "paid"
	OrderFailed  OrderStatus = "failed"
)

// ResultCodeSuccess is the gateway result code for a completed payment.
const ResultCodeSuccess = 0

// Order is one payment attempt. OrderID is the caller-facing key and never
// changes once stored.
type Order struct {
	OrderID      string
	RequestID    string
	UserID       string
	PlanID       string
	Period       Period
	Amount       int64
	OrderInfo    string
	PayURL       string
	TransID      string
	Status       OrderStatus
	RawCreateRes json.RawMessage
	RawIPN       json.RawMessage
	RawQuery     json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderPaid, OrderFailed:
		return true
	}
	return false
}

func (s OrderStatus) Final() bool {
	return s == OrderPaid || s == OrderFailed
}

// NextStatus is the whole state machine. Final states absorb every input, so
// replaying a callback any number of times ends in the same state.
func NextStatus(current OrderStatus, resultCode int) (OrderStatus, bool) {
	if current.Final() {
		return current, false
	}
	if resultCode == ResultCodeSuccess {
		return OrderPaid, true
	}
	return OrderFailed, true
}

// Resolve applies a gateway result to the order and reports whether it moved.
func (o *Order) Resolve(resultCode int, transID string) bool {
	next, changed := NextStatus(o.Status, resultCode)
	if !changed {
		return false
	}
	o.Status = next
	if next == OrderPaid && transID != "" {
		o.TransID = transID
	}
	return true
}

// Fail moves a pending order to failed regardless of the reported result.
func (o *Order) Fail() bool {
	if o.Status.Final() {
		return false
	}
	o.Status = OrderFailed
	return true
}

// IsInProgress reports gateway query codes that mean the customer has not
// finished paying yet.
func IsInProgress(resultCode int) bool {
	switch resultCode {
	case 1000, 7000, 7002, 9000:
		return true
	}
	return false
}

// IsTerminalFailure reports gateway query codes that close the payment for
// good: declined, cancelled, expired or rejected by the customer's wallet.
// Any other non-zero code may be a gateway-side condition and says nothing
// final about the customer's payment.
func IsTerminalFailure(resultCode int) bool {
	switch resultCode {
	case 1001, 1002, 1003, 1004, 1005, 1006, 1007, 1017, 1026, 4001, 4100:
		return true
	}
	return false
}
