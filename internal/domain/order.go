package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderState string

const (
	OrderStatePending  OrderState = "PENDING"
	OrderStatePaid     OrderState = "PAID"
	OrderStateNotified OrderState = "NOTIFIED"
	OrderStateExpired  OrderState = "EXPIRED"
)

// rank orders states along the only legal path; transitions never decrease it.
func (s OrderState) rank() int {
	switch s {
	case OrderStatePending:
		return 0
	case OrderStatePaid:
		return 1
	case OrderStateNotified:
		return 2
	case OrderStateExpired:
		return 3
	default:
		return -1
	}
}

// Active reports whether the subscription behind the order currently grants access.
func (s OrderState) Active() bool {
	return s == OrderStatePaid || s == OrderStateNotified
}

type Event string

const (
	EventPaymentConfirmed Event = "payment_confirmed"
	EventNotified         Event = "notified"
	EventExpired          Event = "expired"
)

// Order is one subscription purchase attempt. Plan is a snapshot taken at creation.
type Order struct {
	ID           string
	SubscriberID int64
	Plan         Plan
	Amount       decimal.Decimal
	State        OrderState
	PayReference string
	Notified     bool
	Reconciled   bool
	CreatedAt    time.Time
	PaidAt       *time.Time
	ExpiryAt     *time.Time
}

// NewOrder returns a PENDING order for the plan, charged at the plan price.
func NewOrder(id string, subscriberID int64, plan Plan, payReference string, now time.Time) *Order {
	return &Order{
		ID:           id,
		SubscriberID: subscriberID,
		Plan:         plan,
		Amount:       plan.Price,
		State:        OrderStatePending,
		PayReference: payReference,
		CreatedAt:    now,
	}
}

// DueForExpiry reports whether the reconciler should pick the order up at now.
func (o *Order) DueForExpiry(now time.Time) bool {
	return o.State.Active() && !o.Reconciled && o.ExpiryAt != nil && !o.ExpiryAt.After(now)
}

// Apply evaluates ev against the order and returns the resulting order.
// changed is false when ev was already applied; the returned order then equals o.
// o itself is never modified.
func (o Order) Apply(ev Event, at time.Time) (Order, bool, error) {
	next := o
	switch ev {
	case EventPaymentConfirmed:
		switch o.State {
		case OrderStatePending:
			paidAt := at
			expiryAt := paidAt.Add(o.Plan.Duration())
			next.State = OrderStatePaid
			next.PaidAt = &paidAt
			next.ExpiryAt = &expiryAt
			return next, true, nil
		case OrderStatePaid, OrderStateNotified:
			// First confirmation wins; redelivery keeps paid_at and expiry_at.
			return o, false, nil
		}

	case EventNotified:
		switch o.State {
		case OrderStatePaid:
			next.State = OrderStateNotified
			next.Notified = true
			return next, true, nil
		case OrderStateNotified, OrderStateExpired:
			return o, false, nil
		}

	case EventExpired:
		switch o.State {
		case OrderStatePaid, OrderStateNotified:
			if o.ExpiryAt == nil || o.ExpiryAt.After(at) {
				break
			}
			next.State = OrderStateExpired
			next.Reconciled = true
			return next, true, nil
		case OrderStateExpired:
			return o, false, nil
		}
	}

	return o, false, &InvalidTransitionError{OrderID: o.ID, From: o.State, Event: ev}
}
