package service

import (
	"context"
	"time"

	"github.com/set-night/paygate/internal/domain"
)

// OrderStore persists orders. Transition methods are atomic per call and return
// changed=false with the stored record when the transition was already applied.
type OrderStore interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	MarkPaid(ctx context.Context, orderID string, paidAt time.Time) (*domain.Order, bool, error)
	MarkNotified(ctx context.Context, orderID string) (*domain.Order, bool, error)
	MarkReconciled(ctx context.Context, orderID string, now time.Time) (*domain.Order, bool, error)
	ListDueForExpiry(ctx context.Context, now time.Time) ([]domain.Order, error)
	ListStuckPaid(ctx context.Context, paidBefore time.Time) ([]domain.Order, error)
	ListBySubscriber(ctx context.Context, subscriberID int64, limit int) ([]domain.Order, error)
	CountByState(ctx context.Context) (map[domain.OrderState]int64, error)
}

// AccessControl manages membership of the gated channel.
type AccessControl interface {
	// GrantOneTimeAccess returns a single-use invite for the subscriber.
	GrantOneTimeAccess(ctx context.Context, subscriberID int64) (string, error)
	// RevokeAccess removes the subscriber without leaving a permanent ban.
	RevokeAccess(ctx context.Context, subscriberID int64) error
}

type Messenger interface {
	SendMessage(ctx context.Context, subscriberID int64, text string) error
}

// EventLog mirrors notable business events to operators.
type EventLog interface {
	LogPayment(o *domain.Order)
	LogAccessFailure(o *domain.Order, err error)
	LogExpiry(o *domain.Order, revoked bool)
	LogError(err error, where string)
}

type nopEventLog struct{}

func (nopEventLog) LogPayment(*domain.Order)              {}
func (nopEventLog) LogAccessFailure(*domain.Order, error) {}
func (nopEventLog) LogExpiry(*domain.Order, bool)         {}
func (nopEventLog) LogError(error, string)                {}

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time
