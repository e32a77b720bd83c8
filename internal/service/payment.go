package service

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/set-night/paygate/internal/domain"
)

// Enqueuer accepts freshly paid orders for asynchronous notification.
type Enqueuer interface {
	Enqueue(o domain.Order) bool
}

// Confirmation is the outcome of a payment confirmation. Fresh is true only for the
// call that moved the order to PAID.
type Confirmation struct {
	Order *domain.Order
	Fresh bool
}

// PaymentService applies authenticated payment confirmations. The store write is the
// only call Confirm waits on; the operator log and the notification run elsewhere.
type PaymentService struct {
	store    OrderStore
	secret   []byte
	notifier Enqueuer
	events   EventLog
	lg       *zap.Logger
	now      Clock

	confirmed metric.Int64Counter
	rejected  metric.Int64Counter
}

func NewPaymentService(store OrderStore, secret string, notifier Enqueuer, events EventLog, lg *zap.Logger, mp metric.MeterProvider) (*PaymentService, error) {
	if events == nil {
		events = nopEventLog{}
	}
	meter := mp.Meter("paygate/payment")
	confirmed, err := meter.Int64Counter("paygate.payment.confirmed",
		metric.WithDescription("Orders moved to PAID by a payment confirmation"))
	if err != nil {
		return nil, errors.Wrap(err, "confirmed counter")
	}
	rejected, err := meter.Int64Counter("paygate.payment.rejected",
		metric.WithDescription("Confirmations rejected for a bad secret"))
	if err != nil {
		return nil, errors.Wrap(err, "rejected counter")
	}
	return &PaymentService{
		store:     store,
		secret:    []byte(secret),
		notifier:  notifier,
		events:    events,
		lg:        lg.Named("payment"),
		now:       time.Now,
		confirmed: confirmed,
		rejected:  rejected,
	}, nil
}

// Confirm authenticates token and marks the order paid. The token is checked before the
// order is looked up so a caller without the secret learns nothing about order existence.
func (s *PaymentService) Confirm(ctx context.Context, orderID, token string) (*Confirmation, error) {
	if subtle.ConstantTimeCompare([]byte(token), s.secret) != 1 {
		s.rejected.Add(ctx, 1)
		s.lg.Warn("Payment confirmation rejected: bad secret")
		return nil, domain.ErrUnauthorized
	}

	if _, err := s.store.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}

	o, fresh, err := s.store.MarkPaid(ctx, orderID, s.now().UTC())
	if err != nil {
		return nil, errors.Wrap(err, "mark paid")
	}

	lg := s.lg.With(zap.String("order_id", o.ID), zap.Int64("subscriber_id", o.SubscriberID))
	if !fresh {
		lg.Info("Duplicate payment confirmation ignored", zap.String("state", string(o.State)))
		return &Confirmation{Order: o}, nil
	}

	s.confirmed.Add(ctx, 1)
	lg.Info("Payment confirmed", zap.Timep("expiry_at", o.ExpiryAt))
	logged := *o
	go s.events.LogPayment(&logged)

	if s.notifier != nil && !s.notifier.Enqueue(*o) {
		// The backfill scan picks it up once NOTIFY_STUCK_AFTER has passed.
		lg.Warn("Notification queue full, deferring to backfill")
	}
	return &Confirmation{Order: o, Fresh: true}, nil
}
