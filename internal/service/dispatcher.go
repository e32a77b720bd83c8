package service

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/set-night/paygate/internal/config"
	"github.com/set-night/paygate/internal/domain"
)

type DispatcherOptions struct {
	Workers    int
	QueueSize  int
	StuckAfter time.Duration
	// Guard is shared with the Reconciler. A private guard is used when nil.
	Guard *OrderGuard
}

// Dispatcher delivers the join link for paid orders and marks them NOTIFIED.
// Orders arrive through Enqueue right after payment; Backfill catches whatever the
// queue dropped or a restart lost.
type Dispatcher struct {
	store     OrderStore
	access    AccessControl
	messenger Messenger
	events    EventLog
	lg        *zap.Logger

	queue      chan string
	workers    int
	stuckAfter time.Duration
	guard      *OrderGuard
	now        Clock

	notified    metric.Int64Counter
	grantFailed metric.Int64Counter
	sendFailed  metric.Int64Counter
}

func NewDispatcher(
	store OrderStore,
	access AccessControl,
	messenger Messenger,
	events EventLog,
	opts DispatcherOptions,
	lg *zap.Logger,
	mp metric.MeterProvider,
) (*Dispatcher, error) {
	if events == nil {
		events = nopEventLog{}
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Guard == nil {
		opts.Guard = NewOrderGuard()
	}

	meter := mp.Meter("paygate/dispatcher")
	notified, err := meter.Int64Counter("paygate.notify.sent",
		metric.WithDescription("Orders moved to NOTIFIED"))
	if err != nil {
		return nil, errors.Wrap(err, "notified counter")
	}
	grantFailed, err := meter.Int64Counter("paygate.notify.grant_failed",
		metric.WithDescription("Invite links that could not be created"))
	if err != nil {
		return nil, errors.Wrap(err, "grant failed counter")
	}
	sendFailed, err := meter.Int64Counter("paygate.notify.send_failed",
		metric.WithDescription("Payment notifications that could not be delivered"))
	if err != nil {
		return nil, errors.Wrap(err, "send failed counter")
	}

	return &Dispatcher{
		store:       store,
		access:      access,
		messenger:   messenger,
		events:      events,
		lg:          lg.Named("dispatcher"),
		queue:       make(chan string, opts.QueueSize),
		workers:     opts.Workers,
		stuckAfter:  opts.StuckAfter,
		guard:       opts.Guard,
		now:         time.Now,
		notified:    notified,
		grantFailed: grantFailed,
		sendFailed:  sendFailed,
	}, nil
}

// Enqueue schedules o for notification without blocking. It reports false when the
// queue is full.
func (d *Dispatcher) Enqueue(o domain.Order) bool {
	select {
	case d.queue <- o.ID:
		return true
	default:
		return false
	}
}

// Run drains the queue until ctx is done, dispatching with at most Workers at a time.
func (d *Dispatcher) Run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(d.workers)

	d.lg.Info("Dispatcher started", zap.Int("workers", d.workers))
	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			d.lg.Info("Dispatcher stopped")
			return nil
		case orderID := <-d.queue:
			g.Go(func() error {
				if _, err := d.Dispatch(ctx, orderID); err != nil {
					d.lg.Error("Dispatch failed", zap.String("order_id", orderID), zap.Error(err))
				}
				return nil
			})
		}
	}
}

// Dispatch notifies the subscriber of a PAID order and moves it to NOTIFIED.
// Orders in any other state, already due for expiry, or held by another worker or
// the reconciler are skipped. The invite and the message are best-effort;
// MarkNotified is attempted regardless.
func (d *Dispatcher) Dispatch(ctx context.Context, orderID string) (bool, error) {
	if !d.guard.TryAcquire(orderID) {
		return false, nil
	}
	defer d.guard.Release(orderID)

	o, err := d.store.GetOrder(ctx, orderID)
	if err != nil {
		return false, errors.Wrap(err, "get order")
	}
	if !d.deliverable(o) {
		return false, nil
	}

	lg := d.lg.With(zap.String("order_id", o.ID), zap.Int64("subscriber_id", o.SubscriberID))

	invite, err := d.grant(ctx, o.SubscriberID)
	if err != nil {
		extErr := &domain.ExternalServiceError{Op: "grant access", SubscriberID: o.SubscriberID, Err: err}
		d.grantFailed.Add(ctx, 1)
		lg.Warn("Invite link unavailable", zap.Error(extErr))
		d.events.LogAccessFailure(o, extErr)
		invite = ""
	}

	// Another process may have expired the order while the invite was created.
	// The link has not left this process yet, so withholding it is enough.
	current, err := d.store.GetOrder(ctx, orderID)
	if err != nil {
		return false, errors.Wrap(err, "recheck order")
	}
	if !d.deliverable(current) {
		lg.Warn("Order changed while granting access, invite withheld", zap.String("state", string(current.State)))
		return false, nil
	}

	if err := d.send(ctx, o.SubscriberID, paymentReceivedText(o, invite)); err != nil {
		extErr := &domain.ExternalServiceError{Op: "send payment notice", SubscriberID: o.SubscriberID, Err: err}
		d.sendFailed.Add(ctx, 1)
		lg.Warn("Payment notice not delivered", zap.Error(extErr))
	}

	_, changed, err := d.store.MarkNotified(ctx, orderID)
	if err != nil {
		err = errors.Wrap(err, "mark notified")
		d.events.LogError(err, "dispatch "+orderID)
		return false, err
	}
	if changed {
		d.notified.Add(ctx, 1)
		lg.Info("Order notified", zap.Bool("invite", invite != ""))
	}
	return changed, nil
}

// Backfill dispatches PAID orders that have waited longer than StuckAfter.
func (d *Dispatcher) Backfill(ctx context.Context, now time.Time) (int, error) {
	stuck, err := d.store.ListStuckPaid(ctx, now.Add(-d.stuckAfter))
	if err != nil {
		return 0, errors.Wrap(err, "list stuck paid")
	}

	var dispatched int
	for _, o := range stuck {
		if err := ctx.Err(); err != nil {
			return dispatched, err
		}
		changed, err := d.Dispatch(ctx, o.ID)
		if err != nil {
			d.lg.Error("Backfill dispatch failed", zap.String("order_id", o.ID), zap.Error(err))
			continue
		}
		if changed {
			dispatched++
		}
	}
	if dispatched > 0 {
		d.lg.Info("Backfill notified stuck orders", zap.Int("count", dispatched))
	}
	return dispatched, nil
}

// deliverable reports whether o still waits for its join link.
func (d *Dispatcher) deliverable(o *domain.Order) bool {
	return o.State == domain.OrderStatePaid && !o.DueForExpiry(d.now().UTC())
}

func (d *Dispatcher) grant(ctx context.Context, subscriberID int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, config.ExternalCallTimeout)
	defer cancel()
	return d.access.GrantOneTimeAccess(ctx, subscriberID)
}

func (d *Dispatcher) send(ctx context.Context, subscriberID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, config.ExternalCallTimeout)
	defer cancel()
	return d.messenger.SendMessage(ctx, subscriberID, text)
}
