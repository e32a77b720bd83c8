package service

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/set-night/paygate/internal/config"
	"github.com/set-night/paygate/internal/domain"
)

// SweepResult counts what a single sweep did.
type SweepResult struct {
	Due          int
	Deferred     int
	Revoked      int
	RevokeFailed int
	Reconciled   int
	StoreFailed  int
}

// Reconciler removes channel access for expired subscriptions.
type Reconciler struct {
	store     OrderStore
	access    AccessControl
	messenger Messenger
	events    EventLog
	guard     *OrderGuard
	lg        *zap.Logger

	expired      metric.Int64Counter
	revokeFailed metric.Int64Counter
}

func NewReconciler(
	store OrderStore,
	access AccessControl,
	messenger Messenger,
	events EventLog,
	guard *OrderGuard,
	lg *zap.Logger,
	mp metric.MeterProvider,
) (*Reconciler, error) {
	if events == nil {
		events = nopEventLog{}
	}
	if guard == nil {
		guard = NewOrderGuard()
	}
	meter := mp.Meter("paygate/reconciler")
	expired, err := meter.Int64Counter("paygate.expiry.reconciled",
		metric.WithDescription("Orders moved to EXPIRED"))
	if err != nil {
		return nil, errors.Wrap(err, "expired counter")
	}
	revokeFailed, err := meter.Int64Counter("paygate.expiry.revoke_failed",
		metric.WithDescription("Access removals that failed during a sweep"))
	if err != nil {
		return nil, errors.Wrap(err, "revoke failed counter")
	}
	return &Reconciler{
		store:        store,
		access:       access,
		messenger:    messenger,
		events:       events,
		guard:        guard,
		lg:           lg.Named("reconciler"),
		expired:      expired,
		revokeFailed: revokeFailed,
	}, nil
}

// Sweep expires every order due at now. A failure for one subscriber never stops the
// sweep; only listing errors and cancellation end it early. Orders held by the
// dispatcher are deferred to the next sweep.
func (r *Reconciler) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult

	due, err := r.store.ListDueForExpiry(ctx, now)
	if err != nil {
		return res, errors.Wrap(err, "list due for expiry")
	}
	res.Due = len(due)

	for i := range due {
		if err := ctx.Err(); err != nil {
			r.lg.Warn("Sweep interrupted", zap.Int("done", i), zap.Int("due", res.Due))
			return res, err
		}
		if !r.guard.TryAcquire(due[i].ID) {
			res.Deferred++
			continue
		}
		r.expire(ctx, &due[i], now, &res)
		r.guard.Release(due[i].ID)
	}

	if res.Due > 0 {
		r.lg.Info("Sweep finished",
			zap.Int("due", res.Due),
			zap.Int("deferred", res.Deferred),
			zap.Int("revoked", res.Revoked),
			zap.Int("revoke_failed", res.RevokeFailed),
			zap.Int("reconciled", res.Reconciled),
			zap.Int("store_failed", res.StoreFailed),
		)
	}
	return res, nil
}

func (r *Reconciler) expire(ctx context.Context, o *domain.Order, now time.Time, res *SweepResult) {
	lg := r.lg.With(zap.String("order_id", o.ID), zap.Int64("subscriber_id", o.SubscriberID))

	revoked := true
	if err := r.revoke(ctx, o.SubscriberID); err != nil {
		revoked = false
		res.RevokeFailed++
		r.revokeFailed.Add(ctx, 1)
		lg.Warn("Access not revoked",
			zap.Error(&domain.ExternalServiceError{Op: "revoke access", SubscriberID: o.SubscriberID, Err: err}))
	} else {
		res.Revoked++
	}

	if err := r.send(ctx, o.SubscriberID, expiryNoticeText(revoked)); err != nil {
		lg.Warn("Expiry notice not delivered",
			zap.Error(&domain.ExternalServiceError{Op: "send expiry notice", SubscriberID: o.SubscriberID, Err: err}))
	}

	updated, changed, err := r.store.MarkReconciled(ctx, o.ID, now)
	if err != nil {
		res.StoreFailed++
		lg.Error("Mark reconciled failed", zap.Error(err))
		r.events.LogError(err, "reconcile "+o.ID)
		return
	}
	if changed {
		res.Reconciled++
		r.expired.Add(ctx, 1)
		r.events.LogExpiry(updated, revoked)
	}
}

func (r *Reconciler) revoke(ctx context.Context, subscriberID int64) error {
	ctx, cancel := context.WithTimeout(ctx, config.ExternalCallTimeout)
	defer cancel()
	return r.access.RevokeAccess(ctx, subscriberID)
}

func (r *Reconciler) send(ctx context.Context, subscriberID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, config.ExternalCallTimeout)
	defer cancel()
	return r.messenger.SendMessage(ctx, subscriberID, text)
}
