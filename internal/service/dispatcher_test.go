package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/set-night/paygate/internal/domain"
)

func TestDispatch_SendsInviteAndMarksNotified(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	access := newFakeAccess()
	messenger := &fakeMessenger{}
	d := newTestDispatcher(t, store, access, messenger)
	seedPaid(t, store, "O1", 1001, t0)

	changed, err := d.Dispatch(ctx, "O1")
	require.NoError(t, err)
	assert.True(t, changed)

	o := store.state(t, "O1")
	assert.Equal(t, domain.OrderStateNotified, o.State)
	assert.True(t, o.Notified)
	assert.Equal(t, 1, access.grantCount(1001))

	msgs := messenger.messages(1001)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Payment received!")
	assert.Contains(t, msgs[0], "O1")
	assert.Contains(t, msgs[0], "2026-03-31 09:30 UTC")
	assert.Contains(t, msgs[0], "https://t.me/+invite")
	assert.NotContains(t, msgs[0], inviteUnavailableNote)
}

func TestDispatch_GrantFailureDegrades(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	messenger := &fakeMessenger{}
	d := newTestDispatcher(t, store, newFakeAccess(1001), messenger)
	seedPaid(t, store, "O1", 1001, t0)

	changed, err := d.Dispatch(ctx, "O1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.OrderStateNotified, store.state(t, "O1").State)

	msgs := messenger.messages(1001)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Payment received!")
	assert.Contains(t, msgs[0], inviteUnavailableNote)
}

func TestDispatch_MessengerFailureStillNotifies(t *testing.T) {
	store := newMemStore()
	messenger := &fakeMessenger{err: errors.New("Forbidden: bot was blocked by the user")}
	d := newTestDispatcher(t, store, newFakeAccess(), messenger)
	seedPaid(t, store, "O1", 1001, t0)

	changed, err := d.Dispatch(context.Background(), "O1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.OrderStateNotified, store.state(t, "O1").State)
}

func TestDispatch_SkipsNonPaid(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	access := newFakeAccess()
	messenger := &fakeMessenger{}
	d := newTestDispatcher(t, store, access, messenger)

	plan, err := domain.FindPlan(1)
	require.NoError(t, err)
	require.NoError(t, store.CreateOrder(ctx, domain.NewOrder("PENDING1", 1, plan, "", t0)))
	seedPaid(t, store, "O1", 1001, t0)
	_, err = d.Dispatch(ctx, "O1")
	require.NoError(t, err)

	for _, id := range []string{"PENDING1", "O1"} {
		changed, err := d.Dispatch(ctx, id)
		require.NoError(t, err)
		assert.False(t, changed, id)
	}

	assert.Equal(t, 1, access.grantCount(1001))
	assert.Zero(t, access.grantCount(1))
	assert.Len(t, messenger.messages(1001), 1)

	_, err = d.Dispatch(ctx, "MISSING")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestDispatch_SkipsInFlight(t *testing.T) {
	store := newMemStore()
	access := newFakeAccess()
	d := newTestDispatcher(t, store, access, &fakeMessenger{})
	seedPaid(t, store, "O1", 1001, t0)

	require.True(t, d.guard.TryAcquire("O1"))
	changed, err := d.Dispatch(context.Background(), "O1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, access.grantCount(1001))
	assert.Equal(t, domain.OrderStatePaid, store.state(t, "O1").State)
}

func TestBackfill(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	access := newFakeAccess()
	d := newTestDispatcher(t, store, access, &fakeMessenger{})
	seedPaid(t, store, "OLD", 1, t0)
	seedPaid(t, store, "FRESH", 2, t0.Add(4*time.Minute))

	n, err := d.Backfill(ctx, t0.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.OrderStateNotified, store.state(t, "OLD").State)
	assert.Equal(t, domain.OrderStatePaid, store.state(t, "FRESH").State)

	n, err = d.Backfill(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, access.grantCount(1))
	assert.Equal(t, 1, access.grantCount(2))
}

func TestDispatcher_RunDrainsQueue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newMemStore()
	d := newTestDispatcher(t, store, newFakeAccess(), &fakeMessenger{})
	o1 := seedPaid(t, store, "O1", 1, t0)
	o2 := seedPaid(t, store, "O2", 2, t0)

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.True(t, d.Enqueue(o1))
	require.True(t, d.Enqueue(o2))

	require.Eventually(t, func() bool {
		return store.state(t, "O1").State == domain.OrderStateNotified &&
			store.state(t, "O2").State == domain.OrderStateNotified
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatcher_EnqueueFull(t *testing.T) {
	store := newMemStore()
	d := newTestDispatcher(t, store, newFakeAccess(), &fakeMessenger{})

	for i := 0; i < 8; i++ {
		require.True(t, d.Enqueue(domain.Order{ID: "O"}))
	}
	assert.False(t, d.Enqueue(domain.Order{ID: "O"}))
}

func TestDispatch_SkipsOrderDueForExpiry(t *testing.T) {
	store := newMemStore()
	access := newFakeAccess()
	messenger := &fakeMessenger{}
	d := newTestDispatcher(t, store, access, messenger)
	d.now = func() time.Time { return t0.Add(31 * 24 * time.Hour) }
	seedPaid(t, store, "O1", 1001, t0)

	changed, err := d.Dispatch(context.Background(), "O1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, access.grantCount(1001))
	assert.Empty(t, messenger.messages(1001))
	assert.Equal(t, domain.OrderStatePaid, store.state(t, "O1").State)
}

func TestDispatch_SweepDuringGrantIsDeferred(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	access := &hookedAccess{fakeAccess: newFakeAccess()}
	messenger := &fakeMessenger{}
	guard := NewOrderGuard()
	d := newGuardedDispatcher(t, store, access, messenger, guard)
	r, err := NewReconciler(store, access, messenger, nil, guard, zap.NewNop(), noop.NewMeterProvider())
	require.NoError(t, err)
	seedPaid(t, store, "O1", 1001, t0)

	expiredAt := t0.Add(31 * 24 * time.Hour)
	var during SweepResult
	access.beforeGrant = func() {
		during, err = r.Sweep(ctx, expiredAt)
		require.NoError(t, err)
	}

	changed, err := d.Dispatch(ctx, "O1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, SweepResult{Due: 1, Deferred: 1}, during)
	assert.Zero(t, access.revokeCount(1001))

	res, err := r.Sweep(ctx, expiredAt)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reconciled)

	assert.Equal(t, 1, access.grantCount(1001))
	assert.Equal(t, 1, access.revokeCount(1001))
	assert.Equal(t, domain.OrderStateExpired, store.state(t, "O1").State)
	msgs := messenger.messages(1001)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "https://t.me/+invite")
	assert.Equal(t, expiryRevokedText, msgs[1])
}

func TestDispatch_ExpiredDuringGrantWithholdsInvite(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	access := &hookedAccess{fakeAccess: newFakeAccess()}
	messenger := &fakeMessenger{}
	d := newTestDispatcher(t, store, access, messenger)
	// Separate guard: the sweep runs as if in another process.
	r, err := NewReconciler(store, access, messenger, nil, nil, zap.NewNop(), noop.NewMeterProvider())
	require.NoError(t, err)
	seedPaid(t, store, "O1", 1001, t0)

	access.beforeGrant = func() {
		res, err := r.Sweep(ctx, t0.Add(31*24*time.Hour))
		require.NoError(t, err)
		require.Equal(t, 1, res.Reconciled)
	}

	changed, err := d.Dispatch(ctx, "O1")
	require.NoError(t, err)
	assert.False(t, changed)

	assert.Equal(t, 1, access.revokeCount(1001))
	assert.Equal(t, domain.OrderStateExpired, store.state(t, "O1").State)
	for _, m := range messenger.messages(1001) {
		assert.NotContains(t, m, "https://t.me/+invite")
	}
}

func TestDispatch_StoreFailureReachesEventLog(t *testing.T) {
	store := &failingStore{memStore: newMemStore(), failNotified: errors.New("conn reset")}
	events := &recordingEventLog{}
	d, err := NewDispatcher(store, newFakeAccess(), &fakeMessenger{}, events, DispatcherOptions{QueueSize: 1}, zap.NewNop(), noop.NewMeterProvider())
	require.NoError(t, err)
	d.now = func() time.Time { return t0.Add(time.Minute) }
	seedPaid(t, store.memStore, "O1", 1001, t0)

	_, err = d.Dispatch(context.Background(), "O1")
	require.Error(t, err)
	assert.Equal(t, []string{"dispatch O1"}, events.errorsLogged())
}
