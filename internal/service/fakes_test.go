package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/set-night/paygate/internal/config"
	"github.com/set-night/paygate/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

// memStore is an in-memory OrderStore running the same lifecycle as the database.
type memStore struct {
	mu     sync.Mutex
	orders map[string]domain.Order
	writes int
}

var _ OrderStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{orders: make(map[string]domain.Order)}
}

func (s *memStore) CreateOrder(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return domain.ErrDuplicateOrder
	}
	s.orders[o.ID] = *o
	s.writes++
	return nil
}

func (s *memStore) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (s *memStore) MarkPaid(_ context.Context, orderID string, paidAt time.Time) (*domain.Order, bool, error) {
	return s.apply(orderID, domain.EventPaymentConfirmed, paidAt)
}

func (s *memStore) MarkNotified(_ context.Context, orderID string) (*domain.Order, bool, error) {
	return s.apply(orderID, domain.EventNotified, time.Now())
}

func (s *memStore) MarkReconciled(_ context.Context, orderID string, now time.Time) (*domain.Order, bool, error) {
	return s.apply(orderID, domain.EventExpired, now)
}

func (s *memStore) apply(orderID string, ev domain.Event, at time.Time) (*domain.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, false, domain.ErrOrderNotFound
	}
	next, changed, err := o.Apply(ev, at)
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.orders[orderID] = next
		s.writes++
	}
	return &next, changed, nil
}

func (s *memStore) ListDueForExpiry(_ context.Context, now time.Time) ([]domain.Order, error) {
	return s.filter(func(o *domain.Order) bool { return o.DueForExpiry(now) }), nil
}

func (s *memStore) ListStuckPaid(_ context.Context, paidBefore time.Time) ([]domain.Order, error) {
	return s.filter(func(o *domain.Order) bool {
		return o.State == domain.OrderStatePaid && !o.Notified && o.PaidAt != nil && !o.PaidAt.After(paidBefore)
	}), nil
}

func (s *memStore) ListBySubscriber(_ context.Context, subscriberID int64, limit int) ([]domain.Order, error) {
	orders := s.filter(func(o *domain.Order) bool { return o.SubscriberID == subscriberID })
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *memStore) CountByState(context.Context) (map[domain.OrderState]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.OrderState]int64)
	for _, o := range s.orders {
		counts[o.State]++
	}
	return counts, nil
}

func (s *memStore) filter(keep func(o *domain.Order) bool) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if keep(&o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) state(t *testing.T, orderID string) domain.Order {
	t.Helper()
	o, err := s.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	return *o
}

func (s *memStore) put(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

// fakeAccess records calls and fails for subscribers listed in failFor.
type fakeAccess struct {
	mu      sync.Mutex
	grants  map[int64]int
	revokes map[int64]int
	failFor map[int64]bool
}

func newFakeAccess(failFor ...int64) *fakeAccess {
	f := &fakeAccess{
		grants:  make(map[int64]int),
		revokes: make(map[int64]int),
		failFor: make(map[int64]bool),
	}
	for _, id := range failFor {
		f.failFor[id] = true
	}
	return f
}

func (f *fakeAccess) GrantOneTimeAccess(_ context.Context, subscriberID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[subscriberID]++
	if f.failFor[subscriberID] {
		return "", errors.New("Bad Request: not enough rights to manage chat invite link")
	}
	return "https://t.me/+invite", nil
}

func (f *fakeAccess) RevokeAccess(_ context.Context, subscriberID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokes[subscriberID]++
	if f.failFor[subscriberID] {
		return errors.New("Bad Request: not enough rights to restrict/unrestrict chat member")
	}
	return nil
}

func (f *fakeAccess) grantCount(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grants[id]
}

func (f *fakeAccess) revokeCount(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revokes[id]
}

type sentMessage struct {
	SubscriberID int64
	Text         string
}

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeMessenger) SendMessage(_ context.Context, subscriberID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{SubscriberID: subscriberID, Text: text})
	return f.err
}

func (f *fakeMessenger) messages(subscriberID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		if m.SubscriberID == subscriberID {
			out = append(out, m.Text)
		}
	}
	return out
}

type fakeQueue struct {
	orders []domain.Order
	full   bool
}

func (q *fakeQueue) Enqueue(o domain.Order) bool {
	if q.full {
		return false
	}
	q.orders = append(q.orders, o)
	return true
}

func testConfig() *config.Config {
	return &config.Config{
		WebhookSecret: "s3cret",
		MerchantUPI:   "shop@upi",
		PayeeName:     "PremiumShop",
		PublicURL:     "https://pay.example.com",
	}
}

// seedPaid stores an order for subscriber on plan 1 and marks it paid at paidAt.
func seedPaid(t *testing.T, store *memStore, orderID string, subscriberID int64, paidAt time.Time) domain.Order {
	t.Helper()
	plan, err := domain.FindPlan(1)
	require.NoError(t, err)
	o := domain.NewOrder(orderID, subscriberID, plan, "", paidAt.Add(-time.Minute))
	require.NoError(t, store.CreateOrder(context.Background(), o))
	paid, changed, err := store.MarkPaid(context.Background(), orderID, paidAt)
	require.NoError(t, err)
	require.True(t, changed)
	return *paid
}

func newTestDispatcher(t *testing.T, store OrderStore, access AccessControl, messenger Messenger) *Dispatcher {
	t.Helper()
	return newGuardedDispatcher(t, store, access, messenger, nil)
}

func newGuardedDispatcher(t *testing.T, store OrderStore, access AccessControl, messenger Messenger, guard *OrderGuard) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(store, access, messenger, nil, DispatcherOptions{
		Workers:    2,
		QueueSize:  8,
		StuckAfter: 2 * time.Minute,
		Guard:      guard,
	}, zap.NewNop(), noop.NewMeterProvider())
	require.NoError(t, err)
	d.now = func() time.Time { return t0.Add(10 * time.Minute) }
	return d
}

// hookedAccess runs beforeGrant inside GrantOneTimeAccess, before the invite is returned.
type hookedAccess struct {
	*fakeAccess
	beforeGrant func()
}

func (h *hookedAccess) GrantOneTimeAccess(ctx context.Context, subscriberID int64) (string, error) {
	if h.beforeGrant != nil {
		h.beforeGrant()
	}
	return h.fakeAccess.GrantOneTimeAccess(ctx, subscriberID)
}

// recordingEventLog captures event log calls. LogPayment blocks until release is closed
// when release is set.
type recordingEventLog struct {
	nopEventLog
	mu       sync.Mutex
	payments []string
	errs     []string
	release  chan struct{}
}

func (l *recordingEventLog) LogPayment(o *domain.Order) {
	if l.release != nil {
		<-l.release
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.payments = append(l.payments, o.ID)
}

func (l *recordingEventLog) LogError(_ error, where string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, where)
}

func (l *recordingEventLog) paymentsLogged() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.payments...)
}

func (l *recordingEventLog) errorsLogged() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errs...)
}

// failingStore fails the named transition with err.
type failingStore struct {
	*memStore
	failNotified   error
	failReconciled error
}

func (s *failingStore) MarkNotified(ctx context.Context, orderID string) (*domain.Order, bool, error) {
	if s.failNotified != nil {
		return nil, false, s.failNotified
	}
	return s.memStore.MarkNotified(ctx, orderID)
}

func (s *failingStore) MarkReconciled(ctx context.Context, orderID string, now time.Time) (*domain.Order, bool, error) {
	if s.failReconciled != nil {
		return nil, false, s.failReconciled
	}
	return s.memStore.MarkReconciled(ctx, orderID, now)
}
