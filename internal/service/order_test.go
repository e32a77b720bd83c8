package service

import (
	"context"
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/set-night/paygate/internal/domain"
)

func TestNewOrderID(t *testing.T) {
	re := regexp.MustCompile(`^ORDER_[0-9A-F]{12}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewOrderID()
		require.Regexp(t, re, id)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestOrderService_Create(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := NewOrderService(store, testConfig(), zap.NewNop())

	o, err := s.Create(ctx, 1001, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatePending, o.State)
	assert.Equal(t, "Movies+Adult (1 Month)", o.Plan.Name)
	assert.Equal(t, "199.00", o.Amount.StringFixed(2))
	assert.Equal(t, "https://pay.example.com/pay/"+o.ID, o.PayReference)

	stored, err := s.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, *o, *stored)

	_, err = s.Create(ctx, 1001, 42)
	require.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestOrderService_ListAndCount(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := NewOrderService(store, testConfig(), zap.NewNop())

	_, err := s.Create(ctx, 1, 1)
	require.NoError(t, err)
	_, err = s.Create(ctx, 1, 2)
	require.NoError(t, err)
	seedPaid(t, store, "PAID1", 2, t0)

	mine, err := s.ListBySubscriber(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	counts, err := s.CountByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[domain.OrderStatePending])
	assert.Equal(t, int64(1), counts[domain.OrderStatePaid])
}

func TestOrderService_UPILink(t *testing.T) {
	s := NewOrderService(newMemStore(), testConfig(), zap.NewNop())
	plan, err := domain.FindPlan(1)
	require.NoError(t, err)
	o := domain.NewOrder("ORDER_ABC", 1, plan, "", t0)

	link := s.UPILink(o)
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "upi", u.Scheme)
	assert.Equal(t, "pay", u.Host)

	q := u.Query()
	assert.Equal(t, "shop@upi", q.Get("pa"))
	assert.Equal(t, "PremiumShop", q.Get("pn"))
	assert.Equal(t, "ORDER_ABC", q.Get("tr"))
	assert.Equal(t, "99.00", q.Get("am"))
	assert.Equal(t, "INR", q.Get("cu"))
}
