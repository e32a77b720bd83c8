package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/set-night/paygate/internal/config"
	"github.com/set-night/paygate/internal/domain"
)

type OrderService struct {
	store OrderStore
	cfg   *config.Config
	lg    *zap.Logger
	now   Clock
}

func NewOrderService(store OrderStore, cfg *config.Config, lg *zap.Logger) *OrderService {
	return &OrderService{store: store, cfg: cfg, lg: lg.Named("orders"), now: time.Now}
}

// Create opens a PENDING order for the subscriber on the given plan.
func (s *OrderService) Create(ctx context.Context, subscriberID int64, planID int) (*domain.Order, error) {
	plan, err := domain.FindPlan(planID)
	if err != nil {
		return nil, err
	}

	orderID := NewOrderID()
	o := domain.NewOrder(orderID, subscriberID, plan, s.cfg.PayPageURL(orderID), s.now().UTC())
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.lg.Info("Order created",
		zap.String("order_id", o.ID),
		zap.Int64("subscriber_id", subscriberID),
		zap.Int("plan_id", plan.ID),
		zap.String("amount", o.Amount.StringFixed(2)),
	)
	return o, nil
}

func (s *OrderService) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

func (s *OrderService) ListBySubscriber(ctx context.Context, subscriberID int64) ([]domain.Order, error) {
	return s.store.ListBySubscriber(ctx, subscriberID, config.StatusOrdersLimit)
}

func (s *OrderService) CountByState(ctx context.Context) (map[domain.OrderState]int64, error) {
	return s.store.CountByState(ctx)
}

// UPILink builds the UPI deep link that pays the order.
func (s *OrderService) UPILink(o *domain.Order) string {
	q := url.Values{}
	q.Set("pa", s.cfg.MerchantUPI)
	q.Set("pn", s.cfg.PayeeName)
	q.Set("tr", o.ID)
	q.Set("am", o.Amount.StringFixed(2))
	q.Set("cu", config.Currency)
	return "upi://pay?" + q.Encode()
}

// NewOrderID returns an id of the form ORDER_XXXXXXXXXXXX.
func NewOrderID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("ORDER_%s", strings.ToUpper(hex[:12]))
}
