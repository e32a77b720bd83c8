package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/set-night/paygate/internal/domain"
	"github.com/set-night/paygate/internal/repository/sqlc"
	"github.com/set-night/paygate/internal/service"
)

const uniqueViolation = "23505"

var _ service.OrderStore = (*OrderRepository)(nil)

// OrderRepository is the PostgreSQL order store. Each state transition runs in its own
// transaction: the row is locked, the lifecycle is evaluated, and the update is guarded
// by the state that was read.
type OrderRepository struct {
	db      *pgxpool.Pool
	queries *sqlc.Queries
}

func NewOrderRepository(db *pgxpool.Pool, queries *sqlc.Queries) *OrderRepository {
	return &OrderRepository{db: db, queries: queries}
}

func (r *OrderRepository) CreateOrder(ctx context.Context, o *domain.Order) error {
	err := r.queries.CreateOrder(ctx, sqlc.CreateOrderParams{
		OrderID:      o.ID,
		SubscriberID: o.SubscriberID,
		PlanID:       int32(o.Plan.ID),
		PlanName:     o.Plan.Name,
		PlanDays:     int32(o.Plan.DurationDays),
		Amount:       o.Amount,
		State:        string(o.State),
		PayReference: o.PayReference,
		CreatedAt:    toTimestamptz(o.CreatedAt),
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateOrder
		}
		return errors.Wrapf(err, "create order %s", o.ID)
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	row, err := r.queries.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, errors.Wrapf(err, "get order %s", orderID)
	}
	return rowToOrder(row), nil
}

func (r *OrderRepository) MarkPaid(ctx context.Context, orderID string, paidAt time.Time) (*domain.Order, bool, error) {
	return r.transition(ctx, orderID, domain.EventPaymentConfirmed, paidAt)
}

func (r *OrderRepository) MarkNotified(ctx context.Context, orderID string) (*domain.Order, bool, error) {
	return r.transition(ctx, orderID, domain.EventNotified, time.Now())
}

func (r *OrderRepository) MarkReconciled(ctx context.Context, orderID string, now time.Time) (*domain.Order, bool, error) {
	return r.transition(ctx, orderID, domain.EventExpired, now)
}

func (r *OrderRepository) ListDueForExpiry(ctx context.Context, now time.Time) ([]domain.Order, error) {
	rows, err := r.queries.ListDueForExpiry(ctx, toTimestamptz(now))
	if err != nil {
		return nil, errors.Wrap(err, "list due for expiry")
	}
	return rowsToOrders(rows), nil
}

func (r *OrderRepository) ListStuckPaid(ctx context.Context, paidBefore time.Time) ([]domain.Order, error) {
	rows, err := r.queries.ListStuckPaid(ctx, toTimestamptz(paidBefore))
	if err != nil {
		return nil, errors.Wrap(err, "list stuck paid")
	}
	return rowsToOrders(rows), nil
}

func (r *OrderRepository) ListBySubscriber(ctx context.Context, subscriberID int64, limit int) ([]domain.Order, error) {
	rows, err := r.queries.ListOrdersBySubscriber(ctx, sqlc.ListOrdersBySubscriberParams{
		SubscriberID: subscriberID,
		Limit:        int32(limit),
	})
	if err != nil {
		return nil, errors.Wrap(err, "list orders by subscriber")
	}
	return rowsToOrders(rows), nil
}

func (r *OrderRepository) CountByState(ctx context.Context) (map[domain.OrderState]int64, error) {
	rows, err := r.queries.CountOrdersByState(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "count orders by state")
	}
	counts := make(map[domain.OrderState]int64, len(rows))
	for _, row := range rows {
		counts[domain.OrderState(row.State)] = row.Total
	}
	return counts, nil
}

func (r *OrderRepository) transition(ctx context.Context, orderID string, ev domain.Event, at time.Time) (*domain.Order, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	qtx := r.queries.WithTx(tx)

	row, err := qtx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, domain.ErrOrderNotFound
		}
		return nil, false, errors.Wrap(err, "lock order")
	}

	current := rowToOrder(row)
	next, changed, err := current.Apply(ev, at)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return current, false, nil
	}

	n, err := qtx.UpdateOrderTransition(ctx, sqlc.UpdateOrderTransitionParams{
		OrderID:       orderID,
		State:         string(next.State),
		Notified:      next.Notified,
		Reconciled:    next.Reconciled,
		PaidAt:        toNullableTimestamptz(next.PaidAt),
		ExpiryAt:      toNullableTimestamptz(next.ExpiryAt),
		ExpectedState: string(current.State),
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "update order %s", orderID)
	}
	if n == 0 {
		return nil, false, domain.ErrConcurrentUpdate
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, errors.Wrap(err, "commit")
	}
	return &next, true, nil
}

// rowToOrder converts a sqlc-generated row to a domain.Order. The plan price is the
// amount snapshotted at creation.
func rowToOrder(row sqlc.Order) *domain.Order {
	return &domain.Order{
		ID:           row.OrderID,
		SubscriberID: row.SubscriberID,
		Plan: domain.Plan{
			ID:           int(row.PlanID),
			Name:         row.PlanName,
			DurationDays: int(row.PlanDays),
			Price:        row.Amount,
		},
		Amount:       row.Amount,
		State:        domain.OrderState(row.State),
		PayReference: row.PayReference,
		Notified:     row.Notified,
		Reconciled:   row.Reconciled,
		CreatedAt:    fromTimestamptz(row.CreatedAt),
		PaidAt:       fromNullableTimestamptz(row.PaidAt),
		ExpiryAt:     fromNullableTimestamptz(row.ExpiryAt),
	}
}

func rowsToOrders(rows []sqlc.Order) []domain.Order {
	orders := make([]domain.Order, len(rows))
	for i, row := range rows {
		orders[i] = *rowToOrder(row)
	}
	return orders
}
