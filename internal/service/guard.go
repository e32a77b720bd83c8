package service

import "sync"

// OrderGuard serializes work on a single order between the dispatcher and the
// reconciler running in the same process. A held order is skipped, never waited on.
type OrderGuard struct {
	held sync.Map
}

func NewOrderGuard() *OrderGuard {
	return &OrderGuard{}
}

// TryAcquire reports whether the caller now holds orderID.
func (g *OrderGuard) TryAcquire(orderID string) bool {
	_, busy := g.held.LoadOrStore(orderID, struct{}{})
	return !busy
}

func (g *OrderGuard) Release(orderID string) {
	g.held.Delete(orderID)
}
