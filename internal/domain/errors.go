package domain

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrOrderNotFound     = errors.New("order not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid order transition")
	ErrConcurrentUpdate  = errors.New("order changed concurrently")
	ErrPlanNotFound      = errors.New("plan not found")
)

// InvalidTransitionError reports an event that does not match the order's current state.
type InvalidTransitionError struct {
	OrderID string
	From    OrderState
	Event   Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot apply %s in state %s", e.OrderID, e.Event, e.From)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ExternalServiceError wraps a failed call to the access control or messaging collaborator.
// It is recorded and counted, never returned to the caller of a state transition.
type ExternalServiceError struct {
	Op           string
	SubscriberID int64
	Err          error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s for subscriber %d: %v", e.Op, e.SubscriberID, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
