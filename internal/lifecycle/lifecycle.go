// Package lifecycle validates and applies order status transitions,
// maintains the append-only audit history, and fans out status-change
// events to registered observers.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/lamiti/shopsync/internal/types"
)

var (
	// ErrInvalidTransition is returned when the requested status change
	// violates the state machine. The order is left untouched.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrEmptyCart is returned by CreateOrder for an empty cart snapshot.
	ErrEmptyCart = errors.New("cart is empty")
)

// transitions maps each status to the states reachable from it.
// delivered and cancelled are terminal: orders there are immutable to
// preserve audit integrity.
var transitions = map[types.OrderStatus][]types.OrderStatus{
	types.StatusPending:   {types.StatusConfirmed, types.StatusCancelled},
	types.StatusConfirmed: {types.StatusShipped, types.StatusCancelled},
	types.StatusShipped:   {types.StatusDelivered, types.StatusCancelled},
	types.StatusDelivered: {},
	types.StatusCancelled: {},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to types.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition applies a validated status change to the order in place.
//
// On success it sets Status, appends a StatusChange to StatusHistory,
// appends a status_change entry to Updates, bumps LastUpdate, and
// notifies subscribed observers synchronously. Prior history entries are
// never rewritten. On failure the order is not mutated.
func (l *Lifecycle) Transition(order *types.Order, newStatus types.OrderStatus, note string) error {
	if !newStatus.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, newStatus)
	}
	if order.Status.Terminal() {
		return fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, order.ID, order.Status)
	}
	if !CanTransition(order.Status, newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, newStatus)
	}

	now := l.now()
	oldStatus := order.Status
	if note == "" {
		note = fmt.Sprintf("Status changed from %q to %q", oldStatus, newStatus)
	}

	order.Status = newStatus
	order.StatusHistory = append(order.StatusHistory, types.StatusChange{
		Status:    newStatus,
		Timestamp: now,
		Note:      note,
	})
	order.Updates = append(order.Updates, types.OrderUpdate{
		Type:      types.UpdateTypeStatusChange,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Timestamp: now,
		Message:   note,
	})
	order.LastUpdate = now

	l.notifier.notify(StatusEvent{
		OrderID:   order.ID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Note:      note,
		At:        now,
	})

	return nil
}

// Lifecycle owns the order state machine and its observer registry.
// The zero value is not usable; construct with New.
type Lifecycle struct {
	notifier *Notifier
	now      func() time.Time
}

// New creates a Lifecycle with its own observer registry.
func New() *Lifecycle {
	return &Lifecycle{
		notifier: NewNotifier(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe registers an observer invoked synchronously on every
// successful transition. The returned function removes the observer.
func (l *Lifecycle) Subscribe(fn func(StatusEvent)) (unsubscribe func()) {
	return l.notifier.Subscribe(fn)
}
