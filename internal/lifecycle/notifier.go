package lifecycle

import (
	"sync"
	"time"

	"github.com/lamiti/shopsync/internal/types"
)

// StatusEvent describes one status transition for observers.
type StatusEvent struct {
	OrderID   string
	OldStatus types.OrderStatus
	NewStatus types.OrderStatus
	Note      string
	At        time.Time
}

// Notifier is an explicit observer registry for status-change events.
// Fan-out is synchronous on the transitioning goroutine.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]func(StatusEvent)
}

// NewNotifier creates an empty observer registry.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]func(StatusEvent))}
}

// Subscribe registers an observer and returns its removal function.
// Unsubscribing twice is harmless.
func (n *Notifier) Subscribe(fn func(StatusEvent)) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	n.subs[id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

func (n *Notifier) notify(ev StatusEvent) {
	n.mu.Lock()
	fns := make([]func(StatusEvent), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
