// Package orders implements the shop side of order orchestration: it
// publishes order requests to the fulfillment queue, tracks in-flight
// orders by correlation id, consumes completions, and turns the async
// exchange into a synchronous-looking wait for the HTTP handler.
package orders

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shopmesh/orderflow/internal/pkg/wire"
)

var (
	// ErrAwaitTimeout means no completion arrived within the deadline.
	// The order may or may not have been persisted by fulfillment; with
	// fire-and-forget messaging and no read-back there is no way to tell.
	ErrAwaitTimeout = errors.New("timed out waiting for order completion")

	// ErrUnknownOrder means the correlation id is not tracked by this
	// process (never submitted here, or already evicted).
	ErrUnknownOrder = errors.New("unknown order")

	errAlreadyTracked = errors.New("correlation id already tracked")
)

// Status is the lifecycle of a tracked order. The only legal transition
// is pending to completed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Order is a point-in-time snapshot of a tracked order, safe to hand to
// callers without further locking.
type Order struct {
	CorrelationID string
	Requester     string
	Status        Status
	Items         []wire.Item
	TotalPrice    float64
	CreatedAt     time.Time
}

type entry struct {
	order Order
	done  chan struct{} // closed exactly once, when the completion lands
}

// Tracker is the in-process table of in-flight orders. It is mutated from
// the HTTP handling goroutines (register, await) and from the completion
// consumer goroutine (complete), so all access goes through one mutex;
// entries are short-lived and contention is low.
type Tracker struct {
	mu          sync.Mutex
	entries     map[string]*entry
	waitTimeout time.Duration
}

func NewTracker(waitTimeout time.Duration) *Tracker {
	return &Tracker{
		entries:     make(map[string]*entry),
		waitTimeout: waitTimeout,
	}
}

// Register inserts a pending entry. Must happen before the request is
// published so a completion can never arrive ahead of its entry.
func (t *Tracker) Register(correlationID, requester string, items []wire.Item) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[correlationID]; exists {
		return errAlreadyTracked
	}
	t.entries[correlationID] = &entry{
		order: Order{
			CorrelationID: correlationID,
			Requester:     requester,
			Status:        StatusPending,
			Items:         items,
			CreatedAt:     time.Now(),
		},
		done: make(chan struct{}),
	}
	return nil
}

// Complete merges a completion payload into the tracked entry, flips it
// to completed, and wakes every waiter. Completions for unknown ids and
// broker redeliveries of an already-applied completion are no-ops; the
// bool reports whether the id was known.
func (t *Tracker) Complete(msg wire.CompletionMessage) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[msg.CorrelationID]
	if !ok {
		return false
	}
	if e.order.Status == StatusCompleted {
		return true
	}

	e.order.Status = StatusCompleted
	e.order.Requester = msg.Requester
	e.order.Items = msg.Items
	e.order.TotalPrice = msg.TotalPrice
	close(e.done)
	return true
}

// Get returns a snapshot of the tracked order.
func (t *Tracker) Get(correlationID string) (Order, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[correlationID]
	if !ok {
		return Order{}, false
	}
	return snapshot(e), true
}

// Await blocks until the order completes, the wait timeout elapses, or
// ctx is cancelled. The entry is evicted on timeout and cancellation so
// abandoned orders do not accumulate.
func (t *Tracker) Await(ctx context.Context, correlationID string) (Order, error) {
	t.mu.Lock()
	e, ok := t.entries[correlationID]
	t.mu.Unlock()
	if !ok {
		return Order{}, ErrUnknownOrder
	}

	timer := time.NewTimer(t.waitTimeout)
	defer timer.Stop()

	select {
	case <-e.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return snapshot(e), nil
	case <-timer.C:
		t.Evict(correlationID)
		return Order{}, ErrAwaitTimeout
	case <-ctx.Done():
		t.Evict(correlationID)
		return Order{}, ctx.Err()
	}
}

// Evict removes the entry. Idempotent.
func (t *Tracker) Evict(correlationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, correlationID)
}

// Len reports the number of tracked orders.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// RunJanitor sweeps entries nobody is waiting on anymore: anything older
// than twice the wait timeout has either been answered or abandoned.
// Blocks until ctx is cancelled.
func (t *Tracker) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(t.waitTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.sweep(2 * t.waitTimeout); n > 0 {
				slog.Info("evicted stale tracked orders", "count", n)
			}
		}
	}
}

func (t *Tracker) sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted int
	for id, e := range t.entries {
		if e.order.CreatedAt.Before(cutoff) {
			delete(t.entries, id)
			evicted++
		}
	}
	return evicted
}

func snapshot(e *entry) Order {
	o := e.order
	o.Items = append([]wire.Item(nil), e.order.Items...)
	return o
}
