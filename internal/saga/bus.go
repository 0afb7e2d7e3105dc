package saga

import (
	"context"
	"sync"
	"time"
)

// Signal is an order status announcement delivered over the in-process bus.
type Signal struct {
	OrderID string
	Status  string
}

// Topic names the per-order wait channel.
func Topic(orderID string) string { return "order-updated-" + orderID }

// Bus is a best-effort, in-process signal rail. Publish wakes at most one
// waiter and drops the signal when nobody is waiting; the saga's reconcile
// pass covers anything dropped, so the bus never needs to buffer history.
type Bus struct {
	mu      sync.Mutex
	waiters map[string][]chan Signal
}

func NewBus() *Bus { return &Bus{waiters: make(map[string][]chan Signal)} }

// Publish hands the signal to the oldest waiter on the topic. Returns whether
// anyone received it.
func (b *Bus) Publish(topic string, sig Signal) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.waiters[topic]
	if len(q) == 0 {
		return false
	}
	ch := q[0]
	if len(q) == 1 {
		delete(b.waiters, topic)
	} else {
		b.waiters[topic] = q[1:]
	}
	ch <- sig
	return true
}

// Wait blocks for the next signal on the topic. The second return is false
// when the timeout lapsed or the context ended first.
func (b *Bus) Wait(ctx context.Context, topic string, timeout time.Duration) (Signal, bool) {
	ch := make(chan Signal, 1)

	b.mu.Lock()
	b.waiters[topic] = append(b.waiters[topic], ch)
	b.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case sig := <-ch:
		return sig, true
	case <-timer.C:
	case <-ctx.Done():
	}

	b.drop(topic, ch)
	// A publish may have slipped in between the timeout and deregistering.
	select {
	case sig := <-ch:
		return sig, true
	default:
		return Signal{}, false
	}
}

func (b *Bus) drop(topic string, ch chan Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.waiters[topic]
	for i := range q {
		if q[i] == ch {
			b.waiters[topic] = append(q[:i], q[i+1:]...)
			break
		}
	}
	if len(b.waiters[topic]) == 0 {
		delete(b.waiters, topic)
	}
}
