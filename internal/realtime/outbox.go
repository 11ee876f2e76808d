package realtime

import (
	"context"
	"sync"
)

// outbox is an unbounded FIFO drained by a single goroutine. push never blocks,
// so it is safe to call while holding the store or registry lock.
type outbox[T any] struct {
	mu    sync.Mutex
	items []T
	ready chan struct{}
}

func newOutbox[T any]() *outbox[T] {
	return &outbox[T]{ready: make(chan struct{}, 1)}
}

func (o *outbox[T]) push(item T) {
	o.mu.Lock()
	o.items = append(o.items, item)
	o.mu.Unlock()

	select {
	case o.ready <- struct{}{}:
	default:
	}
}

func (o *outbox[T]) drain() []T {
	o.mu.Lock()
	defer o.mu.Unlock()
	items := o.items
	o.items = nil
	return items
}

func (o *outbox[T]) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}

// run hands items to fn in push order until ctx is done, then flushes what is left.
func (o *outbox[T]) run(ctx context.Context, fn func(T)) {
	for {
		select {
		case <-ctx.Done():
			for _, item := range o.drain() {
				fn(item)
			}
			return
		case <-o.ready:
			for _, item := range o.drain() {
				fn(item)
			}
		}
	}
}
