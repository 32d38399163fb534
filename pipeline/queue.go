package pipeline

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/kbukum/queuekit/errors"
)

// ErrQueueIdle is the cause of the timeout returned when no item arrives
// within the wait window.
var ErrQueueIdle = stderrors.New("queue idle")

// Queue is an unbounded FIFO connecting any number of producers to one consumer.
type Queue struct {
	mu    sync.Mutex
	items []Item
	ready chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Push appends item. It never blocks on capacity.
func (q *Queue) Push(ctx context.Context, item Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.signal()
	return nil
}

// Pop waits until an item is available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (Item, error) {
	return q.pop(ctx, nil)
}

// PopWithin waits at most d for the next item. When the window elapses it
// returns a TIMEOUT AppError whose cause is ErrQueueIdle.
func (q *Queue) PopWithin(ctx context.Context, d time.Duration) (Item, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	return q.pop(ctx, timer.C)
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) pop(ctx context.Context, expired <-chan time.Time) (Item, error) {
	for {
		if item, ok := q.take(); ok {
			return item, nil
		}
		select {
		case <-q.ready:
		case <-expired:
			// an item may have landed together with the deadline
			if item, ok := q.take(); ok {
				return item, nil
			}
			return Item{}, errors.Timeout("queue.pop").WithCause(ErrQueueIdle)
		case <-ctx.Done():
			return Item{}, ctx.Err()
		}
	}
}

func (q *Queue) take() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items[0] = Item{}
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return item, true
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
