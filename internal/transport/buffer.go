package transport

import (
	"sync"

	"github.com/eapache/queue"
)

// SendQueue is a thread-safe FIFO that grows as needed up to an optional
// limit. Items come out in the order they went in.
type SendQueue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  *queue.Queue
	limit  int // 0 = unbounded
	closed bool

	// Stats
	totalReceived int64
	totalSent     int64
	dropped       int64
	highWater     int
}

// NewSendQueue creates a queue that holds at most limit items.
// A limit of 0 or less means unbounded.
func NewSendQueue[T any](limit int) *SendQueue[T] {
	if limit < 0 {
		limit = 0
	}
	q := &SendQueue[T]{
		items: queue.New(),
		limit: limit,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Send appends an item. It returns ErrSessionClosed after Close and
// ErrSendQueueFull when the queue is at its limit.
func (q *SendQueue[T]) Send(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrSessionClosed
	}
	if q.limit > 0 && q.items.Length() >= q.limit {
		q.dropped++
		return ErrSendQueueFull
	}

	q.items.Add(item)
	q.totalReceived++
	if n := q.items.Length(); n > q.highWater {
		q.highWater = n
	}

	q.cond.Signal()
	return nil
}

// Receive removes and returns the oldest item, blocking until one is
// available. It returns false once the queue is closed and empty.
func (q *SendQueue[T]) Receive() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Length() == 0 && !q.closed {
		q.cond.Wait()
	}

	return q.popLocked()
}

// TryReceive is Receive without blocking.
func (q *SendQueue[T]) TryReceive() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

func (q *SendQueue[T]) popLocked() (T, bool) {
	if q.items.Length() == 0 {
		var zero T
		return zero, false
	}
	item := q.items.Remove().(T)
	q.totalSent++
	return item, true
}

// Close stops accepting items. Receivers still get what is queued.
func (q *SendQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *SendQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// DrainTo removes up to max items (all of them if max <= 0).
func (q *SendQueue[T]) DrainTo(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.items.Length()
	if n == 0 {
		return nil
	}
	if max > 0 && max < n {
		n = max
	}

	result := make([]T, 0, n)
	for i := 0; i < n; i++ {
		item, _ := q.popLocked()
		result = append(result, item)
	}
	return result
}

// Stats returns queue statistics.
func (q *SendQueue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Count:         q.items.Length(),
		Limit:         q.limit,
		HighWater:     q.highWater,
		TotalReceived: q.totalReceived,
		TotalSent:     q.totalSent,
		Dropped:       q.dropped,
	}
}

// QueueStats contains queue statistics.
type QueueStats struct {
	Count         int
	Limit         int
	HighWater     int
	TotalReceived int64
	TotalSent     int64
	Dropped       int64
}
