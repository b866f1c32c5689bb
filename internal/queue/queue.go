// Package queue provides the FIFO used to hold commands waiting for the wire.
//
// Queue is not goroutine-safe; the owner serializes access.
package queue

// Queue is a slice backed first-in first-out queue.
type Queue[T any] struct {
	items []T
}

// New creates a queue with room for prealloc items before growing.
func New[T any](prealloc int) *Queue[T] {
	return &Queue[T]{items: make([]T, 0, prealloc)}
}

// Enqueue adds an item to the tail of the queue.
func (q *Queue[T]) Enqueue(item T) {
	q.items = append(q.items, item)
}

// Dequeue removes and returns the item at the head of the queue.
// ok is false when the queue is empty.
func (q *Queue[T]) Dequeue() (item T, ok bool) {
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]

	return item, true
}

// Peek returns the item at the head of the queue without removing it.
func (q *Queue[T]) Peek() (item T, ok bool) {
	if len(q.items) == 0 {
		return item, false
	}
	return q.items[0], true
}

// Remove deletes the first item for which match returns true, keeping the
// order of the remaining items. It reports whether an item was removed.
func (q *Queue[T]) Remove(match func(T) bool) bool {
	for i, item := range q.items {
		if match(item) {
			last := len(q.items) - 1
			copy(q.items[i:], q.items[i+1:])
			var zero T
			q.items[last] = zero
			q.items = q.items[:last]

			return true
		}
	}
	return false
}

// Drain empties the queue and returns the removed items in FIFO order.
func (q *Queue[T]) Drain() []T {
	items := make([]T, len(q.items))
	copy(items, q.items)
	q.Reset()

	return items
}

// Reset resets the queue to an empty state.
func (q *Queue[T]) Reset() {
	clear(q.items)
	q.items = q.items[:0]
}

// IsEmpty returns true if the queue is empty, false otherwise.
func (q *Queue[T]) IsEmpty() bool {
	return len(q.items) == 0
}

// Length returns the number of items in the queue.
func (q *Queue[T]) Length() int {
	return len(q.items)
}
