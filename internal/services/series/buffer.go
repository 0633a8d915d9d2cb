package series

import "sync"

// Buffer is a fixed-capacity FIFO ring of records for one stream.
// One goroutine appends, any goroutine may snapshot.
type Buffer[T any] struct {
	mu    sync.RWMutex
	items []T
	head  int // index of the oldest record
	size  int
}

// NewBuffer creates a buffer holding at most capacity records.
func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Append inserts rec, evicting the oldest record when full.
func (b *Buffer[T]) Append(rec T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.items)
	if b.size < capacity {
		b.items[(b.head+b.size)%capacity] = rec
		b.size++
		return
	}
	b.items[b.head] = rec
	b.head = (b.head + 1) % capacity
}

// Snapshot returns the current contents, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, b.size)
	capacity := len(b.items)
	for i := 0; i < b.size; i++ {
		out[i] = b.items[(b.head+i)%capacity]
	}
	return out
}

// Len returns the number of records held.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }
