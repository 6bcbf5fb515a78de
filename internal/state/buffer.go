package state

import "sync"

// Order selects how a Buffer presents its entries.
type Order int

const (
	// OldestFirst keeps insertion order with the newest entry at the tail.
	OldestFirst Order = iota
	// NewestFirst presents the newest entry at the head.
	NewestFirst
)

// Buffer is a fixed-capacity ring. Once full, every Append evicts the
// oldest entry. Reads return copies.
type Buffer[T any] struct {
	mu    sync.RWMutex
	items []T
	start int
	count int
	order Order
}

func NewBuffer[T any](capacity int, order Order) *Buffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity), order: order}
}

func (b *Buffer[T]) Append(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	capacity := len(b.items)
	if b.count < capacity {
		b.items[(b.start+b.count)%capacity] = item
		b.count++
		return
	}
	b.items[b.start] = item
	b.start = (b.start + 1) % capacity
}

// Recent returns up to n of the newest entries in the buffer's order.
// n <= 0 or n larger than the stored count returns everything.
func (b *Buffer[T]) Recent(n int) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || n > b.count {
		n = b.count
	}
	out := make([]T, 0, n)
	capacity := len(b.items)
	switch b.order {
	case NewestFirst:
		for i := b.count - 1; i >= b.count-n; i-- {
			out = append(out, b.items[(b.start+i)%capacity])
		}
	default:
		for i := b.count - n; i < b.count; i++ {
			out = append(out, b.items[(b.start+i)%capacity])
		}
	}
	return out
}

func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

func (b *Buffer[T]) Cap() int {
	return len(b.items)
}
