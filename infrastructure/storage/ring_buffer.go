// Package storage holds the memory-resident metric storage primitives: the
// fixed-capacity ring buffer, its time-evicting variant, the secondary
// metric index and the bucketed metrics store built on top of them.
package storage

import (
	"sync"
	"time"
)

// RingBuffer is a fixed-capacity buffer that overwrites its oldest entry
// once full. Add is O(1); eviction never surfaces to the caller.
type RingBuffer[T any] struct {
	mu         sync.RWMutex
	items      []T
	capacity   int
	head       int // next write position
	size       int
	totalAdded uint64
}

// NewRingBuffer creates a buffer holding at most capacity items. A
// non-positive capacity is treated as 1.
func NewRingBuffer[T any](capacity int) *RingBuffer[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends one item, overwriting the oldest entry at capacity.
func (b *RingBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addLocked(item)
}

// AddBatch appends many items in order.
func (b *RingBuffer[T]) AddBatch(items []T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, item := range items {
		b.addLocked(item)
	}
}

func (b *RingBuffer[T]) addLocked(item T) {
	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
	b.totalAdded++
}

// GetAll returns the held items in insertion order, oldest first.
func (b *RingBuffer[T]) GetAll() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked()
}

func (b *RingBuffer[T]) snapshotLocked() []T {
	result := make([]T, 0, b.size)
	start := b.head - b.size
	if start < 0 {
		start += b.capacity
	}
	for i := 0; i < b.size; i++ {
		result = append(result, b.items[(start+i)%b.capacity])
	}
	return result
}

// GetRecent returns the n most recently added items, newest first.
func (b *RingBuffer[T]) GetRecent(n int) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return nil
	}

	result := make([]T, 0, n)
	for i := 1; i <= n; i++ {
		idx := b.head - i
		if idx < 0 {
			idx += b.capacity
		}
		result = append(result, b.items[idx])
	}
	return result
}

// Find returns all held items matching the predicate, in insertion order.
func (b *RingBuffer[T]) Find(predicate func(T) bool) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []T
	for _, item := range b.snapshotLocked() {
		if predicate(item) {
			result = append(result, item)
		}
	}
	return result
}

// GetInTimeRange returns items whose timestamp falls in [start, end],
// in insertion order. timestampOf extracts the item timestamp.
func (b *RingBuffer[T]) GetInTimeRange(start, end time.Time, timestampOf func(T) time.Time) []T {
	return b.Find(func(item T) bool {
		ts := timestampOf(item)
		return !ts.Before(start) && !ts.After(end)
	})
}

// Clear removes all held items but preserves the lifetime total-added
// counter.
func (b *RingBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
}

func (b *RingBuffer[T]) clearLocked() {
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.size = 0
}

// retain keeps only items matching keep, preserving insertion order and the
// total-added counter. The filter and rebuild happen under a single lock so
// adds landing during a sweep are never lost. keep must not call back into
// the buffer.
func (b *RingBuffer[T]) retain(keep func(T) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	held := b.snapshotLocked()
	valid := make([]T, 0, len(held))
	for _, item := range held {
		if keep(item) {
			valid = append(valid, item)
		}
	}
	if len(valid) == len(held) {
		return
	}

	b.clearLocked()
	for _, item := range valid {
		b.items[b.head] = item
		b.head = (b.head + 1) % b.capacity
		b.size++
	}
}

// Size returns the number of currently held items.
func (b *RingBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// IsEmpty reports whether the buffer holds no items.
func (b *RingBuffer[T]) IsEmpty() bool {
	return b.Size() == 0
}

// IsFull reports whether the buffer is at capacity.
func (b *RingBuffer[T]) IsFull() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size == b.capacity
}

// Capacity returns the configured capacity.
func (b *RingBuffer[T]) Capacity() int {
	return b.capacity
}

// TotalAdded returns the lifetime number of items ever added, surviving
// Clear and eviction.
func (b *RingBuffer[T]) TotalAdded() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.totalAdded
}
