// Package ringbuffer implements a fixed-capacity FIFO that overwrites the
// oldest element when full, with capacity that can be grown or reconciled
// after a reload.
package ringbuffer

import (
	"encoding/json"
	"fmt"
)

// RingBuffer is a bounded, insertion-ordered history of up to Capacity
// elements. Pushing past capacity evicts the oldest element.
type RingBuffer[T any] struct {
	items    []T
	capacity int
	start    int // index of the oldest element within items
}

// New creates an empty ring buffer with the given logical capacity.
func New[T any](capacity int) *RingBuffer[T] {
	return &RingBuffer[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends an element, evicting the oldest one if the buffer is full.
func (r *RingBuffer[T]) Push(item T) {
	if len(r.items) < r.capacity {
		r.items = append(r.items, item)
		return
	}
	if r.capacity == 0 {
		return
	}
	// Buffer is full: overwrite the oldest slot in place and advance start.
	r.items[r.start] = item
	r.start = (r.start + 1) % r.capacity
}

// PushMany pushes each element of items in order.
func (r *RingBuffer[T]) PushMany(items []T) {
	for _, item := range items {
		r.Push(item)
	}
}

// Len returns the current number of stored elements.
func (r *RingBuffer[T]) Len() int {
	return len(r.items)
}

// Capacity returns the logical capacity of the buffer.
func (r *RingBuffer[T]) Capacity() int {
	return r.capacity
}

// IsEmpty reports whether the buffer holds no elements.
func (r *RingBuffer[T]) IsEmpty() bool {
	return len(r.items) == 0
}

// At returns the element at the given index, 0 being the oldest.
func (r *RingBuffer[T]) At(index int) (T, bool) {
	var zero T
	if index < 0 || index >= len(r.items) {
		return zero, false
	}
	if len(r.items) < r.capacity {
		return r.items[index], true
	}
	return r.items[(r.start+index)%r.capacity], true
}

// All returns the elements oldest-first as a newly allocated slice.
func (r *RingBuffer[T]) All() []T {
	out := make([]T, len(r.items))
	for i := range out {
		v, _ := r.At(i)
		out[i] = v
	}
	return out
}

// Reverse returns the elements newest-first as a newly allocated slice.
func (r *RingBuffer[T]) Reverse() []T {
	out := make([]T, len(r.items))
	n := len(r.items)
	for i := range out {
		v, _ := r.At(n - 1 - i)
		out[i] = v
	}
	return out
}

// ResizeError is returned by Resize when the requested capacity would
// shrink the buffer below its current capacity.
type ResizeError struct {
	NewCapacity int
	OldCapacity int
	Length      int
}

func (e *ResizeError) Error() string {
	return fmt.Sprintf("new capacity (%d) is less than the current capacity of the buffer (%d)", e.NewCapacity, e.OldCapacity)
}

// Resize grows the buffer's capacity. It rejects any newCap less than the
// current capacity (not merely the current length), so capacity is
// monotonically non-decreasing through this path.
func (r *RingBuffer[T]) Resize(newCap int) error {
	if newCap < r.capacity {
		return &ResizeError{NewCapacity: newCap, OldCapacity: r.capacity, Length: len(r.items)}
	}
	if newCap == r.capacity {
		return nil
	}
	r.items = r.All()
	r.start = 0
	r.capacity = newCap
	return nil
}

// TruncateFIFO changes the capacity to newCap, evicting the oldest elements
// if needed to fit. Unlike Resize, it permits shrinking and always succeeds.
func (r *RingBuffer[T]) TruncateFIFO(newCap int) {
	all := r.All()
	if len(all) > newCap {
		all = all[len(all)-newCap:]
	}
	r.items = all
	r.start = 0
	r.capacity = newCap
}

// MarshalJSON emits the logical sequence oldest to newest.
func (r *RingBuffer[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.All())
}

// UnmarshalJSON reconstructs a buffer whose capacity equals its length;
// callers reconcile the desired capacity afterwards via Resize or
// TruncateFIFO.
func (r *RingBuffer[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	if items == nil {
		items = []T{}
	}
	r.items = items
	r.capacity = len(items)
	r.start = 0
	return nil
}
