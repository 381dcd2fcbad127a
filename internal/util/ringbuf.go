package util

import "sync"

// Ring keeps the most recent items up to a fixed capacity, dropping the
// oldest on overflow. Safe for concurrent use.
type Ring[T any] struct {
	mu   sync.RWMutex
	buf  []T
	next int
	full bool
}

// NewRing creates a ring holding at most size items. size < 1 is treated as 1.
func NewRing[T any](size int) *Ring[T] {
	if size < 1 {
		size = 1
	}
	return &Ring[T]{buf: make([]T, size)}
}

// Add stores item, evicting the oldest one when the ring is full.
func (r *Ring[T]) Add(item T) {
	r.mu.Lock()
	r.buf[r.next] = item
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()
}

// Tail returns the newest n items, oldest first. n <= 0 means all.
func (r *Ring[T]) Tail(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.lenLocked()
	if n <= 0 || n > size {
		n = size
	}
	out := make([]T, n)
	start := r.next - n
	if start < 0 {
		start += len(r.buf)
	}
	for i := range out {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

func (r *Ring[T]) lenLocked() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}
