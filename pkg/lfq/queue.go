// ABOUTME: Generic lock-free ring queue for fixed-size records
// ABOUTME: Base for timing, info, packet and control-word queues
package lfq

import (
	"go.uber.org/atomic"
)

// RoundUp returns the smallest power of two that is >= n (and >= 1).
func RoundUp(n int) int {
	k := 1
	for k < n {
		k <<= 1
	}
	return k
}

// Queue is a single-writer/single-reader ring of fixed-size records
type Queue[T any] struct {
	data []T
	mask uint32
	nwr  atomic.Uint32
	nrd  atomic.Uint32
}

// NewQueue creates a queue holding at least nelm records
func NewQueue[T any](nelm int) *Queue[T] {
	k := RoundUp(nelm)
	return &Queue[T]{
		data: make([]T, k),
		mask: uint32(k - 1),
	}
}

// Reset empties the queue. Only safe while neither side is active.
func (q *Queue[T]) Reset() {
	q.nwr.Store(0)
	q.nrd.Store(0)
}

// Cap returns the number of slots
func (q *Queue[T]) Cap() int { return len(q.data) }

// WriteAvailable returns the number of free slots
func (q *Queue[T]) WriteAvailable() int {
	return len(q.data) - int(int32(q.nwr.Load()-q.nrd.Load()))
}

// WriteSlot returns the next slot to fill. Valid until WriteCommit.
func (q *Queue[T]) WriteSlot() *T {
	return &q.data[q.nwr.Load()&q.mask]
}

// WriteCommit publishes the slot returned by WriteSlot
func (q *Queue[T]) WriteCommit() {
	q.nwr.Inc()
}

// ReadAvailable returns the number of filled slots
func (q *Queue[T]) ReadAvailable() int {
	return int(int32(q.nwr.Load() - q.nrd.Load()))
}

// ReadSlot returns the oldest filled slot. Valid until ReadCommit.
func (q *Queue[T]) ReadSlot() *T {
	return &q.data[q.nrd.Load()&q.mask]
}

// ReadCommit releases the slot returned by ReadSlot
func (q *Queue[T]) ReadCommit() {
	q.nrd.Inc()
}

// Push copies v into the queue, returning false if it is full
func (q *Queue[T]) Push(v T) bool {
	if q.WriteAvailable() <= 0 {
		return false
	}
	*q.WriteSlot() = v
	q.WriteCommit()
	return true
}

// Pop removes the oldest record, returning false if the queue is empty
func (q *Queue[T]) Pop() (T, bool) {
	var v T
	if q.ReadAvailable() <= 0 {
		return v, false
	}
	v = *q.ReadSlot()
	q.ReadCommit()
	return v, true
}
