// ABOUTME: Counting semaphore for waking a single worker goroutine
// ABOUTME: Post never blocks so it is safe to call from the audio callback
package rtthread

import (
	"go.uber.org/atomic"
)

// Sema is a counting semaphore with one waiter. Every Post is matched by
// exactly one return from Wait; posts made while nobody waits are kept.
type Sema struct {
	n    atomic.Int32
	wake chan struct{}
}

// NewSema creates a semaphore with a zero count
func NewSema() *Sema {
	return &Sema{wake: make(chan struct{}, 1)}
}

// Post increments the count and wakes the waiter if it sleeps
func (s *Sema) Post() {
	s.n.Inc()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Wait blocks until the count is positive, then decrements it
func (s *Sema) Wait() {
	for {
		n := s.n.Load()
		if n > 0 {
			if s.n.CompareAndSwap(n, n-1) {
				return
			}
			continue
		}
		<-s.wake
	}
}

// TryWait decrements the count if it is positive and reports whether it did
func (s *Sema) TryWait() bool {
	for {
		n := s.n.Load()
		if n <= 0 {
			return false
		}
		if s.n.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

// Count returns the number of posts not yet consumed
func (s *Sema) Count() int { return int(s.n.Load()) }
