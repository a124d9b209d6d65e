// ABOUTME: Tests for worker start-up and the semaphore
// ABOUTME: Checks that posts are never lost and that Wait blocks when empty
package rtthread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestStartRunsBody(t *testing.T) {
	var ran atomic.Bool
	th := Start("test", 0, func() { ran.Store(true) })
	th.Wait()
	assert.True(t, ran.Load())
	assert.Equal(t, "test", th.Name())
	select {
	case <-th.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestStartWithPriorityStillRuns(t *testing.T) {
	// Raising the priority usually fails without privileges; the body must run regardless.
	done := make(chan struct{})
	th := Start("prio", 10, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("body did not run")
	}
	th.Wait()
}

func TestSemaCountsPosts(t *testing.T) {
	s := NewSema()
	for i := 0; i < 5; i++ {
		s.Post()
	}
	assert.Equal(t, 5, s.Count())
	for i := 0; i < 5; i++ {
		s.Wait()
	}
	assert.Zero(t, s.Count())
	assert.False(t, s.TryWait())
}

func TestSemaWakesWaiter(t *testing.T) {
	s := NewSema()
	var woken atomic.Int32
	const n = 1000
	th := Start("waiter", 0, func() {
		for i := 0; i < n; i++ {
			s.Wait()
			woken.Inc()
		}
	})
	for i := 0; i < n; i++ {
		s.Post()
	}
	select {
	case <-th.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("waiter stuck after %d wakeups", woken.Load())
	}
	require.Equal(t, int32(n), woken.Load())
	assert.Zero(t, s.Count())
}

func TestSemaWaitBlocksWhenEmpty(t *testing.T) {
	s := NewSema()
	got := make(chan struct{})
	go func() {
		s.Wait()
		close(got)
	}()
	select {
	case <-got:
		t.Fatal("Wait returned without a Post")
	case <-time.After(20 * time.Millisecond):
	}
	s.Post()
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Post")
	}
}
