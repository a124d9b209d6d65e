// ABOUTME: Uniform start-up for the bridge's real-time worker goroutines
// ABOUTME: Locks each worker to an OS thread and raises it to FIFO priority when allowed
package rtthread

import (
	"runtime"

	"github.com/sirupsen/logrus"
)

// Thread is a running worker started by Start
type Thread struct {
	name string
	done chan struct{}
}

// Start runs body on its own locked OS thread at the given FIFO priority.
// A priority of zero or less keeps normal scheduling. Failure to raise the
// priority is logged and the worker runs anyway.
func Start(name string, prio int, body func()) *Thread {
	t := &Thread{
		name: name,
		done: make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		// Never unlocked: the OS thread exits with the goroutine, so a raised
		// priority is not handed back to the scheduler's pool.
		runtime.LockOSThread()
		if prio > 0 {
			if err := setPriority(prio); err != nil {
				logrus.Warnf("Can't set priority %d for %s thread: %v", prio, name, err)
			} else {
				logrus.Debugf("Started %s thread at FIFO priority %d", name, prio)
			}
		}
		body()
	}()
	return t
}

// Name returns the name given to Start
func (t *Thread) Name() string { return t.name }

// Done is closed when the body returns
func (t *Thread) Done() <-chan struct{} { return t.done }

// Wait blocks until the body returns
func (t *Thread) Wait() { <-t.done }
