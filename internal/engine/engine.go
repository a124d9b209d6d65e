// ABOUTME: Host audio engine contract shared by sender and receiver
// ABOUTME: Periodic process callback, cycle timing and engine notifications
package engine

import (
	"time"
)

// Cycle describes one period handed to Handler.Process. Times are engine
// microseconds (see Monotonic).
type Cycle struct {
	Frames  int         // frames in this period, always the buffer size
	Start   uint64      // time of the first frame of this period
	Next    uint64      // predicted start of the following period
	Now     uint64      // time the callback was entered
	Inputs  [][]float32 // captured audio, one slice per input channel
	Outputs [][]float32 // audio to play, one slice per output channel
}

// Handler receives the engine's callbacks. Process runs on the engine's
// real-time goroutine and must not block.
type Handler interface {
	Process(c *Cycle)
	// BufferSize is called on activation and whenever the period size changes
	BufferSize(frames int)
	// SampleRate is called on activation and whenever the rate changes
	SampleRate(rate int)
	// Freewheel reports entering or leaving offline processing
	Freewheel(on bool)
	// Shutdown reports that the engine stopped on its own
	Shutdown()
}

// Engine is a host that calls a Handler once per period
type Engine interface {
	SampleRate() int
	BufferSize() int
	// Priority is the real-time priority of the process goroutine, 0 if none
	Priority() int
	// Now returns the current engine time in microseconds
	Now() uint64
	Activate(h Handler) error
	Close() error
}

var epoch = time.Now()

// Monotonic returns microseconds elapsed since process start on the
// monotonic clock. All engines in a process share this time base.
func Monotonic() uint64 {
	return uint64(time.Since(epoch).Microseconds())
}

// Elapsed returns a - b in microseconds for two engine times that may have
// been truncated to 32 bits
func Elapsed(a, b uint64) int32 {
	return int32(uint32(a - b))
}
