// ABOUTME: Record types carried by the timing and info queues
// ABOUTME: Shared between network threads, audio callbacks and the control loop
package lfq

// TimingData is one timing record. On the receive side Flags carries the
// network thread state and Time the estimated arrival time in engine seconds.
// On the transmit side Secs/Frac carry the absolute send time.
type TimingData struct {
	Flags int32
	Count int32
	Time  float64
	Secs  uint32
	Frac  uint32
}

// InfoData is the per-cycle report from the receive callback
type InfoData struct {
	State  int
	Error  float64
	Ratio  float64
	Frames int
	Syncs  int
}

// TimingQueue carries TimingData records
type TimingQueue = Queue[TimingData]

// InfoQueue carries InfoData records
type InfoQueue = Queue[InfoData]

// NewTimingQueue creates a timing queue with at least nelm slots
func NewTimingQueue(nelm int) *TimingQueue { return NewQueue[TimingData](nelm) }

// NewInfoQueue creates an info queue with at least nelm slots
func NewInfoQueue(nelm int) *InfoQueue { return NewQueue[InfoData](nelm) }
