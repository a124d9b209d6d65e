// ABOUTME: Turns receive callback reports into status lines and snapshots
// ABOUTME: Runs on the session goroutine, draining the info queue every poll
package session

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/Sendspin/sendspin-bridge/internal/receiver"
	"github.com/Sendspin/sendspin-bridge/pkg/lfq"
)

// tracker drains the info queue, logs state changes and, with info
// enabled, one averaged statistics line per poll
type tracker struct {
	log   logrus.FieldLogger
	info  bool
	state receiver.State
	last  lfq.InfoData
}

// check drains q. It returns ErrFatal or errSenderEnded when the session
// must end. A wait report stops draining so it is seen before later ones.
func (t *tracker) check(q *lfq.InfoQueue) error {
	var (
		n         int
		sumErr    float64
		sumRatio  float64
		minFrames = math.MaxInt
		syncs     int
	)
	for {
		d, ok := q.Pop()
		if !ok {
			break
		}
		state := receiver.State(d.State)
		t.state = state
		t.last = d
		switch state {
		case receiver.StateFatal:
			t.log.Printf("Fatal error, terminating.")
			return ErrFatal
		case receiver.StateTxEnd:
			t.log.Printf("Transmitter terminated.")
			return errSenderEnded
		case receiver.StateWait:
			t.log.Printf("Waiting for %3.1f seconds...", d.Error)
			return nil
		case receiver.StateSync0:
			t.log.Printf("Syncing...")
		case receiver.StateSync2:
			t.log.Printf("Receiving.")
		}
		if t.info && state >= receiver.StateProc1 {
			n++
			sumErr += d.Error
			sumRatio += d.Ratio
			minFrames = min(minFrames, d.Frames)
			syncs = d.Syncs
		}
	}
	if n > 0 {
		t.log.Printf("%3d %8.3f %9.6f %8d %3d", n, sumErr/float64(n), sumRatio/float64(n), minFrames, syncs)
	}
	return nil
}
