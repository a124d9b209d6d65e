// ABOUTME: Transmitter states reported to the sender's control loop
// ABOUTME: Ordered so that anything at or past TERM means stop
package sender

import "fmt"

// State is the transmit callback state
type State int32

const (
	StateInit State = iota
	StateSend
	StateSuspend
	StateTerm
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateSend:
		return "send"
	case StateSuspend:
		return "suspend"
	case StateTerm:
		return "term"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// StateQueueSize is the depth of the state report queue
const StateQueueSize = 16

// TimingQueueSize is the depth of the time mark queue
const TimingQueueSize = 4

// QueueTime is the audio the packet queue holds, in seconds
const QueueTime = 0.05
