// ABOUTME: Status snapshots published by running sessions
// ABOUTME: Consumed by the status display, the metrics exporter and the websocket feed
package session

import (
	"github.com/pkg/errors"

	"github.com/Sendspin/sendspin-bridge/internal/engine"
)

// Roles
const (
	RoleReceiver = "receiver"
	RoleSender   = "sender"
)

// Session outcomes
var (
	// ErrFatal ends the program after an unrecoverable stream error
	ErrFatal = errors.New("fatal stream error")
	// errSenderEnded ends one receive session; the receiver waits for the next sender
	errSenderEnded = errors.New("sender terminated")
)

// Status is a snapshot of a session
type Status struct {
	Session  string  `json:"session"`
	Role     string  `json:"role"`
	Peer     string  `json:"peer,omitempty"`
	State    string  `json:"state"`
	Channels int     `json:"channels,omitempty"`
	Rate     int     `json:"rate,omitempty"`
	Period   int     `json:"period,omitempty"`
	Format   string  `json:"format,omitempty"`
	Error    float64 `json:"error"`
	Ratio    float64 `json:"ratio,omitempty"`
	Frames   int     `json:"frames"`
	Syncs    int     `json:"syncs"`

	Packets     uint64 `json:"packets"`
	LostFrames  uint64 `json:"lost_frames,omitempty"`
	Invalid     uint64 `json:"invalid,omitempty"`
	Stale       uint64 `json:"stale,omitempty"`
	Descriptors uint64 `json:"descriptors,omitempty"`
	SendErrors  uint64 `json:"send_errors,omitempty"`
}

// Observer receives status snapshots from the session goroutine. It must
// not block.
type Observer interface {
	Observe(s Status)
}

// Observers fans a snapshot out to several observers
type Observers []Observer

// Observe implements Observer
func (o Observers) Observe(s Status) {
	for _, ob := range o {
		if ob != nil {
			ob.Observe(s)
		}
	}
}

// netPriority returns the priority for network threads: above the engine's
// process thread when that one is real-time, otherwise none
func netPriority(eng engine.Engine) int {
	if p := eng.Priority(); p > 0 {
		return p + 5
	}
	return 0
}
