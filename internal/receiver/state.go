// ABOUTME: State codes of the receive side
// ABOUTME: Audio callback synchronisation states and network thread states
package receiver

import "fmt"

// State is the synchronisation state of the receive callback. States are
// ordered; the callback compares them with < and >=.
type State int

const (
	StateInit State = iota
	StateIdle
	StateWait
	StateSync0
	StateSync1
	StateSync2
	StateProc1
	StateProc2
	StateTxEnd
	StateFatal
)

var stateNames = [...]string{"init", "idle", "wait", "sync0", "sync1", "sync2", "proc1", "proc2", "txend", "fatal"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Locked reports whether the control loop is tracking
func (s State) Locked() bool {
	return s == StateProc1 || s == StateProc2
}

// NetState is the network receive thread state. It doubles as the command
// word sent to that thread and as the flag of every timing record.
type NetState int32

const (
	NetInit NetState = iota
	NetWait
	NetProc
	NetTerm
	NetFail
)

func (s NetState) String() string {
	switch s {
	case NetInit:
		return "init"
	case NetWait:
		return "wait"
	case NetProc:
		return "proc"
	case NetTerm:
		return "term"
	case NetFail:
		return "fail"
	}
	return fmt.Sprintf("netstate(%d)", int32(s))
}
