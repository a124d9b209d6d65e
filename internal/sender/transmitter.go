// ABOUTME: Audio callback of the bridge sender
// ABOUTME: Splits each period into packets and emits a time mark once per second
package sender

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/Sendspin/sendspin-bridge/internal/engine"
	clocksync "github.com/Sendspin/sendspin-bridge/internal/sync"
	"github.com/Sendspin/sendspin-bridge/pkg/lfq"
	"github.com/Sendspin/sendspin-bridge/pkg/protocol"
)

// TransmitterConfig wires a Transmitter to its queues
type TransmitterConfig struct {
	PackQ    *lfq.PacketQueue
	TimeQ    *lfq.TimingQueue
	StateQ   *lfq.Int32Queue
	Format   protocol.SampleFormat
	Channels int
	Packets  int    // packets per period
	Trigger  func() // wakes the send thread after each packet

	// Wall returns the absolute time used for time marks; defaults to time.Now
	Wall func() time.Time
}

// Transmitter implements engine.Handler. It is the only writer of the
// packet, timing and state queues.
type Transmitter struct {
	cfg   TransmitterConfig
	fsamp int
	bsize int

	state    atomic.Int32
	freew    atomic.Bool
	fatalReq atomic.Bool

	first bool
	tnext uint64
	count int32
	tscnt int
}

// NewTransmitter creates a transmitter for fsamp Hz
func NewTransmitter(fsamp int, cfg TransmitterConfig) (*Transmitter, error) {
	if cfg.Packets < 1 {
		return nil, errors.Errorf("invalid packets per period %d", cfg.Packets)
	}
	if cfg.Channels < 1 || cfg.Channels > protocol.MaxChannels {
		return nil, errors.Errorf("invalid channel count %d", cfg.Channels)
	}
	if !cfg.Format.Valid() {
		return nil, errors.Wrapf(protocol.ErrUnknownFormat, "code %d", cfg.Format)
	}
	if cfg.Trigger == nil {
		cfg.Trigger = func() {}
	}
	if cfg.Wall == nil {
		cfg.Wall = time.Now
	}
	t := &Transmitter{cfg: cfg, fsamp: fsamp, first: true}
	t.state.Store(int32(StateInit))
	return t, nil
}

// State returns the current state
func (t *Transmitter) State() State { return State(t.state.Load()) }

// Count returns the frame count of the next packet. Engine goroutine only.
func (t *Transmitter) Count() int32 { return t.count }

func (t *Transmitter) setState(s State) {
	t.state.Store(int32(s))
	t.cfg.StateQ.WriteInt32(int32(s))
}

// SampleRate implements engine.Handler
func (t *Transmitter) SampleRate(rate int) {
	if rate != t.fsamp {
		t.fatalReq.Store(true)
	}
}

// BufferSize implements engine.Handler. Transmission starts on the first
// call; a later change of period size terminates it, as does a period that
// does not fit the configured packets.
func (t *Transmitter) BufferSize(frames int) {
	if t.bsize == 0 {
		t.bsize = frames
		n := protocol.PacketsPerPeriod(t.cfg.PackQ.PacketSize(), frames, t.cfg.Format, t.cfg.Channels)
		if n < 1 || n > t.cfg.Packets {
			t.setState(StateTerm)
			return
		}
		t.setState(StateSend)
		return
	}
	if frames != t.bsize {
		t.fatalReq.Store(true)
	}
}

// Freewheel implements engine.Handler
func (t *Transmitter) Freewheel(on bool) { t.freew.Store(on) }

// Shutdown implements engine.Handler. Process is no longer called, so the
// report is written here.
func (t *Transmitter) Shutdown() {
	if t.State() != StateTerm {
		t.setState(StateTerm)
	}
}

// Process implements engine.Handler
func (t *Transmitter) Process(c *engine.Cycle) {
	state := t.State()
	if state == StateTerm {
		return
	}
	if t.fatalReq.Swap(false) {
		t.setState(StateTerm)
		return
	}

	if t.freew.Load() {
		if state == StateSend {
			if t.cfg.PackQ.WriteAvailable() > 0 {
				p := t.cfg.PackQ.WritePacket()
				p.InitData(protocol.FlagSuspend, t.cfg.Format, t.cfg.Channels, 0, 0, 0)
				t.cfg.PackQ.WriteCommit()
				t.cfg.Trigger()
				t.setState(StateSuspend)
			} else {
				t.setState(StateTerm)
			}
		}
		return
	}
	if state == StateSuspend {
		t.first = true
		t.setState(StateSend)
		state = StateSend
	}
	if state != StateSend {
		return
	}

	dtime := engine.Elapsed(c.Now, c.Start)
	nskip := 0
	if !t.first {
		nskip = int(float64(t.fsamp)*1e-6*float64(engine.Elapsed(c.Start, t.tnext)) + 0.5)
	}
	t.first = false
	t.tnext = c.Next
	t.count += int32(nskip)

	t.tscnt += c.Frames
	if t.tscnt >= t.fsamp {
		t.tscnt -= t.fsamp
		if t.cfg.TimeQ.WriteAvailable() > 0 {
			d := t.cfg.TimeQ.WriteSlot()
			d.Count = t.count + int32(c.Frames)
			d.Secs, d.Frac = clocksync.NTPTime(t.cfg.Wall(), -1e-6*float64(dtime))
			t.cfg.TimeQ.WriteCommit()
		}
	}

	// Spread the period over the packets, sizes differing by at most one.
	npack := t.cfg.Packets
	bstep := c.Frames / npack
	bdiff := 0
	flags := protocol.FlagTimed
	offs := 0
	for i := 0; i < npack; i++ {
		if t.cfg.PackQ.WriteAvailable() <= 0 {
			t.setState(StateTerm)
			return
		}
		nfram := bstep
		if bdiff < 0 {
			nfram++
		}
		p := t.cfg.PackQ.WritePacket()
		p.InitData(flags, t.cfg.Format, t.cfg.Channels, t.count, nfram, dtime)
		for ch := 0; ch < t.cfg.Channels; ch++ {
			p.PutAudio(ch, 0, nfram, c.Inputs[ch][offs:], 1)
		}
		t.cfg.PackQ.WriteCommit()
		t.cfg.Trigger()
		t.count += int32(nfram)
		offs += nfram
		dtime = 0
		flags = 0
		bdiff += nfram*npack - c.Frames
	}
}
