// ABOUTME: Audio callback of the bridge receiver
// ABOUTME: Measures buffer delay against sender timing and steers the resampler
package receiver

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/Sendspin/sendspin-bridge/internal/engine"
	clocksync "github.com/Sendspin/sendspin-bridge/internal/sync"
	"github.com/Sendspin/sendspin-bridge/pkg/audio"
	"github.com/Sendspin/sendspin-bridge/pkg/audio/resample"
	"github.com/Sendspin/sendspin-bridge/pkg/lfq"
)

// Stream is one received stream handed to Receiver.Start
type Stream struct {
	AudioQ *lfq.AudioQueue
	CommQ  *lfq.Int32Queue
	TimeQ  *lfq.TimingQueue
	Ratio  float64 // local rate / sender rate
	Delay  int     // target delay in sender frames
	Filter int     // resampler half length
}

// stream is the callback-side state of an adopted Stream
type stream struct {
	Stream
	resamp *resample.VResampler
	ppsec  int
	limit  int
}

// Receiver implements engine.Handler. All synchronisation state belongs to
// the engine goroutine; other goroutines talk to it through the queues and
// a few atomic requests.
type Receiver struct {
	fsamp int
	nchan int
	bsize int
	infoq *lfq.InfoQueue

	pending  atomic.Pointer[stream]
	state    atomic.Int32
	freew    atomic.Bool
	freewReq atomic.Bool
	fatalReq atomic.Bool
	shutdown atomic.Bool

	s      *stream
	count  int
	first  bool
	tnext  uint64
	ta0    float64
	ta1    float64
	ka0    int32
	ka1    int32
	loop   LoopFilter
	rcorr  float64
	syncs  int
	buff   []float32
}

// New creates a receiver with nchan outputs reporting into infoq.
// The engine's BufferSize callback completes initialisation.
func New(fsamp, nchan int, infoq *lfq.InfoQueue) *Receiver {
	r := &Receiver{
		fsamp: fsamp,
		nchan: nchan,
		infoq: infoq,
		rcorr: 1,
	}
	r.state.Store(int32(StateInit))
	return r
}

// State returns the current synchronisation state
func (r *Receiver) State() State { return State(r.state.Load()) }

func (r *Receiver) setState(s State) { r.state.Store(int32(s)) }

// Start hands a new stream to the callback, which adopts it on its next
// cycle and waits InitialWait before synchronising.
func (r *Receiver) Start(st Stream) error {
	if r.bsize == 0 {
		return errors.New("receiver not activated")
	}
	if st.AudioQ.Channels() != r.nchan {
		return errors.Errorf("audio queue has %d channels, receiver %d", st.AudioQ.Channels(), r.nchan)
	}
	if st.Ratio <= 0 {
		return errors.Errorf("invalid ratio %g", st.Ratio)
	}
	rs, err := resample.New(st.Ratio, r.nchan, st.Filter)
	if err != nil {
		return errors.Wrap(err, "resampler")
	}
	rs.SetRatioFilter(RatioFilter)
	r.pending.Store(&stream{
		Stream: st,
		resamp: rs,
		ppsec:  (r.fsamp + r.bsize/2) / r.bsize,
		limit:  int(float64(r.fsamp) / st.Ratio),
	})
	return nil
}

// SampleRate implements engine.Handler
func (r *Receiver) SampleRate(rate int) {
	if rate != r.fsamp {
		r.fatalReq.Store(true)
	}
}

// BufferSize implements engine.Handler. The period size may be set once;
// a later change is fatal.
func (r *Receiver) BufferSize(frames int) {
	if r.bsize == 0 {
		r.bsize = frames
		r.buff = make([]float32, frames*r.nchan)
		r.setState(StateIdle)
		return
	}
	if frames != r.bsize {
		r.fatalReq.Store(true)
	}
}

// Freewheel implements engine.Handler
func (r *Receiver) Freewheel(on bool) {
	r.freew.Store(on)
	if on {
		r.freewReq.Store(true)
	}
}

// Shutdown implements engine.Handler. The engine no longer calls Process,
// so the report goes straight to the info queue, once.
func (r *Receiver) Shutdown() {
	if r.shutdown.Swap(true) {
		return
	}
	r.sendInfo(StateFatal, 0, 0, 0)
}

// Process implements engine.Handler
func (r *Receiver) Process(c *engine.Cycle) {
	state := r.State()
	if state < StateIdle {
		return
	}
	audio.Buffer(c.Outputs).Clear()

	if r.fatalReq.Swap(false) {
		state = StateFatal
	} else if s := r.pending.Swap(nil); s != nil {
		// A freewheel request from before the stream does not apply to it.
		r.freewReq.Store(false)
		r.s = s
		r.first = true
		r.tnext = 0
		r.initWait(r.periods(InitialWait))
		return
	}
	if state >= StateTxEnd {
		r.sendInfo(state, 0, 0, 0)
		r.setState(StateIdle)
		return
	}
	if state < StateWait {
		return
	}
	if r.freewReq.Swap(false) {
		r.initWait(r.periods(FreewheelWait))
		state = StateWait
	}
	if state == StateWait {
		if r.freew.Load() {
			return
		}
		r.count++
		if r.count != 0 {
			return
		}
		r.initSync()
		state = StateSync0
	}
	s := r.s

	// Sender frames lost to skipped local cycles are discarded from the ring.
	tj0 := clocksync.EngineSeconds(c.Start)
	nskip := 0
	if !r.first {
		nskip = int(1e-6*float64(engine.Elapsed(c.Start, r.tnext))*float64(r.fsamp)/s.Ratio + 0.5)
	}
	r.first = false
	r.tnext = c.Next
	s.AudioQ.ReadCommit(nskip)

	if s.TimeQ.ReadAvailable() >= s.TimeQ.Cap() {
		r.initWait(r.periods(InitialWait))
		return
	}

	shift := true
	for s.TimeQ.ReadAvailable() > 0 {
		d := s.TimeQ.ReadSlot()
		switch NetState(d.Flags) {
		case NetWait:
			r.initWait(r.periods(InitialWait))
			return
		case NetProc:
			if shift {
				shift = false
				r.ta0 = r.ta1
				r.ka0 = r.ka1
				if state < StateSync2 {
					state++
					r.setState(state)
					r.sendInfo(state, 0, 0, 0)
				}
			}
			r.ka1 = d.Count
			r.ta1 = d.Time
		case NetTerm:
			r.setState(StateTxEnd)
			return
		case NetFail:
			r.setState(StateFatal)
			return
		}
		s.TimeQ.ReadCommit()
	}

	var err float64
	if state >= StateSync2 {
		d1 := clocksync.EngineDiff(tj0, r.ta0)
		d2 := clocksync.EngineDiff(r.ta1, r.ta0)
		k := int(r.ka0 - s.AudioQ.ReadCount())
		err = float64(k) + float64(r.ka1-r.ka0)*d1/d2 + s.resamp.InpDist() - float64(s.Delay)
		if state == StateSync2 {
			// Jump to the target delay, then track the fraction.
			k = int(math.Floor(err + 0.5))
			s.AudioQ.ReadCommit(k)
			err -= float64(k)
			r.setLoop(WideBandwidth)
			state = StateProc1
			r.setState(state)
		}
	}
	if state == StateProc1 {
		r.count++
		if r.count == NarrowAfter*s.ppsec {
			r.setLoop(NarrowBandwidth)
			state = StateProc2
			r.setState(state)
		}
	}
	if state < StateProc1 {
		return
	}

	if r.loop.Run(err) {
		r.initWait(r.periods(RetryWait))
		return
	}
	r.rcorr = r.loop.Correction()
	s.resamp.SetRatio(r.rcorr)
	r.capture(c)
	k := s.AudioQ.ReadAvailable()
	r.sendInfo(state, err, r.rcorr, k)
	if k < -s.limit {
		r.setState(StateTxEnd)
	}
}

// periods converts seconds to a whole number of local periods
func (r *Receiver) periods(sec float64) int {
	return int(sec * float64(r.s.ppsec))
}

func (r *Receiver) setLoop(bw float64) {
	r.loop.SetBandwidth(bw, r.bsize, r.fsamp, r.s.Ratio)
}

// initWait tells the network thread to stop writing and starts counting
// n periods before the next synchronisation.
func (r *Receiver) initWait(n int) {
	r.count = -n
	r.s.CommQ.WriteInt32(int32(NetWait))
	r.setState(StateWait)
	if n > r.s.ppsec {
		r.sendInfo(StateWait, float64(n)/float64(r.s.ppsec), 0, 0)
	}
}

// initSync clears all queues, primes the resampler and tells the network
// thread to start writing.
func (r *Receiver) initSync() {
	s := r.s
	s.CommQ.Reset()
	s.TimeQ.Reset()
	s.AudioQ.Reset()
	s.resamp.Reset()
	s.resamp.InpCount = s.resamp.InpSize()/2 - 1
	s.resamp.InpData = nil
	s.resamp.OutCount = 10000
	s.resamp.OutData = nil
	s.resamp.Process()
	r.first = true
	r.ta0, r.ta1 = 0, 0
	r.ka0, r.ka1 = 0, 0
	r.loop.Reset()
	r.rcorr = 1
	r.syncs++
	s.CommQ.WriteInt32(int32(NetProc))
	r.setState(StateSync0)
	r.sendInfo(StateSync0, 0, 0, 0)
}

// capture resamples one period from the ring into the outputs. An empty
// ring reads as silence and the read counter runs ahead of the writer.
func (r *Receiver) capture(c *engine.Cycle) {
	s := r.s
	rs := s.resamp
	rs.OutCount = r.bsize
	rs.OutData = r.buff
	for rs.OutCount > 0 {
		k1 := s.AudioQ.ReadAvailable()
		k2 := s.AudioQ.ReadLinear()
		if k1 > 0 {
			rs.InpCount = min(k1, k2)
			rs.InpData = s.AudioQ.ReadData()
		} else {
			rs.InpCount = 999999
			rs.InpData = nil
		}
		n := rs.InpCount
		rs.Process()
		s.AudioQ.ReadCommit(n - rs.InpCount)
	}
	rs.InpData = nil
	rs.OutData = nil
	audio.Deinterleave(c.Outputs, r.buff, r.bsize)
}

// sendInfo reports to the control loop if the info queue has room
func (r *Receiver) sendInfo(state State, err, ratio float64, nfram int) {
	if r.infoq.WriteAvailable() <= 0 {
		return
	}
	d := r.infoq.WriteSlot()
	d.State = int(state)
	d.Error = err
	d.Ratio = ratio
	d.Frames = nfram
	d.Syncs = r.syncs
	r.infoq.WriteCommit()
}
