// ABOUTME: Timer-driven audio engine with exact period spacing
// ABOUTME: Drives the sender from a source, or a receiver without an audio device
package engine

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/Sendspin/sendspin-bridge/internal/rtthread"
	"github.com/Sendspin/sendspin-bridge/pkg/audio"
)

// ClockOptions configures a Clock engine
type ClockOptions struct {
	SampleRate int
	BufferSize int
	Inputs     int // input channels filled by Fill before each cycle
	Outputs    int // output channels handed to Drain after each cycle
	Priority   int // FIFO priority of the process goroutine, 0 for none

	// Fill provides input audio for one period. Nil leaves inputs silent.
	Fill func(in audio.Buffer)
	// Drain consumes output audio of one period. Nil discards it.
	Drain func(out audio.Buffer)
}

// Clock calls its handler once per period from a timer. Cycles that are
// missed because the process ran late are skipped, and the gap shows up
// in the cycle start times.
type Clock struct {
	opts      ClockOptions
	period    time.Duration
	freewheel atomic.Bool
	stopped   atomic.Bool
	wake      chan struct{}
	thread    *rtthread.Thread
	handler   Handler
}

// NewClock validates options and creates an inactive engine
func NewClock(opts ClockOptions) (*Clock, error) {
	if opts.SampleRate <= 0 {
		return nil, errors.Errorf("invalid sample rate %d", opts.SampleRate)
	}
	if opts.BufferSize <= 0 {
		return nil, errors.Errorf("invalid buffer size %d", opts.BufferSize)
	}
	return &Clock{
		opts:   opts,
		period: time.Duration(int64(opts.BufferSize) * int64(time.Second) / int64(opts.SampleRate)),
		wake:   make(chan struct{}, 1),
	}, nil
}

func (e *Clock) SampleRate() int { return e.opts.SampleRate }
func (e *Clock) BufferSize() int { return e.opts.BufferSize }
func (e *Clock) Priority() int   { return e.opts.Priority }
func (e *Clock) Now() uint64     { return Monotonic() }

// Activate reports the format to h and starts calling it
func (e *Clock) Activate(h Handler) error {
	if e.handler != nil {
		return errors.New("engine already active")
	}
	e.handler = h
	h.SampleRate(e.opts.SampleRate)
	h.BufferSize(e.opts.BufferSize)
	e.thread = rtthread.Start("engine", e.opts.Priority, e.run)
	logrus.Printf("Clock engine started: %d Hz, %d frames per period", e.opts.SampleRate, e.opts.BufferSize)
	return nil
}

// SetFreewheel switches offline processing on or off. While freewheeling,
// cycles run back to back without waiting for the timer.
func (e *Clock) SetFreewheel(on bool) {
	if e.freewheel.Swap(on) == on {
		return
	}
	if e.handler != nil {
		e.handler.Freewheel(on)
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Freewheeling reports whether offline processing is on
func (e *Clock) Freewheeling() bool { return e.freewheel.Load() }

// Close stops the process goroutine and waits for it
func (e *Clock) Close() error {
	if e.stopped.Swap(true) {
		return nil
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
	if e.thread != nil {
		e.thread.Wait()
	}
	logrus.Printf("Clock engine stopped")
	return nil
}

func (e *Clock) run() {
	bsize := e.opts.BufferSize
	in := audio.NewBuffer(e.opts.Inputs, bsize)
	out := audio.NewBuffer(e.opts.Outputs, bsize)
	cycle := &Cycle{Frames: bsize, Inputs: in, Outputs: out}

	origin := time.Now()
	base := Monotonic()
	var n int64
	timer := time.NewTimer(0)
	defer timer.Stop()

	for !e.stopped.Load() {
		if e.freewheel.Load() {
			e.runCycle(cycle, Monotonic(), Monotonic()+uint64(e.period/time.Microsecond))
			// Re-anchor so the first timed cycle after freewheeling starts now.
			origin = time.Now()
			base = Monotonic()
			n = 0
			continue
		}

		due := origin.Add(time.Duration(n) * e.period)
		if wait := time.Until(due); wait > 0 {
			timer.Reset(wait)
			select {
			case <-timer.C:
			case <-e.wake:
				timer.Stop()
				continue
			}
		} else if late := -wait; late > e.period {
			// Missed whole periods; drop them.
			n += int64(late / e.period)
		}

		start := base + uint64((time.Duration(n)*e.period)/time.Microsecond)
		next := base + uint64((time.Duration(n+1)*e.period)/time.Microsecond)
		e.runCycle(cycle, start, next)
		n++
	}
}

func (e *Clock) runCycle(c *Cycle, start, next uint64) {
	if e.opts.Fill != nil {
		e.opts.Fill(c.Inputs)
	} else {
		audio.Buffer(c.Inputs).Clear()
	}
	c.Start = start
	c.Next = next
	c.Now = Monotonic()
	e.handler.Process(c)
	if e.opts.Drain != nil {
		e.opts.Drain(c.Outputs)
	}
}
