// ABOUTME: Audio engine playing through the system output device via oto
// ABOUTME: Turns the player's pull requests into fixed periods with smoothed timing
package engine

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	clocksync "github.com/Sendspin/sendspin-bridge/internal/sync"
	"github.com/Sendspin/sendspin-bridge/pkg/audio"
)

// OtoOptions configures an Oto engine
type OtoOptions struct {
	SampleRate int
	BufferSize int
	Channels   int
	// Latency is the device buffer oto is asked to keep filled
	Latency time.Duration
}

// Oto plays the handler's output through the default device. The device
// pulls audio in bursts; cycle times come from a delay-locked loop fed with
// the pull times so they follow the device clock rather than the bursts.
type Oto struct {
	opts    OtoOptions
	otoCtx  *oto.Context
	player  *oto.Player
	handler Handler
	closed  atomic.Bool
	done    chan struct{}
	once    sync.Once

	// owned by the player's reader goroutine
	cycle   *Cycle
	pcm     []byte
	pending []byte
	dll     *clocksync.DLL
	started bool
}

// NewOto opens the output device
func NewOto(opts OtoOptions) (*Oto, error) {
	if opts.SampleRate <= 0 || opts.BufferSize <= 0 || opts.Channels <= 0 {
		return nil, errors.Errorf("invalid output format %d Hz, %d frames, %d channels",
			opts.SampleRate, opts.BufferSize, opts.Channels)
	}
	if opts.Latency <= 0 {
		opts.Latency = 4 * time.Duration(int64(opts.BufferSize)*int64(time.Second)/int64(opts.SampleRate))
	}

	op := &oto.NewContextOptions{
		SampleRate:   opts.SampleRate,
		ChannelCount: opts.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   opts.Latency,
	}
	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create oto context")
	}
	<-readyChan

	logrus.Printf("Audio output initialized: %dHz, %d channels", opts.SampleRate, opts.Channels)

	return &Oto{
		opts:   opts,
		otoCtx: ctx,
		done:   make(chan struct{}),
		cycle: &Cycle{
			Frames:  opts.BufferSize,
			Outputs: audio.NewBuffer(opts.Channels, opts.BufferSize),
		},
		pcm: make([]byte, 2*opts.Channels*opts.BufferSize),
		dll: clocksync.NewDLL(opts.SampleRate, opts.BufferSize),
	}, nil
}

func (e *Oto) SampleRate() int { return e.opts.SampleRate }
func (e *Oto) BufferSize() int { return e.opts.BufferSize }
func (e *Oto) Priority() int   { return 0 }
func (e *Oto) Now() uint64     { return Monotonic() }

// Activate starts playback, pulling periods from h
func (e *Oto) Activate(h Handler) error {
	if e.handler != nil {
		return errors.New("engine already active")
	}
	e.handler = h
	h.SampleRate(e.opts.SampleRate)
	h.BufferSize(e.opts.BufferSize)

	e.player = e.otoCtx.NewPlayer(&otoReader{e: e})
	e.player.Play()
	go e.watch()
	return nil
}

// watch reports a player failure to the handler exactly once
func (e *Oto) watch() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			if err := e.player.Err(); err != nil {
				logrus.Errorf("Audio output failed: %v", err)
				e.once.Do(e.handler.Shutdown)
				return
			}
		}
	}
}

// Close stops playback and releases the device
func (e *Oto) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	close(e.done)
	var err error
	if e.player != nil {
		err = e.player.Close()
	}
	if serr := e.otoCtx.Suspend(); serr != nil && err == nil {
		err = serr
	}
	return err
}

// otoReader serves the player's pull requests
type otoReader struct {
	e *Oto
}

func (r *otoReader) Read(p []byte) (int, error) {
	e := r.e
	if e.closed.Load() {
		return 0, io.EOF
	}
	n := 0
	first := true
	for n < len(p) {
		if len(e.pending) == 0 {
			e.pending = e.render(first)
			first = false
		}
		k := copy(p[n:], e.pending)
		e.pending = e.pending[k:]
		n += k
	}
	return n, nil
}

// render runs one cycle and returns it as interleaved 16-bit PCM. Only the
// first cycle of a pull is timed; the others follow the loop's prediction.
func (e *Oto) render(timed bool) []byte {
	now := Monotonic()
	t := clocksync.EngineSeconds(now)
	if !e.started {
		e.started = true
		e.dll.Reset(t)
	} else if timed {
		e.dll.Update(t)
	}
	start := e.engineTime(now, e.dll.Time())
	e.dll.Advance()
	next := e.engineTime(now, e.dll.Time())

	c := e.cycle
	c.Start = start
	c.Next = next
	c.Now = now
	e.handler.Process(c)

	nc := e.opts.Channels
	buf := e.pcm
	for ch, data := range c.Outputs {
		for i := 0; i < c.Frames; i++ {
			binary.LittleEndian.PutUint16(buf[2*(i*nc+ch):], uint16(audio.SampleToInt16(data[i])))
		}
	}
	return buf
}

// engineTime converts a loop time in wrapped seconds back to microseconds
// near the reference time now
func (e *Oto) engineTime(now uint64, t float64) uint64 {
	d := clocksync.EngineDiff(t, clocksync.EngineSeconds(now))
	return uint64(int64(now) + int64(math.Round(d*1e6)))
}
