// ABOUTME: Tests for the transmit callback
// ABOUTME: Packet split, frame counting across skipped cycles, time marks and state changes
package sender

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sendspin/sendspin-bridge/internal/engine"
	"github.com/Sendspin/sendspin-bridge/pkg/audio"
	"github.com/Sendspin/sendspin-bridge/pkg/lfq"
	"github.com/Sendspin/sendspin-bridge/pkg/protocol"
)

type txFixture struct {
	tx     *Transmitter
	packq  *lfq.PacketQueue
	timeq  *lfq.TimingQueue
	stateq *lfq.Int32Queue
	posts  int
}

func newTxFixture(t *testing.T, bsize, npack, nqueue int) *txFixture {
	t.Helper()
	f := &txFixture{
		packq:  lfq.NewPacketQueue(nqueue, 1472),
		timeq:  lfq.NewTimingQueue(TimingQueueSize),
		stateq: lfq.NewInt32Queue(StateQueueSize),
	}
	tx, err := NewTransmitter(48000, TransmitterConfig{
		PackQ:    f.packq,
		TimeQ:    f.timeq,
		StateQ:   f.stateq,
		Format:   protocol.Format24Bit,
		Channels: 2,
		Packets:  npack,
		Trigger:  func() { f.posts++ },
		Wall:     func() time.Time { return time.Unix(1700000000, 0) },
	})
	require.NoError(t, err)
	tx.BufferSize(bsize)
	f.tx = tx
	return f
}

func (f *txFixture) states() []State {
	var s []State
	for f.stateq.ReadAvailable() > 0 {
		s = append(s, State(f.stateq.ReadInt32()))
	}
	return s
}

func (f *txFixture) packets() []*protocol.Packet {
	var p []*protocol.Packet
	for f.packq.ReadAvailable() > 0 {
		p = append(p, f.packq.ReadPacket())
		f.packq.ReadCommit()
	}
	return p
}

func cycle(bsize int, start, period uint64) *engine.Cycle {
	in := audio.NewBuffer(2, bsize)
	for i := 0; i < bsize; i++ {
		in[0][i] = float32(i) / float32(bsize)
		in[1][i] = -float32(i) / float32(bsize)
	}
	return &engine.Cycle{
		Frames: bsize,
		Start:  start,
		Next:   start + period,
		Now:    start + 150,
		Inputs: in,
	}
}

func TestTransmitterSplitsPeriod(t *testing.T) {
	f := newTxFixture(t, 256, 3, 64)
	assert.Equal(t, []State{StateSend}, f.states())

	c := cycle(256, 1000, 5333)
	f.tx.Process(c)
	pkts := f.packets()
	require.Len(t, pkts, 3)
	assert.Equal(t, 3, f.posts)

	var frames []int
	count := int32(0)
	for i, p := range pkts {
		require.NoError(t, p.Validate())
		assert.Equal(t, count, p.FrameCount())
		frames = append(frames, p.PacketFrames())
		count += int32(p.PacketFrames())
		if i == 0 {
			assert.True(t, p.HasFlag(protocol.FlagTimed))
			assert.Equal(t, int32(150), p.Delay())
		} else {
			assert.False(t, p.HasFlag(protocol.FlagTimed))
			assert.Zero(t, p.Delay())
		}
	}
	assert.Equal(t, []int{85, 86, 85}, frames)
	assert.Equal(t, int32(256), f.tx.Count())

	// Samples land in order across the packet boundary.
	got := make([]float32, 1)
	pkts[1].GetAudio(0, 0, 1, got, 1)
	assert.InDelta(t, c.Inputs[0][85], got[0], 1e-6)
	pkts[2].GetAudio(1, 84, 1, got, 1)
	assert.InDelta(t, c.Inputs[1][255], got[0], 1e-6)
}

func TestTransmitterCountsSkippedCycles(t *testing.T) {
	f := newTxFixture(t, 480, 2, 64)
	const period = 10000
	f.tx.Process(cycle(480, 0, period))
	f.tx.Process(cycle(480, period, period))
	assert.Equal(t, int32(960), f.tx.Count())

	// One cycle missed: the next packet numbering jumps by a period.
	f.tx.Process(cycle(480, 3*period, period))
	pkts := f.packets()
	require.Len(t, pkts, 6)
	assert.Equal(t, int32(1440), pkts[4].FrameCount())
	assert.Equal(t, int32(1920), f.tx.Count())
}

func TestTransmitterTimeMark(t *testing.T) {
	f := newTxFixture(t, 480, 2, 256)
	const period = 10000
	for i := 0; i < 100; i++ {
		f.tx.Process(cycle(480, uint64(i)*period, period))
		if i < 99 {
			assert.Zero(t, f.timeq.ReadAvailable(), "cycle %d", i)
		}
	}
	require.Equal(t, 1, f.timeq.ReadAvailable())
	d := f.timeq.ReadSlot()
	assert.Equal(t, int32(100*480), d.Count)
	assert.NotZero(t, d.Secs)
}

func TestTransmitterFreewheel(t *testing.T) {
	f := newTxFixture(t, 256, 2, 64)
	f.tx.Process(cycle(256, 0, 5333))
	f.packets()
	f.states()

	f.tx.Freewheel(true)
	f.tx.Process(cycle(256, 5333, 5333))
	f.tx.Process(cycle(256, 10666, 5333))
	pkts := f.packets()
	require.Len(t, pkts, 1)
	assert.True(t, pkts[0].HasFlag(protocol.FlagSuspend))
	assert.Equal(t, []State{StateSuspend}, f.states())

	f.tx.Freewheel(false)
	f.tx.Process(cycle(256, 100000, 5333))
	assert.Equal(t, []State{StateSend}, f.states())
	pkts = f.packets()
	require.Len(t, pkts, 2)
	// Restart counts as a first cycle, no skip is applied.
	assert.Equal(t, int32(256), pkts[0].FrameCount())
}

func TestTransmitterQueueFull(t *testing.T) {
	f := newTxFixture(t, 256, 4, 4)
	f.states()
	f.tx.Process(cycle(256, 0, 5333))
	f.tx.Process(cycle(256, 5333, 5333))
	assert.Equal(t, StateTerm, f.tx.State())
	assert.Equal(t, []State{StateTerm}, f.states())

	// Terminated transmitters stay silent.
	f.packets()
	f.tx.Process(cycle(256, 10666, 5333))
	assert.Zero(t, f.packq.ReadAvailable())
}

func TestTransmitterBufferSizeChange(t *testing.T) {
	f := newTxFixture(t, 256, 2, 16)
	f.states()
	f.tx.BufferSize(256)
	f.tx.Process(cycle(256, 0, 5333))
	assert.Equal(t, StateSend, f.tx.State())

	f.tx.BufferSize(512)
	f.tx.Process(cycle(256, 5333, 5333))
	assert.Equal(t, StateTerm, f.tx.State())
	assert.Equal(t, []State{StateTerm}, f.states())
}

func TestTransmitterPeriodTooLarge(t *testing.T) {
	tests := []struct {
		name   string
		bsize  int
		npack  int
		expect State
	}{
		// 24-bit stereo: 242 frames fit a 1472 byte slot.
		{"fits one packet", 242, 1, StateSend},
		{"one frame over", 243, 1, StateTerm},
		{"needs two packets", 480, 1, StateTerm},
		{"split in two", 480, 2, StateSend},
		{"needs five packets", 1024, 4, StateTerm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTxFixture(t, tt.bsize, tt.npack, 64)
			assert.Equal(t, []State{tt.expect}, f.states())
			assert.Equal(t, tt.expect, f.tx.State())

			// A rejected period never reaches the packet encoder.
			assert.NotPanics(t, func() { f.tx.Process(cycle(tt.bsize, 0, 10000)) })
			if tt.expect == StateTerm {
				assert.Zero(t, f.packq.ReadAvailable())
			} else {
				assert.Equal(t, tt.npack, f.packq.ReadAvailable())
			}
		})
	}
}

func TestNewTransmitterValidates(t *testing.T) {
	_, err := NewTransmitter(48000, TransmitterConfig{Packets: 0, Channels: 2, Format: protocol.Format16Bit})
	assert.Error(t, err)
	_, err = NewTransmitter(48000, TransmitterConfig{Packets: 1, Channels: 65, Format: protocol.Format16Bit})
	assert.Error(t, err)
	_, err = NewTransmitter(48000, TransmitterConfig{Packets: 1, Channels: 2, Format: 9})
	assert.ErrorIs(t, err, protocol.ErrUnknownFormat)
}
