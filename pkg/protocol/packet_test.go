// ABOUTME: Tests for the wire packet codec
// ABOUTME: Header round trips, sample quantization bounds and length validation
package protocol

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorRoundTrip(t *testing.T) {
	p := NewPacket(1472)
	p.InitDescriptor(FlagSuspend, Format24Bit, 8, 1472, 96000, 512)
	p.SetTimeMark(-123456, 0x83AA7E80+17, 0xDEADBEEF)

	// Reparse from a copy of the bytes as a receiver would.
	q := NewPacket(1472)
	n := copy(q.Data, p.Bytes())
	q.SetLen(n)

	require.NoError(t, q.Validate())
	ptype, err := q.CheckType()
	require.NoError(t, err)
	assert.Equal(t, TypeDescriptor, ptype)
	assert.Equal(t, DescriptorSize, q.Len())
	assert.Equal(t, FlagSuspend, q.Flags())
	assert.Equal(t, Format24Bit, q.Format())
	assert.Equal(t, 8, q.Channels())
	assert.Equal(t, 1472, q.MaxPacketSize())
	assert.Equal(t, 96000, q.SampleRate())
	assert.Equal(t, 512, q.PeriodSize())
	assert.Equal(t, int32(-123456), q.MarkCount())
	assert.Equal(t, uint32(0x83AA7E80+17), q.MarkSecs())
	assert.Equal(t, uint32(0xDEADBEEF), q.MarkFrac())
}

func TestDataHeaderLayout(t *testing.T) {
	p := NewPacket(256)
	p.InitData(FlagTimed, Format16Bit, 2, 0x01020304, 5, 1500)
	b := p.Bytes()
	require.Len(t, b, DataHeaderSize+2*2*5)
	assert.Equal(t, []byte("znjb"), b[:4])
	assert.Equal(t, byte(TypeData), b[4])
	assert.Equal(t, byte(FlagTimed), b[5])
	assert.Equal(t, byte(Format16Bit), b[6])
	assert.Equal(t, byte(2), b[7])
	assert.Equal(t, []byte{1, 2, 3, 4}, b[8:12])
	assert.Equal(t, []byte{0, 0, 0, 5}, b[12:16])
	assert.Equal(t, []byte{0, 0, 0x05, 0xdc}, b[16:20])
	assert.Equal(t, int32(0x01020304), p.FrameCount())
	assert.Equal(t, 5, p.PacketFrames())
	assert.Equal(t, int32(1500), p.Delay())
	assert.True(t, p.HasFlag(FlagTimed))
	assert.False(t, p.HasFlag(FlagTerminate))
}

func TestSampleRoundTrip(t *testing.T) {
	inputs := []float32{0, 0.5, -0.5, 1, -1, 0.123456, -0.987654, 1e-4, -3e-6}
	tests := []struct {
		format SampleFormat
		tol    float64
	}{
		{Format16Bit, 1.0 / Max16Bit},
		{Format24Bit, 1.0/Max24Bit + 6e-8}, // plus float32 rounding
		{FormatFloat, 0},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			const nch = 3
			p := NewPacket(1024)
			p.InitData(0, tt.format, nch, 0, len(inputs), 0)
			// Interleave the same ramp into channel 1 of a 2-wide source buffer.
			src := make([]float32, 2*len(inputs))
			for i, v := range inputs {
				src[2*i] = v
			}
			p.PutAudio(1, 0, len(inputs), src, 2)

			dst := make([]float32, len(inputs))
			p.GetAudio(1, 0, len(inputs), dst, 1)
			for i, v := range inputs {
				if tt.tol == 0 {
					assert.Equal(t, v, dst[i])
				} else {
					assert.InDelta(t, v, dst[i], tt.tol, "sample %d", i)
				}
			}
			// Neighbouring channels stay untouched.
			p.GetAudio(0, 0, len(inputs), dst, 1)
			for i := range inputs {
				assert.Zero(t, dst[i])
			}
		})
	}
}

func TestSampleRoundingIsSymmetric(t *testing.T) {
	const n = 4001
	tests := []struct {
		format SampleFormat
		scale  float64
		bound  float64 // in steps
	}{
		{Format16Bit, Max16Bit, 0.51},
		// float32 spacing near 1 is half a 24-bit step
		{Format24Bit, Max24Bit, 0.76},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			src := make([]float32, n)
			for i := range src {
				// Off-grid steps so most samples fall between two codes.
				src[i] = float32(-1 + 2*float64(i)/(n-1)*0.999983)
			}
			p := NewPacket(DataHeaderSize + 3*n)
			p.InitData(0, tt.format, 1, 0, n, 0)
			p.PutAudio(0, 0, n, src, 1)
			dst := make([]float32, n)
			p.GetAudio(0, 0, n, dst, 1)

			worst := 0.0
			for i := range src {
				worst = math.Max(worst, math.Abs(float64(dst[i])-float64(src[i]))*tt.scale)
			}
			assert.LessOrEqual(t, worst, tt.bound)
		})
	}

	// Values just below a negative half step round away from zero.
	p := NewPacket(64)
	p.InitData(0, Format16Bit, 1, 0, 2, 0)
	p.PutAudio(0, 0, 2, []float32{-2.6 / Max16Bit, -0.987654}, 1)
	dst := make([]float32, 2)
	p.GetAudio(0, 0, 2, dst, 1)
	assert.InDelta(t, -3.0/Max16Bit, dst[0], 1e-9)
	assert.InDelta(t, -0.987654, dst[1], 0.5/Max16Bit+1e-7)
}

func TestSampleClamp(t *testing.T) {
	p := NewPacket(64)
	p.InitData(0, Format16Bit, 1, 0, 2, 0)
	p.PutAudio(0, 0, 2, []float32{3, -3}, 1)
	dst := make([]float32, 2)
	p.GetAudio(0, 0, 2, dst, 1)
	assert.Equal(t, float32(1), dst[0])
	assert.Equal(t, float32(-1), dst[1])

	p.InitData(0, Format24Bit, 1, 0, 1, 0)
	p.PutAudio(0, 0, 1, []float32{-2}, 1)
	assert.Equal(t, []byte{0x80, 0x00, 0x01}, p.Data[DataHeaderSize:DataHeaderSize+3])
}

func TestFloatIsBigEndian(t *testing.T) {
	p := NewPacket(64)
	p.InitData(0, FormatFloat, 1, 0, 1, 0)
	p.PutAudio(0, 0, 1, []float32{1}, 1)
	bits := math.Float32bits(1)
	assert.Equal(t, []byte{byte(bits >> 24), byte(bits >> 16), byte(bits >> 8), byte(bits)},
		p.Data[DataHeaderSize:DataHeaderSize+4])
}

func TestPutAudioOffset(t *testing.T) {
	p := NewPacket(128)
	p.InitData(0, FormatFloat, 2, 0, 4, 0)
	p.PutAudio(0, 2, 2, []float32{0.25, 0.75}, 1)
	dst := make([]float32, 4)
	p.GetAudio(0, 0, 4, dst, 1)
	assert.Equal(t, []float32{0, 0, 0.25, 0.75}, dst)
}

func TestCheckType(t *testing.T) {
	p := NewPacket(64)
	copy(p.Data, "zzzz")
	p.SetLen(32)
	_, err := p.CheckType()
	assert.ErrorIs(t, err, ErrBadMagic)

	p.InitDescriptor(0, Format16Bit, 1, 64, 48000, 256)
	p.SetLen(4)
	_, err = p.CheckType()
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestValidate(t *testing.T) {
	p := NewPacket(256)
	p.InitData(0, Format24Bit, 2, 0, 10, 0)
	require.NoError(t, p.Validate())

	p.SetLen(p.Len() - 1)
	assert.True(t, errors.Is(p.Validate(), ErrTruncated))

	p.InitData(0, SampleFormat(9), 2, 0, 1, 0)
	p.SetLen(64)
	assert.True(t, errors.Is(p.Validate(), ErrUnknownFormat))

	p.InitDescriptor(0, Format16Bit, 0, 256, 48000, 256)
	assert.Error(t, p.Validate())
}

func TestPacketsPerPeriod(t *testing.T) {
	tests := []struct {
		name    string
		maxSize int
		period  int
		format  SampleFormat
		nchan   int
		want    int
	}{
		{"ipv4 mtu stereo 24bit", 1472, 256, Format24Bit, 2, 2},
		{"ipv4 mtu 8ch float", 1472, 256, FormatFloat, 8, 6},
		{"exact fit", 20 + 4*64, 64, FormatFloat, 1, 1},
		{"one over", 20 + 4*64, 65, FormatFloat, 1, 2},
		{"unknown format", 1472, 256, SampleFormat(7), 2, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PacketsPerPeriod(tt.maxSize, tt.period, tt.format, tt.nchan))
		})
	}
}

func TestParseSampleFormat(t *testing.T) {
	for _, f := range []SampleFormat{Format16Bit, Format24Bit, FormatFloat} {
		got, err := ParseSampleFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseSampleFormat("mp3")
	assert.True(t, errors.Is(err, ErrUnknownFormat))
}
