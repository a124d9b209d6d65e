// ABOUTME: Audio type definitions
// ABOUTME: Stream format, period buffers and sample conversion helpers
package audio

import (
	"github.com/pkg/errors"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes a fixed-rate multichannel stream
type Format struct {
	SampleRate int
	Channels   int
}

// Validate checks that rate and channel count are usable
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return errors.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return errors.Errorf("invalid channel count %d", f.Channels)
	}
	return nil
}

// Buffer holds one period of planar float32 audio, one slice per channel
type Buffer [][]float32

// NewBuffer allocates nchan channels of nframes samples
func NewBuffer(nchan, nframes int) Buffer {
	b := make(Buffer, nchan)
	for i := range b {
		b[i] = make([]float32, nframes)
	}
	return b
}

// Clear zeroes every channel
func (b Buffer) Clear() {
	for _, ch := range b {
		clear(ch)
	}
}

// Interleave copies nframes frames of planar src into interleaved dst
func Interleave(dst []float32, src Buffer, nframes int) {
	nc := len(src)
	for c, ch := range src {
		for i := 0; i < nframes; i++ {
			dst[i*nc+c] = ch[i]
		}
	}
}

// Deinterleave copies nframes frames of interleaved src into planar dst
func Deinterleave(dst Buffer, src []float32, nframes int) {
	nc := len(dst)
	for c, ch := range dst {
		for i := 0; i < nframes; i++ {
			ch[i] = src[i*nc+c]
		}
	}
}

// SampleToInt16 converts a float sample to 16-bit PCM with clipping
func SampleToInt16(x float32) int16 {
	v := x * 32767
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// SampleFromInt16 converts a 16-bit PCM sample to float
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / 32768
}

// SampleFromInt converts a signed integer sample of the given bit depth to float
func SampleFromInt(sample int32, bits int) float32 {
	return float32(float64(sample) / float64(int64(1)<<(bits-1)))
}
