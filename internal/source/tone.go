// ABOUTME: Sine test tone source
// ABOUTME: Same tone on every channel, phase continuous across periods
package source

import (
	"fmt"
	"math"

	"github.com/Sendspin/sendspin-bridge/pkg/audio"
)

// Tone parameters
const (
	ToneFrequency = 440.0
	ToneAmplitude = 0.5
)

// ToneSource generates a sine wave
type ToneSource struct {
	freq  float64
	rate  int
	phase float64
}

// NewToneSource creates a tone of freq Hz at rate Hz
func NewToneSource(freq float64, rate int) *ToneSource {
	return &ToneSource{freq: freq, rate: rate}
}

func (s *ToneSource) Read(buf audio.Buffer) error {
	step := 2 * math.Pi * s.freq / float64(s.rate)
	for i := range buf[0] {
		v := float32(ToneAmplitude * math.Sin(s.phase))
		for ch := range buf {
			buf[ch][i] = v
		}
		s.phase += step
		if s.phase >= 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
	}
	return nil
}

func (s *ToneSource) SampleRate() int { return 0 }
func (s *ToneSource) Channels() int   { return 1 }
func (s *ToneSource) Title() string   { return fmt.Sprintf("Test Tone (%gHz)", s.freq) }
func (s *ToneSource) Close() error    { return nil }
