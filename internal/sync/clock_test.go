// ABOUTME: Tests for the delay-locked loop
// ABOUTME: Checks convergence onto a drifting period and error clamping
package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDLLTracksFasterSender(t *testing.T) {
	const fsamp, fsize = 48000, 256
	d := NewDLL(fsamp, fsize)
	nominal := float64(fsize) / fsamp
	actual := nominal * (1 - 100e-6) // sender clock runs 100 ppm fast

	tr := 12.5
	d.Reset(tr)
	d.Advance()
	// The slow pole has a time constant of about 8 s.
	for i := 0; i < 120*fsamp/fsize; i++ {
		tr += actual
		d.Update(tr)
		d.Advance()
	}
	assert.InDelta(t, actual, d.Period(), 1e-9)
	// After the update the prediction lands one period past the last arrival.
	assert.InDelta(t, tr+actual, d.Time(), 1e-6)
}

func TestDLLErrorClamp(t *testing.T) {
	d := NewDLL(48000, 480)
	d.Reset(0)
	err := d.Update(5)
	assert.Equal(t, 0.01, err)
	err = d.Update(-5)
	// The first update already nudged the period estimate.
	assert.InDelta(t, -0.01, err, 1e-6)
}

func TestDLLUpdateAcrossWrap(t *testing.T) {
	d := NewDLL(48000, 256)
	d.Reset(EngineWrap/2 - 0.001)
	// An arrival just past the wrap point is a small positive error.
	err := d.Update(-EngineWrap/2 + 0.001)
	require.InDelta(t, 0.002, err, 1e-9)
}

func TestDLLSkip(t *testing.T) {
	d := NewDLL(48000, 256)
	d.Reset(1)
	d.Skip(480)
	assert.InDelta(t, 1.01, d.Time(), 1e-12)
}
