// ABOUTME: Delay-locked loop reconstructing the sender's period timeline
// ABOUTME: Fed with arrival times of timed packets, tracks phase and period length
package sync

import (
	"math"
)

// DLLBandwidth is the loop bandwidth in Hz
const DLLBandwidth = 0.05

// DLL tracks the local arrival time of the next sender period.
//
// All times are engine seconds (see EngineSeconds). Not safe for concurrent
// use; it belongs to the network receive goroutine.
type DLL struct {
	fsamp float64
	t0    float64 // predicted start of the next period
	dt    float64 // estimated period length
	w1    float64
	w2    float64
}

// NewDLL creates a loop for a sender running fsize frames per period at fsamp Hz
func NewDLL(fsamp, fsize int) *DLL {
	d := &DLL{
		fsamp: float64(fsamp),
		dt:    float64(fsize) / float64(fsamp),
	}
	w := 2 * math.Pi * DLLBandwidth * d.dt
	d.w1 = 3 * w
	d.w2 = w * w
	return d
}

// Reset sets the time base to t. The period estimate is kept.
func (d *DLL) Reset(t float64) {
	d.t0 = t
}

// Skip moves the time base forward by the duration of n frames
func (d *DLL) Skip(n int) {
	d.t0 += float64(n) / d.fsamp
}

// Update feeds one measured arrival time t. The phase error is clamped to one
// period so a single late packet cannot pull the loop far.
func (d *DLL) Update(t float64) float64 {
	err := EngineDiff(t, d.t0)
	if err > d.dt {
		err = d.dt
	}
	if err < -d.dt {
		err = -d.dt
	}
	d.t0 += d.w1 * err
	d.dt += d.w2 * err
	return err
}

// Time returns the current estimate of the period start
func (d *DLL) Time() float64 { return d.t0 }

// Period returns the current estimate of the period length in seconds
func (d *DLL) Period() float64 { return d.dt }

// Advance moves the time base to the next predicted period
func (d *DLL) Advance() {
	d.t0 = EngineDiff(d.t0, -d.dt)
}
