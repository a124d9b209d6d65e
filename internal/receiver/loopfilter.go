// ABOUTME: Second-order loop filter turning delay error into a ratio correction
// ABOUTME: Two low-pass stages feeding a leaky double integrator
package receiver

import (
	"math"
)

// LoopFilter converts the per-period delay error in frames into a resample
// ratio correction
type LoopFilter struct {
	z1, z2, z3 float64
	w0, w1, w2 float64
}

// SetBandwidth derives the filter gains for bw Hz at bsize frames per period,
// fsamp Hz, and nominal resample ratio
func (f *LoopFilter) SetBandwidth(bw float64, bsize, fsamp int, ratio float64) {
	w := 2 * math.Pi * bw * float64(bsize) / float64(fsamp)
	f.w0 = 1 - math.Exp(-20*w)
	f.w1 = w * 2 * ratio / float64(bsize)
	f.w2 = w / 2
}

// Reset clears the filter state; gains are kept
func (f *LoopFilter) Reset() {
	f.z1, f.z2, f.z3 = 0, 0, 0
}

// Run feeds one error sample and reports whether the integrator left the
// controllable range
func (f *LoopFilter) Run(err float64) (diverged bool) {
	f.z1 += f.w0 * (f.w1*err - f.z1)
	f.z2 += f.w0 * (f.z1 - f.z2)
	f.z3 += f.w2 * f.z2
	return math.Abs(f.z3) > DivergenceLimit
}

// Correction returns the ratio correction, clamped to 1 ± RatioClamp
func (f *LoopFilter) Correction() float64 {
	r := 1 - (f.z2 + f.z3)
	if r > 1+RatioClamp {
		r = 1 + RatioClamp
	}
	if r < 1-RatioClamp {
		r = 1 - RatioClamp
	}
	return r
}
