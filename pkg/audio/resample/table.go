// ABOUTME: Interpolation filter table for the polyphase resampler
// ABOUTME: Windowed sinc coefficients sampled at a fixed number of phases
package resample

import (
	"math"
)

// phases is the number of sub-sample positions stored in the table
const phases = 256

// newTable builds hlen coefficients for each of phases+1 fractional offsets.
// fr is the cutoff relative to the input Nyquist frequency.
func newTable(fr float64, hlen int) []float32 {
	tab := make([]float32, hlen*(phases+1))
	for j := 0; j <= phases; j++ {
		row := tab[j*hlen : (j+1)*hlen]
		t := float64(j) / phases
		for i := 0; i < hlen; i++ {
			row[hlen-i-1] = float32(fr * sinc(t*fr) * window(t/float64(hlen)))
			t++
		}
	}
	return tab
}

func sinc(x float64) float64 {
	x = math.Abs(x)
	if x < 1e-6 {
		return 1
	}
	x *= math.Pi
	return math.Sin(x) / x
}

// window is a three-term cosine window over [-1, 1]
func window(x float64) float64 {
	x = math.Abs(x)
	if x >= 1 {
		return 0
	}
	x *= math.Pi
	return 0.384 + 0.5*math.Cos(x) + 0.116*math.Cos(2*x)
}
