// ABOUTME: Sizing of a receive session from the sender's descriptor
// ABOUTME: Jitter buffer length, target delay, resample ratio and filter length
package session

import (
	"github.com/Sendspin/sendspin-bridge/internal/config"
)

// minRing is the smallest audio ring in frames
const minRing = 256

// Plan holds the derived parameters of one receive session
type Plan struct {
	Ring   int     // audio ring size in frames
	Delay  int     // target delay in sender frames
	Ratio  float64 // local rate / sender rate
	Filter int     // resampler half length
}

// PlanReceive sizes a session. The ring holds at least twice the sender
// period, the local period and buffer ms together; the delay target is
// buffer ms at the sender rate.
func PlanReceive(txRate, txPeriod, rate, period, bufferMs, filter int) Plan {
	tbuf := float64(txPeriod)/float64(txRate) + float64(period)/float64(rate) + 1e-3*float64(bufferMs)
	kbuf := int(tbuf*float64(txRate) + 0.5)
	ring := minRing
	for ring < 2*kbuf {
		ring *= 2
	}
	if filter == 0 {
		filter = AutoFilter(rate, txRate)
	}
	return Plan{
		Ring:   ring,
		Delay:  int(1e-3*float64(bufferMs)*float64(txRate) + 0.5),
		Ratio:  float64(rate) / float64(txRate),
		Filter: filter,
	}
}

// AutoFilter picks the resampler half length for the lower of two rates.
// Lower rates leave a narrower transition band and need a longer filter.
func AutoFilter(rate, txRate int) int {
	k := min(rate, txRate)
	if k < 44100 {
		k = 44100
	}
	f := int(6.7 * float64(k) / float64(k-38000))
	return max(f, config.MinFilter)
}
