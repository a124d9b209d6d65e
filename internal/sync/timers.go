// ABOUTME: Wrapping time bases shared by sender and receiver
// ABOUTME: Engine microsecond clock in seconds and NTP-style absolute timestamps
package sync

import (
	"math"
	"time"
)

// EngineWrap is the period of engine time in seconds: 2^32 microseconds
const EngineWrap = 4294.967296

// NTPWrap is the reduction applied to NTP seconds
const NTPWrap = 1000

// NTPEpochOffset is the number of seconds between 1900-01-01 and the Unix epoch
const NTPEpochOffset = 0x83AA7E80

// EngineSeconds maps an engine timestamp in microseconds to seconds. Only the
// low 32 bits are kept, read as signed, so values wrap every EngineWrap seconds.
func EngineSeconds(us uint64) float64 {
	return 1e-6 * float64(int32(uint32(us)))
}

// EngineDiff returns a - b reduced to [-EngineWrap/2, EngineWrap/2)
func EngineDiff(a, b float64) float64 {
	return wrapDiff(a-b, EngineWrap)
}

func wrapDiff(d, m float64) float64 {
	for d < -m/2 {
		d += m
	}
	for d >= m/2 {
		d -= m
	}
	return d
}

// NTPTime returns the seconds and binary fraction of t + dt since the NTP epoch
func NTPTime(t time.Time, dt float64) (secs, frac uint32) {
	f := 1e-6*float64(t.Nanosecond()/1000) + dt
	s := math.Floor(f)
	frac = uint32(math.Ldexp(f-s, 32))
	secs = uint32(t.Unix() + NTPEpochOffset + int64(s))
	return secs, frac
}

// NTPSeconds folds an NTP seconds/fraction pair into seconds modulo NTPWrap
func NTPSeconds(secs, frac uint32) float64 {
	return float64(secs%NTPWrap) + math.Ldexp(float64(frac), -32)
}
