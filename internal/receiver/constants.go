// ABOUTME: Tuned constants of the receive-side control loop
// ABOUTME: Wait times, loop bandwidths, ratio clamp and divergence threshold
package receiver

// Waits before (re)synchronising, in seconds
const (
	// InitialWait is the pause after a stream starts or the sender pauses
	InitialWait = 0.5
	// FreewheelWait is the pause after the local engine enters freewheeling
	FreewheelWait = 0.25
	// RetryWait is the pause after the loop diverged
	RetryWait = 10.0
)

// Loop bandwidths in Hz. Locking starts wide and narrows after NarrowAfter
// seconds of tracking.
const (
	WideBandwidth   = 0.5
	NarrowBandwidth = 0.05
	NarrowAfter     = 4
)

// RatioClamp bounds the resample ratio correction to 1 ± RatioClamp
const RatioClamp = 0.05

// DivergenceLimit is the largest integrator state tolerated before the
// loop is considered lost and synchronisation restarts
const DivergenceLimit = 0.05

// RatioFilter is the smoothing time, in output frames, of ratio changes
// inside the resampler
const RatioFilter = 100

// Queue sizes
const (
	CommandQueueSize = 16
	TimingQueueSize  = 256
	InfoQueueSize    = 256
)
