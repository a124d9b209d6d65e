// ABOUTME: Variable-ratio audio resampling package
// ABOUTME: Polyphase windowed-sinc resampler whose ratio can be retuned every call
// Package resample provides a variable-ratio resampler for clock recovery.
//
// VResampler converts interleaved float32 frames at a nominal ratio that can
// be corrected at run time by a small factor. The caller sets InpCount,
// InpData, OutCount and OutData, then calls Process, which consumes input
// until either side is exhausted and advances the four fields. A nil InpData
// feeds zero-valued frames; a nil OutData discards output.
//
// InpDist reports the fractional distance between the next input frame to be
// read and the position of the next output frame, in input frames, so a
// control loop can include the resampler's own delay in its error term.
//
// Example:
//
//	r, err := resample.New(48000.0/44100.0, 2, 32)
//	r.SetRatio(1.0002)
//	r.InpCount, r.InpData = n, input
//	r.OutCount, r.OutData = 256, output
//	r.Process()
package resample
