// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and Buffer types and sample conversion functions
// Package audio provides fundamental audio types for the bridge.
//
// This package defines core types used throughout the bridge:
//   - Format: sample rate and channel count of a stream
//   - Buffer: one period of planar float32 audio
//
// It also provides conversions between interleaved and planar layouts and
// between integer PCM and float samples.
//
// Example:
//
//	buf := audio.NewBuffer(2, 256)
//	audio.Deinterleave(buf, frames, 256)
//	pcm := audio.SampleToInt16(buf[0][0])
package audio
