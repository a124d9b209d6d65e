// ABOUTME: Lock-free interleaved audio frame ring
// ABOUTME: Jitter buffer between the network receive thread and the audio callback
package lfq

import (
	"go.uber.org/atomic"
)

// minAudioFrames is the smallest audio ring size
const minAudioFrames = 16

// AudioQueue is a ring of interleaved float32 frames.
//
// Counters are frame counts. The writer may overrun the reader and the reader
// may commit past the writer; both keep the counters exact, so
// ReadAvailable can be negative.
type AudioQueue struct {
	data    []float32
	nframes int
	nchan   int
	mask    uint32
	nwr     atomic.Uint32
	nrd     atomic.Uint32
}

// NewAudioQueue creates a ring of at least nframes frames of nchan channels
func NewAudioQueue(nframes, nchan int) *AudioQueue {
	k := minAudioFrames
	for k < nframes {
		k <<= 1
	}
	return &AudioQueue{
		data:    make([]float32, k*nchan),
		nframes: k,
		nchan:   nchan,
		mask:    uint32(k - 1),
	}
}

// Reset zeroes counters and storage. Only safe while neither side is active.
func (q *AudioQueue) Reset() {
	q.nwr.Store(0)
	q.nrd.Store(0)
	clear(q.data)
}

// Frames returns the ring size in frames
func (q *AudioQueue) Frames() int { return q.nframes }

// Channels returns the number of interleaved channels
func (q *AudioQueue) Channels() int { return q.nchan }

// WriteCount returns the total number of frames committed by the writer
func (q *AudioQueue) WriteCount() int32 { return int32(q.nwr.Load()) }

// ReadCount returns the total number of frames committed by the reader
func (q *AudioQueue) ReadCount() int32 { return int32(q.nrd.Load()) }

// WriteAvailable returns free frames; negative after an overrun
func (q *AudioQueue) WriteAvailable() int {
	return q.nframes - int(int32(q.nwr.Load()-q.nrd.Load()))
}

// WriteLinear returns the frames that can be written before the ring wraps
func (q *AudioQueue) WriteLinear() int {
	return q.nframes - int(q.nwr.Load()&q.mask)
}

// WriteData returns the storage from the write position to the end of the ring
func (q *AudioQueue) WriteData() []float32 {
	return q.data[q.nchan*int(q.nwr.Load()&q.mask):]
}

// WriteCommit advances the write counter by k frames
func (q *AudioQueue) WriteCommit(k int) {
	q.nwr.Add(uint32(int32(k)))
}

// ReadAvailable returns filled frames; negative after the reader skipped ahead
func (q *AudioQueue) ReadAvailable() int {
	return int(int32(q.nwr.Load() - q.nrd.Load()))
}

// ReadLinear returns the frames that can be read before the ring wraps
func (q *AudioQueue) ReadLinear() int {
	return q.nframes - int(q.nrd.Load()&q.mask)
}

// ReadData returns the storage from the read position to the end of the ring
func (q *AudioQueue) ReadData() []float32 {
	return q.data[q.nchan*int(q.nrd.Load()&q.mask):]
}

// ReadCommit advances the read counter by k frames. k may exceed what is
// available (skip) or be negative (step back).
func (q *AudioQueue) ReadCommit(k int) {
	q.nrd.Add(uint32(int32(k)))
}
