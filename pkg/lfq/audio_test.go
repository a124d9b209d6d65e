// ABOUTME: Tests for the interleaved audio ring
// ABOUTME: Covers linear spans, deliberate overrun and negative read availability
package lfq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudioQueueSize(t *testing.T) {
	assert.Equal(t, 16, NewAudioQueue(1, 2).Frames())
	assert.Equal(t, 1024, NewAudioQueue(1000, 2).Frames())
	q := NewAudioQueue(64, 3)
	assert.Equal(t, 3, q.Channels())
	assert.Len(t, q.WriteData(), 64*3)
}

func TestAudioQueueLinearSpans(t *testing.T) {
	q := NewAudioQueue(16, 2)
	q.WriteCommit(12)
	q.ReadCommit(12)
	assert.Equal(t, 4, q.WriteLinear())
	assert.Equal(t, 16, q.WriteAvailable())

	// Write 8 frames in two passes, crossing the end of storage.
	n := 0
	for n < 8 {
		k := min(q.WriteLinear(), 8-n)
		d := q.WriteData()
		for i := 0; i < k; i++ {
			d[2*i] = float32(n + i)
			d[2*i+1] = -float32(n + i)
		}
		q.WriteCommit(k)
		n += k
	}
	require.Equal(t, 8, q.ReadAvailable())

	n = 0
	for n < 8 {
		k := min(q.ReadLinear(), 8-n)
		d := q.ReadData()
		for i := 0; i < k; i++ {
			assert.Equal(t, float32(n+i), d[2*i])
			assert.Equal(t, -float32(n+i), d[2*i+1])
		}
		q.ReadCommit(k)
		n += k
	}
	assert.Equal(t, 0, q.ReadAvailable())
}

func TestAudioQueueOverrunKeepsCounters(t *testing.T) {
	q := NewAudioQueue(16, 1)
	q.WriteCommit(40)
	assert.Equal(t, 40, q.ReadAvailable())
	assert.Equal(t, -24, q.WriteAvailable())
	assert.Equal(t, int32(40), q.WriteCount())
}

func TestAudioQueueReadSkipAndStepBack(t *testing.T) {
	q := NewAudioQueue(16, 1)
	q.WriteCommit(4)
	q.ReadCommit(10)
	assert.Equal(t, -6, q.ReadAvailable())
	q.ReadCommit(-8)
	assert.Equal(t, 2, q.ReadAvailable())
	assert.Equal(t, int32(2), q.ReadCount())
}

func TestAudioQueueCountersWrap(t *testing.T) {
	q := NewAudioQueue(16, 1)
	q.nwr.Store(^uint32(0) - 2)
	q.nrd.Store(^uint32(0) - 2)
	q.WriteCommit(5)
	assert.Equal(t, 5, q.ReadAvailable())
	assert.Equal(t, 11, q.WriteAvailable())
}

func TestAudioQueueResetZeroesStorage(t *testing.T) {
	q := NewAudioQueue(16, 2)
	d := q.WriteData()
	for i := range d {
		d[i] = 1
	}
	q.WriteCommit(16)
	q.Reset()
	assert.Equal(t, 0, q.ReadAvailable())
	for _, v := range q.ReadData() {
		require.Zero(t, v)
	}
}
