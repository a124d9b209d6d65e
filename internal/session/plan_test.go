// ABOUTME: Tests for receive and send session sizing
// ABOUTME: Ring and delay from buffer ms, automatic filter length, packets per period
package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sendspin/sendspin-bridge/pkg/protocol"
)

func TestPlanReceive(t *testing.T) {
	tests := []struct {
		name     string
		txRate   int
		txPeriod int
		rate     int
		period   int
		buffer   int
		filter   int
		expected Plan
	}{
		{"same rate", 48000, 256, 48000, 256, 10, 0, Plan{Ring: 2048, Delay: 480, Ratio: 1, Filter: 32}},
		{"no extra buffer", 48000, 256, 48000, 256, 0, 0, Plan{Ring: 1024, Delay: 0, Ratio: 1, Filter: 32}},
		{"explicit filter", 48000, 128, 48000, 128, 20, 64, Plan{Ring: 4096, Delay: 960, Ratio: 1, Filter: 64}},
		{"upsample", 44100, 256, 48000, 256, 10, 0, Plan{Ring: 2048, Delay: 441, Ratio: 48000.0 / 44100, Filter: 48}},
		{"large buffer", 48000, 256, 48000, 256, 100, 0, Plan{Ring: 16384, Delay: 4800, Ratio: 1, Filter: 32}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PlanReceive(tt.txRate, tt.txPeriod, tt.rate, tt.period, tt.buffer, tt.filter)
			assert.Equal(t, tt.expected.Ring, p.Ring)
			assert.Equal(t, tt.expected.Delay, p.Delay)
			assert.InDelta(t, tt.expected.Ratio, p.Ratio, 1e-12)
			assert.Equal(t, tt.expected.Filter, p.Filter)
		})
	}
}

func TestAutoFilter(t *testing.T) {
	tests := []struct {
		rate, txRate, expected int
	}{
		{48000, 48000, 32},
		{44100, 48000, 48},
		{32000, 48000, 48},
		{96000, 96000, 16},
		{96000, 48000, 32},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, AutoFilter(tt.rate, tt.txRate), "%d/%d", tt.rate, tt.txRate)
	}
}

func TestPlanSend(t *testing.T) {
	p, err := planSend(1500, 28, 48000, 256, protocol.Format24Bit, 2)
	require.NoError(t, err)
	assert.Equal(t, sendPlan{MaxSize: 1472, Packets: 2, Queue: 20}, p)

	p, err = planSend(1500, 28, 48000, 256, protocol.Format16Bit, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Packets)
	assert.Equal(t, 10, p.Queue)

	p, err = planSend(1500, 48, 48000, 256, protocol.FormatFloat, 8)
	require.NoError(t, err)
	// (1452 - 20) / 32 = 44 frames per packet
	assert.Equal(t, 6, p.Packets)

	_, err = planSend(128, 28, 48000, 256, protocol.FormatFloat, 64)
	assert.Error(t, err)
}
