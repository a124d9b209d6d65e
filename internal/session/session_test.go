// ABOUTME: Loopback test running a send and a receive session together
// ABOUTME: Uses timer-driven engines on 127.0.0.1 and watches status snapshots
package session

import (
	"context"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sendspin/sendspin-bridge/internal/engine"
	"github.com/Sendspin/sendspin-bridge/internal/netio"
	"github.com/Sendspin/sendspin-bridge/pkg/audio"
	"github.com/Sendspin/sendspin-bridge/pkg/protocol"
)

// statusLog records snapshots and lets a test wait for one
type statusLog struct {
	mu   sync.Mutex
	seen []Status
}

func (l *statusLog) Observe(s Status) {
	l.mu.Lock()
	l.seen = append(l.seen, s)
	l.mu.Unlock()
}

func (l *statusLog) waitFor(t *testing.T, timeout time.Duration, match func(Status) bool) Status {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		l.mu.Lock()
		for _, s := range l.seen {
			if match(s) {
				l.mu.Unlock()
				return s
			}
		}
		l.mu.Unlock()
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("no matching status within %s", timeout)
	return Status{}
}

func freePort(t *testing.T) int {
	t.Helper()
	c, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := c.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, c.Close())
	return port
}

func TestLoopbackSession(t *testing.T) {
	if testing.Short() {
		t.Skip("runs real-time engines for several seconds")
	}
	ep := netio.Endpoint{Address: "127.0.0.1", Port: freePort(t)}

	var peak float64
	var peakMu sync.Mutex
	rxEng, err := engine.NewClock(engine.ClockOptions{
		SampleRate: 48000,
		BufferSize: 256,
		Outputs:    2,
		Drain: func(out audio.Buffer) {
			peakMu.Lock()
			for _, x := range out[0] {
				peak = math.Max(peak, math.Abs(float64(x)))
			}
			peakMu.Unlock()
		},
	})
	require.NoError(t, err)

	var phase float64
	txEng, err := engine.NewClock(engine.ClockOptions{
		SampleRate: 48000,
		BufferSize: 256,
		Inputs:     2,
		Fill: func(in audio.Buffer) {
			for i := range in[0] {
				v := float32(0.5 * math.Sin(phase))
				in[0][i], in[1][i] = v, v
				phase += 2 * math.Pi * 1000 / 48000
			}
		},
	})
	require.NoError(t, err)

	rxLog, txLog := &statusLog{}, &statusLog{}
	rxCtx, rxCancel := context.WithCancel(context.Background())
	defer rxCancel()
	rxDone := make(chan error, 1)
	go func() {
		rxDone <- Receive(rxCtx, rxEng, ReceiveConfig{
			Endpoint: ep,
			Channels: []int{0, 1},
			Buffer:   20,
			Observer: rxLog,
		})
	}()
	// Give the receiver time to bind before packets flow.
	time.Sleep(100 * time.Millisecond)

	txCtx, txCancel := context.WithCancel(context.Background())
	defer txCancel()
	txDone := make(chan error, 1)
	go func() {
		txDone <- Send(txCtx, txEng, SendConfig{
			Endpoint: ep,
			Hops:     1,
			MTU:      1500,
			Format:   protocol.Format24Bit,
			Channels: 2,
			Observer: txLog,
		})
	}()

	locked := rxLog.waitFor(t, 10*time.Second, func(s Status) bool {
		return s.State == "proc1" || s.State == "proc2"
	})
	assert.Equal(t, RoleReceiver, locked.Role)
	assert.Equal(t, 2, locked.Channels)
	assert.Equal(t, 48000, locked.Rate)
	assert.Equal(t, "24bit", locked.Format)
	assert.InDelta(t, 1.0, locked.Ratio, 0.05)
	assert.NotEmpty(t, locked.Session)

	sent := txLog.waitFor(t, 2*time.Second, func(s Status) bool { return s.Packets > 0 })
	assert.Equal(t, "send", sent.State)
	assert.Equal(t, RoleSender, sent.Role)

	// Measure after lock so start-up transients do not count.
	peakMu.Lock()
	peak = 0
	peakMu.Unlock()
	time.Sleep(time.Second)
	peakMu.Lock()
	assert.InDelta(t, 0.5, peak, 0.05)
	peakMu.Unlock()

	txCancel()
	select {
	case err := <-txDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sender did not stop")
	}
	ended := rxLog.waitFor(t, 5*time.Second, func(s Status) bool { return s.State == "txend" })
	assert.Equal(t, locked.Session, ended.Session)

	// The receiver keeps waiting for the next sender until cancelled.
	select {
	case err := <-rxDone:
		t.Fatalf("receiver returned early: %v", err)
	default:
	}
	rxCancel()
	select {
	case err := <-rxDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("receiver did not stop")
	}
}
