// ABOUTME: Tests for bridge sockets
// ABOUTME: Address handling and a loopback round trip
package netio

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderOverhead(t *testing.T) {
	tests := []struct {
		addr string
		want int
	}{
		{"127.0.0.1", OverheadIPv4},
		{"239.1.2.3", OverheadIPv4},
		{"::1", OverheadIPv6},
		{"ff02::1", OverheadIPv6},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, HeaderOverhead(&net.UDPAddr{IP: net.ParseIP(tt.addr)}))
		})
	}
}

func TestEndpointString(t *testing.T) {
	assert.Equal(t, "10.0.0.1:9000", Endpoint{Address: "10.0.0.1", Port: 9000}.String())
	assert.Equal(t, "[::1]:9000", Endpoint{Address: "::1", Port: 9000}.String())
}

func TestListenMulticastNeedsInterface(t *testing.T) {
	_, err := Listen(Endpoint{Address: "239.10.10.10", Port: 9000})
	assert.ErrorContains(t, err, "needs an interface")
}

func TestUnknownInterface(t *testing.T) {
	_, err := Dial(Endpoint{Address: "127.0.0.1", Port: 9000, Interface: "no-such-if0"}, 1)
	assert.Error(t, err)
}

func TestLoopbackRoundTrip(t *testing.T) {
	rx, err := Listen(Endpoint{Address: "127.0.0.1", Port: 0})
	require.NoError(t, err)
	defer rx.Close()
	port := rx.LocalAddr().(*net.UDPAddr).Port

	tx, err := Dial(Endpoint{Address: "127.0.0.1", Port: port}, 1)
	require.NoError(t, err)
	defer tx.Close()

	_, err = tx.Write([]byte("znjb"))
	require.NoError(t, err)

	require.NoError(t, rx.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	n, from, err := rx.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, "znjb", string(buf[:n]))
	assert.True(t, from.IP.IsLoopback())
}
