// ABOUTME: UDP sockets for the bridge, unicast or multicast, IPv4 or IPv6
// ABOUTME: Multicast group membership, TTL and interface selection via x/net
package netio

import (
	"context"
	"net"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// IP plus UDP header sizes
const (
	OverheadIPv4 = 28
	OverheadIPv6 = 48
)

// ReadBufferSize is the kernel receive buffer requested for receive sockets
const ReadBufferSize = 1 << 20

// Endpoint names a UDP address and, for multicast, the interface to use
type Endpoint struct {
	Address   string
	Port      int
	Interface string
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
}

// Resolve looks up the endpoint address
func (e Endpoint) Resolve() (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp", e.String())
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", e)
	}
	return addr, nil
}

// HeaderOverhead returns the IP and UDP header bytes for packets to addr
func HeaderOverhead(addr *net.UDPAddr) int {
	if addr.IP.To4() == nil {
		return OverheadIPv6
	}
	return OverheadIPv4
}

func lookupInterface(name string) (*net.Interface, error) {
	if name == "" {
		return nil, nil
	}
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return nil, errors.Wrapf(err, "interface %q", name)
	}
	return ifi, nil
}

// Dial opens a send socket connected to the endpoint. For a multicast
// group, hops sets the TTL and Interface picks the outgoing interface.
func Dial(e Endpoint, hops int) (*net.UDPConn, error) {
	addr, err := e.Resolve()
	if err != nil {
		return nil, err
	}
	ifi, err := lookupInterface(e.Interface)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	if addr.IP.IsMulticast() {
		if err := setMulticastSend(conn, addr, ifi, hops); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

func setMulticastSend(conn *net.UDPConn, addr *net.UDPAddr, ifi *net.Interface, hops int) error {
	if addr.IP.To4() != nil {
		pc := ipv4.NewPacketConn(conn)
		if err := pc.SetMulticastTTL(hops); err != nil {
			return errors.Wrap(err, "set multicast TTL")
		}
		if err := pc.SetMulticastLoopback(true); err != nil {
			return errors.Wrap(err, "set multicast loopback")
		}
		if ifi != nil {
			if err := pc.SetMulticastInterface(ifi); err != nil {
				return errors.Wrap(err, "set multicast interface")
			}
		}
		return nil
	}
	pc := ipv6.NewPacketConn(conn)
	if err := pc.SetMulticastHopLimit(hops); err != nil {
		return errors.Wrap(err, "set multicast hop limit")
	}
	if err := pc.SetMulticastLoopback(true); err != nil {
		return errors.Wrap(err, "set multicast loopback")
	}
	if ifi != nil {
		if err := pc.SetMulticastInterface(ifi); err != nil {
			return errors.Wrap(err, "set multicast interface")
		}
	}
	return nil
}

// Listen opens a receive socket bound to the endpoint. A multicast group
// needs an interface to join on; the port may then be shared with other
// receivers of the same group.
func Listen(e Endpoint) (*net.UDPConn, error) {
	addr, err := e.Resolve()
	if err != nil {
		return nil, err
	}
	multicast := addr.IP.IsMulticast()
	if multicast && e.Interface == "" {
		return nil, errors.Errorf("multicast address %s needs an interface", addr.IP)
	}
	ifi, err := lookupInterface(e.Interface)
	if err != nil {
		return nil, err
	}

	lc := net.ListenConfig{}
	if multicast {
		lc.Control = reuseAddress
	}
	network := "udp4"
	if addr.IP.To4() == nil {
		network = "udp6"
	}
	pc, err := lc.ListenPacket(context.Background(), network, addr.String())
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}
	conn := pc.(*net.UDPConn)
	if multicast {
		if err := joinGroup(conn, addr, ifi); err != nil {
			conn.Close()
			return nil, err
		}
	}
	// A small kernel buffer only costs headroom; failure is not fatal.
	_ = conn.SetReadBuffer(ReadBufferSize)
	return conn, nil
}

func joinGroup(conn *net.UDPConn, addr *net.UDPAddr, ifi *net.Interface) error {
	group := &net.UDPAddr{IP: addr.IP}
	if addr.IP.To4() != nil {
		if err := ipv4.NewPacketConn(conn).JoinGroup(ifi, group); err != nil {
			return errors.Wrapf(err, "join %s on %s", addr.IP, ifi.Name)
		}
		return nil
	}
	if err := ipv6.NewPacketConn(conn).JoinGroup(ifi, group); err != nil {
		return errors.Wrapf(err, "join %s on %s", addr.IP, ifi.Name)
	}
	return nil
}
