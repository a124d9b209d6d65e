// ABOUTME: SO_REUSEADDR for shared multicast receive ports
// ABOUTME: Unix implementation via x/sys/unix

//go:build unix

package netio

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func reuseAddress(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return serr
}
