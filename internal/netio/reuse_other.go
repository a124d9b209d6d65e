// ABOUTME: SO_REUSEADDR fallback for platforms without x/sys/unix
// ABOUTME: Multicast ports are not shared there

//go:build !unix

package netio

import "syscall"

func reuseAddress(network, address string, c syscall.RawConn) error { return nil }
