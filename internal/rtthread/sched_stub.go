// ABOUTME: Fallback scheduling hooks for platforms without SCHED_FIFO support
// ABOUTME: Both operations report that they are unsupported

//go:build !linux

package rtthread

import (
	"github.com/pkg/errors"
)

var errUnsupported = errors.New("not supported on this platform")

func setPriority(prio int) error { return errUnsupported }

// LockMemory is not supported on this platform
func LockMemory() error { return errUnsupported }
