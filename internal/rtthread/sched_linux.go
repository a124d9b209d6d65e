// ABOUTME: Linux real-time scheduling and memory locking
// ABOUTME: SCHED_FIFO through sched_setattr and mlockall through x/sys/unix

//go:build linux

package rtthread

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// setPriority moves the calling OS thread to SCHED_FIFO at prio
func setPriority(prio int) error {
	attr := unix.SchedAttr{
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(prio),
	}
	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		return errors.Wrap(err, "sched_setattr")
	}
	return nil
}

// LockMemory locks current and future pages of the process into RAM
func LockMemory() error {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		return errors.Wrap(err, "mlockall")
	}
	return nil
}
