// ABOUTME: Lock-free single-writer/single-reader queue package
// ABOUTME: Moves audio frames, timing records, packets and control words between threads
// Package lfq provides lock-free ring queues for exactly one writer and one
// reader goroutine.
//
// Every queue keeps two monotonically increasing 32-bit counters. The writer
// only advances the write counter and the reader only advances the read
// counter; the atomic store of a commit publishes the slot contents.
// Capacities are rounded up to a power of two so counters can be masked.
//
// The audio queue deliberately tolerates overrun and reader skips past the
// writer: ReadAvailable may become negative and callers use that as a
// recovery signal.
//
// Example:
//
//	q := lfq.NewQueue[lfq.TimingData](256)
//	if q.WriteAvailable() > 0 {
//	    d := q.WriteSlot()
//	    d.Flags = 1
//	    q.WriteCommit()
//	}
package lfq
