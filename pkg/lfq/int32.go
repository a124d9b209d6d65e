// ABOUTME: Lock-free queue of 32-bit control words
// ABOUTME: Used for wait/process commands and transmitter state reports
package lfq

// Int32Queue carries single 32-bit words
type Int32Queue struct {
	Queue[int32]
}

// NewInt32Queue creates a control-word queue with at least nelm slots
func NewInt32Queue(nelm int) *Int32Queue {
	return &Int32Queue{Queue: *NewQueue[int32](nelm)}
}

// WriteInt32 stores and commits v. The caller checks WriteAvailable when it
// matters; otherwise the oldest unread word is overwritten.
func (q *Int32Queue) WriteInt32(v int32) {
	*q.WriteSlot() = v
	q.WriteCommit()
}

// ReadInt32 returns and commits the oldest word
func (q *Int32Queue) ReadInt32() int32 {
	v := *q.ReadSlot()
	q.ReadCommit()
	return v
}
