// ABOUTME: Lock-free queue of preallocated network packets
// ABOUTME: Slots are recycled; the writer fills a packet in place then commits
package lfq

import (
	"github.com/Sendspin/sendspin-bridge/pkg/protocol"
)

// PacketQueue carries wire packets from the transmit callback to the send thread
type PacketQueue struct {
	Queue[*protocol.Packet]
	size int
}

// NewPacketQueue creates a queue of at least nelm packets of size bytes each
func NewPacketQueue(nelm, size int) *PacketQueue {
	q := &PacketQueue{Queue: *NewQueue[*protocol.Packet](nelm), size: size}
	for i := range q.data {
		q.data[i] = protocol.NewPacket(size)
	}
	return q
}

// WritePacket returns the packet in the next write slot
func (q *PacketQueue) WritePacket() *protocol.Packet {
	return *q.WriteSlot()
}

// ReadPacket returns the packet in the oldest filled slot
func (q *PacketQueue) ReadPacket() *protocol.Packet {
	return *q.ReadSlot()
}

// PacketSize returns the byte capacity of every slot
func (q *PacketQueue) PacketSize() int { return q.size }
