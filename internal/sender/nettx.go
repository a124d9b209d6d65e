// ABOUTME: Network send thread of the bridge sender
// ABOUTME: Sends queued packets and, between periods, the stream descriptor
package sender

import (
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/Sendspin/sendspin-bridge/internal/rtthread"
	"github.com/Sendspin/sendspin-bridge/pkg/lfq"
	"github.com/Sendspin/sendspin-bridge/pkg/protocol"
)

// PacketWriter is the datagram sink of the send loop. A connected
// *net.UDPConn satisfies it.
type PacketWriter interface {
	Write(b []byte) (int, error)
}

// TxStats counts what the send loop did. Safe to read from any goroutine.
type TxStats struct {
	Packets     atomic.Uint64
	Descriptors atomic.Uint64
	Errors      atomic.Uint64
}

// Nettx is the send loop. Each Trigger makes it send one packet: the oldest
// queued data packet, or the descriptor when the queue is empty. The
// transmitter posts once per data packet plus once per control period, so
// the descriptor goes out roughly twice a second. The loop never closes
// conn; its owner closes it after Run has returned.
type Nettx struct {
	packq *lfq.PacketQueue
	timeq *lfq.TimingQueue
	desc  *protocol.Packet
	conn  PacketWriter
	sema  *rtthread.Sema
	stop  atomic.Bool
	stats TxStats
}

// NewNettx creates a send loop writing to conn. desc must already hold the
// stream descriptor.
func NewNettx(conn PacketWriter, packq *lfq.PacketQueue, timeq *lfq.TimingQueue, desc *protocol.Packet) *Nettx {
	return &Nettx{
		packq: packq,
		timeq: timeq,
		desc:  desc,
		conn:  conn,
		sema:  rtthread.NewSema(),
	}
}

// Trigger wakes the loop to send one packet. Safe from the audio callback.
func (n *Nettx) Trigger() { n.sema.Post() }

// Stop makes the loop send a terminating descriptor and return
func (n *Nettx) Stop() {
	n.stop.Store(true)
	n.sema.Post()
}

// Stats returns the loop's counters
func (n *Nettx) Stats() *TxStats { return &n.stats }

// Run serves triggers until Stop, which ends it after the terminating
// descriptor is written
func (n *Nettx) Run() {
	for {
		n.sema.Wait()
		if n.stop.Load() {
			n.desc.SetFlags(protocol.FlagTerminate)
			n.send(n.desc)
			return
		}
		if n.packq.ReadAvailable() > 0 {
			n.send(n.packq.ReadPacket())
			n.packq.ReadCommit()
			n.stats.Packets.Inc()
			continue
		}
		if n.timeq.ReadAvailable() > 0 {
			d := n.timeq.ReadSlot()
			n.desc.SetTimeMark(d.Count, d.Secs, d.Frac)
			n.timeq.ReadCommit()
		}
		n.send(n.desc)
		n.stats.Descriptors.Inc()
	}
}

func (n *Nettx) send(p *protocol.Packet) {
	if _, err := n.conn.Write(p.Bytes()); err != nil {
		if n.stats.Errors.Inc() == 1 {
			logrus.WithError(err).Warn("Packet send failed")
		}
	}
}
