// ABOUTME: Network receive thread of the bridge receiver
// ABOUTME: Fills the jitter buffer, substitutes silence for lost frames, timestamps periods
package receiver

import (
	"go.uber.org/atomic"

	clocksync "github.com/Sendspin/sendspin-bridge/internal/sync"
	"github.com/Sendspin/sendspin-bridge/pkg/lfq"
	"github.com/Sendspin/sendspin-bridge/pkg/protocol"
)

// PacketReader is the datagram source of the receive loop. *net.UDPConn
// satisfies it.
type PacketReader interface {
	Read(b []byte) (int, error)
}

// NetStats counts what the receive loop saw. Safe to read from any goroutine.
type NetStats struct {
	Packets    atomic.Uint64 // data packets written to the jitter buffer
	LostFrames atomic.Uint64 // frames replaced by silence
	Stale      atomic.Uint64 // packets older than the write position
	Invalid    atomic.Uint64 // datagrams that failed validation
}

// NetrxConfig describes one stream as announced by its descriptor
type NetrxConfig struct {
	AudioQ   *lfq.AudioQueue
	CommQ    *lfq.Int32Queue
	TimeQ    *lfq.TimingQueue
	Channels []int // 0-based sender channel for each ring channel
	MaxSize  int   // largest datagram, from the descriptor
	Rate     int   // sender sample rate
	Period   int   // sender period size

	// Now returns engine microseconds; it timestamps every datagram
	Now func() uint64
}

// Netrx turns received packets into jitter buffer frames plus one timing
// record per sender period. It runs on its own goroutine and is the only
// writer of the audio and timing queues, and the only reader of the
// command queue.
type Netrx struct {
	cfg    NetrxConfig
	packet *protocol.Packet
	dll    *clocksync.DLL
	state  NetState
	first  bool
	stats  NetStats
}

// NewNetrx creates a receive loop for one stream
func NewNetrx(cfg NetrxConfig) *Netrx {
	return &Netrx{
		cfg:    cfg,
		packet: protocol.NewPacket(cfg.MaxSize),
		dll:    clocksync.NewDLL(cfg.Rate, cfg.Period),
		state:  NetInit,
	}
}

// Stats returns the loop's counters
func (n *Netrx) Stats() *NetStats { return &n.stats }

// State returns the loop state. Only meaningful on the loop's goroutine or
// after Run returned.
func (n *Netrx) State() NetState { return n.state }

// Run reads datagrams until the sender terminates or a read fails. Closing
// the connection is the way to stop it.
func (n *Netrx) Run(conn PacketReader) {
	n.state = NetWait
	for n.state < NetTerm {
		k, err := conn.Read(n.packet.Data)
		arrival := n.cfg.Now()
		if err != nil || k <= 0 {
			n.state = NetFail
			n.send(NetFail, 0, 0)
			break
		}
		n.packet.SetLen(k)
		n.Deliver(n.packet, arrival)
	}
	n.state = NetInit
}

// Deliver handles one datagram that arrived at engine time arrival. Run
// calls it for every read; tests call it directly.
func (n *Netrx) Deliver(p *protocol.Packet, arrival uint64) {
	if n.state == NetInit {
		n.state = NetWait
	}
	tr := clocksync.EngineSeconds(arrival)

	ptype, err := p.CheckType()
	if err != nil {
		n.stats.Invalid.Inc()
		return
	}
	if p.HasFlag(protocol.FlagTerminate) {
		n.state = NetTerm
		n.send(NetTerm, 0, 0)
		return
	}
	if p.HasFlag(protocol.FlagSuspend) {
		n.state = NetWait
		n.send(NetWait, 0, 0)
		return
	}
	if ptype != protocol.TypeData {
		return
	}

	if n.cfg.CommQ.ReadAvailable() > 0 {
		n.state = NetState(n.cfg.CommQ.ReadInt32())
		if n.state == NetProc {
			n.first = true
		}
	}
	if n.state != NetProc {
		return
	}
	if err := p.Validate(); err != nil {
		n.stats.Invalid.Inc()
		return
	}

	timed := p.HasFlag(protocol.FlagTimed)
	tr -= 1e-6 * float64(p.Delay())
	fc := p.FrameCount()
	if n.first {
		if !timed {
			return
		}
		n.first = false
		n.cfg.AudioQ.WriteCommit(int(fc - n.cfg.AudioQ.WriteCount()))
		n.dll.Reset(tr)
	} else {
		dc := int(fc - n.cfg.AudioQ.WriteCount())
		if dc > 0 {
			n.writeZeros(dc)
			n.dll.Skip(dc)
			n.stats.LostFrames.Add(uint64(dc))
		} else if dc < 0 {
			n.stats.Stale.Inc()
			return
		}
		if timed {
			n.dll.Update(tr)
		}
	}
	if timed {
		n.send(NetProc, n.cfg.AudioQ.WriteCount(), n.dll.Time())
		n.dll.Advance()
	}
	n.writeAudio(p)
	n.stats.Packets.Inc()
}

// send queues a timing record if there is room
func (n *Netrx) send(state NetState, count int32, t float64) {
	q := n.cfg.TimeQ
	if q.WriteAvailable() <= 0 {
		return
	}
	d := q.WriteSlot()
	d.Flags = int32(state)
	d.Count = count
	d.Time = t
	q.WriteCommit()
}

// writeAudio copies a packet into the ring, mapping sender channels onto ring
// channels. Ring channels without a sender channel get silence. Overrunning
// the reader is allowed; it resynchronises on its own.
func (n *Netrx) writeAudio(p *protocol.Packet) {
	q := n.cfg.AudioQ
	ncq := q.Channels()
	ncp := p.Channels()
	nfp := p.PacketFrames()
	for left := nfp; left > 0; {
		k := min(q.WriteLinear(), left)
		buf := q.WriteData()
		for j := 0; j < ncq; j++ {
			c := n.cfg.Channels[j]
			if c < ncp {
				p.GetAudio(c, nfp-left, k, buf[j:], ncq)
			} else {
				for i := 0; i < k; i++ {
					buf[j+i*ncq] = 0
				}
			}
		}
		q.WriteCommit(k)
		left -= k
	}
}

// writeZeros appends nfram frames of silence. A gap longer than the ring
// only needs one ring of zeros; the counter still advances by nfram.
func (n *Netrx) writeZeros(nfram int) {
	q := n.cfg.AudioQ
	ncq := q.Channels()
	fill := min(nfram, q.Frames())
	for left := fill; left > 0; {
		k := min(q.WriteLinear(), left)
		clear(q.WriteData()[:k*ncq])
		q.WriteCommit(k)
		left -= k
	}
	if nfram > fill {
		q.WriteCommit(nfram - fill)
	}
}
