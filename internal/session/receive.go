// ABOUTME: Receive session loop of bridge-recv
// ABOUTME: Waits for a sender, sizes the jitter buffer, runs until the sender ends
package session

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Sendspin/sendspin-bridge/internal/engine"
	"github.com/Sendspin/sendspin-bridge/internal/netio"
	"github.com/Sendspin/sendspin-bridge/internal/receiver"
	"github.com/Sendspin/sendspin-bridge/internal/rtthread"
	clocksync "github.com/Sendspin/sendspin-bridge/internal/sync"
	"github.com/Sendspin/sendspin-bridge/pkg/lfq"
	"github.com/Sendspin/sendspin-bridge/pkg/protocol"
)

// ReceivePoll is the status poll interval of a receive session
const ReceivePoll = 250 * time.Millisecond

// descriptorBuffer is the read buffer used while waiting for a descriptor
const descriptorBuffer = 1500

// ReceiveConfig configures Receive
type ReceiveConfig struct {
	Endpoint netio.Endpoint
	Channels []int // 0-based sender channels, one per output
	Buffer   int   // extra buffering in ms
	Filter   int   // resampler half length, 0 for automatic
	Info     bool  // log statistics lines
	Observer Observer
}

// Receive activates eng with a receiver and serves one sender after
// another until ctx is done or a fatal error occurs. The engine is closed
// on return.
func Receive(ctx context.Context, eng engine.Engine, cfg ReceiveConfig) error {
	if len(cfg.Channels) == 0 {
		return errors.New("no channels")
	}
	if cfg.Observer == nil {
		cfg.Observer = Observers(nil)
	}
	infoq := lfq.NewInfoQueue(receiver.InfoQueueSize)
	rx := receiver.New(eng.SampleRate(), len(cfg.Channels), infoq)
	if err := eng.Activate(rx); err != nil {
		return errors.Wrap(err, "activate engine")
	}
	defer eng.Close()

	for {
		err := receiveOne(ctx, eng, rx, infoq, cfg)
		switch {
		case errors.Is(err, errSenderEnded):
			continue
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}
	}
}

// receiveOne runs one session: wait for a descriptor, start the network
// thread and the receiver, poll status until the session ends
func receiveOne(ctx context.Context, eng engine.Engine, rx *receiver.Receiver, infoq *lfq.InfoQueue, cfg ReceiveConfig) error {
	conn, err := netio.Listen(cfg.Endpoint)
	if err != nil {
		return err
	}
	// Closing the socket ends every blocking read on it.
	stopClose := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopClose()

	logrus.Printf("Waiting for info packet...")
	desc, peer, err := waitDescriptor(conn)
	if err != nil {
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logrus.Errorf("Fatal error on socket.")
		return errors.Wrap(ErrFatal, err.Error())
	}

	id := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{"session": id, "peer": peer.String()})
	log.Printf("From %s : %d chan, %d Hz", peer.IP, desc.Channels(), desc.SampleRate())

	plan := PlanReceive(desc.SampleRate(), desc.PeriodSize(), eng.SampleRate(), eng.BufferSize(), cfg.Buffer, cfg.Filter)
	if cfg.Filter == 0 {
		log.Printf("Resampler filter delay is %d.", plan.Filter)
	}
	log.Debugf("Sender time mark: frame %d at %.6f s", desc.MarkCount(), clocksync.NTPSeconds(desc.MarkSecs(), desc.MarkFrac()))
	log.Debugf("Ring %d frames, delay %d frames, ratio %.6f", plan.Ring, plan.Delay, plan.Ratio)

	audioq := lfq.NewAudioQueue(plan.Ring, len(cfg.Channels))
	commq := lfq.NewInt32Queue(receiver.CommandQueueSize)
	timeq := lfq.NewTimingQueue(receiver.TimingQueueSize)
	netrx := receiver.NewNetrx(receiver.NetrxConfig{
		AudioQ:   audioq,
		CommQ:    commq,
		TimeQ:    timeq,
		Channels: cfg.Channels,
		MaxSize:  desc.MaxPacketSize(),
		Rate:     desc.SampleRate(),
		Period:   desc.PeriodSize(),
		Now:      eng.Now,
	})
	thread := rtthread.Start("netrx", netPriority(eng), func() { netrx.Run(conn) })
	defer func() {
		_ = conn.Close()
		thread.Wait()
	}()

	if err := rx.Start(receiver.Stream{
		AudioQ: audioq,
		CommQ:  commq,
		TimeQ:  timeq,
		Ratio:  plan.Ratio,
		Delay:  plan.Delay,
		Filter: plan.Filter,
	}); err != nil {
		return errors.Wrap(err, "start receiver")
	}

	status := Status{
		Session:  id,
		Role:     RoleReceiver,
		Peer:     peer.String(),
		Channels: desc.Channels(),
		Rate:     desc.SampleRate(),
		Period:   desc.PeriodSize(),
		Format:   desc.Format().String(),
	}
	t := &tracker{log: log, info: cfg.Info}
	ticker := time.NewTicker(ReceivePoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		err := t.check(infoq)
		stats := netrx.Stats()
		status.State = t.state.String()
		status.Error = t.last.Error
		status.Ratio = t.last.Ratio
		status.Frames = t.last.Frames
		status.Syncs = t.last.Syncs
		status.Packets = stats.Packets.Load()
		status.LostFrames = stats.LostFrames.Load()
		status.Invalid = stats.Invalid.Load()
		status.Stale = stats.Stale.Load()
		cfg.Observer.Observe(status)
		if err != nil {
			return err
		}
	}
}

// waitDescriptor reads until a usable stream descriptor arrives
func waitDescriptor(conn *net.UDPConn) (*protocol.Packet, *net.UDPAddr, error) {
	p := protocol.NewPacket(descriptorBuffer)
	for {
		n, from, err := conn.ReadFromUDP(p.Data)
		if err != nil {
			return nil, nil, err
		}
		p.SetLen(n)
		if ptype, err := p.CheckType(); err != nil || ptype != protocol.TypeDescriptor {
			continue
		}
		if p.Validate() != nil || p.HasFlag(protocol.FlagTerminate) {
			continue
		}
		if p.SampleRate() <= 0 || p.PeriodSize() <= 0 || p.MaxPacketSize() <= protocol.DataHeaderSize {
			continue
		}
		return p, from, nil
	}
}
