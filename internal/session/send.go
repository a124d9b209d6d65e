// ABOUTME: Send session of bridge-send
// ABOUTME: Sizes packets for the path MTU, runs the send thread and watches the transmitter
package session

import (
	"context"
	"math"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Sendspin/sendspin-bridge/internal/engine"
	"github.com/Sendspin/sendspin-bridge/internal/netio"
	"github.com/Sendspin/sendspin-bridge/internal/rtthread"
	"github.com/Sendspin/sendspin-bridge/internal/sender"
	"github.com/Sendspin/sendspin-bridge/pkg/lfq"
	"github.com/Sendspin/sendspin-bridge/pkg/protocol"
)

// SendPoll is the control interval of a send session. Each tick also wakes
// the send thread, so the descriptor goes out at least this often.
const SendPoll = 500 * time.Millisecond

// SendConfig configures Send
type SendConfig struct {
	Endpoint netio.Endpoint
	Hops     int
	MTU      int
	Format   protocol.SampleFormat
	Channels int
	Observer Observer
}

// sendPlan holds the packet sizing of a send session
type sendPlan struct {
	MaxSize int // datagram payload limit
	Packets int // packets per period
	Queue   int // packet queue slots
}

// planSend sizes packets for a path with the given per-datagram overhead
func planSend(mtu, overhead, rate, period int, format protocol.SampleFormat, nchan int) (sendPlan, error) {
	size := mtu - overhead
	ppp := protocol.PacketsPerPeriod(size, period, format, nchan)
	if ppp < 1 {
		return sendPlan{}, errors.Errorf("MTU %d too small for %d channels of %s", mtu, nchan, format)
	}
	periods := int(math.Ceil(sender.QueueTime * float64(rate) / float64(period)))
	return sendPlan{MaxSize: size, Packets: ppp, Queue: ppp * periods}, nil
}

// Send activates eng with a transmitter and streams to cfg.Endpoint until
// ctx is done or the transmitter terminates. Receivers are told about the
// end with a terminating descriptor.
func Send(ctx context.Context, eng engine.Engine, cfg SendConfig) error {
	if cfg.Observer == nil {
		cfg.Observer = Observers(nil)
	}
	conn, err := netio.Dial(cfg.Endpoint, cfg.Hops)
	if err != nil {
		return err
	}
	defer conn.Close()

	rate, period := eng.SampleRate(), eng.BufferSize()
	plan, err := planSend(cfg.MTU, netio.HeaderOverhead(conn.RemoteAddr().(*net.UDPAddr)), rate, period, cfg.Format, cfg.Channels)
	if err != nil {
		return err
	}

	packq := lfq.NewPacketQueue(plan.Queue, plan.MaxSize)
	timeq := lfq.NewTimingQueue(sender.TimingQueueSize)
	stateq := lfq.NewInt32Queue(sender.StateQueueSize)
	desc := protocol.NewPacket(protocol.DescriptorSize)
	desc.InitDescriptor(0, cfg.Format, cfg.Channels, plan.MaxSize, rate, period)

	id := uuid.NewString()
	log := logrus.WithFields(logrus.Fields{"session": id, "peer": cfg.Endpoint.String()})
	log.Printf("Sending %d chan, %d Hz, %s to %s", cfg.Channels, rate, cfg.Format, cfg.Endpoint)
	log.Debugf("%d packets per period, %d bytes max", plan.Packets, plan.MaxSize)

	nettx := sender.NewNettx(conn, packq, timeq, desc)
	thread := rtthread.Start("nettx", netPriority(eng), nettx.Run)
	defer func() {
		nettx.Stop()
		thread.Wait()
	}()

	tx, err := sender.NewTransmitter(rate, sender.TransmitterConfig{
		PackQ:    packq,
		TimeQ:    timeq,
		StateQ:   stateq,
		Format:   cfg.Format,
		Channels: cfg.Channels,
		Packets:  plan.Packets,
		Trigger:  nettx.Trigger,
	})
	if err != nil {
		return err
	}
	if err := eng.Activate(tx); err != nil {
		return errors.Wrap(err, "activate engine")
	}
	// The engine stops before the send thread sends its final descriptor.
	defer eng.Close()

	status := Status{
		Session:  id,
		Role:     RoleSender,
		Peer:     cfg.Endpoint.String(),
		Channels: cfg.Channels,
		Rate:     rate,
		Period:   period,
		Format:   cfg.Format.String(),
	}
	ticker := time.NewTicker(SendPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		nettx.Trigger()
		state := tx.State()
		for stateq.ReadAvailable() > 0 {
			state = sender.State(stateq.ReadInt32())
			switch state {
			case sender.StateSuspend:
				log.Printf("Suspended.")
			case sender.StateSend:
				log.Printf("Sending.")
			}
		}
		stats := nettx.Stats()
		status.State = state.String()
		status.Packets = stats.Packets.Load()
		status.Descriptors = stats.Descriptors.Load()
		status.SendErrors = stats.Errors.Load()
		cfg.Observer.Observe(status)
		if state == sender.StateTerm {
			log.Errorf("Fatal error condition, terminating.")
			return ErrFatal
		}
	}
}
