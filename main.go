// ABOUTME: Entry point for bridge-recv
// ABOUTME: Receives a multichannel UDP audio stream and plays it resampled to the local clock
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Sendspin/sendspin-bridge/internal/config"
	"github.com/Sendspin/sendspin-bridge/internal/discovery"
	"github.com/Sendspin/sendspin-bridge/internal/engine"
	"github.com/Sendspin/sendspin-bridge/internal/logging"
	"github.com/Sendspin/sendspin-bridge/internal/monitor"
	"github.com/Sendspin/sendspin-bridge/internal/netio"
	"github.com/Sendspin/sendspin-bridge/internal/rtthread"
	"github.com/Sendspin/sendspin-bridge/internal/session"
	"github.com/Sendspin/sendspin-bridge/internal/ui"
	"github.com/Sendspin/sendspin-bridge/internal/version"
)

func main() {
	cli.VersionPrinter = version.PrintVersion
	app := &cli.App{
		Name:      "bridge-recv",
		Usage:     "receive multichannel audio over UDP and play it on the local clock",
		ArgsUsage: "address port [interface]",
		Version:   version.Version,
		Flags:     config.ReceiverFlags(),
		Action:    run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	conf, err := config.LoadReceiver(c)
	if err != nil {
		return err
	}
	closeLog, err := logging.Setup(conf.Common)
	if err != nil {
		return err
	}
	defer closeLog()

	name := conf.Name
	if name == "" {
		name = hostname()
	}
	logrus.Print(version.Startup("receiver", name))
	if err := rtthread.LockMemory(); err != nil {
		logrus.Warnf("Can't lock memory: %v", err)
	}

	channels := conf.ChannelList()
	eng, err := newEngine(conf, len(channels))
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(sigCtx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var observers session.Observers
	if conf.Monitor != "" {
		mon := monitor.New(conf.Monitor)
		observers = append(observers, mon)
		g.Go(func() error { return mon.Run(ctx) })
	}
	if !conf.NoTUI {
		tui := ui.New(name, session.RoleReceiver)
		observers = append(observers, tui)
		g.Go(tui.Run)
		go func() {
			select {
			case <-tui.QuitChan():
				logrus.Printf("Received quit signal from TUI")
				cancel()
			case <-ctx.Done():
				tui.Stop()
			}
		}()
	}
	if conf.Discovery {
		disc := discovery.NewManager(discovery.Config{
			ServiceName: name,
			Port:        conf.Port,
			Channels:    len(channels),
		})
		if err := disc.Advertise(); err != nil {
			logrus.Warnf("Failed to start mDNS advertisement: %v", err)
		}
		defer disc.Stop()
	}

	g.Go(func() error {
		defer cancel()
		return session.Receive(ctx, eng, session.ReceiveConfig{
			Endpoint: netio.Endpoint{Address: conf.Address, Port: conf.Port, Interface: conf.Interface},
			Channels: channels,
			Buffer:   conf.Buffer,
			Filter:   conf.Filter,
			Info:     conf.Info,
			Observer: observers,
		})
	})

	err = g.Wait()
	if errors.Is(err, session.ErrFatal) {
		return cli.Exit("", 1)
	}
	return err
}

func newEngine(conf *config.ReceiverConfig, nchan int) (engine.Engine, error) {
	if conf.Output == "null" {
		return engine.NewClock(engine.ClockOptions{
			SampleRate: conf.SampleRate,
			BufferSize: conf.Period,
			Outputs:    nchan,
		})
	}
	return engine.NewOto(engine.OtoOptions{
		SampleRate: conf.SampleRate,
		BufferSize: conf.Period,
		Channels:   nchan,
		Latency:    time.Duration(conf.Latency) * time.Millisecond,
	})
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "bridge"
	}
	return h
}
