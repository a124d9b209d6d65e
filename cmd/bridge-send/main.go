// ABOUTME: Entry point for bridge-send
// ABOUTME: Streams a test tone or audio file as multichannel UDP packets
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
	"github.com/Sendspin/sendspin-bridge/internal/source"
	"github.com/Sendspin/sendspin-bridge/internal/ui"
	"github.com/Sendspin/sendspin-bridge/internal/version"
)

// discoveryTimeout bounds the search for a receiver
const discoveryTimeout = 10 * time.Second

func main() {
	cli.VersionPrinter = version.PrintVersion
	app := &cli.App{
		Name:      "bridge-send",
		Usage:     "send multichannel audio over UDP",
		ArgsUsage: "address port [interface]",
		Version:   version.Version,
		Flags:     config.SenderFlags(),
		Action:    run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	conf, err := config.LoadSender(c)
	if err != nil {
		return err
	}
	closeLog, err := logging.Setup(conf.Common)
	if err != nil {
		return err
	}
	defer closeLog()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Address == "" {
		if err := discoverReceiver(sigCtx, conf); err != nil {
			return err
		}
	}

	src, err := source.Open(conf.Source, conf.SampleRate)
	if err != nil {
		return err
	}
	defer src.Close()
	if rate := src.SampleRate(); rate != 0 && rate != conf.SampleRate {
		if c.IsSet("rate") {
			return errors.Errorf("%s is %d Hz, not %d Hz", src.Title(), rate, conf.SampleRate)
		}
		conf.SampleRate = rate
	}
	logrus.Print(version.Startup("sender", src.Title()))
	if err := rtthread.LockMemory(); err != nil {
		logrus.Warnf("Can't lock memory: %v", err)
	}

	eng, err := engine.NewClock(engine.ClockOptions{
		SampleRate: conf.SampleRate,
		BufferSize: conf.Period,
		Inputs:     conf.Channels,
		Priority:   conf.Priority,
		Fill:       source.Filler(src),
	})
	if err != nil {
		return err
	}
	stopFreewheel := handleFreewheel(eng)
	defer stopFreewheel()

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
		tui := ui.New(conf.Name, session.RoleSender)
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

	g.Go(func() error {
		defer cancel()
		return session.Send(ctx, eng, session.SendConfig{
			Endpoint: netio.Endpoint{Address: conf.Address, Port: conf.Port, Interface: conf.Interface},
			Hops:     conf.Hops,
			MTU:      conf.MTU,
			Format:   conf.SampleFormat(),
			Channels: conf.Channels,
			Observer: observers,
		})
	})

	err = g.Wait()
	if errors.Is(err, session.ErrFatal) {
		return cli.Exit("", 1)
	}
	return err
}

// discoverReceiver fills in the address of a receiver found by mDNS. A
// configured name selects that receiver; otherwise the first one wins.
func discoverReceiver(ctx context.Context, conf *config.SenderConfig) error {
	logrus.Printf("Starting receiver discovery...")
	disc := discovery.NewManager(discovery.Config{})
	defer disc.Stop()

	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()
	peer, err := disc.Find(ctx, conf.Name)
	if err != nil {
		return errors.Wrapf(err, "no receiver found after %s", discoveryTimeout)
	}
	if peer.Channels > 0 && peer.Channels < conf.Channels {
		logrus.Warnf("Receiver %s plays %d of %d channels", peer.Name, peer.Channels, conf.Channels)
	}
	conf.Address = peer.Host
	conf.Port = peer.Port
	logrus.Printf("Discovered receiver at %s:%d", conf.Address, conf.Port)
	return conf.Validate()
}
