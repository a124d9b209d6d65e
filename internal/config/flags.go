// ABOUTME: Command line flags of both programs and their merge over file config
// ABOUTME: Flags set explicitly override the YAML file, which overrides defaults
package config

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func commonFlags(logFile string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to YAML config file",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level (debug, info, warn, error)",
			Value: "info",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "log file path",
			Value: logFile,
		},
		&cli.BoolFlag{
			Name:  "no-tui",
			Usage: "disable the status display, stream logs instead",
		},
		&cli.StringFlag{
			Name:  "monitor",
			Usage: "listen address for /metrics and /status, empty to disable",
		},
		&cli.BoolFlag{
			Name:  "discovery",
			Usage: "use mDNS to announce or find the peer",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "mDNS instance name (default: hostname)",
		},
	}
}

// ReceiverFlags returns the bridge-recv flags
func ReceiverFlags() []cli.Flag {
	return append(commonFlags("bridge-recv.log"),
		&cli.StringFlag{
			Name:    "chan",
			Aliases: []string{"c"},
			Usage:   "channels to receive, e.g. 1,2 or 1-4,7",
			Value:   "1,2",
		},
		&cli.IntFlag{
			Name:    "buff",
			Aliases: []string{"b"},
			Usage:   "additional buffering in ms",
			Value:   10,
		},
		&cli.IntFlag{
			Name:  "filt",
			Usage: "resampler filter length, 16-96, 0 for automatic",
		},
		&cli.BoolFlag{
			Name:  "info",
			Usage: "print synchronisation statistics",
		},
		&cli.StringFlag{
			Name:  "output",
			Usage: "audio output: oto or null",
			Value: "oto",
		},
		&cli.IntFlag{
			Name:  "rate",
			Usage: "local sample rate",
			Value: 48000,
		},
		&cli.IntFlag{
			Name:  "period",
			Usage: "local period size in frames",
			Value: 256,
		},
		&cli.IntFlag{
			Name:  "latency",
			Usage: "audio device buffer in ms",
			Value: 20,
		},
	)
}

// SenderFlags returns the bridge-send flags
func SenderFlags() []cli.Flag {
	return append(commonFlags("bridge-send.log"),
		&cli.IntFlag{
			Name:    "chan",
			Aliases: []string{"c"},
			Usage:   "number of channels to send",
			Value:   2,
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "sample format: 16bit, 24bit or float",
			Value: "24bit",
		},
		&cli.IntFlag{
			Name:  "mtu",
			Usage: "maximum transmission unit",
			Value: 1500,
		},
		&cli.IntFlag{
			Name:  "hops",
			Usage: "multicast hop limit",
			Value: 1,
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "audio source: tone, or an mp3 or flac file",
			Value: "tone",
		},
		&cli.IntFlag{
			Name:  "rate",
			Usage: "sample rate",
			Value: 48000,
		},
		&cli.IntFlag{
			Name:  "period",
			Usage: "period size in frames",
			Value: 256,
		},
		&cli.IntFlag{
			Name:  "priority",
			Usage: "real-time priority of the audio thread, 0 for none",
		},
	)
}

func loadCommon(c *cli.Context, conf *Common) {
	if c.IsSet("log-level") {
		conf.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-file") {
		conf.LogFile = c.String("log-file")
	}
	if c.IsSet("no-tui") {
		conf.NoTUI = c.Bool("no-tui")
	}
	if c.IsSet("monitor") {
		conf.Monitor = c.String("monitor")
	}
	if c.IsSet("discovery") {
		conf.Discovery = c.Bool("discovery")
	}
	if c.IsSet("name") {
		conf.Name = c.String("name")
	}
}

// endpointArgs reads "address port [interface]" positional arguments
func endpointArgs(c *cli.Context, address *string, port *int, iface *string) error {
	args := c.Args()
	if args.Len() == 0 {
		return nil
	}
	if args.Len() < 2 || args.Len() > 3 {
		return errors.New("expected: address port [interface]")
	}
	p, err := strconv.Atoi(args.Get(1))
	if err != nil {
		return errors.Wrapf(err, "port %q", args.Get(1))
	}
	*address = args.Get(0)
	*port = p
	if args.Len() == 3 {
		*iface = args.Get(2)
	}
	return nil
}

// LoadReceiver builds the receiver configuration. With discovery enabled
// the address may be omitted; it then defaults to all interfaces.
func LoadReceiver(c *cli.Context) (*ReceiverConfig, error) {
	conf := DefaultReceiver()
	if c.IsSet("config") {
		if err := LoadFile(c.String("config"), &conf); err != nil {
			return nil, err
		}
	}
	loadCommon(c, &conf.Common)
	if c.IsSet("chan") {
		conf.Channels = c.String("chan")
	}
	if c.IsSet("buff") {
		conf.Buffer = c.Int("buff")
	}
	if c.IsSet("filt") {
		conf.Filter = c.Int("filt")
	}
	if c.IsSet("info") {
		conf.Info = c.Bool("info")
	}
	if c.IsSet("output") {
		conf.Output = c.String("output")
	}
	if c.IsSet("rate") {
		conf.SampleRate = c.Int("rate")
	}
	if c.IsSet("period") {
		conf.Period = c.Int("period")
	}
	if c.IsSet("latency") {
		conf.Latency = c.Int("latency")
	}
	if err := endpointArgs(c, &conf.Address, &conf.Port, &conf.Interface); err != nil {
		return nil, err
	}
	if conf.Address == "" && conf.Discovery {
		conf.Address = "0.0.0.0"
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// LoadSender builds the sender configuration. With discovery enabled the
// address may be omitted and is filled in once a receiver is found.
func LoadSender(c *cli.Context) (*SenderConfig, error) {
	conf := DefaultSender()
	if c.IsSet("config") {
		if err := LoadFile(c.String("config"), &conf); err != nil {
			return nil, err
		}
	}
	loadCommon(c, &conf.Common)
	if c.IsSet("chan") {
		conf.Channels = c.Int("chan")
	}
	if c.IsSet("format") {
		conf.Format = c.String("format")
	}
	if c.IsSet("mtu") {
		conf.MTU = c.Int("mtu")
	}
	if c.IsSet("hops") {
		conf.Hops = c.Int("hops")
	}
	if c.IsSet("source") {
		conf.Source = c.String("source")
	}
	if c.IsSet("rate") {
		conf.SampleRate = c.Int("rate")
	}
	if c.IsSet("period") {
		conf.Period = c.Int("period")
	}
	if c.IsSet("priority") {
		conf.Priority = c.Int("priority")
	}
	if err := endpointArgs(c, &conf.Address, &conf.Port, &conf.Interface); err != nil {
		return nil, err
	}
	if conf.Address == "" && conf.Discovery {
		// Validated again after discovery fills in the peer.
		return &conf, nil
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}
