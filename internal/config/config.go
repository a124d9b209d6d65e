// ABOUTME: Configuration of bridge-send and bridge-recv
// ABOUTME: Defaults, YAML file loading and range validation
package config

import (
	"bytes"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Sendspin/sendspin-bridge/pkg/protocol"
)

// Limits
const (
	MaxBuffer = 4000 // ms
	MinFilter = 16
	MaxFilter = 96
	MinMTU    = 128
	MaxMTU    = 9000
	MaxHops   = 255
)

// Common holds settings shared by both programs
type Common struct {
	LogLevel  string `yaml:"log_level,omitempty"`
	LogFile   string `yaml:"log_file,omitempty"`
	NoTUI     bool   `yaml:"no_tui,omitempty"`
	Monitor   string `yaml:"monitor,omitempty"` // listen address for /metrics and /status
	Discovery bool   `yaml:"discovery,omitempty"`
	Name      string `yaml:"name,omitempty"`
}

// ReceiverConfig configures bridge-recv
type ReceiverConfig struct {
	Common `yaml:",inline"`

	Address    string `yaml:"address,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Interface  string `yaml:"interface,omitempty"`
	Channels   string `yaml:"channels,omitempty"`
	Buffer     int    `yaml:"buffer,omitempty"` // extra buffering in ms
	Filter     int    `yaml:"filter,omitempty"` // resampler half length, 0 for automatic
	Info       bool   `yaml:"info,omitempty"`
	Output     string `yaml:"output,omitempty"` // "oto" or "null"
	SampleRate int    `yaml:"sample_rate,omitempty"`
	Period     int    `yaml:"period,omitempty"`
	Latency    int    `yaml:"latency,omitempty"` // device buffer in ms
}

// SenderConfig configures bridge-send
type SenderConfig struct {
	Common `yaml:",inline"`

	Address    string `yaml:"address,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Interface  string `yaml:"interface,omitempty"`
	Channels   int    `yaml:"channels,omitempty"`
	Format     string `yaml:"format,omitempty"`
	MTU        int    `yaml:"mtu,omitempty"`
	Hops       int    `yaml:"hops,omitempty"`
	Source     string `yaml:"source,omitempty"` // "tone" or an mp3/flac file
	SampleRate int    `yaml:"sample_rate,omitempty"`
	Period     int    `yaml:"period,omitempty"`
	Priority   int    `yaml:"priority,omitempty"`
}

// DefaultReceiver returns the receiver defaults
func DefaultReceiver() ReceiverConfig {
	return ReceiverConfig{
		Common:     Common{LogLevel: "info", LogFile: "bridge-recv.log"},
		Channels:   "1,2",
		Buffer:     10,
		Output:     "oto",
		SampleRate: 48000,
		Period:     256,
		Latency:    20,
	}
}

// DefaultSender returns the sender defaults
func DefaultSender() SenderConfig {
	return SenderConfig{
		Common:     Common{LogLevel: "info", LogFile: "bridge-send.log"},
		Channels:   2,
		Format:     "24bit",
		MTU:        1500,
		Hops:       1,
		Source:     "tone",
		SampleRate: 48000,
		Period:     256,
	}
}

// LoadFile decodes a YAML file over conf. Unknown keys are an error.
func LoadFile(path string, conf any) error {
	file, err := homedir.Expand(os.ExpandEnv(path))
	if err != nil {
		return errors.Wrapf(err, "config path %s", path)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(conf); err != nil {
		return errors.Wrapf(err, "parse config %s", file)
	}
	return nil
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return errors.Errorf("port %d out of range", port)
	}
	return nil
}

// Validate checks ranges and parses the channel list
func (c *ReceiverConfig) Validate() error {
	if c.Address == "" {
		return errors.New("no address given")
	}
	if err := validatePort(c.Port); err != nil {
		return err
	}
	if _, err := ParseChannelList(c.Channels); err != nil {
		return err
	}
	if c.Buffer < 0 || c.Buffer > MaxBuffer {
		return errors.Errorf("buffer %d ms out of range 0-%d", c.Buffer, MaxBuffer)
	}
	if c.Filter != 0 && (c.Filter < MinFilter || c.Filter > MaxFilter) {
		return errors.Errorf("filter %d out of range %d-%d", c.Filter, MinFilter, MaxFilter)
	}
	switch c.Output {
	case "oto", "null":
	default:
		return errors.Errorf("unknown output %q", c.Output)
	}
	if c.SampleRate <= 0 || c.Period <= 0 {
		return errors.Errorf("invalid engine %d Hz / %d frames", c.SampleRate, c.Period)
	}
	return nil
}

// Validate checks ranges
func (c *SenderConfig) Validate() error {
	if c.Address == "" {
		return errors.New("no address given")
	}
	if err := validatePort(c.Port); err != nil {
		return err
	}
	if c.Channels < 1 || c.Channels > protocol.MaxChannels {
		return errors.Errorf("channel count %d out of range 1-%d", c.Channels, protocol.MaxChannels)
	}
	if _, err := protocol.ParseSampleFormat(c.Format); err != nil {
		return err
	}
	if c.MTU < MinMTU || c.MTU > MaxMTU {
		return errors.Errorf("mtu %d out of range %d-%d", c.MTU, MinMTU, MaxMTU)
	}
	if c.Hops < 1 || c.Hops > MaxHops {
		return errors.Errorf("hops %d out of range 1-%d", c.Hops, MaxHops)
	}
	if c.SampleRate <= 0 || c.Period <= 0 {
		return errors.Errorf("invalid engine %d Hz / %d frames", c.SampleRate, c.Period)
	}
	return nil
}

// SampleFormat returns the parsed wire format
func (c *SenderConfig) SampleFormat() protocol.SampleFormat {
	f, _ := protocol.ParseSampleFormat(c.Format)
	return f
}

// ChannelList returns the parsed 0-based channel list
func (c *ReceiverConfig) ChannelList() []int {
	l, _ := ParseChannelList(c.Channels)
	return l
}
