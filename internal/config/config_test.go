// ABOUTME: Tests for configuration parsing and validation
// ABOUTME: Channel lists, ranges, YAML files and flag precedence
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestParseChannelList(t *testing.T) {
	tests := []struct {
		input   string
		want    []int
		wantErr bool
	}{
		{"1,2", []int{0, 1}, false},
		{"1-4,7", []int{0, 1, 2, 3, 6}, false},
		{" 2 - 3 , 5 ", []int{1, 2, 4}, false},
		{"64", []int{63}, false},
		{"", nil, true},
		{"0", nil, true},
		{"65", nil, true},
		{"2,1", nil, true},
		{"1,1", nil, true},
		{"3-2", nil, true},
		{"1,", nil, true},
		{"1-", nil, true},
		{"1,,2", nil, true},
		{"a", nil, true},
		{"1;2", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseChannelList(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrChannelList)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReceiverValidate(t *testing.T) {
	base := DefaultReceiver()
	base.Address = "239.0.0.1"
	base.Port = 9000
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		modify func(c *ReceiverConfig)
	}{
		{"no address", func(c *ReceiverConfig) { c.Address = "" }},
		{"port zero", func(c *ReceiverConfig) { c.Port = 0 }},
		{"port high", func(c *ReceiverConfig) { c.Port = 70000 }},
		{"buffer negative", func(c *ReceiverConfig) { c.Buffer = -1 }},
		{"buffer high", func(c *ReceiverConfig) { c.Buffer = MaxBuffer + 1 }},
		{"filter short", func(c *ReceiverConfig) { c.Filter = 8 }},
		{"filter long", func(c *ReceiverConfig) { c.Filter = 97 }},
		{"channels", func(c *ReceiverConfig) { c.Channels = "2,1" }},
		{"output", func(c *ReceiverConfig) { c.Output = "alsa" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.modify(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestSenderValidate(t *testing.T) {
	base := DefaultSender()
	base.Address = "10.0.0.2"
	base.Port = 9000
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		modify func(c *SenderConfig)
	}{
		{"channels zero", func(c *SenderConfig) { c.Channels = 0 }},
		{"channels high", func(c *SenderConfig) { c.Channels = 65 }},
		{"format", func(c *SenderConfig) { c.Format = "32bit" }},
		{"mtu small", func(c *SenderConfig) { c.MTU = 100 }},
		{"hops", func(c *SenderConfig) { c.Hops = 0 }},
		{"rate", func(c *SenderConfig) { c.SampleRate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.modify(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recv.yaml")
	require.NoError(t, os.WriteFile(path, []byte("buffer: 20\nbogus: 1\n"), 0o644))
	conf := DefaultReceiver()
	assert.Error(t, LoadFile(path, &conf))
}

func runReceiverApp(t *testing.T, args ...string) (*ReceiverConfig, error) {
	t.Helper()
	var conf *ReceiverConfig
	var loadErr error
	app := &cli.App{
		Name:  "bridge-recv",
		Flags: ReceiverFlags(),
		Action: func(c *cli.Context) error {
			conf, loadErr = LoadReceiver(c)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"bridge-recv"}, args...)))
	return conf, loadErr
}

func TestLoadReceiverPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recv.yaml")
	yaml := "address: 239.1.1.1\nport: 9000\ninterface: eth0\nbuffer: 40\nchannels: 1-4\nlog_level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	conf, err := runReceiverApp(t, "--config", path, "--buff", "25")
	require.NoError(t, err)
	assert.Equal(t, "239.1.1.1", conf.Address)
	assert.Equal(t, 25, conf.Buffer)
	assert.Equal(t, []int{0, 1, 2, 3}, conf.ChannelList())
	assert.Equal(t, "debug", conf.LogLevel)
	assert.Equal(t, "oto", conf.Output)

	// Positional arguments replace the file's endpoint.
	conf, err = runReceiverApp(t, "--config", path, "127.0.0.1", "9100")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", conf.Address)
	assert.Equal(t, 9100, conf.Port)
	assert.Equal(t, "eth0", conf.Interface)
}

func TestLoadReceiverErrors(t *testing.T) {
	_, err := runReceiverApp(t)
	assert.ErrorContains(t, err, "no address")

	_, err = runReceiverApp(t, "127.0.0.1")
	assert.Error(t, err)

	_, err = runReceiverApp(t, "127.0.0.1", "http")
	assert.Error(t, err)

	_, err = runReceiverApp(t, "--filt", "8", "127.0.0.1", "9000")
	assert.Error(t, err)
}

func TestLoadSenderDefaults(t *testing.T) {
	var conf *SenderConfig
	app := &cli.App{
		Name:  "bridge-send",
		Flags: SenderFlags(),
		Action: func(c *cli.Context) (err error) {
			conf, err = LoadSender(c)
			return err
		},
	}
	require.NoError(t, app.Run([]string{"bridge-send", "--format", "16bit", "10.0.0.9", "9000"}))
	assert.Equal(t, 2, conf.Channels)
	assert.Equal(t, 1500, conf.MTU)
	assert.Equal(t, "16bit", conf.SampleFormat().String())
}
