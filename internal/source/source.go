// ABOUTME: Audio sources feeding the sender engine
// ABOUTME: Test tone or looping MP3 and FLAC files, delivered as planar float32
package source

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Sendspin/sendspin-bridge/pkg/audio"
)

// Tone selects the built-in test tone
const Tone = "tone"

// Source provides planar audio one period at a time
type Source interface {
	// Read fills every frame of buf. Channels beyond the source's own are
	// silent.
	Read(buf audio.Buffer) error
	// SampleRate returns the native rate, 0 if the source follows the engine
	SampleRate() int
	// Channels returns the number of source channels
	Channels() int
	// Title names the source for logs and the display
	Title() string
	Close() error
}

// Open creates a source from "tone" or a file path. rate is the engine
// rate the tone is generated at.
func Open(name string, rate int) (Source, error) {
	if name == "" || name == Tone {
		return NewToneSource(ToneFrequency, rate), nil
	}
	if _, err := os.Stat(name); err != nil {
		return nil, errors.Wrapf(err, "audio file %s", name)
	}

	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".mp3":
		return NewMP3Source(name)
	case ".flac":
		return NewFLACSource(name)
	default:
		return nil, errors.Errorf("unsupported audio format: %s (supported: .mp3, .flac)", ext)
	}
}

// Filler adapts a source to an engine fill function. Read errors leave the
// period silent and are logged once.
func Filler(src Source) func(audio.Buffer) {
	failed := false
	return func(in audio.Buffer) {
		if err := src.Read(in); err != nil {
			in.Clear()
			if !failed {
				failed = true
				logrus.WithError(err).Errorf("Reading %s failed, sending silence", src.Title())
			}
		}
	}
}

func titleOf(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// interleaved buffers decoded frames between reads
type interleaved struct {
	nchan int
	data  []float32
	pos   int
}

// drain copies buffered frames into buf starting at frame offs and returns
// the new offset
func (q *interleaved) drain(buf audio.Buffer, offs int) int {
	nframes := len(buf[0])
	for offs < nframes && q.pos < len(q.data) {
		for ch := range buf {
			if ch < q.nchan {
				buf[ch][offs] = q.data[q.pos+ch]
			} else {
				buf[ch][offs] = 0
			}
		}
		q.pos += q.nchan
		offs++
	}
	if q.pos >= len(q.data) {
		q.data = q.data[:0]
		q.pos = 0
	}
	return offs
}
