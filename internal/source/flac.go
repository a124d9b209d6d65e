// ABOUTME: Looping FLAC file source
// ABOUTME: Decodes frames with mewkiz/flac at any bit depth and channel count
package source

import (
	"io"
	"os"

	"github.com/mewkiz/flac"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Sendspin/sendspin-bridge/pkg/audio"
)

// FLACSource reads from a FLAC file
type FLACSource struct {
	file     *os.File
	stream   *flac.Stream
	rate     int
	bitDepth int
	title    string
	pending  interleaved
}

// NewFLACSource opens a FLAC file
func NewFLACSource(path string) (*FLACSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open FLAC file")
	}
	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to decode FLAC")
	}
	info := stream.Info
	s := &FLACSource{
		file:     f,
		stream:   stream,
		rate:     int(info.SampleRate),
		bitDepth: int(info.BitsPerSample),
		title:    titleOf(path),
		pending:  interleaved{nchan: int(info.NChannels)},
	}
	logrus.Printf("Loaded FLAC: %s (sample rate: %d Hz, channels: %d, bit depth: %d)",
		s.title, s.rate, s.pending.nchan, s.bitDepth)
	return s, nil
}

func (s *FLACSource) Read(buf audio.Buffer) error {
	offs := s.pending.drain(buf, 0)
	for offs < len(buf[0]) {
		if err := s.decode(); err != nil {
			return err
		}
		offs = s.pending.drain(buf, offs)
	}
	return nil
}

// decode appends the next frame to the pending buffer, rewinding at end of
// file
func (s *FLACSource) decode() error {
	for rewound := false; ; {
		frame, err := s.stream.ParseNext()
		if err == nil {
			nchan := s.pending.nchan
			for i := 0; i < int(frame.BlockSize); i++ {
				for ch := 0; ch < nchan; ch++ {
					s.pending.data = append(s.pending.data, audio.SampleFromInt(frame.Subframes[ch].Samples[i], s.bitDepth))
				}
			}
			if frame.BlockSize > 0 {
				return nil
			}
			continue
		}
		if err != io.EOF {
			return errors.Wrap(err, "flac decode")
		}
		if rewound {
			return errors.New("flac file has no audio")
		}
		if err := s.rewind(); err != nil {
			return err
		}
		rewound = true
	}
}

func (s *FLACSource) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "failed to seek to start")
	}
	stream, err := flac.New(s.file)
	if err != nil {
		return errors.Wrap(err, "failed to create new stream")
	}
	s.stream = stream
	return nil
}

func (s *FLACSource) SampleRate() int { return s.rate }
func (s *FLACSource) Channels() int   { return s.pending.nchan }
func (s *FLACSource) Title() string   { return s.title }
func (s *FLACSource) Close() error    { return s.file.Close() }
