// ABOUTME: Looping MP3 file source
// ABOUTME: Decodes with go-mp3, which always yields 16-bit stereo
package source

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Sendspin/sendspin-bridge/pkg/audio"
)

// mp3Chunk is the decode size in bytes per read
const mp3Chunk = 4096

// MP3Source reads from an MP3 file
type MP3Source struct {
	file    *os.File
	decoder *mp3.Decoder
	title   string
	buf     []byte
	pending interleaved
}

// NewMP3Source opens an MP3 file
func NewMP3Source(path string) (*MP3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open MP3 file")
	}
	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to decode MP3")
	}
	s := &MP3Source{
		file:    f,
		decoder: decoder,
		title:   titleOf(path),
		buf:     make([]byte, mp3Chunk),
		pending: interleaved{nchan: 2},
	}
	logrus.Printf("Loaded MP3: %s (sample rate: %d Hz)", s.title, decoder.SampleRate())
	return s, nil
}

func (s *MP3Source) Read(buf audio.Buffer) error {
	offs := s.pending.drain(buf, 0)
	for offs < len(buf[0]) {
		if err := s.decode(); err != nil {
			return err
		}
		offs = s.pending.drain(buf, offs)
	}
	return nil
}

// decode appends at least one frame to the pending buffer, rewinding at
// end of file
func (s *MP3Source) decode() error {
	for rewound := false; ; {
		n, err := s.decoder.Read(s.buf)
		n &^= 3
		for i := 0; i < n; i += 2 {
			s.pending.data = append(s.pending.data, audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(s.buf[i:]))))
		}
		if n > 0 {
			return nil
		}
		if err != nil && err != io.EOF {
			return errors.Wrap(err, "mp3 decode")
		}
		if rewound {
			return errors.New("mp3 file has no audio")
		}
		if err := s.rewind(); err != nil {
			return err
		}
		rewound = true
	}
}

func (s *MP3Source) rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "failed to seek to start")
	}
	decoder, err := mp3.NewDecoder(s.file)
	if err != nil {
		return errors.Wrap(err, "failed to create new decoder")
	}
	s.decoder = decoder
	return nil
}

func (s *MP3Source) SampleRate() int { return s.decoder.SampleRate() }
func (s *MP3Source) Channels() int   { return 2 }
func (s *MP3Source) Title() string   { return s.title }
func (s *MP3Source) Close() error    { return s.file.Close() }
