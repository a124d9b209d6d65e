// ABOUTME: Wire packet buffer with header accessors and sample codecs
// ABOUTME: One buffer type serves both descriptor and audio-data packets
package protocol

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Magic is the tag at the start of every packet
const Magic = "znjb"

// Packet types
const (
	TypeDescriptor = 0
	TypeData       = 1
)

// Packet flags
const (
	FlagTimed     = 0x01 // dtime field valid, first packet of a period
	FlagSuspend   = 0x02 // sender is suspended
	FlagSkip      = 0x04 // token packet for skipped frames
	FlagTerminate = 0x80 // sender terminates
)

// MaxChannels is the largest channel count a packet may declare
const MaxChannels = 64

// Header sizes in bytes
const (
	HeaderSize     = 8
	DescriptorSize = 32
	DataHeaderSize = 20
)

// Byte offsets
const (
	offType     = 4
	offFlags    = 5
	offFormat   = 6
	offChannels = 7

	offMaxSize    = 8
	offSampleRate = 12
	offPeriod     = 16
	offMarkCount  = 20
	offMarkSecs   = 24
	offMarkFrac   = 28

	offCount  = 8
	offFrames = 12
	offDelay  = 16
)

var (
	// ErrBadMagic is returned for datagrams that are not bridge packets
	ErrBadMagic = errors.New("bad packet magic")
	// ErrTruncated is returned when a datagram is shorter than its header declares
	ErrTruncated = errors.New("truncated packet")
)

// Packet is a fixed-capacity buffer holding one wire packet
type Packet struct {
	Data []byte // allocated storage, normally the maximum packet size
	n    int    // used length
}

// NewPacket allocates a packet buffer of size bytes
func NewPacket(size int) *Packet {
	return &Packet{Data: make([]byte, size)}
}

// Len returns the number of bytes in use
func (p *Packet) Len() int { return p.n }

// SetLen records the number of bytes received into Data
func (p *Packet) SetLen(n int) { p.n = n }

// Bytes returns the used portion of the buffer
func (p *Packet) Bytes() []byte { return p.Data[:p.n] }

// InitDescriptor fills a stream descriptor and clears its time mark
func (p *Packet) InitDescriptor(flags int, format SampleFormat, nchan, maxSize, fsamp, fsize int) {
	p.initHeader(TypeDescriptor, flags, format, nchan)
	p.putInt(offMaxSize, int32(maxSize))
	p.putInt(offSampleRate, int32(fsamp))
	p.putInt(offPeriod, int32(fsize))
	p.SetTimeMark(0, 0, 0)
	p.n = DescriptorSize
}

// InitData fills an audio-data header. The payload is written with PutAudio.
func (p *Packet) InitData(flags int, format SampleFormat, nchan int, count int32, nfram int, dtime int32) {
	p.initHeader(TypeData, flags, format, nchan)
	p.putInt(offCount, count)
	p.putInt(offFrames, int32(nfram))
	p.putInt(offDelay, dtime)
	p.n = DataHeaderSize + format.BytesPerSample()*nchan*nfram
}

func (p *Packet) initHeader(ptype, flags int, format SampleFormat, nchan int) {
	copy(p.Data, Magic)
	p.Data[offType] = byte(ptype)
	p.Data[offFlags] = byte(flags)
	p.Data[offFormat] = byte(format)
	p.Data[offChannels] = byte(nchan)
}

// SetFlags overwrites the flags byte
func (p *Packet) SetFlags(flags int) { p.Data[offFlags] = byte(flags) }

// SetTimeMark stores the descriptor time mark
func (p *Packet) SetTimeMark(count int32, secs, frac uint32) {
	p.putInt(offMarkCount, count)
	p.putInt(offMarkSecs, int32(secs))
	p.putInt(offMarkFrac, int32(frac))
}

// CheckType verifies the magic tag and returns the packet type
func (p *Packet) CheckType() (int, error) {
	if p.n < HeaderSize || string(p.Data[:4]) != Magic {
		return -1, ErrBadMagic
	}
	return int(p.Data[offType]), nil
}

// Validate checks that the received length covers the declared layout.
// It must pass before any sample access on a received packet.
func (p *Packet) Validate() error {
	ptype, err := p.CheckType()
	if err != nil {
		return err
	}
	nchan := p.Channels()
	if nchan < 1 || nchan > MaxChannels {
		return errors.Errorf("bad channel count %d", nchan)
	}
	switch ptype {
	case TypeDescriptor:
		if p.n < DescriptorSize {
			return errors.Wrapf(ErrTruncated, "descriptor of %d bytes", p.n)
		}
		if !p.Format().Valid() {
			return errors.Wrapf(ErrUnknownFormat, "code %d", p.Format())
		}
	case TypeData:
		if p.n < DataHeaderSize {
			return errors.Wrapf(ErrTruncated, "data header of %d bytes", p.n)
		}
		if !p.Format().Valid() {
			return errors.Wrapf(ErrUnknownFormat, "code %d", p.Format())
		}
		nfram := p.PacketFrames()
		need := DataHeaderSize + p.Format().BytesPerSample()*nchan*nfram
		if nfram < 0 || p.n < need {
			return errors.Wrapf(ErrTruncated, "%d frames need %d bytes, have %d", nfram, need, p.n)
		}
	default:
		return errors.Errorf("unknown packet type %d", ptype)
	}
	return nil
}

// Header accessors

func (p *Packet) Type() int { return int(p.Data[offType]) }
func (p *Packet) Flags() int { return int(p.Data[offFlags]) }
func (p *Packet) Format() SampleFormat { return SampleFormat(p.Data[offFormat]) }
func (p *Packet) Channels() int { return int(p.Data[offChannels]) }
func (p *Packet) MaxPacketSize() int { return int(p.getInt(offMaxSize)) }
func (p *Packet) SampleRate() int { return int(p.getInt(offSampleRate)) }
func (p *Packet) PeriodSize() int { return int(p.getInt(offPeriod)) }
func (p *Packet) MarkCount() int32 { return p.getInt(offMarkCount) }
func (p *Packet) MarkSecs() uint32 { return uint32(p.getInt(offMarkSecs)) }
func (p *Packet) MarkFrac() uint32 { return uint32(p.getInt(offMarkFrac)) }
func (p *Packet) FrameCount() int32 { return p.getInt(offCount) }
func (p *Packet) PacketFrames() int { return int(p.getInt(offFrames)) }
func (p *Packet) Delay() int32 { return p.getInt(offDelay) }
func (p *Packet) HasFlag(flag int) bool { return p.Flags()&flag != 0 }

func (p *Packet) putInt(off int, v int32) {
	binary.BigEndian.PutUint32(p.Data[off:], uint32(v))
}

func (p *Packet) getInt(off int) int32 {
	return int32(binary.BigEndian.Uint32(p.Data[off:]))
}

// PutAudio encodes nfram samples of channel ch, starting at frame offs of
// the packet, from src taken with the given stride.
func (p *Packet) PutAudio(ch, offs, nfram int, src []float32, stride int) {
	nch := p.Channels()
	format := p.Format()
	b := format.BytesPerSample()
	q := DataHeaderSize + b*(nch*offs+ch)
	step := b * nch
	switch format {
	case Format16Bit:
		for i := 0; i < nfram; i++ {
			v := quantize(src[i*stride], Max16Bit)
			p.Data[q] = byte(v >> 8)
			p.Data[q+1] = byte(v)
			q += step
		}
	case Format24Bit:
		for i := 0; i < nfram; i++ {
			v := quantize(src[i*stride], Max24Bit)
			p.Data[q] = byte(v >> 16)
			p.Data[q+1] = byte(v >> 8)
			p.Data[q+2] = byte(v)
			q += step
		}
	case FormatFloat:
		for i := 0; i < nfram; i++ {
			binary.BigEndian.PutUint32(p.Data[q:], math.Float32bits(src[i*stride]))
			q += step
		}
	}
}

// GetAudio decodes nfram samples of channel ch, starting at frame offs of
// the packet, into dst with the given stride.
func (p *Packet) GetAudio(ch, offs, nfram int, dst []float32, stride int) {
	nch := p.Channels()
	format := p.Format()
	b := format.BytesPerSample()
	q := DataHeaderSize + b*(nch*offs+ch)
	step := b * nch
	switch format {
	case Format16Bit:
		for i := 0; i < nfram; i++ {
			v := int32(int8(p.Data[q]))<<8 | int32(p.Data[q+1])
			dst[i*stride] = float32(v) / Max16Bit
			q += step
		}
	case Format24Bit:
		for i := 0; i < nfram; i++ {
			v := int32(int8(p.Data[q]))<<16 | int32(p.Data[q+1])<<8 | int32(p.Data[q+2])
			dst[i*stride] = float32(v) / Max24Bit
			q += step
		}
	case FormatFloat:
		for i := 0; i < nfram; i++ {
			dst[i*stride] = math.Float32frombits(binary.BigEndian.Uint32(p.Data[q:]))
			q += step
		}
	}
}

// quantize scales x by r, rounds half up and clamps to [-r, r]. Negative
// values must floor, not truncate toward zero.
func quantize(x float32, r int32) int32 {
	f := float64(r)*float64(x) + 0.5
	if f > float64(r) {
		return r
	}
	if f < -float64(r) {
		return -r
	}
	return int32(math.Floor(f))
}

// PacketsPerPeriod returns how many packets of at most maxSize bytes are
// needed to carry one period, or -1 for an unknown format.
func PacketsPerPeriod(maxSize, period int, format SampleFormat, nchan int) int {
	b := format.BytesPerSample()
	if b == 0 || nchan < 1 {
		return -1
	}
	n := (maxSize - DataHeaderSize) / (b * nchan)
	if n < 1 {
		return -1
	}
	return (period + n - 1) / n
}
