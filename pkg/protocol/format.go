// ABOUTME: Sample format enumeration for the wire protocol
// ABOUTME: Maps formats to byte widths and command-line names
package protocol

import (
	"github.com/pkg/errors"
)

// SampleFormat is the on-wire sample encoding
type SampleFormat uint8

const (
	Format16Bit SampleFormat = iota
	Format24Bit
	FormatFloat
)

// Fixed-point full scale values
const (
	Max16Bit = 32767   // 2^15 - 1
	Max24Bit = 8388607 // 2^23 - 1
)

// ErrUnknownFormat is returned for sample format names or codes not defined here
var ErrUnknownFormat = errors.New("unknown sample format")

// BytesPerSample returns the encoded width of one sample, or 0 if unknown
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case Format16Bit:
		return 2
	case Format24Bit:
		return 3
	case FormatFloat:
		return 4
	}
	return 0
}

// Valid reports whether f is a defined format
func (f SampleFormat) Valid() bool {
	return f.BytesPerSample() != 0
}

func (f SampleFormat) String() string {
	switch f {
	case Format16Bit:
		return "16bit"
	case Format24Bit:
		return "24bit"
	case FormatFloat:
		return "float"
	}
	return "unknown"
}

// ParseSampleFormat accepts the names produced by String
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch s {
	case "16bit", "16":
		return Format16Bit, nil
	case "24bit", "24":
		return Format24Bit, nil
	case "float":
		return FormatFloat, nil
	}
	return 0, errors.Wrapf(ErrUnknownFormat, "%q", s)
}
