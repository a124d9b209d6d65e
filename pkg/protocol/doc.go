// ABOUTME: Bridge wire protocol package
// ABOUTME: Binary descriptor and audio-data packets with sample format conversion
// Package protocol implements the bridge wire format.
//
// Every packet starts with the magic tag "znjb" followed by packet type,
// flags, sample format and channel count bytes. Multi-byte header fields are
// 32-bit big-endian. Two packet types exist: a 32-byte stream descriptor that
// the sender rebroadcasts with its latest time mark, and audio-data packets
// carrying interleaved samples in 16-bit, 24-bit or float format.
//
// Example:
//
//	p := protocol.NewPacket(1472)
//	p.InitData(protocol.FlagTimed, protocol.Format24Bit, 2, count, 128, 0)
//	p.PutAudio(0, 0, 128, left, 1)
//	p.PutAudio(1, 0, 128, right, 1)
//	conn.Write(p.Bytes())
package protocol
