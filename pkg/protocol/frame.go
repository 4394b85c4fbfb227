// ABOUTME: Frame header codec for length-prefixed Opus packets
// ABOUTME: Parses and validates the fixed 8-byte big-endian header
package protocol

import (
	"encoding/binary"
	"errors"
)

// FrameHeaderSize is the fixed size of the header preceding every Opus
// packet on the wire: a 4-byte big-endian payload size followed by a
// 4-byte reserved word.
const FrameHeaderSize = 8

var (
	// ErrTruncatedHeader is returned when the input is shorter than the
	// frame header.
	ErrTruncatedHeader = errors.New("protocol: input shorter than frame header")

	// ErrMalformedFrame is returned when the header's payload size
	// points past the end of the input.
	ErrMalformedFrame = errors.New("protocol: frame payload exceeds input")
)

// FrameHeader is the parsed length prefix of one framed Opus packet.
// PayloadSize is exactly the number of bytes immediately following the
// header that make up the encoded packet.
type FrameHeader struct {
	PayloadSize uint32
}

// ParseFrameHeader reads the header from the first 8 bytes of b. The
// reserved word at offset 4 is ignored.
func ParseFrameHeader(b []byte) (FrameHeader, error) {
	if len(b) < FrameHeaderSize {
		return FrameHeader{}, ErrTruncatedHeader
	}
	return FrameHeader{PayloadSize: binary.BigEndian.Uint32(b)}, nil
}

// ValidateFrame checks that b holds the full payload h describes. It
// must pass before any payload bytes are handed to the codec.
func ValidateFrame(h FrameHeader, b []byte) error {
	if FrameHeaderSize+uint64(h.PayloadSize) > uint64(len(b)) {
		return ErrMalformedFrame
	}
	return nil
}

// FramePayload returns the payload bytes h describes. The frame must
// have been validated first.
func FramePayload(h FrameHeader, b []byte) []byte {
	return b[FrameHeaderSize : FrameHeaderSize+int(h.PayloadSize)]
}

// AppendFrame appends a frame header and payload to dst and returns the
// extended slice. The reserved word is written as zero.
func AppendFrame(dst, payload []byte) []byte {
	var hdr [FrameHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}
