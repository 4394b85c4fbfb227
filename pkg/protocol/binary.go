// ABOUTME: Binary envelopes for decode requests and responses
// ABOUTME: Fixed big-endian headers followed by framed input or raw PCM
package protocol

import (
	"encoding/binary"
	"errors"

	"github.com/google/uuid"
)

// Binary WebSocket message types, carried in the first byte.
const (
	BinaryDecodeRequest  byte = 0x01
	BinaryDecodeResponse byte = 0x02
)

// Session-level commands, numbered like the decoder interface's command
// table. SetContext and the multistream variants are registered
// placeholders that answer StatusNotImplemented.
const (
	CmdDecodeInterleaved                uint8 = 0
	CmdSetContext                       uint8 = 1
	CmdDecodeInterleavedForMultiStream  uint8 = 2
	CmdSetContextForMultiStream         uint8 = 3
	CmdDecodeInterleavedWithPerformance uint8 = 4
)

var (
	// ErrShortEnvelope is returned when a binary message is shorter
	// than its fixed header.
	ErrShortEnvelope = errors.New("protocol: binary envelope too short")

	// ErrWrongEnvelope is returned when the message type byte does not
	// match the expected envelope.
	ErrWrongEnvelope = errors.New("protocol: unexpected binary message type")
)

// decodeRequestHeaderSize is type + command + session id + output capacity.
const decodeRequestHeaderSize = 1 + 1 + 16 + 4

// decodeResponseHeaderSize is type + command + session id + status +
// consumed + sample count. The elapsed field follows only for the
// performance command.
const decodeResponseHeaderSize = 1 + 1 + 16 + 1 + 4 + 4

// DecodeRequest asks a session to decode the first framed packet in
// Input. OutputCapacity is the maximum number of PCM bytes the caller
// can accept.
type DecodeRequest struct {
	Command        uint8
	SessionID      uuid.UUID
	OutputCapacity uint32
	Input          []byte
}

// Encode serializes the request into a binary WebSocket message.
func (r DecodeRequest) Encode() []byte {
	buf := make([]byte, decodeRequestHeaderSize, decodeRequestHeaderSize+len(r.Input))
	buf[0] = BinaryDecodeRequest
	buf[1] = r.Command
	copy(buf[2:18], r.SessionID[:])
	binary.BigEndian.PutUint32(buf[18:22], r.OutputCapacity)
	return append(buf, r.Input...)
}

// ParseDecodeRequest parses a binary decode request message.
func ParseDecodeRequest(b []byte) (DecodeRequest, error) {
	if len(b) < decodeRequestHeaderSize {
		return DecodeRequest{}, ErrShortEnvelope
	}
	if b[0] != BinaryDecodeRequest {
		return DecodeRequest{}, ErrWrongEnvelope
	}
	req := DecodeRequest{
		Command:        b[1],
		OutputCapacity: binary.BigEndian.Uint32(b[18:22]),
		Input:          b[decodeRequestHeaderSize:],
	}
	copy(req.SessionID[:], b[2:18])
	return req, nil
}

// DecodeResponse carries the result of one decode command. ElapsedMS is
// present on the wire only for CmdDecodeInterleavedWithPerformance with
// StatusOK; failures report no timing. PCM holds exactly the valid
// output bytes.
type DecodeResponse struct {
	Command     uint8
	SessionID   uuid.UUID
	Status      Status
	Consumed    uint32
	SampleCount uint32
	ElapsedMS   uint64
	PCM         []byte
}

// hasElapsed reports whether the elapsed field is on the wire for this
// command/status pair.
func (r DecodeResponse) hasElapsed() bool {
	return r.Command == CmdDecodeInterleavedWithPerformance && r.Status == StatusOK
}

// Encode serializes the response into a binary WebSocket message.
func (r DecodeResponse) Encode() []byte {
	size := decodeResponseHeaderSize
	if r.hasElapsed() {
		size += 8
	}
	buf := make([]byte, size, size+len(r.PCM))
	buf[0] = BinaryDecodeResponse
	buf[1] = r.Command
	copy(buf[2:18], r.SessionID[:])
	buf[18] = byte(r.Status)
	binary.BigEndian.PutUint32(buf[19:23], r.Consumed)
	binary.BigEndian.PutUint32(buf[23:27], r.SampleCount)
	if r.hasElapsed() {
		binary.BigEndian.PutUint64(buf[27:35], r.ElapsedMS)
	}
	return append(buf, r.PCM...)
}

// ParseDecodeResponse parses a binary decode response message.
func ParseDecodeResponse(b []byte) (DecodeResponse, error) {
	if len(b) < decodeResponseHeaderSize {
		return DecodeResponse{}, ErrShortEnvelope
	}
	if b[0] != BinaryDecodeResponse {
		return DecodeResponse{}, ErrWrongEnvelope
	}
	resp := DecodeResponse{
		Command:     b[1],
		Status:      Status(b[18]),
		Consumed:    binary.BigEndian.Uint32(b[19:23]),
		SampleCount: binary.BigEndian.Uint32(b[23:27]),
	}
	copy(resp.SessionID[:], b[2:18])
	rest := b[decodeResponseHeaderSize:]
	if resp.hasElapsed() {
		if len(rest) < 8 {
			return DecodeResponse{}, ErrShortEnvelope
		}
		resp.ElapsedMS = binary.BigEndian.Uint64(rest[:8])
		rest = rest[8:]
	}
	resp.PCM = rest
	return resp, nil
}
