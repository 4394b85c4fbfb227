// ABOUTME: Control message definitions for the opusd protocol
// ABOUTME: JSON envelope, manager operations, and service status codes
package protocol

// Message is the top-level wrapper for all JSON control messages.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ProtocolVersion is bumped on incompatible wire changes.
const ProtocolVersion = 1

// Control message types. The four decoder/* requests mirror the
// manager-level command table; the multistream variants are registered
// but answer StatusNotImplemented.
const (
	TypeServerHello = "server/hello"

	TypeOpenDecoder          = "decoder/open"
	TypeOpenDecoderResult    = "decoder/open_result"
	TypeWorkBufferSize       = "decoder/work_buffer_size"
	TypeWorkBufferSizeResult = "decoder/work_buffer_size_result"

	TypeOpenDecoderMultiStream    = "decoder/open_multistream"
	TypeWorkBufferSizeMultiStream = "decoder/work_buffer_size_multistream"
)

// Status is the result tag carried on every response. Recoverable
// decode failures all collapse to StatusDecodeFailed on the wire; the
// in-process error values stay distinguishable.
type Status uint8

const (
	StatusOK Status = iota
	StatusDecodeFailed
	StatusInitFailed
	StatusInvalidConfig
	StatusBufferTooSmall
	StatusNotImplemented
	StatusUnknownSession
	StatusUnknownCommand
	StatusMalformedRequest
)

var statusNames = map[Status]string{
	StatusOK:               "ok",
	StatusDecodeFailed:     "decode_failed",
	StatusInitFailed:       "init_failed",
	StatusInvalidConfig:    "invalid_config",
	StatusBufferTooSmall:   "buffer_too_small",
	StatusNotImplemented:   "not_implemented",
	StatusUnknownSession:   "unknown_session",
	StatusUnknownCommand:   "unknown_command",
	StatusMalformedRequest: "malformed_request",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown_status"
}

// ServerHello is sent by the server as soon as a connection is
// established.
type ServerHello struct {
	ServerID      string `json:"server_id"`
	Name          string `json:"name"`
	Version       int    `json:"version"`
	ServerVersion string `json:"server_version,omitempty"`
}

// WorkBufferSizeRequest asks for the decoder state size required by a
// configuration.
type WorkBufferSizeRequest struct {
	SampleRate   uint32 `json:"sample_rate"`
	ChannelCount uint32 `json:"channel_count"`
}

// WorkBufferSizeResult answers a WorkBufferSizeRequest.
type WorkBufferSizeResult struct {
	Status           Status `json:"status"`
	WorkerBufferSize uint32 `json:"worker_buffer_size,omitempty"`
}

// OpenDecoderRequest asks the server to open a decoder session.
// BufferSize is the work buffer capacity the caller is prepared to back
// the decoder state with; it must be at least the size reported by
// WorkBufferSizeRequest for the same channel count.
type OpenDecoderRequest struct {
	SampleRate   uint32 `json:"sample_rate"`
	ChannelCount uint32 `json:"channel_count"`
	BufferSize   uint32 `json:"buffer_size"`
}

// OpenDecoderResult answers an OpenDecoderRequest. SessionID is set
// only on StatusOK. The session lives until the connection that opened
// it goes away; there is no explicit close operation.
type OpenDecoderResult struct {
	Status    Status `json:"status"`
	SessionID string `json:"session_id,omitempty"`
}
