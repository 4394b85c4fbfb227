// ABOUTME: Decode service operations and dispatch tables
// ABOUTME: Maps protocol commands onto decoder sessions owned per connection
package service

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/audioplane/opusd/internal/codec"
	"github.com/audioplane/opusd/internal/decoder"
	"github.com/audioplane/opusd/pkg/protocol"
)

// managerCommands names the manager-level operation table. The
// multistream entries are registered placeholders: they answer
// StatusNotImplemented but stay addressable.
var managerCommands = map[string]string{
	protocol.TypeOpenDecoder:               "OpenOpusDecoder",
	protocol.TypeWorkBufferSize:            "GetWorkBufferSize",
	protocol.TypeOpenDecoderMultiStream:    "OpenOpusDecoderForMultiStream",
	protocol.TypeWorkBufferSizeMultiStream: "GetWorkBufferSizeForMultiStream",
}

// sessionCommands names the per-session command table. Commands without
// a handler in Conn.Dispatch are placeholders.
var sessionCommands = map[uint8]string{
	protocol.CmdDecodeInterleaved:                "DecodeInterleaved",
	protocol.CmdSetContext:                       "SetContext",
	protocol.CmdDecodeInterleavedForMultiStream:  "DecodeInterleavedForMultiStream",
	protocol.CmdSetContextForMultiStream:         "SetContextForMultiStream",
	protocol.CmdDecodeInterleavedWithPerformance: "DecodeInterleavedWithPerformance",
}

// CommandName returns the registered name of a manager operation, for
// logging.
func CommandName(msgType string) (string, bool) {
	name, ok := managerCommands[msgType]
	return name, ok
}

// Service implements the decode service's operations. One Service is
// shared by every connection; it holds no per-session state itself.
type Service struct {
	backend codec.Backend
	log     *slog.Logger
}

// New creates a service over the given codec backend.
func New(backend codec.Backend, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{backend: backend, log: log}
}

// WorkBufferSize implements GetWorkBufferSize. Invalid configurations
// are rejected with StatusInvalidConfig rather than aborting.
func (s *Service) WorkBufferSize(req protocol.WorkBufferSizeRequest) protocol.WorkBufferSizeResult {
	size, err := decoder.RequiredBufferSize(s.backend, decoder.Config{
		SampleRate:   req.SampleRate,
		ChannelCount: req.ChannelCount,
	})
	if err != nil {
		s.log.Warn("work buffer size query rejected",
			"sample_rate", req.SampleRate, "channel_count", req.ChannelCount, "err", err)
		return protocol.WorkBufferSizeResult{Status: protocol.StatusInvalidConfig}
	}
	s.log.Debug("work buffer size", "channel_count", req.ChannelCount, "size", size)
	return protocol.WorkBufferSizeResult{Status: protocol.StatusOK, WorkerBufferSize: size}
}

// Conn tracks the decoder sessions opened over one transport
// connection. The connection's single reader goroutine is the only
// caller, which serializes decode calls per session; sessions are never
// shared across connections.
type Conn struct {
	svc      *Service
	sessions map[uuid.UUID]*decoder.Session
}

// NewConn creates the per-connection session table.
func (s *Service) NewConn() *Conn {
	return &Conn{svc: s, sessions: make(map[uuid.UUID]*decoder.Session)}
}

// OpenDecoder implements OpenOpusDecoder: it validates the request,
// initializes decoder state, and registers the session under a fresh
// identifier.
func (c *Conn) OpenDecoder(req protocol.OpenDecoderRequest) protocol.OpenDecoderResult {
	sess, err := decoder.Open(c.svc.backend, decoder.Config{
		SampleRate:   req.SampleRate,
		ChannelCount: req.ChannelCount,
	}, req.BufferSize)
	switch {
	case errors.Is(err, decoder.ErrConfigInvalid):
		c.svc.log.Warn("open rejected", "err", err)
		return protocol.OpenDecoderResult{Status: protocol.StatusInvalidConfig}
	case errors.Is(err, decoder.ErrBufferTooSmall):
		c.svc.log.Warn("open rejected", "err", err)
		return protocol.OpenDecoderResult{Status: protocol.StatusBufferTooSmall}
	case err != nil:
		c.svc.log.Error("failed to init opus decoder", "err", err)
		return protocol.OpenDecoderResult{Status: protocol.StatusInitFailed}
	}

	id := uuid.New()
	c.sessions[id] = sess
	c.svc.log.Debug("decoder opened",
		"session_id", id, "sample_rate", req.SampleRate, "channel_count", req.ChannelCount)
	return protocol.OpenDecoderResult{Status: protocol.StatusOK, SessionID: id.String()}
}

// Dispatch executes one session-level binary command and builds its
// wire response.
func (c *Conn) Dispatch(req protocol.DecodeRequest) protocol.DecodeResponse {
	resp := protocol.DecodeResponse{Command: req.Command, SessionID: req.SessionID}

	name, known := sessionCommands[req.Command]
	if !known {
		c.svc.log.Warn("unknown session command", "command", req.Command)
		resp.Status = protocol.StatusUnknownCommand
		return resp
	}

	sess, ok := c.sessions[req.SessionID]
	if !ok {
		c.svc.log.Warn("decode for unknown session", "session_id", req.SessionID, "command", name)
		resp.Status = protocol.StatusUnknownSession
		return resp
	}

	switch req.Command {
	case protocol.CmdDecodeInterleaved:
		out := make([]byte, req.OutputCapacity)
		res, err := sess.DecodeInterleaved(req.Input, out)
		if err != nil {
			c.svc.log.Error("failed to decode opus data", "command", name, "err", err)
			resp.Status = protocol.StatusDecodeFailed
			return resp
		}
		resp.Status = protocol.StatusOK
		resp.Consumed = res.Consumed
		resp.SampleCount = res.SampleCount
		resp.PCM = out[:validBytes(res, sess.Config())]

	case protocol.CmdDecodeInterleavedWithPerformance:
		out := make([]byte, req.OutputCapacity)
		res, err := sess.DecodeInterleavedWithPerformance(req.Input, out)
		if err != nil {
			c.svc.log.Error("failed to decode opus data", "command", name, "err", err)
			resp.Status = protocol.StatusDecodeFailed
			return resp
		}
		resp.Status = protocol.StatusOK
		resp.Consumed = res.Consumed
		resp.SampleCount = res.SampleCount
		resp.ElapsedMS = res.ElapsedMS
		resp.PCM = out[:validBytes(res.Result, sess.Config())]

	default:
		c.svc.log.Warn("command not implemented", "command", name)
		resp.Status = protocol.StatusNotImplemented
	}
	return resp
}

// Release drops every session the connection opened. Called on
// connection teardown; this is the terminal transition for a session.
func (c *Conn) Release() {
	for id := range c.sessions {
		delete(c.sessions, id)
	}
}

// SessionCount reports how many sessions the connection holds.
func (c *Conn) SessionCount() int {
	return len(c.sessions)
}

func validBytes(res decoder.Result, cfg decoder.Config) int {
	return int(res.SampleCount) * int(cfg.ChannelCount) * 2
}
