// ABOUTME: Opus decoder sessions over length-framed packets
// ABOUTME: Open-time validation plus the two interleaved decode operations
package decoder

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/audioplane/opusd/internal/codec"
	"github.com/audioplane/opusd/pkg/protocol"
)

// bytesPerSample is the width of one interleaved PCM sample (16-bit).
const bytesPerSample = 2

var supportedSampleRates = [...]uint32{8000, 12000, 16000, 24000, 48000}

// Config fixes a session's sample rate and channel count. Both are set
// at open time and never change for the session's lifetime.
type Config struct {
	SampleRate   uint32
	ChannelCount uint32
}

// Validate rejects unsupported sample rates and channel counts.
func (c Config) Validate() error {
	supported := false
	for _, rate := range supportedSampleRates {
		if c.SampleRate == rate {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: sample rate %d", ErrConfigInvalid, c.SampleRate)
	}
	if c.ChannelCount != 1 && c.ChannelCount != 2 {
		return fmt.Errorf("%w: channel count %d", ErrConfigInvalid, c.ChannelCount)
	}
	return nil
}

// RequiredBufferSize validates cfg and returns the decoder state size
// its channel count requires.
func RequiredBufferSize(b codec.Backend, cfg Config) (uint32, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	return uint32(b.StateSize(int(cfg.ChannelCount))), nil
}

// Session binds one initialized decoder state to a fixed configuration.
// The state is mutated in place by every decode call and carries codec
// continuity to the next call, so calls on one session must be
// serialized by the caller. Distinct sessions are fully independent.
//
// There is no explicit close: dropping the session releases its state.
type Session struct {
	cfg   Config
	state codec.State
}

// Open validates cfg and the caller's work buffer capacity, initializes
// decoder state, and returns a session bound to both.
func Open(b codec.Backend, cfg Config, bufferSize uint32) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	required := b.StateSize(int(cfg.ChannelCount))
	if uint64(bufferSize) < uint64(required) {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrBufferTooSmall, bufferSize, required)
	}
	state, err := b.Open(int(cfg.SampleRate), int(cfg.ChannelCount))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitFailed, err)
	}
	return &Session{cfg: cfg, state: state}, nil
}

// Config returns the session's fixed configuration.
func (s *Session) Config() Config {
	return s.cfg
}

// Result reports one successful decode.
type Result struct {
	Consumed    uint32 // header plus payload bytes consumed from the input
	SampleCount uint32 // per-channel samples decoded
}

// TimedResult additionally reports how long the codec's decode call
// took. Kept as a distinct shape: failure paths never carry timing.
type TimedResult struct {
	Result
	ElapsedMS uint64
}

// DecodeInterleaved decodes the first framed packet in input into out
// as interleaved 16-bit little-endian PCM. len(out) is the output
// capacity; on success exactly SampleCount * channels * 2 bytes of out
// are valid and bytes beyond that are unspecified. On any error no
// output is written and the session remains usable.
func (s *Session) DecodeInterleaved(input, out []byte) (Result, error) {
	res, _, err := s.decode(input, out, false)
	return res, err
}

// DecodeInterleavedWithPerformance behaves exactly like
// DecodeInterleaved and additionally measures the codec decode call
// with a monotonic timer.
func (s *Session) DecodeInterleavedWithPerformance(input, out []byte) (TimedResult, error) {
	res, elapsed, err := s.decode(input, out, true)
	if err != nil {
		return TimedResult{}, err
	}
	return TimedResult{Result: res, ElapsedMS: uint64(elapsed.Milliseconds())}, nil
}

func (s *Session) decode(input, out []byte, timed bool) (Result, time.Duration, error) {
	hdr, err := protocol.ParseFrameHeader(input)
	if err != nil {
		return Result{}, 0, err
	}
	if err := protocol.ValidateFrame(hdr, input); err != nil {
		return Result{}, 0, err
	}
	payload := protocol.FramePayload(hdr, input)

	channels := int(s.cfg.ChannelCount)
	predicted, err := s.state.SampleCount(payload)
	if err != nil {
		return Result{}, 0, fmt.Errorf("%w: %v", ErrCodecFailure, err)
	}
	if needed := predicted * channels * bytesPerSample; needed > len(out) {
		return Result{}, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrOutputTooSmall, needed, len(out))
	}

	// The codec is bounded by the frame capacity the caller's buffer
	// implies, not by the predicted count.
	frameCapacity := len(out) / bytesPerSample / channels
	pcm := make([]int16, frameCapacity*channels)

	var start time.Time
	if timed {
		start = time.Now()
	}
	n, err := s.state.Decode(payload, pcm)
	elapsed := time.Duration(0)
	if timed {
		elapsed = time.Since(start)
	}
	if err != nil {
		return Result{}, 0, fmt.Errorf("%w: %v", ErrCodecFailure, err)
	}
	if n < 0 || n > frameCapacity {
		return Result{}, 0, fmt.Errorf("%w: sample count %d", ErrCodecFailure, n)
	}

	for i := 0; i < n*channels; i++ {
		binary.LittleEndian.PutUint16(out[i*bytesPerSample:], uint16(pcm[i]))
	}
	return Result{
		Consumed:    protocol.FrameHeaderSize + hdr.PayloadSize,
		SampleCount: uint32(n),
	}, elapsed, nil
}
