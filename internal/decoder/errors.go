// ABOUTME: Error taxonomy for decoder sessions
// ABOUTME: Distinguishes config, sizing, init, and per-decode failures
package decoder

import "errors"

// Open-time errors. Invalid configuration and undersized buffers are
// rejected before any decoder state is allocated, never aborted on.
var (
	// ErrConfigInvalid reports an unsupported sample rate or channel
	// count.
	ErrConfigInvalid = errors.New("decoder: unsupported sample rate or channel count")

	// ErrBufferTooSmall reports a work buffer smaller than the decoder
	// state requires.
	ErrBufferTooSmall = errors.New("decoder: work buffer smaller than decoder state")

	// ErrInitFailed reports that the codec backend failed to
	// initialize; no session is produced.
	ErrInitFailed = errors.New("decoder: codec initialization failed")
)

// Per-decode errors. Truncated headers and malformed frame bounds
// surface as the protocol package's sentinel errors; these cover the
// remaining failure modes. Every decode failure leaves the session
// usable and writes no output.
var (
	// ErrOutputTooSmall reports an output capacity smaller than the
	// packet's predicted decoded size.
	ErrOutputTooSmall = errors.New("decoder: output capacity smaller than decoded frame")

	// ErrCodecFailure reports an inspection or decode error from the
	// codec backend.
	ErrCodecFailure = errors.New("decoder: codec decode failed")
)
