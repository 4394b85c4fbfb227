// ABOUTME: Native Opus codec boundary
// ABOUTME: Backend and State interfaces plus decoder state sizing
package codec

// State is one initialized Opus decoder instance. It is exclusively
// owned by a single session; calls must be serialized by the caller.
// State persists codec continuity across successive Decode calls.
type State interface {
	// SampleCount inspects a packet for the per-channel sample count it
	// will decode to, without decoding it. Counts are in the codec's
	// native frame units: a backend must report SampleCount and Decode
	// results on the same scale, so that a packet passing the
	// SampleCount capacity check never decodes to more samples than
	// predicted. A backend whose decode output scales with the session
	// sample rate must apply the same scaling here.
	SampleCount(payload []byte) (int, error)

	// Decode decodes one packet into interleaved int16 PCM. The
	// per-channel frame capacity is len(pcm) divided by the channel
	// count. Returns the per-channel sample count actually decoded.
	Decode(payload []byte, pcm []int16) (int, error)
}

// Backend creates decoder state and reports the work buffer size that
// state requires. Implemented by the gopus backend and by test fakes.
type Backend interface {
	// StateSize returns the decoder state footprint in bytes for a
	// channel count of 1 or 2. The value is stable across calls.
	// Channel counts are validated at every caller-facing entry point
	// before this is reached; other values are a contract violation
	// and panic.
	StateSize(channels int) int

	// Open initializes decoder state for the given configuration.
	Open(sampleRate, channels int) (State, error)
}
