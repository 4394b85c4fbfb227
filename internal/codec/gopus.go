// ABOUTME: gopus-backed implementation of the codec boundary
// ABOUTME: Wraps thesyncim/gopus packet inspection and stateful decode
package codec

import (
	"fmt"

	"github.com/thesyncim/gopus"
)

// Decoder state sizes reported per channel count. The pure Go decoder
// manages its own memory; the reported sizes match libopus's
// opus_decoder_get_size values so callers provisioning work buffers
// stay compatible with hardware-backed implementations.
const (
	stateSizeMono   = 18228
	stateSizeStereo = 26580
)

type gopusBackend struct{}

// Gopus returns the gopus-backed codec backend.
func Gopus() Backend {
	return gopusBackend{}
}

func (gopusBackend) StateSize(channels int) int {
	switch channels {
	case 1:
		return stateSizeMono
	case 2:
		return stateSizeStereo
	}
	panic(fmt.Sprintf("codec: state size queried for %d channels", channels))
}

func (gopusBackend) Open(sampleRate, channels int) (State, error) {
	dec, err := gopus.NewDecoder(gopus.DefaultDecoderConfig(sampleRate, channels))
	if err != nil {
		return nil, err
	}
	return &gopusState{dec: dec}, nil
}

type gopusState struct {
	dec *gopus.Decoder
}

// SampleCount multiplies the packet's frame count by its TOC frame
// size. gopus reports decoded counts in the same frame-size units, so
// the prediction always matches what Decode returns for the packet.
func (s *gopusState) SampleCount(payload []byte) (int, error) {
	info, err := gopus.ParsePacket(payload)
	if err != nil {
		return 0, err
	}
	return info.FrameCount * info.TOC.FrameSize, nil
}

func (s *gopusState) Decode(payload []byte, pcm []int16) (int, error) {
	return s.dec.DecodeInt16(payload, pcm)
}
