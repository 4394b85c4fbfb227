// ABOUTME: Tests for the binary decode envelopes
// ABOUTME: Round trips requests and responses, checks elapsed field rules
package protocol

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func TestDecodeRequest_RoundTrip(t *testing.T) {
	req := DecodeRequest{
		Command:        CmdDecodeInterleaved,
		SessionID:      uuid.New(),
		OutputCapacity: 3840,
		Input:          AppendFrame(nil, []byte{0xfc, 0x01, 0x02}),
	}

	parsed, err := ParseDecodeRequest(req.Encode())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if diff := cmp.Diff(req, parsed); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDecodeRequest_Short(t *testing.T) {
	_, err := ParseDecodeRequest([]byte{BinaryDecodeRequest, 0, 1, 2})
	if !errors.Is(err, ErrShortEnvelope) {
		t.Errorf("expected ErrShortEnvelope, got %v", err)
	}
}

func TestParseDecodeRequest_WrongType(t *testing.T) {
	b := DecodeRequest{Command: CmdDecodeInterleaved}.Encode()
	b[0] = BinaryDecodeResponse
	_, err := ParseDecodeRequest(b)
	if !errors.Is(err, ErrWrongEnvelope) {
		t.Errorf("expected ErrWrongEnvelope, got %v", err)
	}
}

func TestDecodeResponse_RoundTrip_Plain(t *testing.T) {
	resp := DecodeResponse{
		Command:     CmdDecodeInterleaved,
		SessionID:   uuid.New(),
		Status:      StatusOK,
		Consumed:    11,
		SampleCount: 960,
		PCM:         []byte{1, 2, 3, 4},
	}

	encoded := resp.Encode()
	if len(encoded) != decodeResponseHeaderSize+len(resp.PCM) {
		t.Errorf("plain response should not carry an elapsed field, got %d bytes", len(encoded))
	}

	parsed, err := ParseDecodeResponse(encoded)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if diff := cmp.Diff(resp, parsed); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeResponse_RoundTrip_WithPerformance(t *testing.T) {
	resp := DecodeResponse{
		Command:     CmdDecodeInterleavedWithPerformance,
		SessionID:   uuid.New(),
		Status:      StatusOK,
		Consumed:    19,
		SampleCount: 480,
		ElapsedMS:   7,
		PCM:         []byte{9, 8},
	}

	encoded := resp.Encode()
	if len(encoded) != decodeResponseHeaderSize+8+len(resp.PCM) {
		t.Errorf("performance response must carry an elapsed field, got %d bytes", len(encoded))
	}

	parsed, err := ParseDecodeResponse(encoded)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if diff := cmp.Diff(resp, parsed); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeResponse_FailureOmitsElapsed(t *testing.T) {
	resp := DecodeResponse{
		Command: CmdDecodeInterleavedWithPerformance,
		Status:  StatusDecodeFailed,
	}

	encoded := resp.Encode()
	if len(encoded) != decodeResponseHeaderSize {
		t.Fatalf("failed response must not carry elapsed or PCM, got %d bytes", len(encoded))
	}

	parsed, err := ParseDecodeResponse(encoded)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.ElapsedMS != 0 {
		t.Errorf("expected zero elapsed on failure, got %d", parsed.ElapsedMS)
	}
	if len(parsed.PCM) != 0 {
		t.Errorf("expected no PCM on failure, got %d bytes", len(parsed.PCM))
	}
}

func TestStatusString(t *testing.T) {
	if got := StatusOK.String(); got != "ok" {
		t.Errorf("expected ok, got %s", got)
	}
	if got := StatusDecodeFailed.String(); got != "decode_failed" {
		t.Errorf("expected decode_failed, got %s", got)
	}
	if got := Status(250).String(); got != "unknown_status" {
		t.Errorf("expected unknown_status, got %s", got)
	}
}
