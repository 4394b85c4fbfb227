// ABOUTME: Tests for the frame header codec
// ABOUTME: Covers truncation, bounds validation, and byte order
package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseFrameHeader_Truncated(t *testing.T) {
	for size := 0; size < FrameHeaderSize; size++ {
		_, err := ParseFrameHeader(make([]byte, size))
		if !errors.Is(err, ErrTruncatedHeader) {
			t.Errorf("size %d: expected ErrTruncatedHeader, got %v", size, err)
		}
	}
}

func TestParseFrameHeader_BigEndian(t *testing.T) {
	b := []byte{0x00, 0x00, 0x01, 0x02, 0x00, 0x00, 0x00, 0x00}
	h, err := ParseFrameHeader(b)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if h.PayloadSize != 0x0102 {
		t.Errorf("expected payload size 0x0102, got %#x", h.PayloadSize)
	}
}

func TestParseFrameHeader_ReservedIgnored(t *testing.T) {
	b := []byte{0x00, 0x00, 0x00, 0x05, 0xde, 0xad, 0xbe, 0xef}
	h, err := ParseFrameHeader(b)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if h.PayloadSize != 5 {
		t.Errorf("expected payload size 5, got %d", h.PayloadSize)
	}
}

func TestValidateFrame(t *testing.T) {
	tests := []struct {
		name        string
		payloadSize uint32
		inputLen    int
		wantErr     bool
	}{
		{"exact fit", 4, FrameHeaderSize + 4, false},
		{"extra trailing bytes", 4, FrameHeaderSize + 10, false},
		{"empty payload", 0, FrameHeaderSize, false},
		{"payload past end", 5, FrameHeaderSize + 4, true},
		{"one byte short", 1, FrameHeaderSize, true},
		{"size overflow", 0xffffffff, FrameHeaderSize + 16, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFrame(FrameHeader{PayloadSize: tt.payloadSize}, make([]byte, tt.inputLen))
			if tt.wantErr && !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("expected ErrMalformedFrame, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected frame to validate, got %v", err)
			}
		})
	}
}

func TestAppendFrame_RoundTrip(t *testing.T) {
	payload := []byte{0x10, 0x20, 0x30}
	framed := AppendFrame(nil, payload)

	if len(framed) != FrameHeaderSize+len(payload) {
		t.Fatalf("expected %d bytes, got %d", FrameHeaderSize+len(payload), len(framed))
	}
	for i := 4; i < FrameHeaderSize; i++ {
		if framed[i] != 0 {
			t.Errorf("reserved byte %d not zero: %#x", i, framed[i])
		}
	}

	h, err := ParseFrameHeader(framed)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if h.PayloadSize != uint32(len(payload)) {
		t.Errorf("expected payload size %d, got %d", len(payload), h.PayloadSize)
	}
	if err := ValidateFrame(h, framed); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !bytes.Equal(FramePayload(h, framed), payload) {
		t.Errorf("payload mismatch: got %v", FramePayload(h, framed))
	}
}
