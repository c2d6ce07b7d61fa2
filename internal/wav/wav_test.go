package wav

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestHeaderKnownLength(t *testing.T) {
	// one second of 16-bit mono at 22050 Hz
	header, err := Header(22050, 1, 16, 44100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(header) != HeaderSize {
		t.Fatalf("expected %d header bytes, got %d", HeaderSize, len(header))
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(header[4:8]); got != 36+44100 {
		t.Fatalf("riff size = %d, want %d", got, 36+44100)
	}
	if got := binary.LittleEndian.Uint32(header[40:44]); got != 44100 {
		t.Fatalf("data size = %d, want 44100", got)
	}
	if got := binary.LittleEndian.Uint32(header[28:32]); got != 44100 {
		t.Fatalf("byte rate = %d, want 44100", got)
	}
	if got := binary.LittleEndian.Uint16(header[32:34]); got != 2 {
		t.Fatalf("block align = %d, want 2", got)
	}
}

func TestHeaderStereo(t *testing.T) {
	header, err := Header(48000, 2, 16, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := binary.LittleEndian.Uint16(header[22:24]); got != 2 {
		t.Fatalf("channels = %d, want 2", got)
	}
	if got := binary.LittleEndian.Uint32(header[28:32]); got != 48000*2*2 {
		t.Fatalf("byte rate = %d, want %d", got, 48000*2*2)
	}
}

func TestHeaderInvalid(t *testing.T) {
	cases := []struct {
		name                           string
		sampleRate, channels, bitDepth int
	}{
		{"zero sample rate", 0, 1, 16},
		{"negative sample rate", -22050, 1, 16},
		{"zero channels", 22050, 0, 16},
		{"negative channels", 22050, -1, 16},
		{"zero bit depth", 22050, 1, 0},
		{"unaligned bit depth", 22050, 1, 12},
	}
	for _, tc := range cases {
		if _, err := Header(tc.sampleRate, tc.channels, tc.bitDepth, 100); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("%s: expected ErrInvalidFormat, got %v", tc.name, err)
		}
		if _, err := StreamingHeader(tc.sampleRate, tc.channels, tc.bitDepth); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("%s streaming: expected ErrInvalidFormat, got %v", tc.name, err)
		}
	}
}

func TestStreamingHeaderSentinel(t *testing.T) {
	header, err := StreamingHeader(22050, 1, 16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := binary.LittleEndian.Uint32(header[4:8]); got != StreamingSize {
		t.Fatalf("riff size = %#x, want sentinel", got)
	}
	if got := binary.LittleEndian.Uint32(header[40:44]); got != StreamingSize {
		t.Fatalf("data size = %#x, want sentinel", got)
	}
	// still syntactically valid
	if _, err := ParseHeader(header); err != nil {
		t.Fatalf("streaming header failed to parse: %v", err)
	}
}

func TestParseHeaderRoundTrip(t *testing.T) {
	header, err := Header(16000, 2, 16, 64000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := ParseHeader(header)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.SampleRate != 16000 || f.Channels != 2 || f.BitDepth != 16 || f.DataBytes != 64000 {
		t.Fatalf("unexpected format: %+v", f)
	}
	if got := f.Duration(); got != 1.0 {
		t.Fatalf("duration = %v, want 1.0", got)
	}
}

func TestParseHeaderRejectsGarbage(t *testing.T) {
	if _, err := ParseHeader([]byte("not a wav header")); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
	header, _ := Header(22050, 1, 16, 10)
	copy(header[0:4], "RIFX")
	if _, err := ParseHeader(header); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat for bad marker, got %v", err)
	}
}
