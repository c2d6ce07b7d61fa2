// Package wav builds and inspects canonical 44-byte RIFF/WAVE headers for
// 16-bit little-endian PCM audio.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the size of the canonical WAV header in bytes.
	HeaderSize = 44

	// FormatPCM is the format tag for uncompressed PCM audio.
	FormatPCM = 1

	// StreamingSize is the sentinel written into the RIFF and data size
	// fields when the total length is unknown ahead of time. Streamed WAV
	// with an indeterminate size is a documented format limitation; most
	// consumers tolerate it.
	StreamingSize = 0xFFFFFFFF
)

// ErrInvalidFormat reports a header request with a non-positive sample rate
// or channel count.
var ErrInvalidFormat = errors.New("wav: invalid audio format")

// Header builds a canonical WAV header for PCM data of a known total length.
// dataBytes is the size of the PCM payload that follows the header.
func Header(sampleRate, channels, bitDepth, dataBytes int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channels %d", ErrInvalidFormat, channels)
	}
	if bitDepth <= 0 || bitDepth%8 != 0 {
		return nil, fmt.Errorf("%w: bit depth %d", ErrInvalidFormat, bitDepth)
	}
	if dataBytes < 0 {
		return nil, fmt.Errorf("%w: data size %d", ErrInvalidFormat, dataBytes)
	}
	return build(sampleRate, channels, bitDepth, uint32(36+dataBytes), uint32(dataBytes)), nil
}

// StreamingHeader builds a header for PCM data of unknown total length.
// Both size fields carry the StreamingSize sentinel.
func StreamingHeader(sampleRate, channels, bitDepth int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channels %d", ErrInvalidFormat, channels)
	}
	if bitDepth <= 0 || bitDepth%8 != 0 {
		return nil, fmt.Errorf("%w: bit depth %d", ErrInvalidFormat, bitDepth)
	}
	return build(sampleRate, channels, bitDepth, StreamingSize, StreamingSize), nil
}

func build(sampleRate, channels, bitDepth int, riffSize, dataSize uint32) []byte {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8

	header := make([]byte, HeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], riffSize)
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], FormatPCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bitDepth))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)
	return header
}

// Format describes the PCM layout declared by a WAV header.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
	DataBytes  int
}

// Duration returns the playing time in seconds declared by the header, or 0
// when the data size is the streaming sentinel.
func (f Format) Duration() float64 {
	if f.DataBytes == int(uint32(StreamingSize)) || f.SampleRate == 0 {
		return 0
	}
	bytesPerSecond := f.SampleRate * f.Channels * f.BitDepth / 8
	if bytesPerSecond == 0 {
		return 0
	}
	return float64(f.DataBytes) / float64(bytesPerSecond)
}

// ParseHeader reads the format fields out of a canonical 44-byte header.
func ParseHeader(header []byte) (Format, error) {
	if len(header) < HeaderSize {
		return Format{}, fmt.Errorf("%w: header too short (%d bytes)", ErrInvalidFormat, len(header))
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Format{}, fmt.Errorf("%w: missing RIFF/WAVE markers", ErrInvalidFormat)
	}
	if string(header[12:16]) != "fmt " {
		return Format{}, fmt.Errorf("%w: missing fmt chunk", ErrInvalidFormat)
	}
	if tag := binary.LittleEndian.Uint16(header[20:22]); tag != FormatPCM {
		return Format{}, fmt.Errorf("%w: format tag %d is not PCM", ErrInvalidFormat, tag)
	}
	f := Format{
		Channels:   int(binary.LittleEndian.Uint16(header[22:24])),
		SampleRate: int(binary.LittleEndian.Uint32(header[24:28])),
		BitDepth:   int(binary.LittleEndian.Uint16(header[34:36])),
		DataBytes:  int(binary.LittleEndian.Uint32(header[40:44])),
	}
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return Format{}, fmt.Errorf("%w: sample rate %d, channels %d", ErrInvalidFormat, f.SampleRate, f.Channels)
	}
	return f, nil
}
