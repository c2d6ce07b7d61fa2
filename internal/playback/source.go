package playback

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gowav "github.com/go-audio/wav"
)

const (
	// DefaultSampleRate is assumed for raw PCM sources that omit a rate.
	DefaultSampleRate = 22050
	// DefaultChannels is assumed for raw PCM sources that omit a count.
	DefaultChannels = 1
)

var (
	// ErrInvalidSource reports a malformed raw PCM source.
	ErrInvalidSource = errors.New("playback: invalid source")
	// ErrInvalidPath reports a playback file path that is not usable:
	// relative, unreadable, or not a recognized audio file.
	ErrInvalidPath = errors.New("playback: invalid file path")
	// ErrFileNotFound reports a playback file that does not exist.
	ErrFileNotFound = errors.New("playback: file not found")
)

// Source is the audio to play: interleaved little-endian 16-bit PCM with an
// explicit format.
type Source struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// normalize applies defaults and validates the format. Called before any
// device I/O.
func (s *Source) normalize() error {
	if s.SampleRate == 0 {
		s.SampleRate = DefaultSampleRate
	}
	if s.Channels == 0 {
		s.Channels = DefaultChannels
	}
	if s.SampleRate < 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidSource, s.SampleRate)
	}
	if s.Channels < 0 {
		return fmt.Errorf("%w: channels %d", ErrInvalidSource, s.Channels)
	}
	if len(s.PCM) == 0 {
		return fmt.Errorf("%w: empty audio data", ErrInvalidSource)
	}
	return nil
}

// duration returns the playing time of the source in seconds.
func (s Source) duration() float64 {
	frames := len(s.PCM) / (s.Channels * 2)
	return float64(frames) / float64(s.SampleRate)
}

// LoadWAVFile validates the path and decodes a 16-bit PCM WAV file into a
// Source. All violations are detected before any device I/O.
func LoadWAVFile(path string) (Source, error) {
	if !filepath.IsAbs(path) {
		return Source{}, fmt.Errorf("%w: must be absolute: %s", ErrInvalidPath, path)
	}
	if strings.ToLower(filepath.Ext(path)) != ".wav" {
		return Source{}, fmt.Errorf("%w: must have .wav extension: %s", ErrInvalidPath, path)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Source{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return Source{}, fmt.Errorf("%w: %s", ErrInvalidPath, err)
	}
	defer f.Close()

	decoder := gowav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return Source{}, fmt.Errorf("%w: not a valid WAV file: %s", ErrInvalidPath, path)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Source{}, fmt.Errorf("%w: decode %s: %s", ErrInvalidPath, path, err)
	}
	if decoder.BitDepth != 16 {
		return Source{}, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidPath, decoder.BitDepth)
	}

	pcm := make([]byte, len(buf.Data)*2)
	for i, sample := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample)))
	}
	return Source{
		PCM:        pcm,
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
	}, nil
}
