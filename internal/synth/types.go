package synth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// BitDepth is the only sample width this system produces.
const BitDepth = 16

// Request contains parameters for one synthesis call. A nil VoiceID selects
// the engine's default voice.
type Request struct {
	Text     string
	VoiceID  *uuid.UUID
	Language string
	Speed    float64
}

// VoiceIDString returns the voice id as text, or "" when unset.
func (r Request) VoiceIDString() string {
	if r.VoiceID == nil {
		return ""
	}
	return r.VoiceID.String()
}

// Chunk contains one increment of raw little-endian 16-bit PCM.
type Chunk struct {
	Sequence   int
	SampleRate int
	Channels   int
	PCM        []byte
	Final      bool
}

// Result is a fully drained synthesis with exact duration.
type Result struct {
	PCM             []byte
	SampleRate      int
	Channels        int
	DurationSeconds float64
}

// EngineRequest is the resolved request handed to the synthesis engine.
// SpeakerSample, when set, points at a cloned-voice reference recording.
type EngineRequest struct {
	Text          string
	Voice         string
	SpeakerSample string
	Language      string
	Speed         float64
}

// Engine is the contract for producing audio. The chunk channel is a lazy,
// finite, single-pass sequence; the error channel carries at most one error.
type Engine interface {
	Synthesize(ctx context.Context, req EngineRequest) (<-chan Chunk, <-chan error)
	Voices(ctx context.Context) ([]string, error)
	Languages(ctx context.Context) ([]string, error)
}

// Voice is the stored-voice view the gateway needs to drive the engine.
type Voice struct {
	ID         uuid.UUID
	Name       string
	Language   string
	SamplePath string
}

// VoiceResolver maps a voice id to engine parameters.
type VoiceResolver interface {
	Resolve(ctx context.Context, id uuid.UUID) (Voice, error)
}

// ErrVoiceNotFound reports an unresolvable voice id.
var ErrVoiceNotFound = errors.New("synth: voice not found")

// ErrEmptyText reports a request without any text to speak.
var ErrEmptyText = errors.New("synth: text required")
