package voicestore

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tornado-trebuchet/tts-server/internal/synth"
)

// Resolve makes the store usable as the synthesis gateway's voice resolver.
func (s *Store) Resolve(ctx context.Context, id uuid.UUID) (synth.Voice, error) {
	voice, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return synth.Voice{}, synth.ErrVoiceNotFound
	}
	if err != nil {
		return synth.Voice{}, err
	}
	return synth.Voice{
		ID:         voice.ID,
		Name:       voice.Name,
		Language:   voice.Language,
		SamplePath: voice.SamplePath,
	}, nil
}
