package clone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tornado-trebuchet/tts-server/internal/voicestore"
)

// ErrInvalidName reports a clone request without a usable voice name.
var ErrInvalidName = errors.New("clone: voice name required")

// Request describes one cloning job.
type Request struct {
	Name        string
	Description string
	Language    string
	Sample      []byte
	Metadata    map[string]string
}

// Service runs the trainer and records the resulting voice.
type Service struct {
	trainer Trainer
	store   *voicestore.Store
	log     *slog.Logger
}

// NewService wires a trainer to the voice store.
func NewService(trainer Trainer, store *voicestore.Store, log *slog.Logger) *Service {
	return &Service{
		trainer: trainer,
		store:   store,
		log:     log.With(slog.String("component", "clone")),
	}
}

// Clone persists the reference sample, trains on it, and returns the stored
// voice. The voice record is removed again if training fails.
func (s *Service) Clone(ctx context.Context, req Request) (voicestore.Voice, error) {
	if req.Name == "" {
		return voicestore.Voice{}, ErrInvalidName
	}
	if len(req.Sample) == 0 {
		return voicestore.Voice{}, ErrInvalidSample
	}
	if req.Language == "" {
		req.Language = "en"
	}

	voice, err := s.store.Save(ctx, voicestore.Voice{
		Name:        req.Name,
		Description: req.Description,
		Language:    req.Language,
		Metadata:    req.Metadata,
	}, req.Sample)
	if err != nil {
		return voicestore.Voice{}, fmt.Errorf("store voice: %w", err)
	}

	if _, err := s.trainer.Train(ctx, voice.SamplePath, voice.Language); err != nil {
		if _, delErr := s.store.Delete(ctx, voice.ID); delErr != nil {
			s.log.Warn("failed to roll back voice after training error",
				slog.String("voice_id", voice.ID.String()),
				slog.String("error", delErr.Error()))
		}
		return voicestore.Voice{}, fmt.Errorf("train voice: %w", err)
	}

	s.log.Info("voice cloned",
		slog.String("voice_id", voice.ID.String()),
		slog.String("name", voice.Name),
		slog.String("language", voice.Language))
	return voice, nil
}
