// Package synthplay runs synthesis followed by local playback as one job,
// reporting phase transitions to the caller as they happen.
package synthplay

import (
	"context"
	"log/slog"

	"github.com/tornado-trebuchet/tts-server/internal/playback"
	"github.com/tornado-trebuchet/tts-server/internal/synth"
)

// Phase identifies a stage of a synthesize-and-play job.
type Phase string

const (
	PhaseSynthesizing Phase = "synthesizing"
	PhasePlaying      Phase = "playing"
	PhaseCompleted    Phase = "completed"
	PhaseError        Phase = "error"
)

// Update is delivered to the notifier on each phase transition.
type Update struct {
	Phase           Phase
	DurationSeconds *float64
	Err             error
}

// Notifier receives phase updates. It is called from the job's goroutine and
// must not block for long.
type Notifier func(Update)

// Runner couples the synthesis gateway to the playback controller.
type Runner struct {
	gateway    *synth.Gateway
	controller *playback.Controller
	log        *slog.Logger
}

func NewRunner(gateway *synth.Gateway, controller *playback.Controller, log *slog.Logger) *Runner {
	return &Runner{
		gateway:    gateway,
		controller: controller,
		log:        log.With(slog.String("component", "synthplay")),
	}
}

// Run synthesizes req and plays the result on the local device. The notifier
// sees synthesizing, then playing, then exactly one of completed or error.
// Stopping playback early still counts as completed, with the elapsed
// duration.
func (r *Runner) Run(ctx context.Context, req synth.Request, notify Notifier) error {
	if notify == nil {
		notify = func(Update) {}
	}

	notify(Update{Phase: PhaseSynthesizing})
	result, err := r.gateway.Full(ctx, req)
	if err != nil {
		notify(Update{Phase: PhaseError, Err: err})
		return err
	}

	notify(Update{Phase: PhasePlaying})
	status, err := r.controller.Play(ctx, playback.Source{
		PCM:        result.PCM,
		SampleRate: result.SampleRate,
		Channels:   result.Channels,
	})
	if err != nil {
		notify(Update{Phase: PhaseError, Err: err})
		return err
	}

	notify(Update{Phase: PhaseCompleted, DurationSeconds: status.DurationSeconds})
	return nil
}
