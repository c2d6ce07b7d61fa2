// Package playback owns the single exclusive audio-output session. At most
// one playback is in progress system-wide; a concurrent stop request cancels
// it cooperatively with bounded latency.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// State of the playback session.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Status is the externally visible session state. DurationSeconds is nil
// while the duration is unknown; on a cancelled session it reports the
// elapsed seconds up to the cancellation.
type Status struct {
	IsPlaying       bool
	DurationSeconds *float64
	Cancelled       bool
}

var (
	// ErrAlreadyPlaying reports a play request while a session is active.
	// Requests are rejected, never queued.
	ErrAlreadyPlaying = errors.New("playback: session already active")
	// ErrDevice reports a host audio output failure.
	ErrDevice = errors.New("playback: audio device failure")
)

// defaultWriteMS bounds one device write to this much audio; it is also the
// worst-case latency for observing a stop request.
const defaultWriteMS = 100

// Hooks observe the session lifecycle. OnStart fires once the session is
// claimed and the device is open; OnFinish fires on every exit of a started
// session, whether it completed, was cancelled or hit a device error. Both
// run on the playing goroutine and must not block.
type Hooks struct {
	OnStart  func(Source)
	OnFinish func(Status)
}

func (h Hooks) start(src Source) {
	if h.OnStart != nil {
		h.OnStart(src)
	}
}

func (h Hooks) finish(st Status) {
	if h.OnFinish != nil {
		h.OnFinish(st)
	}
}

// Controller serializes access to the host audio device. The lock guards
// only state transitions and the cancellation flag; device I/O happens
// outside it so Stop and Status never block on a write in flight.
type Controller struct {
	device  Device
	log     *slog.Logger
	writeMS int
	hooks   Hooks

	mu        sync.Mutex
	state     State
	cancelled bool
	startedAt time.Time

	sessions metric.Int64Counter
}

func NewController(device Device, log *slog.Logger) (*Controller, error) {
	c := &Controller{
		device:  device,
		log:     log.With(slog.String("component", "playback")),
		writeMS: defaultWriteMS,
	}
	meter := otel.Meter("tts-server/playback")
	var err error
	if c.sessions, err = meter.Int64Counter("audio.playback.sessions"); err != nil {
		return nil, err
	}
	return c, nil
}

// SetHooks installs the lifecycle observers. Call before the first Play.
func (c *Controller) SetHooks(h Hooks) {
	c.hooks = h
}

// Play validates the source, claims the session and blocks until playback
// completes naturally, a concurrent Stop cancels it, or the device fails.
// Errors always leave the session in the idle state.
func (c *Controller) Play(ctx context.Context, src Source) (Status, error) {
	if err := src.normalize(); err != nil {
		return Status{}, err
	}
	if err := c.begin(); err != nil {
		return Status{}, err
	}
	c.sessions.Add(ctx, 1, metric.WithAttributes(attribute.Int("sample_rate", src.SampleRate)))
	c.log.Info("playback started",
		slog.Int("sample_rate", src.SampleRate),
		slog.Int("channels", src.Channels),
		slog.Float64("duration_seconds", src.duration()))

	session, err := c.device.Open(src.SampleRate, src.Channels)
	if err != nil {
		c.reset()
		return Status{}, fmt.Errorf("%w: %s", ErrDevice, err)
	}
	c.hooks.start(src)

	chunk := src.SampleRate * src.Channels * 2 * c.writeMS / 1000
	if chunk <= 0 {
		chunk = len(src.PCM)
	}

	for offset := 0; offset < len(src.PCM); offset += chunk {
		if c.cancelRequested() || ctx.Err() != nil {
			abort(session)
			elapsed := c.elapsed()
			c.reset()
			c.log.Info("playback cancelled", slog.Float64("elapsed_seconds", elapsed))
			st := Status{IsPlaying: false, DurationSeconds: &elapsed, Cancelled: true}
			c.hooks.finish(st)
			return st, nil
		}
		end := offset + chunk
		if end > len(src.PCM) {
			end = len(src.PCM)
		}
		if _, err := session.Write(src.PCM[offset:end]); err != nil {
			abort(session)
			c.reset()
			c.hooks.finish(Status{})
			return Status{}, fmt.Errorf("%w: %s", ErrDevice, err)
		}
	}

	if err := session.Close(); err != nil {
		c.reset()
		c.hooks.finish(Status{})
		return Status{}, fmt.Errorf("%w: %s", ErrDevice, err)
	}
	duration := src.duration()
	c.reset()
	c.log.Info("playback completed", slog.Float64("duration_seconds", duration))
	st := Status{IsPlaying: false, DurationSeconds: &duration}
	c.hooks.finish(st)
	return st, nil
}

// Stop requests cancellation of the active session and returns immediately;
// it never waits for the device to drain. Stopping an idle session is a
// no-op, not an error.
func (c *Controller) Stop() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	var elapsed *float64
	switch c.state {
	case StatePlaying:
		c.state = StateStopping
		c.cancelled = true
		e := time.Since(c.startedAt).Seconds()
		elapsed = &e
	case StateStopping:
		e := time.Since(c.startedAt).Seconds()
		elapsed = &e
	}
	return Status{IsPlaying: false, DurationSeconds: elapsed}
}

// Status is a pure read; it never blocks on device I/O and never mutates.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{IsPlaying: c.state == StatePlaying}
}

// StateNow returns the current session state.
func (c *Controller) StateNow() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrAlreadyPlaying
	}
	c.state = StatePlaying
	c.cancelled = false
	c.startedAt = time.Now()
	return nil
}

func (c *Controller) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.cancelled = false
}

func (c *Controller) cancelRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *Controller) elapsed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.startedAt).Seconds()
}

// abort prefers the session's kill path over a draining close.
func abort(session interface{ Close() error }) {
	if a, ok := session.(interface{ Abort() error }); ok {
		_ = a.Abort()
		return
	}
	_ = session.Close()
}
