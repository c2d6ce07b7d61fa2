package playback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tornado-trebuchet/tts-server/internal/wav"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeDevice records written PCM and can simulate a slow or failing sink.
type fakeDevice struct {
	mu         sync.Mutex
	writeDelay time.Duration
	openErr    error
	failAfter  int // fail on the nth write; 0 disables
	written    []byte
	writes     int
	aborted    bool
}

func (d *fakeDevice) Open(sampleRate, channels int) (io.WriteCloser, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return &fakeSession{dev: d}, nil
}

func (d *fakeDevice) bytesWritten() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.written)
}

type fakeSession struct {
	dev *fakeDevice
}

func (s *fakeSession) Write(p []byte) (int, error) {
	d := s.dev
	d.mu.Lock()
	d.writes++
	if d.failAfter > 0 && d.writes >= d.failAfter {
		d.mu.Unlock()
		return 0, errors.New("device gone")
	}
	d.written = append(d.written, p...)
	delay := d.writeDelay
	d.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return len(p), nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) Abort() error {
	s.dev.mu.Lock()
	s.dev.aborted = true
	s.dev.mu.Unlock()
	return nil
}

func newController(t *testing.T, dev Device) *Controller {
	t.Helper()
	c, err := NewController(dev, newLogger())
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return c
}

func silence(seconds float64, sampleRate, channels int) Source {
	frames := int(seconds * float64(sampleRate))
	return Source{
		PCM:        make([]byte, frames*channels*2),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// hookRecorder captures lifecycle callbacks in order.
type hookRecorder struct {
	mu       sync.Mutex
	starts   int
	finishes []Status
}

func (h *hookRecorder) hooks() Hooks {
	return Hooks{
		OnStart: func(Source) {
			h.mu.Lock()
			h.starts++
			h.mu.Unlock()
		},
		OnFinish: func(st Status) {
			h.mu.Lock()
			h.finishes = append(h.finishes, st)
			h.mu.Unlock()
		},
	}
}

func (h *hookRecorder) counts() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.starts, len(h.finishes)
}

func TestHooksFireOnlyForAcceptedSessions(t *testing.T) {
	dev := &fakeDevice{}
	c := newController(t, dev)
	rec := &hookRecorder{}
	c.SetHooks(rec.hooks())

	// A rejected source must not announce a session.
	if _, err := c.Play(context.Background(), Source{SampleRate: 22050, Channels: 1}); !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("empty source = %v, want ErrInvalidSource", err)
	}
	if starts, finishes := rec.counts(); starts != 0 || finishes != 0 {
		t.Fatalf("hooks fired on rejected play: starts=%d finishes=%d", starts, finishes)
	}

	// A failed device open claims and releases the session without a start.
	failDev := &fakeDevice{openErr: errors.New("no sink")}
	c2 := newController(t, failDev)
	c2.SetHooks(rec.hooks())
	if _, err := c2.Play(context.Background(), silence(0.1, 22050, 1)); !errors.Is(err, ErrDevice) {
		t.Fatalf("open failure = %v, want ErrDevice", err)
	}
	if starts, finishes := rec.counts(); starts != 0 || finishes != 0 {
		t.Fatalf("hooks fired on failed open: starts=%d finishes=%d", starts, finishes)
	}

	// A completed session fires both, in order, with the final duration.
	if _, err := c.Play(context.Background(), silence(0.5, 22050, 1)); err != nil {
		t.Fatalf("play: %v", err)
	}
	starts, finishes := rec.counts()
	if starts != 1 || finishes != 1 {
		t.Fatalf("starts=%d finishes=%d, want 1/1", starts, finishes)
	}
	final := rec.finishes[0]
	if final.Cancelled || final.DurationSeconds == nil || math.Abs(*final.DurationSeconds-0.5) > 1e-9 {
		t.Fatalf("finish status = %+v", final)
	}
}

func TestHooksReportCancelledSession(t *testing.T) {
	dev := &fakeDevice{writeDelay: 5 * time.Millisecond}
	c := newController(t, dev)
	rec := &hookRecorder{}
	c.SetHooks(rec.hooks())

	done := make(chan error, 1)
	go func() {
		_, err := c.Play(context.Background(), silence(30, 22050, 1))
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if starts, _ := rec.counts(); starts == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session never started")
		}
		time.Sleep(time.Millisecond)
	}
	c.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("play: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("play did not return after stop")
	}

	starts, finishes := rec.counts()
	if starts != 1 || finishes != 1 {
		t.Fatalf("starts=%d finishes=%d, want 1/1", starts, finishes)
	}
	final := rec.finishes[0]
	if !final.Cancelled || final.DurationSeconds == nil || *final.DurationSeconds >= 30 {
		t.Fatalf("finish status = %+v, want cancelled with elapsed duration", final)
	}
}

func TestPlayCompletesWithDuration(t *testing.T) {
	dev := &fakeDevice{}
	c := newController(t, dev)

	status, err := c.Play(context.Background(), silence(1.0, 22050, 1))
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if status.IsPlaying {
		t.Fatal("expected is_playing=false after completion")
	}
	if status.DurationSeconds == nil || math.Abs(*status.DurationSeconds-1.0) > 1e-9 {
		t.Fatalf("duration = %v, want 1.0", status.DurationSeconds)
	}
	if dev.bytesWritten() != 44100 {
		t.Fatalf("device received %d bytes, want 44100", dev.bytesWritten())
	}
	if c.StateNow() != StateIdle {
		t.Fatalf("state = %v, want idle", c.StateNow())
	}
}

func TestPlayAppliesDefaults(t *testing.T) {
	dev := &fakeDevice{}
	c := newController(t, dev)

	status, err := c.Play(context.Background(), Source{PCM: make([]byte, DefaultSampleRate*2)})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if status.DurationSeconds == nil || math.Abs(*status.DurationSeconds-1.0) > 1e-9 {
		t.Fatalf("duration = %v, want 1.0 with 22050/1 defaults", status.DurationSeconds)
	}
}

func TestPlayRejectsInvalidSource(t *testing.T) {
	c := newController(t, &fakeDevice{})
	if _, err := c.Play(context.Background(), Source{PCM: []byte{0, 0}, SampleRate: -1}); !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource, got %v", err)
	}
	if _, err := c.Play(context.Background(), Source{SampleRate: 22050, Channels: 1}); !errors.Is(err, ErrInvalidSource) {
		t.Fatalf("expected ErrInvalidSource for empty data, got %v", err)
	}
	if c.StateNow() != StateIdle {
		t.Fatal("validation failure must not claim the session")
	}
}

func TestSecondPlayRejectedWhileActive(t *testing.T) {
	dev := &fakeDevice{writeDelay: 5 * time.Millisecond}
	c := newController(t, dev)

	done := make(chan Status, 1)
	go func() {
		status, err := c.Play(context.Background(), silence(2.0, 22050, 1))
		if err != nil {
			t.Errorf("first play failed: %v", err)
		}
		done <- status
	}()

	waitFor(t, func() bool { return c.Status().IsPlaying })

	if _, err := c.Play(context.Background(), silence(0.5, 22050, 1)); !errors.Is(err, ErrAlreadyPlaying) {
		t.Fatalf("expected ErrAlreadyPlaying, got %v", err)
	}

	c.Stop()
	status := <-done
	if status.IsPlaying {
		t.Fatal("first session should have finished")
	}
	// the rejected request must not have poisoned the first session's data
	if dev.bytesWritten()%2 != 0 {
		t.Fatal("device received torn samples")
	}
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	c := newController(t, &fakeDevice{})
	status := c.Stop()
	if status.IsPlaying {
		t.Fatal("expected is_playing=false")
	}
	if status.DurationSeconds != nil {
		t.Fatalf("expected nil duration, got %v", *status.DurationSeconds)
	}
	if c.StateNow() != StateIdle {
		t.Fatal("stop on idle must stay idle")
	}
}

func TestStopCancelsPromptly(t *testing.T) {
	// 60 seconds of audio on a device pacing ~5ms per 100ms write; a stop
	// at ~50ms must end the blocking play well before full drain
	dev := &fakeDevice{writeDelay: 5 * time.Millisecond}
	c := newController(t, dev)

	done := make(chan Status, 1)
	go func() {
		status, err := c.Play(context.Background(), silence(60, 22050, 1))
		if err != nil {
			t.Errorf("play: %v", err)
		}
		done <- status
	}()

	waitFor(t, func() bool { return c.Status().IsPlaying })
	time.Sleep(50 * time.Millisecond)

	stopAt := time.Now()
	stopStatus := c.Stop()
	if stopStatus.IsPlaying {
		t.Fatal("stop must report is_playing=false")
	}
	if stopStatus.DurationSeconds == nil || *stopStatus.DurationSeconds > 5 {
		t.Fatalf("stop elapsed = %v, want small elapsed value", stopStatus.DurationSeconds)
	}

	select {
	case status := <-done:
		if time.Since(stopAt) > 2*time.Second {
			t.Fatal("play did not observe cancellation promptly")
		}
		if status.DurationSeconds == nil || *status.DurationSeconds > 5 {
			t.Fatalf("cancelled play duration = %v, want elapsed-so-far", status.DurationSeconds)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("play blocked past cancellation")
	}

	dev.mu.Lock()
	aborted := dev.aborted
	dev.mu.Unlock()
	if !aborted {
		t.Fatal("expected session abort on cancellation")
	}
	if c.StateNow() != StateIdle {
		t.Fatal("cancelled session must return to idle")
	}
}

func TestDeviceWriteErrorResetsToIdle(t *testing.T) {
	dev := &fakeDevice{failAfter: 2}
	c := newController(t, dev)

	_, err := c.Play(context.Background(), silence(1.0, 22050, 1))
	if !errors.Is(err, ErrDevice) {
		t.Fatalf("expected ErrDevice, got %v", err)
	}
	if c.StateNow() != StateIdle {
		t.Fatal("device failure must reset session to idle")
	}

	// a later attempt is not blocked by the failed session
	dev.failAfter = 0
	if _, err := c.Play(context.Background(), silence(0.1, 22050, 1)); err != nil {
		t.Fatalf("subsequent play failed: %v", err)
	}
}

func TestDeviceOpenErrorResetsToIdle(t *testing.T) {
	dev := &fakeDevice{openErr: errors.New("no output device")}
	c := newController(t, dev)
	if _, err := c.Play(context.Background(), silence(0.1, 22050, 1)); !errors.Is(err, ErrDevice) {
		t.Fatalf("expected ErrDevice, got %v", err)
	}
	if c.StateNow() != StateIdle {
		t.Fatal("open failure must reset session to idle")
	}
}

func TestStatusNeverBlocksDuringPlayback(t *testing.T) {
	dev := &fakeDevice{writeDelay: 20 * time.Millisecond}
	c := newController(t, dev)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Play(context.Background(), silence(5, 22050, 1))
	}()

	waitFor(t, func() bool { return c.Status().IsPlaying })
	start := time.Now()
	for i := 0; i < 100; i++ {
		c.Status()
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("status calls blocked on device I/O")
	}

	c.Stop()
	<-done
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestLoadWAVFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.wav")

	pcm := make([]byte, 22050*2) // one second of 16-bit mono silence
	header, err := wav.Header(22050, 1, 16, len(pcm))
	if err != nil {
		t.Fatalf("build header: %v", err)
	}
	if err := os.WriteFile(path, append(header, pcm...), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	src, err := LoadWAVFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if src.SampleRate != 22050 || src.Channels != 1 {
		t.Fatalf("unexpected format: %d Hz, %d ch", src.SampleRate, src.Channels)
	}
	if math.Abs(src.duration()-1.0) > 1e-9 {
		t.Fatalf("duration = %v, want the header's 1.0", src.duration())
	}
}

func TestLoadWAVFileValidation(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadWAVFile("relative/clip.wav"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath for relative path, got %v", err)
	}
	if _, err := LoadWAVFile(filepath.Join(dir, "song.mp3")); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath for wrong extension, got %v", err)
	}
	if _, err := LoadWAVFile(filepath.Join(dir, "missing.wav")); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}

	junk := filepath.Join(dir, "junk.wav")
	if err := os.WriteFile(junk, []byte("this is not audio"), 0o644); err != nil {
		t.Fatalf("write junk: %v", err)
	}
	if _, err := LoadWAVFile(junk); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath for junk content, got %v", err)
	}
}
