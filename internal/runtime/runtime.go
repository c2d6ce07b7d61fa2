// Package runtime wires configuration into the running daemon: telemetry,
// the optional event bus, the voice store, the synthesis engine, the playback
// controller and the HTTP server.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tornado-trebuchet/tts-server/internal/bus"
	"github.com/tornado-trebuchet/tts-server/internal/clone"
	"github.com/tornado-trebuchet/tts-server/internal/config"
	"github.com/tornado-trebuchet/tts-server/internal/httpapi"
	"github.com/tornado-trebuchet/tts-server/internal/natsserver"
	"github.com/tornado-trebuchet/tts-server/internal/playback"
	"github.com/tornado-trebuchet/tts-server/internal/protocol"
	"github.com/tornado-trebuchet/tts-server/internal/stream"
	"github.com/tornado-trebuchet/tts-server/internal/synth"
	"github.com/tornado-trebuchet/tts-server/internal/synthplay"
	"github.com/tornado-trebuchet/tts-server/internal/voicestore"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	dataDir := filepath.Dir(r.cfg.Voices.Path)
	embedded, err := natsserver.Start(r.cfg.Bus, dataDir, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	events, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer events.Close()

	store, err := voicestore.Open(ctx, r.cfg.Voices, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open voice store: %w", err)
	}
	defer store.Close()

	engine, err := buildEngine(r.cfg.Engine)
	if err != nil {
		return fmt.Errorf("failed to build synthesis engine: %w", err)
	}

	cacheSize := 0
	if r.cfg.Cache.Enabled {
		cacheSize = r.cfg.Cache.MaxEntries
	}
	gateway, err := synth.NewGateway(engine, store, cacheSize, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build synthesis gateway: %w", err)
	}

	device, err := playback.NewExecDevice(r.cfg.Playback.PlayerCommand)
	if err != nil {
		return fmt.Errorf("failed to build playback device: %w", err)
	}
	controller, err := playback.NewController(device, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build playback controller: %w", err)
	}
	controller.SetHooks(playback.Hooks{
		OnStart: func(src playback.Source) {
			events.Publish(protocol.SubjectPlaybackStarted, protocol.PlaybackStarted{
				SampleRate: src.SampleRate,
				Channels:   src.Channels,
				Bytes:      len(src.PCM),
				Timestamp:  time.Now().UTC(),
			})
		},
		OnFinish: func(st playback.Status) {
			var duration float64
			if st.DurationSeconds != nil {
				duration = *st.DurationSeconds
			}
			events.Publish(protocol.SubjectPlaybackFinished, protocol.PlaybackFinished{
				DurationSeconds: duration,
				Cancelled:       st.Cancelled,
				Timestamp:       time.Now().UTC(),
			})
		},
	})

	trainer, err := buildTrainer(r.cfg.Clone)
	if err != nil {
		return fmt.Errorf("failed to build voice trainer: %w", err)
	}

	api := httpapi.New(httpapi.Options{
		Log:        r.logger,
		Gateway:    gateway,
		Controller: controller,
		Runner:     synthplay.NewRunner(gateway, controller, r.logger),
		Store:      store,
		Cloner:     clone.NewService(trainer, store, r.logger),
		Events:     events,
		Emitter: stream.Emitter{
			FallbackSampleRate: r.cfg.Engine.SampleRate,
			FallbackChannels:   r.cfg.Engine.Channels,
		},
		Metrics: metricsHandler,
		Ready:   func() bool { return r.ready.Load() && store.Healthy() && events.Healthy() },
	})

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("server started",
		slog.String("addr", addr),
		slog.String("engine", r.cfg.Engine.Mode))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("server stopping")
	controller.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func buildEngine(cfg config.EngineConfig) (synth.Engine, error) {
	switch cfg.Mode {
	case "exec":
		return synth.NewExecEngine(cfg.Command, cfg.SampleRate, cfg.Channels, cfg.Voices, cfg.Languages)
	default:
		return synth.NewMockEngine(cfg.SampleRate, cfg.Channels, cfg.ChunkDurationMS), nil
	}
}

func buildTrainer(cfg config.CloneConfig) (clone.Trainer, error) {
	switch cfg.Mode {
	case "exec":
		return clone.NewExecTrainer(cfg.Command)
	default:
		return clone.NewMockTrainer(), nil
	}
}
