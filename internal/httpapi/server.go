// Package httpapi exposes the synthesis and playback operations over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tornado-trebuchet/tts-server/internal/bus"
	"github.com/tornado-trebuchet/tts-server/internal/clone"
	"github.com/tornado-trebuchet/tts-server/internal/playback"
	"github.com/tornado-trebuchet/tts-server/internal/stream"
	"github.com/tornado-trebuchet/tts-server/internal/synth"
	"github.com/tornado-trebuchet/tts-server/internal/synthplay"
	"github.com/tornado-trebuchet/tts-server/internal/voicestore"
)

// Server holds the handler dependencies. Any of events may be nil; store and
// cloner may be nil when voice cloning is not wired, in which case the voice
// routes answer 503.
type Server struct {
	log        *slog.Logger
	gateway    *synth.Gateway
	controller *playback.Controller
	runner     *synthplay.Runner
	store      *voicestore.Store
	cloner     *clone.Service
	events     *bus.Client
	emitter    stream.Emitter
	metrics    http.Handler
	ready      func() bool
}

// Options carries the dependencies for New.
type Options struct {
	Log        *slog.Logger
	Gateway    *synth.Gateway
	Controller *playback.Controller
	Runner     *synthplay.Runner
	Store      *voicestore.Store
	Cloner     *clone.Service
	Events     *bus.Client
	Emitter    stream.Emitter
	Metrics    http.Handler
	Ready      func() bool
}

func New(opts Options) *Server {
	if opts.Ready == nil {
		opts.Ready = func() bool { return true }
	}
	return &Server{
		log:        opts.Log.With(slog.String("component", "httpapi")),
		gateway:    opts.Gateway,
		controller: opts.Controller,
		runner:     opts.Runner,
		store:      opts.Store,
		cloner:     opts.Cloner,
		events:     opts.Events,
		emitter:    opts.Emitter,
		metrics:    opts.Metrics,
		ready:      opts.Ready,
	}
}

// Routes builds the request mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	mux.HandleFunc("POST /tts/synthesize", s.handleSynthesize)
	mux.HandleFunc("POST /tts/synthesize/stream", s.handleSynthesizeStream)
	mux.HandleFunc("GET /tts/voices", s.handleEngineVoices)
	mux.HandleFunc("GET /tts/languages", s.handleEngineLanguages)

	mux.HandleFunc("POST /audio/play-bytes", s.handlePlayBytes)
	mux.HandleFunc("POST /audio/play-file", s.handlePlayFile)
	mux.HandleFunc("POST /audio/stop", s.handleStop)
	mux.HandleFunc("GET /audio/status", s.handleStatus)

	mux.HandleFunc("GET /voices", s.handleListVoices)
	mux.HandleFunc("GET /voices/{id}", s.handleGetVoice)
	mux.HandleFunc("DELETE /voices/{id}", s.handleDeleteVoice)
	mux.HandleFunc("POST /voices/clone", s.handleCloneVoice)

	mux.HandleFunc("GET /ws/synth-play", s.handleSynthPlayWS)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError maps domain sentinels onto status codes and a stable error code.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case errors.Is(err, synth.ErrEmptyText),
		errors.Is(err, playback.ErrInvalidSource),
		errors.Is(err, clone.ErrInvalidName),
		errors.Is(err, clone.ErrInvalidSample),
		errors.Is(err, errBadRequest):
		status, code = http.StatusBadRequest, "invalid_parameter"
	case errors.Is(err, playback.ErrInvalidPath):
		status, code = http.StatusBadRequest, "invalid_path"
	case errors.Is(err, synth.ErrVoiceNotFound), errors.Is(err, voicestore.ErrNotFound):
		status, code = http.StatusNotFound, "voice_not_found"
	case errors.Is(err, playback.ErrFileNotFound):
		status, code = http.StatusNotFound, "file_not_found"
	case errors.Is(err, playback.ErrAlreadyPlaying):
		status, code = http.StatusConflict, "already_playing"
	case errors.Is(err, playback.ErrDevice):
		status, code = http.StatusInternalServerError, "playback_device_error"
	}

	s.writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: err.Error()}})
}

// errBadRequest marks request decoding and validation failures.
var errBadRequest = errors.New("bad request")
