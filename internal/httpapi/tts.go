package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tornado-trebuchet/tts-server/internal/protocol"
	"github.com/tornado-trebuchet/tts-server/internal/stream"
	"github.com/tornado-trebuchet/tts-server/internal/synth"
	"github.com/tornado-trebuchet/tts-server/internal/wav"
)

const (
	minSpeed = 0.5
	maxSpeed = 2.0
)

type synthesizeRequest struct {
	Text     string  `json:"text"`
	VoiceID  string  `json:"voice_id,omitempty"`
	Language string  `json:"language,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
}

// parseSynthesize decodes and validates the request body shared by the full,
// streaming and synth-play routes.
func parseSynthesize(r *http.Request) (synth.Request, error) {
	var body synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return synth.Request{}, fmt.Errorf("%w: decode body: %s", errBadRequest, err)
	}
	return toSynthRequest(body)
}

func toSynthRequest(body synthesizeRequest) (synth.Request, error) {
	if body.Text == "" {
		return synth.Request{}, fmt.Errorf("%w: text is required", errBadRequest)
	}
	if body.Speed == 0 {
		body.Speed = 1.0
	}
	if body.Speed < minSpeed || body.Speed > maxSpeed {
		return synth.Request{}, fmt.Errorf("%w: speed must be between %.1f and %.1f", errBadRequest, minSpeed, maxSpeed)
	}
	if body.Language == "" {
		body.Language = "en"
	}

	req := synth.Request{
		Text:     body.Text,
		Language: body.Language,
		Speed:    body.Speed,
	}
	if body.VoiceID != "" {
		id, err := uuid.Parse(body.VoiceID)
		if err != nil {
			return synth.Request{}, fmt.Errorf("%w: invalid voice_id", errBadRequest)
		}
		req.VoiceID = &id
	}
	return req, nil
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	req, err := parseSynthesize(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.gateway.Full(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	header, err := wav.Header(result.SampleRate, result.Channels, synth.BitDepth, len(result.PCM))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.events.Publish(protocol.SubjectSynthesisCompleted, protocol.SynthesisCompleted{
		VoiceID:         req.VoiceIDString(),
		Language:        req.Language,
		TextLength:      len(req.Text),
		DurationSeconds: result.DurationSeconds,
		Timestamp:       time.Now().UTC(),
	})

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("X-Audio-Duration", fmt.Sprintf("%.3f", result.DurationSeconds))
	w.Header().Set("X-Sample-Rate", fmt.Sprintf("%d", result.SampleRate))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(header); err != nil {
		return
	}
	_, _ = w.Write(result.PCM)
}

func (s *Server) handleSynthesizeStream(w http.ResponseWriter, r *http.Request) {
	req, err := parseSynthesize(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	chunks, errs, err := s.gateway.Stream(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	if err := s.emitter.Emit(r.Context(), w, chunks, errs); err != nil {
		if errors.Is(err, stream.ErrAborted) {
			// Bytes are already on the wire; the only honest signal left is
			// tearing down the connection.
			s.log.Warn("stream aborted mid-response", slog.String("error", err.Error()))
			panic(http.ErrAbortHandler)
		}
		s.writeError(w, err)
		return
	}

	s.events.Publish(protocol.SubjectSynthesisCompleted, protocol.SynthesisCompleted{
		VoiceID:    req.VoiceIDString(),
		Language:   req.Language,
		TextLength: len(req.Text),
		Streamed:   true,
		Timestamp:  time.Now().UTC(),
	})
}

func (s *Server) handleEngineVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := s.gateway.Voices(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"voices": voices})
}

func (s *Server) handleEngineLanguages(w http.ResponseWriter, r *http.Request) {
	languages, err := s.gateway.Languages(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"languages": languages})
}
