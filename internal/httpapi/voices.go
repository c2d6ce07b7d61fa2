package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tornado-trebuchet/tts-server/internal/clone"
	"github.com/tornado-trebuchet/tts-server/internal/protocol"
	"github.com/tornado-trebuchet/tts-server/internal/voicestore"
)

// maxSampleBytes bounds the uploaded reference recording.
const maxSampleBytes = 32 << 20

type voiceResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Language    string            `json:"language"`
	CreatedAt   time.Time         `json:"created_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func toVoiceResponse(v voicestore.Voice) voiceResponse {
	return voiceResponse{
		ID:          v.ID.String(),
		Name:        v.Name,
		Description: v.Description,
		Language:    v.Language,
		CreatedAt:   v.CreatedAt,
		Metadata:    v.Metadata,
	}
}

func (s *Server) voicesEnabled(w http.ResponseWriter) bool {
	if s.store == nil {
		s.writeJSON(w, http.StatusServiceUnavailable,
			errorEnvelope{Error: errorBody{Code: "voices_disabled", Message: "voice store is not configured"}})
		return false
	}
	return true
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	if !s.voicesEnabled(w) {
		return
	}
	voices, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]voiceResponse, 0, len(voices))
	for _, v := range voices {
		out = append(out, toVoiceResponse(v))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"voices": out})
}

func parseVoiceID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid voice id", errBadRequest)
	}
	return id, nil
}

func (s *Server) handleGetVoice(w http.ResponseWriter, r *http.Request) {
	if !s.voicesEnabled(w) {
		return
	}
	id, err := parseVoiceID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	voice, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toVoiceResponse(voice))
}

func (s *Server) handleDeleteVoice(w http.ResponseWriter, r *http.Request) {
	if !s.voicesEnabled(w) {
		return
	}
	id, err := parseVoiceID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	existed, err := s.store.Delete(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !existed {
		s.writeError(w, voicestore.ErrNotFound)
		return
	}
	s.events.Publish(protocol.SubjectVoiceDeleted, protocol.VoiceDeleted{
		VoiceID:   id.String(),
		Timestamp: time.Now().UTC(),
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleCloneVoice accepts a multipart form with fields name, description,
// language and a "sample" file part holding the reference recording.
func (s *Server) handleCloneVoice(w http.ResponseWriter, r *http.Request) {
	if !s.voicesEnabled(w) {
		return
	}
	if s.cloner == nil {
		s.writeJSON(w, http.StatusServiceUnavailable,
			errorEnvelope{Error: errorBody{Code: "voices_disabled", Message: "voice cloning is not configured"}})
		return
	}
	if err := r.ParseMultipartForm(maxSampleBytes); err != nil {
		s.writeError(w, fmt.Errorf("%w: parse form: %s", errBadRequest, err))
		return
	}

	file, _, err := r.FormFile("sample")
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: sample file is required", errBadRequest))
		return
	}
	defer file.Close()

	sample, err := io.ReadAll(io.LimitReader(file, maxSampleBytes+1))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: read sample: %s", errBadRequest, err))
		return
	}
	if len(sample) > maxSampleBytes {
		s.writeError(w, fmt.Errorf("%w: sample exceeds %d bytes", errBadRequest, maxSampleBytes))
		return
	}

	voice, err := s.cloner.Clone(r.Context(), clone.Request{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Language:    r.FormValue("language"),
		Sample:      sample,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.events.Publish(protocol.SubjectVoiceCreated, protocol.VoiceCreated{
		VoiceID:   voice.ID.String(),
		Name:      voice.Name,
		Language:  voice.Language,
		Timestamp: time.Now().UTC(),
	})
	s.writeJSON(w, http.StatusCreated, toVoiceResponse(voice))
}
