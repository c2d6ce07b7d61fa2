package httpapi

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/tornado-trebuchet/tts-server/internal/playback"
	"github.com/tornado-trebuchet/tts-server/internal/synth"
	"github.com/tornado-trebuchet/tts-server/internal/wav"
)

// maxClipBytes bounds uploads on the play-bytes route (about 10 minutes of
// 48 kHz stereo audio).
const maxClipBytes = 128 << 20

type statusResponse struct {
	IsPlaying       bool     `json:"is_playing"`
	DurationSeconds *float64 `json:"duration_seconds"`
}

func toStatusResponse(st playback.Status) statusResponse {
	return statusResponse{IsPlaying: st.IsPlaying, DurationSeconds: st.DurationSeconds}
}

type playBytesRequest struct {
	AudioData  string `json:"audio_data"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// handlePlayBytes plays a clip posted as the request body and responds only
// after playback finishes or is stopped. The body is raw 16-bit PCM: either a
// JSON object with base64 audio_data and optional sample_rate/channels, or
// the bare bytes with the format in query parameters. Omitted parameters fall
// back to 22050 Hz mono. A RIFF/WAVE container is also accepted, with the
// format read from its header.
func (s *Server) handlePlayBytes(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxClipBytes+1))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: read body: %s", errBadRequest, err))
		return
	}
	if len(body) > maxClipBytes {
		s.writeError(w, fmt.Errorf("%w: clip exceeds %d bytes", errBadRequest, maxClipBytes))
		return
	}

	src, err := s.decodePlayBytes(r, body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.play(w, r, src)
}

func (s *Server) decodePlayBytes(r *http.Request, body []byte) (playback.Source, error) {
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "application/json" {
		var req playBytesRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return playback.Source{}, fmt.Errorf("%w: decode body: %s", errBadRequest, err)
		}
		pcm, err := base64.StdEncoding.DecodeString(req.AudioData)
		if err != nil {
			return playback.Source{}, fmt.Errorf("%w: audio_data is not valid base64", errBadRequest)
		}
		return playback.Source{PCM: pcm, SampleRate: req.SampleRate, Channels: req.Channels}, nil
	}

	if bytes.HasPrefix(body, []byte("RIFF")) {
		format, err := wav.ParseHeader(body)
		if err != nil {
			return playback.Source{}, fmt.Errorf("%w: %s", playback.ErrInvalidSource, err)
		}
		if format.BitDepth != synth.BitDepth {
			return playback.Source{}, fmt.Errorf("%w: only 16-bit PCM is playable", playback.ErrInvalidSource)
		}
		return playback.Source{
			PCM:        body[wav.HeaderSize:],
			SampleRate: format.SampleRate,
			Channels:   format.Channels,
		}, nil
	}

	src := playback.Source{PCM: body}
	var err error
	if src.SampleRate, err = queryInt(r, "sample_rate"); err != nil {
		return playback.Source{}, err
	}
	if src.Channels, err = queryInt(r, "channels"); err != nil {
		return playback.Source{}, err
	}
	return src, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, key)
	}
	return value, nil
}

// handlePlayFile plays a WAV file already on the server's filesystem.
func (s *Server) handlePlayFile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, fmt.Errorf("%w: decode body: %s", errBadRequest, err))
		return
	}

	src, err := playback.LoadWAVFile(body.Path)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.play(w, r, src)
}

func (s *Server) play(w http.ResponseWriter, r *http.Request, src playback.Source) {
	status, err := s.controller.Play(r.Context(), src)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toStatusResponse(status))
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, toStatusResponse(s.controller.Stop()))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, toStatusResponse(s.controller.Status()))
}
