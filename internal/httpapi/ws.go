package httpapi

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tornado-trebuchet/tts-server/internal/synthplay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type wsStateMessage struct {
	State           string   `json:"state"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// handleSynthPlayWS accepts one synthesis request per connection, plays the
// result on the local device and streams phase updates back as JSON text
// frames: synthesizing, playing, then completed or error.
func (s *Server) handleSynthPlayWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	var body synthesizeRequest
	if err := conn.ReadJSON(&body); err != nil {
		_ = conn.WriteJSON(wsStateMessage{State: string(synthplay.PhaseError), Error: "invalid request"})
		return
	}
	req, err := toSynthRequest(body)
	if err != nil {
		_ = conn.WriteJSON(wsStateMessage{State: string(synthplay.PhaseError), Error: err.Error()})
		return
	}

	// Writes come from the runner's goroutine and from this handler.
	var writeMu sync.Mutex
	send := func(msg wsStateMessage) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(msg); err != nil {
			s.log.Warn("websocket write failed", slog.String("error", err.Error()))
		}
	}

	err = s.runner.Run(r.Context(), req, func(u synthplay.Update) {
		msg := wsStateMessage{State: string(u.Phase), DurationSeconds: u.DurationSeconds}
		if u.Err != nil {
			msg.Error = u.Err.Error()
		}
		send(msg)
	})
	if err != nil {
		s.log.Warn("synth-play job failed", slog.String("error", err.Error()))
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
