package protocol

import "time"

// SynthesisCompleted announces a finished synthesis request.
type SynthesisCompleted struct {
	VoiceID         string    `json:"voice_id,omitempty"`
	Language        string    `json:"language"`
	TextLength      int       `json:"text_length"`
	DurationSeconds float64   `json:"duration_seconds"`
	Streamed        bool      `json:"streamed"`
	Timestamp       time.Time `json:"timestamp"`
}

// PlaybackStarted announces that the audio device began playing a clip.
type PlaybackStarted struct {
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
	Bytes      int       `json:"bytes"`
	Timestamp  time.Time `json:"timestamp"`
}

// PlaybackFinished announces that playback reached the end of a clip or was
// stopped early.
type PlaybackFinished struct {
	DurationSeconds float64   `json:"duration_seconds"`
	Cancelled       bool      `json:"cancelled"`
	Timestamp       time.Time `json:"timestamp"`
}

// VoiceCreated announces a newly cloned voice.
type VoiceCreated struct {
	VoiceID   string    `json:"voice_id"`
	Name      string    `json:"name"`
	Language  string    `json:"language"`
	Timestamp time.Time `json:"timestamp"`
}

// VoiceDeleted announces a removed voice.
type VoiceDeleted struct {
	VoiceID   string    `json:"voice_id"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectSynthesisCompleted = "tts.synthesis.completed"
	SubjectPlaybackStarted    = "audio.playback.started"
	SubjectPlaybackFinished   = "audio.playback.finished"
	SubjectVoiceCreated       = "voice.created"
	SubjectVoiceDeleted       = "voice.deleted"
)
