package synth

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execEngine struct {
	cmd        []string
	sampleRate int
	channels   int
	voices     []string
	languages  []string
	mu         sync.Mutex
}

type execRequest struct {
	Text          string  `json:"text"`
	Voice         string  `json:"voice,omitempty"`
	SpeakerSample string  `json:"speaker_sample,omitempty"`
	Language      string  `json:"language"`
	Speed         float64 `json:"speed"`
	SampleRate    int     `json:"sample_rate"`
	Channels      int     `json:"channels"`
}

type execResponse struct {
	PCMBase64 string `json:"pcm_base64"`
	Final     bool   `json:"final"`
}

// NewExecEngine wraps a subprocess speaking newline-delimited JSON on
// stdin/stdout: one request object in, a stream of {pcm_base64, final}
// objects out. The listed voices and languages come from configuration since
// the subprocess contract has no introspection call.
func NewExecEngine(command string, sampleRate, channels int, voices, languages []string) (Engine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synth: engine command empty")
	}
	return &execEngine{
		cmd:        args,
		sampleRate: sampleRate,
		channels:   channels,
		voices:     voices,
		languages:  languages,
	}, nil
}

func (e *execEngine) Voices(_ context.Context) ([]string, error) {
	if len(e.voices) == 0 {
		return []string{"default"}, nil
	}
	return e.voices, nil
}

func (e *execEngine) Languages(_ context.Context) ([]string, error) {
	if len(e.languages) == 0 {
		return []string{"en"}, nil
	}
	return e.languages, nil
}

func (e *execEngine) Synthesize(ctx context.Context, req EngineRequest) (<-chan Chunk, <-chan error) {
	e.mu.Lock()
	chunks := make(chan Chunk)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		defer e.mu.Unlock()

		payload := execRequest{
			Text:          req.Text,
			Voice:         req.Voice,
			SpeakerSample: req.SpeakerSample,
			Language:      req.Language,
			Speed:         req.Speed,
			SampleRate:    e.sampleRate,
			Channels:      e.channels,
		}
		data, err := json.Marshal(payload)
		if err != nil {
			errs <- err
			return
		}

		base := e.cmd[0]
		args := append([]string{}, e.cmd[1:]...)
		cmd := exec.CommandContext(ctx, base, args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			errs <- err
			return
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			errs <- err
			return
		}
		if err := cmd.Start(); err != nil {
			errs <- err
			return
		}

		if _, err := stdin.Write(data); err != nil {
			errs <- err
			cmd.Wait()
			return
		}
		stdin.Close()

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		sequence := 0
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var resp execResponse
			if err := json.Unmarshal(line, &resp); err != nil {
				errs <- err
				cmd.Wait()
				return
			}
			pcm, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
			if err != nil {
				errs <- err
				cmd.Wait()
				return
			}
			select {
			case chunks <- Chunk{
				Sequence:   sequence,
				SampleRate: e.sampleRate,
				Channels:   e.channels,
				PCM:        pcm,
				Final:      resp.Final,
			}:
			case <-ctx.Done():
				errs <- ctx.Err()
				cmd.Wait()
				return
			}
			sequence++
		}
		if err := cmd.Wait(); err != nil {
			errs <- err
			return
		}
		if scanErr := scanner.Err(); scanErr != nil {
			errs <- scanErr
		}
	}()
	return chunks, errs
}
