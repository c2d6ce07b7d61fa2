// Package clone trains new voices from short reference samples and persists
// them in the voice store.
package clone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

// ErrInvalidSample reports a reference sample the trainer cannot use.
var ErrInvalidSample = errors.New("clone: invalid reference sample")

// Trainer turns a reference sample into engine-side voice artifacts. The
// returned path points at the processed sample the synthesis engine should
// condition on; implementations may return the input path unchanged.
type Trainer interface {
	Train(ctx context.Context, samplePath string, language string) (string, error)
}

// mockTrainer accepts any non-empty sample path and returns it as-is. It
// backs the default configuration where no real cloning backend is installed.
type mockTrainer struct{}

// NewMockTrainer returns a trainer that performs no processing.
func NewMockTrainer() Trainer {
	return mockTrainer{}
}

func (mockTrainer) Train(_ context.Context, samplePath string, _ string) (string, error) {
	if samplePath == "" {
		return "", ErrInvalidSample
	}
	return samplePath, nil
}

type trainRequest struct {
	SamplePath string `json:"sample_path"`
	Language   string `json:"language"`
}

type trainResponse struct {
	OutputPath string `json:"output_path"`
	Error      string `json:"error,omitempty"`
}

// execTrainer shells out to an external training command. The command
// receives one JSON request on stdin and must print one JSON response on
// stdout.
type execTrainer struct {
	mu   sync.Mutex
	args []string
}

// NewExecTrainer parses command with shell-style word splitting.
func NewExecTrainer(command string) (Trainer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse trainer command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("clone: empty trainer command")
	}
	return &execTrainer{args: args}, nil
}

func (t *execTrainer) Train(ctx context.Context, samplePath string, language string) (string, error) {
	if samplePath == "" {
		return "", ErrInvalidSample
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	payload, err := json.Marshal(trainRequest{SamplePath: samplePath, Language: language})
	if err != nil {
		return "", fmt.Errorf("encode train request: %w", err)
	}

	cmd := exec.CommandContext(ctx, t.args[0], t.args[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("trainer command failed: %s", bytes.TrimSpace(exitErr.Stderr))
		}
		return "", fmt.Errorf("run trainer command: %w", err)
	}

	var resp trainResponse
	if err := json.Unmarshal(bytes.TrimSpace(out), &resp); err != nil {
		return "", fmt.Errorf("decode trainer response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("trainer reported: %s", resp.Error)
	}
	if resp.OutputPath == "" {
		return "", errors.New("clone: trainer returned no output path")
	}
	return resp.OutputPath, nil
}
