package playback

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Device opens a writable sink to the host audio output for raw s16le PCM.
// Write calls are bounded; a slow sink provides natural pacing through
// backpressure.
type Device interface {
	Open(sampleRate, channels int) (io.WriteCloser, error)
}

type execDevice struct {
	cmd []string
}

// NewExecDevice shells out to a host player binary that reads raw PCM from
// stdin, e.g. `aplay -q -t raw -f S16_LE -r {sample_rate} -c {channels}`.
// The {sample_rate} and {channels} placeholders are substituted per session.
func NewExecDevice(command string) (Device, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse player command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("playback: player command empty")
	}
	return &execDevice{cmd: args}, nil
}

func (d *execDevice) Open(sampleRate, channels int) (io.WriteCloser, error) {
	args := make([]string, len(d.cmd))
	for i, a := range d.cmd {
		a = strings.ReplaceAll(a, "{sample_rate}", strconv.Itoa(sampleRate))
		a = strings.ReplaceAll(a, "{channels}", strconv.Itoa(channels))
		args[i] = a
	}

	cmd := exec.Command(args[0], args[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("player stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start player: %w", err)
	}
	return &execSession{cmd: cmd, stdin: stdin}, nil
}

// execSession writes PCM into the player's stdin; Close lets the player
// drain its buffer and reports its exit status.
type execSession struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func (s *execSession) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

func (s *execSession) Close() error {
	s.stdin.Close()
	return s.cmd.Wait()
}

// Abort kills the player instead of letting it drain, so a stop request
// silences output promptly.
func (s *execSession) Abort() error {
	s.stdin.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	return nil
}
