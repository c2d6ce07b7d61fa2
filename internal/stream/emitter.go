// Package stream turns a lazy PCM chunk sequence into a streaming WAV byte
// stream: header first, then each chunk forwarded as soon as it is produced.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tornado-trebuchet/tts-server/internal/synth"
	"github.com/tornado-trebuchet/tts-server/internal/wav"
)

// ErrAborted reports a synthesis failure after response bytes were already
// written. The transport must terminate the connection abnormally instead of
// delivering a truncated WAV as a clean end-of-stream.
var ErrAborted = errors.New("stream: synthesis aborted mid-stream")

// Emitter writes streaming WAV responses. The fallback format is used for
// the header when the chunk sequence turns out to be empty; a header-only
// silent WAV is a valid outcome.
type Emitter struct {
	FallbackSampleRate int
	FallbackChannels   int
}

// Emit drains the chunk sequence into w. The first write is the 44-byte
// streaming header followed by the first chunk; every later chunk is written
// and flushed as it arrives, with no read-ahead. An engine error before the
// first write is returned as-is so the caller can still produce a clean HTTP
// error; after the first write it is wrapped in ErrAborted.
func (e Emitter) Emit(ctx context.Context, w io.Writer, chunks <-chan synth.Chunk, errs <-chan error) error {
	wroteHeader := false

	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if !wroteHeader {
				header, err := wav.StreamingHeader(chunk.SampleRate, chunk.Channels, synth.BitDepth)
				if err != nil {
					return err
				}
				if _, err := w.Write(header); err != nil {
					return fmt.Errorf("write header: %w", err)
				}
				wroteHeader = true
			}
			if len(chunk.PCM) > 0 {
				if _, err := w.Write(chunk.PCM); err != nil {
					return fmt.Errorf("%w: %s", ErrAborted, err)
				}
			}
			flush(w)
		case err, ok := <-errs:
			if ok && err != nil {
				if wroteHeader {
					return fmt.Errorf("%w: %s", ErrAborted, err)
				}
				return err
			}
			errs = nil
		case <-ctx.Done():
			if wroteHeader {
				return fmt.Errorf("%w: %s", ErrAborted, ctx.Err())
			}
			return ctx.Err()
		}
	}

	if !wroteHeader {
		header, err := wav.StreamingHeader(e.FallbackSampleRate, e.FallbackChannels, synth.BitDepth)
		if err != nil {
			return err
		}
		if _, err := w.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		flush(w)
	}
	return nil
}

func flush(w io.Writer) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
