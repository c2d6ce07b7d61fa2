package synth

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math"
)

type mockEngine struct {
	sampleRate int
	channels   int
	chunkMS    int
}

// NewMockEngine returns an engine that produces a deterministic sine tone
// sized to the input text. Identical requests always yield identical PCM,
// which lets tests compare full and streaming output byte for byte.
func NewMockEngine(sampleRate, channels, chunkDurationMS int) Engine {
	if chunkDurationMS <= 0 {
		chunkDurationMS = 250
	}
	return &mockEngine{sampleRate: sampleRate, channels: channels, chunkMS: chunkDurationMS}
}

func (m *mockEngine) Voices(_ context.Context) ([]string, error) {
	return []string{"default", "alto", "tenor"}, nil
}

func (m *mockEngine) Languages(_ context.Context) ([]string, error) {
	return []string{"en", "de", "pl"}, nil
}

func (m *mockEngine) Synthesize(ctx context.Context, req EngineRequest) (<-chan Chunk, <-chan error) {
	chunks := make(chan Chunk)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)

		pcm := m.render(req)
		chunkBytes := m.sampleRate * m.chunkMS / 1000 * m.channels * 2
		if chunkBytes <= 0 {
			chunkBytes = len(pcm)
		}

		sequence := 0
		for offset := 0; offset < len(pcm) || sequence == 0; offset += chunkBytes {
			end := offset + chunkBytes
			if end > len(pcm) {
				end = len(pcm)
			}
			chunk := Chunk{
				Sequence:   sequence,
				SampleRate: m.sampleRate,
				Channels:   m.channels,
				PCM:        pcm[offset:end],
				Final:      end == len(pcm),
			}
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
			sequence++
			if end == len(pcm) {
				break
			}
		}
	}()
	return chunks, errs
}

func (m *mockEngine) render(req EngineRequest) []byte {
	speed := req.Speed
	if speed <= 0 {
		speed = 1.0
	}
	// 80 ms of audio per input rune, stretched by the inverse of speed
	durationMS := float64(80*len([]rune(req.Text))) / speed
	if durationMS < 200 {
		durationMS = 200
	}
	if durationMS > 10000 {
		durationMS = 10000
	}
	frames := int(float64(m.sampleRate) * durationMS / 1000)

	h := fnv.New32a()
	h.Write([]byte(req.Voice))
	h.Write([]byte(req.Text))
	freq := 180 + float64(h.Sum32()%220)

	pcm := make([]byte, frames*m.channels*2)
	for i := 0; i < frames; i++ {
		sample := int16(12000 * math.Sin(2*math.Pi*freq*float64(i)/float64(m.sampleRate)))
		for c := 0; c < m.channels; c++ {
			binary.LittleEndian.PutUint16(pcm[(i*m.channels+c)*2:], uint16(sample))
		}
	}
	return pcm
}
