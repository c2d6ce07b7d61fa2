package synth

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Gateway adapts the synthesis engine: it resolves voice ids, invokes the
// engine and shapes the output for full or streaming consumption. It holds no
// state across calls beyond the optional result cache.
type Gateway struct {
	engine Engine
	voices VoiceResolver
	cache  *resultCache
	log    *slog.Logger
	synths metric.Int64Counter
	hits   metric.Int64Counter
}

func NewGateway(engine Engine, voices VoiceResolver, cacheSize int, log *slog.Logger) (*Gateway, error) {
	g := &Gateway{
		engine: engine,
		voices: voices,
		log:    log.With(slog.String("component", "synth-gateway")),
	}
	if cacheSize > 0 {
		cache, err := newResultCache(cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create synthesis cache: %w", err)
		}
		g.cache = cache
	}

	meter := otel.Meter("tts-server/synth")
	var err error
	if g.synths, err = meter.Int64Counter("tts.synthesize.requests"); err != nil {
		return nil, err
	}
	if g.hits, err = meter.Int64Counter("tts.synthesize.cache_hits"); err != nil {
		return nil, err
	}
	return g, nil
}

// Voices lists the engine's built-in voice names.
func (g *Gateway) Voices(ctx context.Context) ([]string, error) {
	return g.engine.Voices(ctx)
}

// Languages lists the engine's supported language codes.
func (g *Gateway) Languages(ctx context.Context) ([]string, error) {
	return g.engine.Languages(ctx)
}

func (g *Gateway) resolve(ctx context.Context, req Request) (EngineRequest, error) {
	if req.Text == "" {
		return EngineRequest{}, ErrEmptyText
	}
	engineReq := EngineRequest{
		Text:     req.Text,
		Language: req.Language,
		Speed:    req.Speed,
	}
	if req.VoiceID == nil {
		return engineReq, nil
	}
	voice, err := g.voices.Resolve(ctx, *req.VoiceID)
	if err != nil {
		return EngineRequest{}, err
	}
	engineReq.Voice = voice.Name
	engineReq.SpeakerSample = voice.SamplePath
	if engineReq.Language == "" {
		engineReq.Language = voice.Language
	}
	return engineReq, nil
}

// Full synthesizes the complete audio and reports exact duration.
func (g *Gateway) Full(ctx context.Context, req Request) (Result, error) {
	g.synths.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", "full")))

	if g.cache != nil {
		if result, ok := g.cache.get(req); ok {
			g.hits.Add(ctx, 1)
			return result, nil
		}
	}

	engineReq, err := g.resolve(ctx, req)
	if err != nil {
		return Result{}, err
	}

	chunks, errs := g.engine.Synthesize(ctx, engineReq)
	var (
		pcm        []byte
		sampleRate int
		channels   int
	)
	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			sampleRate = chunk.SampleRate
			channels = chunk.Channels
			pcm = append(pcm, chunk.PCM...)
		case err, ok := <-errs:
			if ok && err != nil {
				return Result{}, fmt.Errorf("synthesis failed: %w", err)
			}
			errs = nil
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if sampleRate <= 0 || channels <= 0 {
		return Result{}, fmt.Errorf("synthesis produced no audio format")
	}

	frames := len(pcm) / (channels * BitDepth / 8)
	result := Result{
		PCM:             pcm,
		SampleRate:      sampleRate,
		Channels:        channels,
		DurationSeconds: float64(frames) / float64(sampleRate),
	}
	if g.cache != nil {
		g.cache.put(req, result)
	}
	return result, nil
}

// Stream resolves the voice up front, then hands through the engine's lazy
// chunk sequence. Duration is unknown until the sequence is drained and is
// never reported.
func (g *Gateway) Stream(ctx context.Context, req Request) (<-chan Chunk, <-chan error, error) {
	g.synths.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", "stream")))

	engineReq, err := g.resolve(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	chunks, errs := g.engine.Synthesize(ctx, engineReq)
	return chunks, errs, nil
}
