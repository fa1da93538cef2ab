package cache

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
)

// AudioSource produces the audio payload for a sentence.
type AudioSource interface {
	Audio(ctx context.Context, id SentenceID) ([]byte, error)
}

// HTTPAudioSource fetches audio from a URL template; "{id}" is replaced by
// the sentence identifier.
type HTTPAudioSource struct {
	Fetcher  Fetcher
	Template string
}

// URL returns the address of the audio for id.
func (s HTTPAudioSource) URL(id SentenceID) string {
	return strings.ReplaceAll(s.Template, "{id}", id.String())
}

func (s HTTPAudioSource) Audio(ctx context.Context, id SentenceID) ([]byte, error) {
	if !strings.Contains(s.Template, "{id}") {
		return nil, fmt.Errorf("audio url template %q has no {id} placeholder", s.Template)
	}
	return s.Fetcher.Fetch(ctx, s.URL(id))
}

// AudioLoader memoizes audio payloads by sentence. Payloads are cached as
// base64 strings and returned decoded.
type AudioLoader struct {
	cache  Cache[string]
	source AudioSource
	logger *slog.Logger
}

// NewAudioLoader creates an AudioLoader caching into c.
func NewAudioLoader(c Cache[string], src AudioSource, logger *slog.Logger) *AudioLoader {
	return &AudioLoader{
		cache:  c,
		source: src,
		logger: loggerOrDefault(logger).With("loader", "audio"),
	}
}

// Load returns the audio for id, asking the source only on a cache miss.
// A cached entry that is not valid base64 is replaced by a fresh payload.
func (l *AudioLoader) Load(ctx context.Context, id SentenceID) ([]byte, error) {
	key := id.String()
	encoded, err := Memoize(ctx, l.cache, key, l.compute(id), l.logger)
	if err != nil {
		return nil, err
	}

	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err == nil {
		return audio, nil
	}

	l.logger.Warn("cached audio is corrupt, refetching", "key", key, "error", err)
	encoded, err = l.compute(id)(ctx)
	if err != nil {
		return nil, err
	}
	if err := l.cache.Set(ctx, key, encoded); err != nil {
		l.logger.Warn("cache write-back failed, continuing uncached", "key", key, "error", err)
	}
	return base64.StdEncoding.DecodeString(encoded)
}

func (l *AudioLoader) compute(id SentenceID) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		audio, err := l.source.Audio(ctx, id)
		if err != nil {
			return "", fmt.Errorf("load audio %s: %w", id, err)
		}
		return base64.StdEncoding.EncodeToString(audio), nil
	}
}
