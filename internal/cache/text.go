package cache

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TextLoader memoizes text documents by URL.
type TextLoader struct {
	cache   Cache[string]
	fetcher Fetcher
	logger  *slog.Logger
}

// NewTextLoader creates a TextLoader caching into c.
func NewTextLoader(c Cache[string], f Fetcher, logger *slog.Logger) *TextLoader {
	return &TextLoader{
		cache:   c,
		fetcher: f,
		logger:  loggerOrDefault(logger).With("loader", "text"),
	}
}

// TextKey returns the cache key for a URL: trimmed and NFC-normalized, so
// differently composed spellings of one URL share an entry.
func TextKey(rawURL string) string {
	return norm.NFC.String(strings.TrimSpace(rawURL))
}

// Load returns the document at rawURL, fetching it only on a cache miss.
func (l *TextLoader) Load(ctx context.Context, rawURL string) (string, error) {
	url := strings.TrimSpace(rawURL)
	return Memoize(ctx, l.cache, TextKey(url), func(ctx context.Context) (string, error) {
		body, err := l.fetcher.Fetch(ctx, url)
		if err != nil {
			return "", err
		}
		return string(body), nil
	}, l.logger)
}
