package store

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/roach88/permstore/internal/lifecycle"
)

// testOptions returns lifecycle options rooted in a fresh temp directory.
func testOptions(t *testing.T) lifecycle.Options {
	t.Helper()
	return lifecycle.Options{
		Dir:            t.TempDir(),
		BlockedTimeout: 2 * time.Second,
		PollInterval:   20 * time.Millisecond,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
}

// createTestStore creates a string store closed at the end of the test.
func createTestStore(t *testing.T, name string, opts lifecycle.Options) *Store[string] {
	t.Helper()
	s := NewStrings(name, opts)
	t.Cleanup(func() { s.Close() })
	return s
}

// chapter is a plain record used to exercise the JSON codec.
type chapter struct {
	Book      int      `json:"book"`
	Chapter   int      `json:"chapter"`
	Title     string   `json:"title"`
	Sentences []string `json:"sentences"`
}
