package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/permstore/internal/lifecycle"
	"github.com/roach88/permstore/internal/store"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// mapCache is an in-memory Cache whose writes can be made to fail.
type mapCache struct {
	mu     sync.Mutex
	data   map[string]string
	setErr error
	sets   int
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]string)}
}

func (c *mapCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = value
	return nil
}

// countingFetcher returns body for every URL and records the URLs asked for.
type countingFetcher struct {
	mu   sync.Mutex
	body string
	err  error
	urls []string
}

func (f *countingFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.body), nil
}

func (f *countingFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.urls)
}

// newStringStore opens a real Permanent Store in a temp directory.
func newStringStore(t *testing.T, name string) *store.Store[string] {
	t.Helper()
	s := store.NewStrings(name, lifecycle.Options{
		Dir:            t.TempDir(),
		BlockedTimeout: 2 * time.Second,
		PollInterval:   20 * time.Millisecond,
		Logger:         quietLogger,
	})
	t.Cleanup(func() { s.Close() })
	return s
}

// countingServer serves handler and counts requests.
func countingServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		RetryMax:     2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
		Timeout:      5 * time.Second,
		Logger:       quietLogger,
	})
}

func TestMemoize_MissComputesAndCaches(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	computed := 0
	compute := func(context.Context) (string, error) {
		computed++
		return "value", nil
	}

	v, err := Memoize[string](ctx, c, "k", compute, quietLogger)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	v, err = Memoize[string](ctx, c, "k", compute, quietLogger)
	require.NoError(t, err)
	assert.Equal(t, "value", v)

	assert.Equal(t, 1, computed)
	assert.Equal(t, 1, c.sets)
}

func TestMemoize_ComputeErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	boom := errors.New("network down")

	_, err := Memoize[string](ctx, c, "k", func(context.Context) (string, error) {
		return "", boom
	}, quietLogger)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.sets)
}

func TestMemoize_WriteBackFailureIsTolerated(t *testing.T) {
	ctx := context.Background()
	c := newMapCache()
	c.setErr = errors.New("disk full")

	v, err := Memoize[string](ctx, c, "k", func(context.Context) (string, error) {
		return "fresh", nil
	}, nil)
	require.NoError(t, err, "a failed write-back must not abort the load")
	assert.Equal(t, "fresh", v)
	assert.Equal(t, 1, c.sets)
}

func TestMemoize_FailedStoreStillServesValues(t *testing.T) {
	ctx := context.Background()
	opts := lifecycle.Options{
		Dir:            t.TempDir(),
		BlockedTimeout: 50 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
		Logger:         quietLogger,
	}
	// An invalid name makes initialization fail; every lookup is a miss and
	// every write-back fails.
	s := store.NewStrings("../escape", opts)

	computed := 0
	for i := 0; i < 2; i++ {
		v, err := Memoize[string](ctx, s, "k", func(context.Context) (string, error) {
			computed++
			return "fresh", nil
		}, quietLogger)
		require.NoError(t, err)
		assert.Equal(t, "fresh", v)
	}
	assert.Equal(t, 2, computed)
}
