package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/permstore/internal/lifecycle"
	"github.com/roach88/permstore/internal/request"
)

// Entry is one key/value pair of a Store.
type Entry[V any] struct {
	Key   string `json:"key"`
	Value V      `json:"value"`
}

// Store is a Permanent Store: a persistent key/value mapping owning one
// database whose only collection has the same name.
//
// Thread-safety: Store is safe for concurrent use.
type Store[V any] struct {
	name   string
	codec  Codec[V]
	logger *slog.Logger
	init   *request.Request[*lifecycle.Conn]
}

// New creates a Store for name and starts opening its database in the
// background. New never blocks; initialization errors are reported by the
// first operation that needs the database (or by Ready).
func New[V any](name string, codec Codec[V], opts lifecycle.Options) *Store[V] {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store[V]{
		name:   name,
		codec:  codec,
		logger: logger.With("store", name),
	}
	s.init = request.Go(context.Background(), func(ctx context.Context) (*lifecycle.Conn, error) {
		conn, err := lifecycle.Open(ctx, name, name, opts)
		if err != nil {
			s.logger.Error("store initialization failed", "error", err)
			return nil, fmt.Errorf("initialize store %q: %w", name, err)
		}
		return conn, nil
	})
	return s
}

// NewStrings creates a Store of raw strings (text documents, base64 audio).
func NewStrings(name string, opts lifecycle.Options) *Store[string] {
	return New[string](name, StringCodec{}, opts)
}

// Name returns the store (database and collection) name.
func (s *Store[V]) Name() string {
	return s.name
}

// Ready waits for initialization and reports its outcome, or the reason
// the connection was invalidated since.
func (s *Store[V]) Ready(ctx context.Context) error {
	_, err := s.conn(ctx)
	return err
}

// Close releases the database connection. It waits for a pending
// initialization to finish first. Operations after Close fail (writes) or
// degrade to misses (reads).
func (s *Store[V]) Close() error {
	conn, err := s.init.Await(context.Background())
	if err != nil {
		return nil
	}
	return conn.Close()
}

// conn awaits initialization once and checks the connection is still
// usable. Initialization is never re-triggered after a failure.
func (s *Store[V]) conn(ctx context.Context) (*lifecycle.Conn, error) {
	conn, err := s.init.Await(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.Err(); err != nil {
		return nil, err
	}
	return conn, nil
}

// degrade logs a swallowed read-path error.
func (s *Store[V]) degrade(op string, err error, args ...any) {
	s.logger.Warn("store operation failed, reporting as empty",
		append([]any{"op", op, "error", err}, args...)...,
	)
}
