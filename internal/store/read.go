package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/permstore/internal/request"
)

// Get returns the value stored under key. found is false when the key is
// absent, and also when the lookup failed (the error is logged).
// A stored zero value (empty string, empty record) is reported as found.
func (s *Store[V]) Get(ctx context.Context, key string) (value V, found bool) {
	data, found, err := read(ctx, s, func(ctx context.Context, db *sql.DB, table string) ([]byte, bool, error) {
		var data []byte
		err := db.QueryRowContext(ctx, `SELECT value FROM `+table+` WHERE key = ?`, key).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("query: %w", err)
		}
		return data, true, nil
	})
	if err != nil {
		s.degrade("get", err, "key", key)
		return value, false
	}
	if !found {
		return value, false
	}

	value, err = s.codec.Decode(data)
	if err != nil {
		s.degrade("get", err, "key", key)
		var zero V
		return zero, false
	}
	return value, true
}

// Has reports whether key is present. Failures are logged and reported as false.
func (s *Store[V]) Has(ctx context.Context, key string) bool {
	present, _, err := read(ctx, s, func(ctx context.Context, db *sql.DB, table string) (bool, bool, error) {
		var present bool
		err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM `+table+` WHERE key = ?)`, key).Scan(&present)
		if err != nil {
			return false, false, fmt.Errorf("query: %w", err)
		}
		return present, true, nil
	})
	if err != nil {
		s.degrade("has", err, "key", key)
		return false
	}
	return present
}

// Count returns the number of entries. Failures are logged and reported as 0.
func (s *Store[V]) Count(ctx context.Context) int {
	n, _, err := read(ctx, s, func(ctx context.Context, db *sql.DB, table string) (int, bool, error) {
		var n int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return 0, false, fmt.Errorf("query: %w", err)
		}
		return n, true, nil
	})
	if err != nil {
		s.degrade("count", err)
		return 0
	}
	return n
}

// Keys returns every key in key order.
// Returns an empty slice (not nil) when empty or on failure.
func (s *Store[V]) Keys(ctx context.Context) []string {
	entries := s.scan(ctx, "keys", false)
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// Values returns every value in key order.
// Returns an empty slice (not nil) when empty or on failure.
func (s *Store[V]) Values(ctx context.Context) []V {
	entries := s.scan(ctx, "values", true)
	values := make([]V, len(entries))
	for i, e := range entries {
		values[i] = e.Value
	}
	return values
}

// Entries returns every key/value pair in key order.
// Returns an empty slice (not nil) when empty or on failure.
func (s *Store[V]) Entries(ctx context.Context) []Entry[V] {
	return s.scan(ctx, "entries", true)
}

// scan walks the whole collection with a cursor. withValues=false skips
// reading and decoding values.
func (s *Store[V]) scan(ctx context.Context, op string, withValues bool) []Entry[V] {
	entries, _, err := read(ctx, s, func(ctx context.Context, db *sql.DB, table string) ([]Entry[V], bool, error) {
		query := `SELECT key FROM ` + table + ` ORDER BY key`
		if withValues {
			query = `SELECT key, value FROM ` + table + ` ORDER BY key`
		}

		rows, err := db.QueryContext(ctx, query)
		if err != nil {
			return nil, false, fmt.Errorf("query: %w", err)
		}
		defer rows.Close()

		entries := []Entry[V]{}
		for rows.Next() {
			var e Entry[V]
			if !withValues {
				if err := rows.Scan(&e.Key); err != nil {
					return nil, false, fmt.Errorf("scan: %w", err)
				}
				entries = append(entries, e)
				continue
			}

			var data []byte
			if err := rows.Scan(&e.Key, &data); err != nil {
				return nil, false, fmt.Errorf("scan: %w", err)
			}
			if e.Value, err = s.codec.Decode(data); err != nil {
				return nil, false, fmt.Errorf("decode %q: %w", e.Key, err)
			}
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			return nil, false, fmt.Errorf("iterate: %w", err)
		}
		return entries, true, nil
	})
	if err != nil {
		s.degrade(op, err)
		return []Entry[V]{}
	}
	return entries
}

// readResult carries a read outcome through the request adapter.
type readResult[T any] struct {
	value T
	found bool
}

// read awaits initialization and runs fn against the connection.
func read[V, T any](ctx context.Context, s *Store[V], fn func(ctx context.Context, db *sql.DB, table string) (T, bool, error)) (T, bool, error) {
	var zero T

	conn, err := s.conn(ctx)
	if err != nil {
		return zero, false, err
	}

	res, err := request.Go(ctx, func(ctx context.Context) (readResult[T], error) {
		db, err := conn.DB()
		if err != nil {
			return readResult[T]{}, err
		}
		v, found, err := fn(ctx, db, conn.Table())
		return readResult[T]{value: v, found: found}, err
	}).Await(ctx)
	if err != nil {
		return zero, false, err
	}
	return res.value, res.found, nil
}
