package store

import (
	"context"
	"fmt"

	"github.com/roach88/permstore/internal/request"
)

// Set stores value under key, replacing any previous value.
// It returns once the write transaction has committed or rolled back, and
// reports any failure (initialization, encoding, constraint, commit). A nil
// error means the value is durable; a non-nil error means it was not written.
func (s *Store[V]) Set(ctx context.Context, key string, value V) error {
	data, err := s.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}

	err = s.write(ctx, func(table string) string {
		return `INSERT INTO ` + table + ` (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	}, key, data)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}

	s.logger.Debug("entry stored", "key", key, "bytes", len(data))
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
// Failures are logged and otherwise ignored.
func (s *Store[V]) Delete(ctx context.Context, key string) {
	err := s.write(ctx, func(table string) string {
		return `DELETE FROM ` + table + ` WHERE key = ?`
	}, key)
	if err != nil {
		s.degrade("delete", err, "key", key)
	}
}

// Clear removes every entry in one transaction.
// Failures are logged and otherwise ignored.
func (s *Store[V]) Clear(ctx context.Context) {
	err := s.write(ctx, func(table string) string {
		return `DELETE FROM ` + table
	})
	if err != nil {
		s.degrade("clear", err)
	}
}

// write runs one statement in its own write transaction and waits for the
// commit, not merely for the statement to succeed. The transaction observes
// ctx itself, so the wait does not: an error is returned only if the
// transaction did not commit.
func (s *Store[V]) write(ctx context.Context, stmt func(table string) string, args ...any) error {
	conn, err := s.conn(ctx)
	if err != nil {
		return err
	}

	_, err = request.Go(ctx, func(ctx context.Context) (struct{}, error) {
		db, err := conn.DB()
		if err != nil {
			return struct{}{}, err
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return struct{}{}, fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() // No-op if committed

		if _, err := tx.ExecContext(ctx, stmt(conn.Table()), args...); err != nil {
			return struct{}{}, fmt.Errorf("exec: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return struct{}{}, fmt.Errorf("commit: %w", err)
		}
		return struct{}{}, nil
	}).Await(context.WithoutCancel(ctx))
	return err
}
