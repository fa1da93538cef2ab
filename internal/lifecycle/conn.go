package lifecycle

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// Conn is a ready, schema-correct connection to one collection of a
// database. It is owned by exactly one caller; other connections to the
// same database may exist in this or other processes.
//
// Thread-safety: Conn is safe for concurrent use.
type Conn struct {
	id         string
	name       string
	collection string
	path       string
	version    int
	leftover   upgradeRequest

	db     *sql.DB
	lock   *flock.Flock
	logger *slog.Logger

	mu          sync.Mutex
	closed      bool
	cause       error
	invalidated chan struct{}
	stopWatch   context.CancelFunc
}

func newConn(id, name, collection, path string, version int, leftover upgradeRequest, db *sql.DB, lock *flock.Flock, logger *slog.Logger) *Conn {
	return &Conn{
		id:          id,
		name:        name,
		collection:  collection,
		path:        path,
		version:     version,
		leftover:    leftover,
		db:          db,
		lock:        lock,
		logger:      logger.With("db", name, "conn", id),
		invalidated: make(chan struct{}),
	}
}

// newConnID returns a time-sortable identifier for logs and upgrade requests.
func newConnID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// ID returns the connection identifier.
func (c *Conn) ID() string { return c.id }

// Name returns the database name.
func (c *Conn) Name() string { return c.name }

// Collection returns the collection name.
func (c *Conn) Collection() string { return c.collection }

// Table returns the collection name quoted as an SQL identifier.
func (c *Conn) Table() string { return QuoteIdent(c.collection) }

// Version returns the database version this connection was opened at.
func (c *Conn) Version() int { return c.version }

// Path returns the database file path.
func (c *Conn) Path() string { return c.path }

// DB returns the underlying database handle, or the reason the connection
// can no longer be used. Every operation must go through DB so that nothing
// is issued after an invalidation.
func (c *Conn) DB() (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, c.cause
	}
	return c.db, nil
}

// Err returns nil while the connection is usable.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.cause
	}
	return nil
}

// Invalidated returns a channel closed when the connection stops serving
// requests, either through Close or a version change.
func (c *Conn) Invalidated() <-chan struct{} {
	return c.invalidated
}

// Close releases the database handle and the shared lock.
// Closing an already closed connection is a no-op.
func (c *Conn) Close() error {
	return c.shutdown(&Error{
		Code:    CodeClosed,
		Op:      "use",
		Name:    c.name,
		Message: "connection closed",
	})
}

// versionChange yields the connection to an upgrader asking for target.
func (c *Conn) versionChange(target int, source string) {
	c.logger.Info("version change requested, closing connection",
		"version", c.version,
		"requested_version", target,
		"source", source,
	)
	err := c.shutdown(&Error{
		Code:    CodeVersionChanged,
		Op:      "use",
		Name:    c.name,
		Message: fmt.Sprintf("database upgraded from version %d to %d elsewhere", c.version, target),
	})
	if err != nil {
		c.logger.Warn("error closing connection after version change", "error", err)
	}
}

func (c *Conn) shutdown(cause error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cause = cause
	close(c.invalidated)
	stop := c.stopWatch
	c.mu.Unlock()

	connections.remove(c)
	if stop != nil {
		stop()
	}

	var result *multierror.Error
	if err := c.db.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close database: %w", err))
	}
	if err := c.lock.Unlock(); err != nil {
		result = multierror.Append(result, fmt.Errorf("release lock: %w", err))
	}
	c.logger.Debug("connection closed", "reason", cause)
	return result.ErrorOrNil()
}
