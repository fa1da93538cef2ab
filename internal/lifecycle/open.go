package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// Open returns a connection to database name on which collection exists.
//
// The database is first opened at whatever version it has. A brand-new
// database is initialised at version 1 with the collection. If the
// collection is missing from an existing database, the connection is
// reopened at version+1 and the collection is created during that upgrade;
// if it is still missing afterwards Open fails with CodeSchemaInconsistent.
//
// Open blocks until the connection is ready, ctx is done, or other
// connections fail to yield within Options.BlockedTimeout (CodeBlocked).
func Open(ctx context.Context, name, collection string, opts Options) (*Conn, error) {
	opts = opts.withDefaults()

	if err := ValidateName(name); err != nil {
		return nil, openFailed(name, err)
	}
	if err := ValidateName(collection); err != nil {
		return nil, openFailed(name, err)
	}
	if opts.Dir == "" {
		return nil, openFailed(name, errors.New("no database directory configured"))
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, openFailed(name, fmt.Errorf("create database directory: %w", err))
	}
	path := DatabasePath(opts.Dir, name)

	conn, found, err := openAt(ctx, path, name, collection, 0, opts)
	if err != nil {
		return nil, err
	}
	if found {
		return conn, nil
	}

	requested := conn.Version() + 1
	opts.Logger.Info("collection missing, upgrading database",
		"db", name,
		"collection", collection,
		"version", conn.Version(),
		"requested_version", requested,
	)
	if err := conn.Close(); err != nil {
		opts.Logger.Warn("error closing connection before upgrade", "db", name, "error", err)
	}

	conn, found, err = openAt(ctx, path, name, collection, requested, opts)
	if err != nil {
		return nil, err
	}
	if !found {
		version := conn.Version()
		conn.Close()
		return nil, &Error{
			Code:    CodeSchemaInconsistent,
			Op:      "open",
			Name:    name,
			Message: fmt.Sprintf("collection %q missing after upgrade to version %d", collection, version),
		}
	}
	return conn, nil
}

// openAt opens path, upgrading to requested first when it is above the
// stored version. requested == 0 means "whatever version exists", which
// still initialises a brand-new database to version 1.
// found reports whether collection exists on the returned connection.
func openAt(ctx context.Context, path, name, collection string, requested int, opts Options) (conn *Conn, found bool, err error) {
	id := newConnID()

	db, err := openSQLite(path, opts.BusyTimeout)
	if err != nil {
		return nil, false, openFailed(name, err)
	}
	defer func() {
		if err != nil {
			db.Close()
		}
	}()

	current, err := readVersion(ctx, db)
	if err != nil {
		return nil, false, openFailed(name, err)
	}

	target := 0
	switch {
	case requested == 0 && current == 0:
		target = 1
	case requested > current:
		target = requested
	}
	if target > 0 {
		if err := upgrade(ctx, db, path, name, collection, target, id, opts); err != nil {
			return nil, false, err
		}
	}

	leftover, _, rerr := readRequest(requestPath(path))
	if rerr != nil {
		opts.Logger.Debug("ignoring unreadable upgrade request", "db", name, "error", rerr)
	}

	lock := flock.New(lockPath(path))
	if err := acquireShared(ctx, lock, name, opts); err != nil {
		return nil, false, err
	}
	defer func() {
		if err != nil {
			lock.Unlock()
		}
	}()

	version, err := readVersion(ctx, db)
	if err != nil {
		return nil, false, openFailed(name, err)
	}
	found, err = collectionExists(ctx, db, collection)
	if err != nil {
		return nil, false, openFailed(name, err)
	}

	conn = newConn(id, name, collection, path, version, leftover, db, lock, opts.Logger)
	connections.add(conn)
	conn.startWatch(opts.PollInterval)

	opts.Logger.Debug("connection opened",
		"db", name,
		"collection", collection,
		"conn", id,
		"version", version,
		"collection_found", found,
	)
	return conn, found, nil
}

// acquireShared takes the shared lock held for a connection's lifetime.
// It waits while an upgrader holds the lock exclusively.
func acquireShared(ctx context.Context, lock *flock.Flock, name string, opts Options) error {
	bctx, cancel := context.WithTimeout(ctx, opts.BlockedTimeout)
	defer cancel()

	ok, err := lock.TryRLockContext(bctx, lockRetryDelay)
	if ok {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return openFailed(name, fmt.Errorf("acquire shared lock: %w", err))
	}
	return blocked("open", name)
}

// upgrade raises the database to version target and creates collection in
// the same transaction. It first asks every other connection below target
// to yield, then waits for the exclusive lock. If another connection
// reaches target while we wait, there is nothing left to do.
func upgrade(ctx context.Context, db *sql.DB, path, name, collection string, target int, owner string, opts Options) error {
	logger := opts.Logger.With("db", name, "conn", owner)
	reqPath := requestPath(path)
	req := upgradeRequest{Version: target, Owner: owner}
	defer func() {
		if err := withdrawRequest(reqPath, owner); err != nil {
			logger.Warn("failed to withdraw upgrade request", "error", err)
		}
	}()

	lock := flock.New(lockPath(path))
	deadline := time.Now().Add(opts.BlockedTimeout)
	var lastPublish time.Time

	for {
		ok, err := lock.TryLock()
		if err != nil {
			return openFailed(name, fmt.Errorf("acquire exclusive lock: %w", err))
		}
		if ok {
			break
		}

		// Republish periodically so connections opened after the first
		// notice still see a fresh request.
		if time.Since(lastPublish) >= opts.PollInterval {
			req.Seq++
			if err := publishRequest(reqPath, req); err != nil {
				logger.Warn("failed to publish upgrade request", "error", err)
			}
			if n := connections.notify(path, target, owner); n > 0 {
				logger.Debug("asked connections to yield", "count", n, "requested_version", target)
			}
			lastPublish = time.Now()
		}

		if v, err := readVersion(ctx, db); err == nil && v >= target {
			logger.Debug("upgrade already performed by another connection", "version", v)
			return nil
		}

		if time.Now().After(deadline) {
			logger.Warn("upgrade blocked by other connections", "requested_version", target)
			return blocked("upgrade", name)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	defer lock.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return openFailed(name, fmt.Errorf("upgrade: begin tx: %w", err))
	}
	defer tx.Rollback() // No-op if committed

	current, err := readVersion(ctx, tx)
	if err != nil {
		return openFailed(name, fmt.Errorf("upgrade: %w", err))
	}
	if current >= target {
		logger.Debug("upgrade already performed by another connection", "version", current)
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, createCollectionSQL(collection)); err != nil {
		return openFailed(name, fmt.Errorf("upgrade: create collection %q: %w", collection, err))
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", target)); err != nil {
		return openFailed(name, fmt.Errorf("upgrade: set user_version: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return openFailed(name, fmt.Errorf("upgrade: commit: %w", err))
	}

	logger.Info("database upgraded",
		"collection", collection,
		"version", current,
		"new_version", target,
	)
	return nil
}
