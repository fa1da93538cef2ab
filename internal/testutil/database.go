// Package testutil provides helpers for tests that need to prepare database
// files or simulate other processes sharing them.
package testutil

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// CreateDatabase creates (or updates) the SQLite file at path with the given
// user_version and one key/value table per name in tables. It simulates a
// database left behind by an older release of the application.
func CreateDatabase(t testing.TB, path string, version int, tables ...string) {
	t.Helper()

	db := rawOpen(t, path)
	defer db.Close()

	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (key TEXT NOT NULL PRIMARY KEY, value BLOB NOT NULL) WITHOUT ROWID",
			quote(table),
		))
		require.NoError(t, err, "create table %q", table)
	}

	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version))
	require.NoError(t, err, "set user_version")
}

// SetVersion overwrites the user_version of the database at path, as a
// foreign process upgrading the schema would.
func SetVersion(t testing.TB, path string, version int) {
	t.Helper()

	db := rawOpen(t, path)
	defer db.Close()

	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version))
	require.NoError(t, err, "set user_version")
}

// Version returns the user_version of the database at path.
func Version(t testing.TB, path string) int {
	t.Helper()

	db := rawOpen(t, path)
	defer db.Close()

	var version int
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&version))
	return version
}

// TableExists reports whether the database at path contains table.
func TableExists(t testing.TB, path, table string) bool {
	t.Helper()

	db := rawOpen(t, path)
	defer db.Close()

	var n int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		table,
	).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

// HoldLock takes the advisory lock at lockPath the way a connection in
// another process would, and never yields it until the test ends.
func HoldLock(t testing.TB, lockPath string, exclusive bool) *flock.Flock {
	t.Helper()

	lock := flock.New(lockPath)
	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = lock.TryLock()
	} else {
		ok, err = lock.TryRLock()
	}
	require.NoError(t, err)
	require.True(t, ok, "lock %s already held", lockPath)

	t.Cleanup(func() { lock.Unlock() })
	return lock
}

func rawOpen(t testing.TB, path string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file:"+path+"?_busy_timeout=5000")
	require.NoError(t, err, "open %s", path)
	require.NoError(t, db.Ping(), "ping %s", path)
	return db
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
