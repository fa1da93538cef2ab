package lifecycle

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Defaults applied by Open when the corresponding Options field is zero.
const (
	DefaultBlockedTimeout = 5 * time.Second
	DefaultPollInterval   = 250 * time.Millisecond
	DefaultBusyTimeout    = 5 * time.Second
)

// lockRetryDelay is how often lock acquisition is retried.
const lockRetryDelay = 20 * time.Millisecond

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Options configures how databases are opened.
type Options struct {
	// Dir holds the database files. Required.
	Dir string

	// BlockedTimeout bounds how long Open waits for other connections to
	// release the database before failing with CodeBlocked.
	BlockedTimeout time.Duration

	// PollInterval is how often a connection checks for upgrade requests
	// made by other processes.
	PollInterval time.Duration

	// BusyTimeout is the SQLite busy_timeout for lock contention.
	BusyTimeout time.Duration

	// Logger receives lifecycle events. Defaults to slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.BlockedTimeout <= 0 {
		o.BlockedTimeout = DefaultBlockedTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = DefaultBusyTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// DatabasePath returns the SQLite file used for database name in dir.
func DatabasePath(dir, name string) string {
	return filepath.Join(dir, name+".db")
}

func lockPath(dbPath string) string {
	return dbPath + ".lock"
}

func requestPath(dbPath string) string {
	return dbPath + ".upgrade"
}

// ValidateName checks that name can be used as a database or collection
// name. Names become file names and table names, so they are restricted to
// letters, digits, '_', '.' and '-'.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) || name == "." || name == ".." {
		return fmt.Errorf("invalid name %q: use letters, digits, '_', '.' or '-'", name)
	}
	if strings.HasPrefix(strings.ToLower(name), "sqlite_") {
		return fmt.Errorf("invalid name %q: prefix sqlite_ is reserved", name)
	}
	return nil
}
