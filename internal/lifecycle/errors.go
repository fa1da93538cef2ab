package lifecycle

import (
	"errors"
	"fmt"
)

// Code categorizes lifecycle errors.
type Code string

const (
	// CodeBlocked indicates other connections did not yield within the
	// blocked timeout, so the database could not be opened or upgraded.
	CodeBlocked Code = "BLOCKED"

	// CodeOpenFailed indicates the database file could not be opened
	// (permissions, disk full, invalid name).
	CodeOpenFailed Code = "OPEN_FAILED"

	// CodeSchemaInconsistent indicates the collection is missing even after
	// the upgrade that should have created it.
	CodeSchemaInconsistent Code = "SCHEMA_INCONSISTENT"

	// CodeClosed indicates the connection was closed by its owner.
	CodeClosed Code = "CLOSED"

	// CodeVersionChanged indicates the connection closed itself because
	// another connection asked for a newer database version.
	CodeVersionChanged Code = "VERSION_CHANGED"
)

// Error is returned by every failing lifecycle operation.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op is the operation that failed ("open", "upgrade", "use").
	Op string

	// Name is the database name.
	Name string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s %s", e.Code, e.Op, e.Name)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsBlocked reports whether err is a BLOCKED lifecycle error.
// Callers usually surface it by asking the user to close other programs
// holding the database open.
func IsBlocked(err error) bool {
	return hasCode(err, CodeBlocked)
}

// IsSchemaInconsistent reports whether err is a SCHEMA_INCONSISTENT error.
func IsSchemaInconsistent(err error) bool {
	return hasCode(err, CodeSchemaInconsistent)
}

// IsClosed reports whether err comes from using a connection that is no
// longer usable, either closed by its owner or yielded on a version change.
func IsClosed(err error) bool {
	return hasCode(err, CodeClosed) || hasCode(err, CodeVersionChanged)
}

func hasCode(err error, code Code) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

func openFailed(name string, err error) *Error {
	return &Error{Code: CodeOpenFailed, Op: "open", Name: name, Err: err}
}

func blocked(op, name string) *Error {
	return &Error{
		Code:    CodeBlocked,
		Op:      op,
		Name:    name,
		Message: "other connections did not release the database; close other programs using it",
	}
}
