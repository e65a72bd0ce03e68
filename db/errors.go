package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/teranos/atomdb/errors"
)

// Wrap annotates a database error with op and classifies it so callers
// can test atomdb sentinels instead of driver types:
//
//   - a closed handle matches errors.ErrClosed
//   - a busy or locked database matches errors.ErrTimeout
//
// Other errors are wrapped unchanged. Wrap returns nil for a nil err.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	switch {
	case IsDatabaseClosed(err):
		err = errors.Mark(err, errors.ErrClosed)
	case IsBusy(err):
		err = errors.Mark(err, errors.ErrTimeout)
	}
	return errors.Wrap(err, op)
}

// Wrapf is Wrap with a formatted operation.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsDatabaseClosed reports whether err comes from a closed handle. The
// database/sql package does not export its closed error, so its message
// is matched as well.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errors.ErrClosed) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}

// IsBusy reports whether SQLite gave up waiting on a lock.
func IsBusy(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}
