package database

import (
	"context"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Infrastructure errors. All are safe for callers to retry and none leave
// partial state behind, since every multi-row write runs in a transaction.
var (
	ErrConflict    = errors.New("conflicting concurrent update")
	ErrDuplicate   = errors.New("duplicate record")
	ErrTimeout     = errors.New("database timeout")
	ErrUnavailable = errors.New("database unavailable")
)

// dbErr classifies a driver error into one of the sentinel errors above.
func dbErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
