package sqlstore

import (
	stderrors "errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/toritsejumoju/stakepoolbackup.io/pkg/db"
)

// PostgreSQL error codes of transactions aborted due to concurrent ones.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// isConflict returns true, if the given error was caused by a concurrent
// transaction, such that running the transaction again could succeed.
func isConflict(err error) bool {
	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

// classify maps the given driver error to db.ConflictError, if it was
// caused by a concurrent transaction, and to the given sentinel otherwise.
func classify(err error, sentinel error) error {
	if isConflict(err) {
		return errors.Wrap(db.ConflictError, err.Error())
	}
	return errors.Wrap(sentinel, err.Error())
}
