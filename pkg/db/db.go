package db

import (
	"context"
	"errors"
)

// DB is an interface to store and query pools, their epoch records and the
// index of outstanding reconciliation work.
type DB interface {

	// GetPool gets the pool with the given bech32 id.
	GetPool(ctx context.Context, poolIDBech32 string) (*Pool, error)

	// GetEpochRecord gets the referenced epoch record.
	GetEpochRecord(ctx context.Context, ref EpochRef) (*EpochRecord, error)

	// GetEpochRecords gets all epoch records of the given pool ordered by
	// the epoch in descending order.
	GetEpochRecords(ctx context.Context, poolIDBech32 string) ([]EpochRecord, error)

	// GetWorkIndex gets the complete index of outstanding work.
	GetWorkIndex(ctx context.Context) (*WorkIndex, error)

	// GetLatestEpoch gets the latest epoch known to this database. Nil is
	// returned, if no epoch has been stored yet.
	GetLatestEpoch(ctx context.Context) (*EpochInfo, error)

	// PutLatestEpoch stores the given epoch as the latest epoch.
	PutLatestEpoch(ctx context.Context, epoch *EpochInfo) error

	// Update runs the given function in a transaction. The transaction is
	// committed, if the function returns no error. If the transaction lost
	// a race against a concurrent one, it is rolled back and the function
	// is called again.
	Update(ctx context.Context, f func(tx Tx) error) error

	// Close closes this database and all connections.
	Close() error
}

// Tx is a transaction of a DB.
type Tx interface {

	// GetPool gets the pool with the given bech32 id.
	GetPool(ctx context.Context, poolIDBech32 string) (*Pool, error)

	// PutPool creates or replaces the given pool.
	PutPool(ctx context.Context, pool *Pool) error

	// GetEpochRecord gets the referenced epoch record.
	GetEpochRecord(ctx context.Context, ref EpochRef) (*EpochRecord, error)

	// PutEpochRecord creates or replaces the given epoch record.
	PutEpochRecord(ctx context.Context, record *EpochRecord) error

	// ReplaceUpcomingSlots removes all upcoming slots referencing the given
	// epoch record and registers the given slots for it instead.
	ReplaceUpcomingSlots(ctx context.Context, ref EpochRef, slots []uint64) error

	// DeleteUpcomingSlots removes the given slots of the referenced epoch
	// record from the upcoming slots.
	DeleteUpcomingSlots(ctx context.Context, ref EpochRef, slots ...uint64) error

	// PutMissingRewards registers the referenced epoch as missing its pool
	// rewards.
	PutMissingRewards(ctx context.Context, ref EpochRef) error

	// DeleteMissingRewards removes the referenced epoch from the epochs
	// missing their pool rewards.
	DeleteMissingRewards(ctx context.Context, ref EpochRef) error
}

var (
	// ReadError is returned, when querying the database failed for some reason.
	ReadError = errors.New("read from the database failed")
	// WriteError is returned, when writing to the database failed for some reason.
	WriteError = errors.New("write to the database failed")
	// ConflictError is returned, when a transaction lost against a concurrent
	// transaction and couldn't be committed.
	ConflictError = errors.New("transaction conflicted with a concurrent transaction")
	// NotFoundError is returned, when a requested record doesn't exist.
	NotFoundError = errors.New("record not found")
)
