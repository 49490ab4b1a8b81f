package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its configuration in package state.
var migrationLock sync.Mutex

// Store is a db.DB making use of a SQL database. Epoch records are stored
// as rows, whose slot lists are kept as JSON documents.
type Store struct {
	db          *sqlx.DB
	driver      string
	maxAttempts int
	backoff     time.Duration
}

// NewSQLiteDB opens a new SQLite database in the given directory. The
// directory is created, if it doesn't exist yet. It returns a Store with
// which the database can be queried, or an error, if opening or migrating
// the database has failed.
func NewSQLiteDB(path string) (*Store, error) {
	err := os.MkdirAll(path, 0755)
	if err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on",
		filepath.Join(path, "sql.db"))
	return Open(DriverSQLite, dsn)
}

// NewPostgresDB opens a connection pool to the PostgreSQL database with
// the given URL and migrates its schema.
func NewPostgresDB(url string) (*Store, error) {
	return Open(DriverPostgres, url)
}

// Open opens the database with the given driver and data source name and
// brings the schema up to date.
func Open(driver, dsn string) (*Store, error) {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening the %s database failed", driver)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer only.
		sqlDB.SetMaxOpenConns(1)
	}
	err = migrate(sqlDB.DB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return &Store{
		db:          sqlDB,
		driver:      driver,
		maxAttempts: 5,
		backoff:     50 * time.Millisecond,
	}, nil
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite3", nil
	case DriverPostgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("database driver '%s' isn't supported", driver)
	}
}

func migrate(sqlDB *sql.DB, dialect string) error {
	migrationLock.Lock()
	defer migrationLock.Unlock()
	goose.SetBaseFS(migrations)
	goose.SetLogger(log.StandardLogger())
	err := goose.SetDialect(dialect)
	if err != nil {
		return errors.Wrap(err, "selecting the migration dialect failed")
	}
	err = goose.Up(sqlDB, "migrations")
	if err != nil {
		return errors.Wrap(err, "migrating the database schema failed")
	}
	return nil
}

// Ping checks whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
