package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/franz/music-catalog/internal/util"
)

// migrations[i] upgrades the schema from version i to i+1
var migrations = []string{
	schemaV1, // catalog, history and block index
	schemaV2, // run audit trail
}

var currentSchemaVersion = len(migrations)

// networkPragmas trade some durability for fewer round-trips to a share
var networkPragmas = []string{
	"PRAGMA synchronous = NORMAL",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA cache_size = -64000",
}

// Querier is the subset of *sql.DB and *sql.Tx used by catalog operations,
// so the same code runs inside or outside a transaction
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store represents the catalog's persistent state
type Store struct {
	db   *sql.DB
	lock *flock.Flock
	path string
}

// OpenOptions holds options for opening a database
type OpenOptions struct {
	NetworkOptimized bool // Apply pragmas suited to databases on network shares
	NoLock           bool // Skip the single-writer lock (read-only tooling)
}

// Open opens or creates a SQLite database at the given path with default options
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, nil)
}

// OpenWithOptions opens or creates a SQLite database with custom options.
// Unless NoLock is set it takes an exclusive lock on <path>.lock and fails
// with util.ErrLocked when another process holds it.
func OpenWithOptions(path string, opts *OpenOptions) (*Store, error) {
	if opts == nil {
		opts = &OpenOptions{}
	}

	s := &Store{path: path}
	if !opts.NoLock {
		lock, err := acquireLock(path + ".lock")
		if err != nil {
			return nil, err
		}
		s.lock = lock
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		s.unlock()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection, so statements issued during a long-lived transaction
	// never wait on a second writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	s.db = db

	if opts.NetworkOptimized {
		for _, pragma := range networkPragmas {
			if _, err := db.Exec(pragma); err != nil {
				s.Close()
				return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
			}
		}
	}

	if err := s.migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func acquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	switch {
	case err != nil:
		return nil, fmt.Errorf("failed to acquire catalog lock: %w", err)
	case !ok:
		return nil, fmt.Errorf("%w: %s", util.ErrLocked, path)
	}
	return lock, nil
}

// Close closes the database connection and releases the lock
func (s *Store) Close() error {
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	s.unlock()
	return err
}

func (s *Store) unlock() {
	if s.lock != nil {
		s.lock.Unlock()
		s.lock = nil
	}
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying database connection for custom queries
func (s *Store) DB() *sql.DB {
	return s.db
}

// Catalog returns catalog operations bound to the database connection
func (s *Store) Catalog() *Catalog {
	return NewCatalog(s.db)
}

// SQLiteVersion returns the version of the embedded SQLite, or "" on failure
func SQLiteVersion() string {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return ""
	}
	defer db.Close()

	var v string
	db.QueryRow("SELECT sqlite_version()").Scan(&v)
	return v
}

// CheckIntegrity runs PRAGMA integrity_check on the database
func (s *Store) CheckIntegrity() error {
	var res string
	if err := s.db.QueryRow("PRAGMA integrity_check").Scan(&res); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if res != "ok" {
		return fmt.Errorf("integrity check failed: %s", res)
	}
	return nil
}

// migrate applies every pending migration in one transaction
func (s *Store) migrate() error {
	version, err := s.getSchemaVersion()
	if err != nil || version >= currentSchemaVersion {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for v := version; v < currentSchemaVersion; v++ {
		if _, err := tx.Exec(migrations[v]); err != nil {
			return fmt.Errorf("failed to apply schema v%d: %w", v+1, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", v+1); err != nil {
			return fmt.Errorf("failed to record schema v%d: %w", v+1, err)
		}
	}
	return tx.Commit()
}

// getSchemaVersion returns 0 for a fresh database
func (s *Store) getSchemaVersion() (int, error) {
	var version int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil && strings.Contains(err.Error(), "no such table") {
		return 0, nil
	}
	return version, err
}

// Begin starts a transaction the caller must commit or roll back
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// TransactionContext executes a function within a transaction bound to ctx
func (s *Store) TransactionContext(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Savepoint runs fn inside a named savepoint of an open transaction. On
// error the work done by fn is rolled back and the transaction stays usable.
func Savepoint(ctx context.Context, tx *sql.Tx, name string, fn func() error) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}

	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO "+name); rbErr != nil {
			return fmt.Errorf("failed to roll back savepoint: %v (after %w)", rbErr, err)
		}
		tx.ExecContext(ctx, "RELEASE "+name)
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}
