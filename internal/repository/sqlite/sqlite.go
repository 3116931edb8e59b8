// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary needs
// no C toolchain. The schema lives in migrations/*.sql, embedded into the
// binary and applied with goose on every New.
//
// CONCURRENCY MODEL:
// The pool is capped at ONE open connection. Every statement and transaction
// therefore runs serially, which is the per-connection mutual exclusion the
// increment-style writes (CompleteTask, IncrementUpvotes) rely on. It also
// keeps ":memory:" databases alive for the lifetime of the *DB: an in-memory
// SQLite database belongs to a single connection.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/climate-crew/internal/apperror"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DefaultQueryTimeout bounds every repository call when New is given zero.
const DefaultQueryTimeout = 5 * time.Second

// DB wraps a sql.DB connection pool and provides repository methods.
// One *DB satisfies every interface in the repository package.
type DB struct {
	conn    *sql.DB
	timeout time.Duration
}

// New opens the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/climatecrew.db" → file-based database (persistent)
//   - ":memory:"            → in-memory database (tests)
//
// queryTimeout bounds each repository call; a call that exceeds it fails
// with apperror.ErrUnavailable instead of hanging.
func New(dbPath string, queryTimeout time.Duration) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if queryTimeout <= 0 {
		queryTimeout = DefaultQueryTimeout
	}

	// PRAGMAs are per connection. With a single pooled connection they
	// apply to every later statement. busy_timeout matches the query
	// timeout: a lock held by another process must not stall a call past
	// its deadline.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", max(queryTimeout.Milliseconds(), 1)),
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	db := &DB{conn: conn, timeout: queryTimeout}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the store is reachable. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.bound(ctx)
	defer cancel()
	if err := db.conn.PingContext(ctx); err != nil {
		return apperror.Unavailable("pinging database", err)
	}
	return nil
}

// migrate applies every pending goose migration from the embedded FS.
func (db *DB) migrate() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db.conn, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// bound derives a context carrying the configured query timeout.
func (db *DB) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, db.timeout)
}

// inTx runs fn inside a transaction bounded by the query timeout. fn gets
// the bounded context and must use it for every statement. The transaction
// is rolled back when fn returns an error.
func (db *DB) inTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	ctx, cancel := db.bound(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// storeErr translates a driver error into the domain taxonomy.
//
//   - errors that already carry an apperror pass through unchanged
//   - UNIQUE violations become Conflict
//   - FOREIGN KEY violations become NotFound on the referenced resource
//   - everything else (timeouts, locks, I/O) becomes Unavailable
func storeErr(op, resource, id string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var sqlErr *sqlitedrv.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return apperror.Conflict(resource, id)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return apperror.NotFound("user", id)
		}
	}

	return apperror.Unavailable(op, fmt.Errorf("sqlite: %s: %w", op, err))
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
