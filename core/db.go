package core

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shrek82/tabula/dialect"
	_ "github.com/shrek82/tabula/generator"
	"github.com/shrek82/tabula/logger"
	"github.com/shrek82/tabula/model"
	"github.com/shrek82/tabula/pool"
)

// Options defines the configuration for the DB connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// ManualCommit runs every schema statement in its own transaction and
	// commits it before the next one starts.
	ManualCommit bool
	Logger       logger.Logger
}

// Executor defines the interface for executing SQL queries and commands.
// It is implemented by pool.Pool, *sql.DB and *sql.Tx.
type Executor interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Session is either a *DB or a *Tx.
type Session interface {
	session() (*DB, Executor)
}

// DB is the main entry point. It owns the connection pool and the dialect,
// and scopes the metadata and mapper caches by the dialect name.
type DB struct {
	pool         pool.Pool
	dialect      dialect.Dialect
	logger       logger.Logger
	manualCommit bool
}

// Open initializes a new DB instance with the given driver and DSN.
func Open(driver, dsn string, opts *Options) (*DB, error) {
	if _, ok := dialect.Get(driver); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDialect, driver)
	}

	p, err := pool.Open(context.Background(), driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := NewDB(p, driver, opts)
	if err != nil {
		p.Close()
		return nil, err
	}
	return db, nil
}

// NewDB builds a DB over an existing pool. driver selects the dialect.
func NewDB(p pool.Pool, driver string, opts *Options) (*DB, error) {
	d, ok := dialect.Get(driver)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDialect, driver)
	}

	db := &DB{
		pool:    p,
		dialect: d,
		logger:  logger.NewStdLogger(),
	}
	if opts != nil {
		if opts.MaxOpenConns > 0 {
			p.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			p.SetMaxIdleConns(opts.MaxIdleConns)
		}
		if opts.ConnMaxLifetime > 0 {
			p.SetConnMaxLifetime(opts.ConnMaxLifetime)
		}
		if opts.Logger != nil {
			db.logger = opts.Logger
		}
		db.manualCommit = opts.ManualCommit
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.pool.Close()
}

// SetLogger sets a custom logger for the DB.
func (db *DB) SetLogger(l logger.Logger) {
	db.logger = l
}

// Logger returns the logger in use.
func (db *DB) Logger() logger.Logger {
	return db.logger
}

// Dialect returns the dialect selected at Open.
func (db *DB) Dialect() dialect.Dialect {
	return db.dialect
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() pool.Pool {
	return db.pool
}

// Scope identifies this DB in the process-wide metadata and mapper caches.
func (db *DB) Scope() string {
	return db.dialect.Name()
}

// Metadata resolves the entity metadata of value's type for this DB.
func (db *DB) Metadata(value any) (*model.Model, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: nil value", ErrInvalidModel)
	}
	typ, ok := value.(reflect.Type)
	if !ok {
		typ = reflect.TypeOf(value)
	}
	return model.Resolve(db.Scope(), typ)
}

func (db *DB) session() (*DB, Executor) {
	return db, db.pool
}

// logSQL logs the SQL execution if a logger is set.
func (db *DB) logSQL(sql string, duration time.Duration, args ...any) {
	if db.logger != nil {
		db.logger.SQL(sql, duration, args...)
	}
}

// Exec executes a raw SQL statement without returning any rows.
func (db *DB) Exec(ctx context.Context, sql string, args ...any) (sql.Result, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, ErrInvalidSQL
	}
	start := time.Now()
	res, err := db.pool.ExecContext(ctx, sql, args...)
	db.logSQL(sql, time.Since(start), args...)
	return res, err
}

// Transaction executes a function within a database transaction.
func (db *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	start := time.Now()
	sqlTx, err := db.pool.BeginTx(ctx, nil)
	db.logSQL("BEGIN", time.Since(start))
	if err != nil {
		return fmt.Errorf("transaction begin failed: %w", err)
	}

	tx := &Tx{
		db:    db,
		sqlTx: sqlTx,
	}

	defer func() {
		if p := recover(); p != nil {
			start := time.Now()
			_ = sqlTx.Rollback()
			db.logSQL("ROLLBACK", time.Since(start))
			panic(p)
		} else if err != nil {
			start := time.Now()
			if rbErr := sqlTx.Rollback(); rbErr != nil {
				db.logger.Warn("rollback failed: %v", rbErr)
			}
			db.logSQL("ROLLBACK", time.Since(start))
		} else {
			start := time.Now()
			err = tx.Commit()
			db.logSQL("COMMIT", time.Since(start))
		}
	}()

	err = fn(tx)
	return err
}

// AutoMigrate creates missing tables and adds missing columns for the given models.
func (db *DB) AutoMigrate(ctx context.Context, values ...any) error {
	return db.Schema().Sync(ctx, values...)
}
