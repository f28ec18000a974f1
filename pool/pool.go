package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrConnectionFailed wraps every failure to obtain a live connection.
var ErrConnectionFailed = errors.New("database connection failed")

// Pool defines the interface for a database connection pool.
type Pool interface {
	Conn(ctx context.Context) (*sql.Conn, error)
	Reset(ctx context.Context) error
	Close() error
	SetMaxOpenConns(n int)
	SetMaxIdleConns(n int)
	SetConnMaxLifetime(d time.Duration)
	PingContext(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

type settings struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	hasOpen     bool
	hasIdle     bool
	hasLifetime bool
}

// StdPool is an implementation of Pool using the standard library's *sql.DB.
// Reset replaces the underlying handle; callers holding the old one keep it
// until they release it.
type StdPool struct {
	mu       sync.RWMutex
	db       *sql.DB
	driver   string
	dsn      string
	settings settings
}

// Open opens a pool for driver and dsn and verifies it with a ping.
func Open(ctx context.Context, driver, dsn string) (*StdPool, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrConnectionFailed, driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ErrConnectionFailed, driver, err)
	}
	return &StdPool{db: db, driver: driver, dsn: dsn}, nil
}

// NewStdPool creates a new StdPool wrapping the given *sql.DB. A wrapped
// pool cannot Reset because it does not know how the handle was opened.
func NewStdPool(db *sql.DB) *StdPool {
	return &StdPool{db: db}
}

// DB returns the current handle.
func (p *StdPool) DB() *sql.DB {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.db
}

// Driver returns the driver name the pool was opened with.
func (p *StdPool) Driver() string {
	return p.driver
}

// Conn returns a dedicated connection. The caller must Close it.
func (p *StdPool) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := p.DB().Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return conn, nil
}

// Reset closes the current handle and opens a fresh one with the same
// driver, DSN and limits.
func (p *StdPool) Reset(ctx context.Context) error {
	if p.driver == "" {
		return fmt.Errorf("%w: pool was not opened from a driver name", ErrConnectionFailed)
	}
	db, err := sql.Open(p.driver, p.dsn)
	if err != nil {
		return fmt.Errorf("%w: reopen %s: %v", ErrConnectionFailed, p.driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%w: ping %s: %v", ErrConnectionFailed, p.driver, err)
	}

	p.mu.Lock()
	old := p.db
	p.db = db
	p.apply(db)
	p.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

func (p *StdPool) apply(db *sql.DB) {
	s := p.settings
	if s.hasOpen {
		db.SetMaxOpenConns(s.maxOpen)
	}
	if s.hasIdle {
		db.SetMaxIdleConns(s.maxIdle)
	}
	if s.hasLifetime {
		db.SetConnMaxLifetime(s.maxLifetime)
	}
}

func (p *StdPool) Close() error {
	return p.DB().Close()
}

func (p *StdPool) SetMaxOpenConns(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings.maxOpen, p.settings.hasOpen = n, true
	p.db.SetMaxOpenConns(n)
}

func (p *StdPool) SetMaxIdleConns(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings.maxIdle, p.settings.hasIdle = n, true
	p.db.SetMaxIdleConns(n)
}

func (p *StdPool) SetConnMaxLifetime(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings.maxLifetime, p.settings.hasLifetime = d, true
	p.db.SetConnMaxLifetime(d)
}

func (p *StdPool) PingContext(ctx context.Context) error {
	if err := p.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return nil
}

func (p *StdPool) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.DB().ExecContext(ctx, query, args...)
}

func (p *StdPool) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return p.DB().QueryContext(ctx, query, args...)
}

func (p *StdPool) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return p.DB().QueryRowContext(ctx, query, args...)
}

func (p *StdPool) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return p.DB().PrepareContext(ctx, query)
}

func (p *StdPool) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return p.DB().BeginTx(ctx, opts)
}
