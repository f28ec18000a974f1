package tabula

import (
	"github.com/shrek82/tabula/core"
)

// Re-export core types and functions
type DB = core.DB
type Tx = core.Tx
type Options = core.Options
type Session = core.Session
type Schema = core.Schema
type LiveColumn = core.LiveColumn
type PersistenceError = core.PersistenceError
type Migration = core.Migration
type Migrator = core.Migrator

var (
	Open        = core.Open
	NewDB       = core.NewDB
	NewMigrator = core.NewMigrator
)

var (
	ErrRecordNotFound   = core.ErrRecordNotFound
	ErrNoSuchElement    = core.ErrNoSuchElement
	ErrInvalidModel     = core.ErrInvalidModel
	ErrNoPrimaryKey     = core.ErrNoPrimaryKey
	ErrInvalidSQL       = core.ErrInvalidSQL
	ErrUnknownDialect   = core.ErrUnknownDialect
	ErrConnectionFailed = core.ErrConnectionFailed
)
