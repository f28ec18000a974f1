package core

import (
	"errors"
	"strings"

	"github.com/shrek82/tabula/pool"
)

var (
	// ErrRecordNotFound is returned when a lookup by primary key finds no row.
	ErrRecordNotFound = errors.New("record not found")
	// ErrNoSuchElement is returned by Cursor.Next when no row is pending.
	ErrNoSuchElement = errors.New("no such element")
	// ErrInvalidModel is returned when a value cannot be persisted (e.g., not a pointer to struct).
	ErrInvalidModel = errors.New("invalid model")
	// ErrNoPrimaryKey is returned when an operation needs a primary key the entity does not declare.
	ErrNoPrimaryKey = errors.New("entity has no primary key")
	// ErrInvalidSQL is returned when a raw SQL statement is empty.
	ErrInvalidSQL = errors.New("invalid sql")
	// ErrUnknownDialect is returned when no dialect is registered for a driver.
	ErrUnknownDialect = errors.New("unknown dialect")
	// ErrConnectionFailed is returned when the database connection cannot be established or is lost.
	ErrConnectionFailed = pool.ErrConnectionFailed
)

// PersistenceError wraps a failure while executing DDL, generating a key or
// mapping a row, together with the statement, column or field involved.
type PersistenceError struct {
	Op        string
	Table     string
	Statement string
	Column    string
	Field     string
	Err       error
}

func (e *PersistenceError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	if e.Table != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Table)
	}
	if e.Column != "" {
		sb.WriteString(" column ")
		sb.WriteString(e.Column)
	}
	if e.Field != "" {
		sb.WriteString(" (field ")
		sb.WriteString(e.Field)
		sb.WriteString(")")
	}
	if e.Statement != "" {
		sb.WriteString(" [")
		sb.WriteString(e.Statement)
		sb.WriteString("]")
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *PersistenceError) Unwrap() error { return e.Err }
