package core

import (
	"errors"
	"io"
	"iter"

	"github.com/shrek82/tabula/logger"
)

// Rows is the part of *sql.Rows a Cursor consumes.
type Rows interface {
	Row
	Next() bool
	Err() error
	Close() error
}

// Cursor is a forward-only, single-pass sequence of entities over one
// open result set. It owns the rows and the statement behind them and
// releases both on exhaustion or Close. A Cursor must not be shared
// between goroutines.
type Cursor[T any] struct {
	rows   Rows
	stmt   io.Closer
	mapper *RecordMapper[T]
	logger logger.Logger

	advanced bool // rows.Next has been called for the pending element
	pending  bool // result of that call
	closed   bool
	err      error
}

// NewCursor wraps rows; stmt may be nil.
func NewCursor[T any](rows Rows, stmt io.Closer, mapper *RecordMapper[T]) *Cursor[T] {
	return &Cursor[T]{rows: rows, stmt: stmt, mapper: mapper, logger: mapper.logger}
}

// HasNext reports whether another entity is available. Repeated calls
// without Next do not advance further. Reaching the end closes the cursor.
func (c *Cursor[T]) HasNext() bool {
	if c.closed {
		return false
	}
	if c.advanced {
		return c.pending
	}
	c.advanced = true
	c.pending = c.rows.Next()
	if !c.pending {
		c.err = c.rows.Err()
		c.Close()
	}
	return c.pending
}

// Next maps and returns the pending row, advancing first if needed. It
// returns ErrNoSuchElement when there is no row. Mapping failures come back
// as *PersistenceError and consume the row.
func (c *Cursor[T]) Next() (*T, error) {
	if !c.HasNext() {
		return nil, ErrNoSuchElement
	}
	c.advanced = false
	c.pending = false
	return c.mapper.Map(c.rows)
}

// Remove is not supported.
func (c *Cursor[T]) Remove() error {
	return errors.ErrUnsupported
}

// Close releases the rows and the statement. It is safe to call more than
// once; release failures are logged.
func (c *Cursor[T]) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.advanced = true
	c.pending = false
	if err := c.rows.Close(); err != nil {
		c.logger.Warn("closing cursor rows: %v", err)
	}
	if c.stmt != nil {
		if err := c.stmt.Close(); err != nil {
			c.logger.Warn("closing cursor statement: %v", err)
		}
	}
}

// Closed reports whether the cursor has released its resources.
func (c *Cursor[T]) Closed() bool {
	return c.closed
}

// Err returns the error, if any, that ended iteration early.
func (c *Cursor[T]) Err() error {
	return c.err
}

// All ranges over the remaining entities. Breaking out of the loop closes
// the cursor. A mapping error is yielded once and ends the iteration.
func (c *Cursor[T]) All() iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		defer c.Close()
		for c.HasNext() {
			v, err := c.Next()
			if !yield(v, err) || err != nil {
				return
			}
		}
		if c.err != nil {
			yield(nil, c.err)
		}
	}
}

// Collect drains the cursor into a slice.
func (c *Cursor[T]) Collect() ([]*T, error) {
	var out []*T
	for v, err := range c.All() {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
