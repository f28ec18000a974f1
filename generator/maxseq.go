// Package generator holds the built-in primary key generators.
package generator

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"reflect"
	"sync"

	"github.com/shrek82/tabula/model"
)

func init() {
	model.RegisterGenerator("max", New)
	model.RegisterGenerator("sequence", New)
}

// New returns an unbound MaxSequence.
func New() model.Generator {
	return &MaxSequence{}
}

// MaxSequence issues keys by adding a step to the column's current maximum.
//
// In cached mode the maximum is read once and later keys are computed in
// memory. Two processes writing the same table will issue duplicate keys;
// disable caching or use a database identity column when that matters.
type MaxSequence struct {
	mu     sync.Mutex
	table  string
	column string
	step   int64
	cached bool
	target reflect.Type

	loaded bool
	last   int64
}

// Init binds the generator to field of m.
func (g *MaxSequence) Init(decl model.GeneratorDecl, field *model.Field, m *model.Model) error {
	if field == nil || m == nil {
		return fmt.Errorf("max sequence needs a field and a model")
	}
	for k := range decl.Params {
		return fmt.Errorf("unknown max sequence parameter %q", k)
	}
	g.table, g.column = m.TableName, field.Column
	g.step = decl.Step
	if g.step <= 0 {
		g.step = 1
	}
	g.cached = decl.Cached

	g.target = field.Type
	for g.target.Kind() == reflect.Ptr {
		g.target = g.target.Elem()
	}
	return nil
}

// Query returns the statement used to read the current maximum. A nil
// quote leaves the names as declared.
func (g *MaxSequence) Query(quote model.Quoter) string {
	if quote == nil {
		return fmt.Sprintf("SELECT MAX(%s) FROM %s", g.column, g.table)
	}
	return fmt.Sprintf("SELECT MAX(%s) FROM %s", quote.Quote(g.column), quote.Quote(g.table))
}

// NextValue returns the next key. Narrow integer fields receive a value of
// their own type; everything else receives an int64.
func (g *MaxSequence) NextValue(ctx context.Context, q model.Querier, quote model.Quoter) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.cached || !g.loaded {
		var max sql.NullInt64
		if err := q.QueryRowContext(ctx, g.Query(quote)).Scan(&max); err != nil {
			return nil, fmt.Errorf("read current maximum: %w", err)
		}
		g.last = max.Int64
		g.loaded = true
	}

	if g.last > math.MaxInt64-g.step {
		return nil, fmt.Errorf("sequence overflow after %d", g.last)
	}
	next := g.last + g.step
	g.last = next
	return narrow(next, g.target)
}

func narrow(v int64, target reflect.Type) (any, error) {
	switch target.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32:
		out := reflect.New(target).Elem()
		if out.OverflowInt(v) {
			return nil, fmt.Errorf("value %d overflows %s", v, target)
		}
		out.SetInt(v)
		return out.Interface(), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		out := reflect.New(target).Elem()
		if v < 0 || out.OverflowUint(uint64(v)) {
			return nil, fmt.Errorf("value %d overflows %s", v, target)
		}
		out.SetUint(uint64(v))
		return out.Interface(), nil
	}
	return v, nil
}
