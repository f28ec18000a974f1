package core

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/shrek82/tabula/logger"
	"github.com/shrek82/tabula/model"
	"github.com/shrek82/tabula/types"
)

// Row is the part of *sql.Rows a mapper reads from.
type Row interface {
	Columns() ([]string, error)
	Scan(dest ...any) error
}

type columnReader struct {
	field *model.Field
	read  types.ColumnReader
}

// readerTable maps upper-case column names to readers for one entity type.
type readerTable struct {
	meta     *model.Model
	byColumn map[string]columnReader
	warned   sync.Map
}

type mapperKey struct {
	scope string
	typ   reflect.Type
}

var mapperCache = struct {
	sync.Mutex
	tables map[mapperKey]*readerTable
}{tables: make(map[mapperKey]*readerTable)}

func readersFor(scope string, m *model.Model) *readerTable {
	mapperCache.Lock()
	defer mapperCache.Unlock()

	key := mapperKey{scope: scope, typ: m.Type}
	if t, ok := mapperCache.tables[key]; ok {
		return t
	}
	t := &readerTable{meta: m, byColumn: make(map[string]columnReader, len(m.Fields))}
	for _, f := range m.Fields {
		t.byColumn[strings.ToUpper(f.Column)] = columnReader{field: f, read: f.Adapter.Read}
	}
	mapperCache.tables[key] = t
	return t
}

// RecordMapper converts result rows into *T.
type RecordMapper[T any] struct {
	table  *readerTable
	logger logger.Logger
}

// NewRecordMapper returns the mapper of T for db. The column table is built
// once per (db scope, T) and shared process-wide.
func NewRecordMapper[T any](db *DB) (*RecordMapper[T], error) {
	m, err := db.Metadata(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	return &RecordMapper[T]{table: readersFor(db.Scope(), m), logger: db.logger}, nil
}

// Metadata returns the entity metadata the mapper works from.
func (rm *RecordMapper[T]) Metadata() *model.Model {
	return rm.table.meta
}

// Map reads the current row into a new *T. Columns without a declared field
// are skipped with a warning logged once per column.
func (rm *RecordMapper[T]) Map(row Row) (*T, error) {
	meta := rm.table.meta
	cols, err := row.Columns()
	if err != nil {
		return nil, &PersistenceError{Op: "map", Table: meta.TableName, Err: err}
	}

	raw := make([]any, len(cols))
	dest := make([]any, len(cols))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := row.Scan(dest...); err != nil {
		return nil, &PersistenceError{Op: "map", Table: meta.TableName, Err: err}
	}

	entity := new(T)
	v := reflect.ValueOf(entity).Elem()
	for i, col := range cols {
		upper := strings.ToUpper(col)
		cr, ok := rm.table.byColumn[upper]
		if !ok {
			if _, seen := rm.table.warned.LoadOrStore(upper, true); !seen {
				rm.logger.Warn("column %s of %s has no field in %s, skipping", col, meta.TableName, meta.Name())
			}
			continue
		}
		if cr.read == nil {
			rm.logger.Error("no reader for field %s.%s, skipping column %s", meta.Name(), cr.field.Name, col)
			continue
		}

		val, err := cr.read(raw[i])
		if err != nil {
			return nil, &PersistenceError{Op: "map", Table: meta.TableName, Column: col, Field: cr.field.Name, Err: err}
		}
		if err := assign(cr.field.Value(v), val); err != nil {
			return nil, &PersistenceError{Op: "map", Table: meta.TableName, Column: col, Field: cr.field.Name, Err: err}
		}
	}

	if h, ok := any(entity).(AfterFinder); ok {
		if err := h.AfterFind(); err != nil {
			return nil, err
		}
	}
	return entity, nil
}

// assign stores val into the settable field fv, converting between types
// that share an underlying kind.
func assign(fv reflect.Value, val any) error {
	if val == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	rv := reflect.ValueOf(val)
	switch {
	case rv.Type().AssignableTo(fv.Type()):
		fv.Set(rv)
	case rv.Type().ConvertibleTo(fv.Type()):
		fv.Set(rv.Convert(fv.Type()))
	default:
		return fmt.Errorf("cannot assign %s to %s", rv.Type(), fv.Type())
	}
	return nil
}
