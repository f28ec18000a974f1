// Package types maps Go field types and SQL type codes to the functions that
// read a column value into a field and bind a field value as a statement
// parameter.
package types

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"sync"
)

// ColumnReader converts a value produced by a database/sql driver (int64,
// float64, bool, []byte, string, time.Time or nil) into the field's Go type.
type ColumnReader func(src any) (any, error)

// ParamWriter converts a field value into a value a driver accepts as a
// statement parameter.
type ParamWriter func(v any) (driver.Value, error)

// Adapter pairs the reader and writer for one (Go type, SQL type) pair.
type Adapter struct {
	Read  ColumnReader
	Write ParamWriter
}

// Factory builds an adapter for a concrete Go type of a registered kind.
// It reports false when the type is not one it can serve.
type Factory func(typ reflect.Type, sqlType SQLType) (Adapter, bool)

// UnsupportedTypeError is returned when no adapter exists for a pair.
type UnsupportedTypeError struct {
	GoType  reflect.Type
	SQLType SQLType
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("no type adapter for Go type %v with SQL type %s", e.GoType, e.SQLType)
}

type exactKey struct {
	typ reflect.Type
	sql SQLType
}

type kindKey struct {
	kind reflect.Kind
	sql  SQLType
}

// Registry holds adapters keyed by exact Go type and by reflect.Kind.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	exact map[exactKey]Adapter
	kinds map[kindKey]Factory
}

// NewRegistry returns a registry preloaded with the built-in adapters.
func NewRegistry() *Registry {
	r := &Registry{
		exact: make(map[exactKey]Adapter),
		kinds: make(map[kindKey]Factory),
	}
	registerBuiltins(r)
	return r
}

// Default is the registry used by metadata resolution.
var Default = NewRegistry()

// Register adds or replaces the adapter for an exact Go type.
func (r *Registry) Register(typ reflect.Type, sqlType SQLType, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exact[exactKey{typ, sqlType}] = a
}

// RegisterKind adds a factory serving every Go type of the given kind.
func (r *Registry) RegisterKind(kind reflect.Kind, sqlType SQLType, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kindKey{kind, sqlType}] = f
}

// Register adds an adapter to the Default registry.
func Register(typ reflect.Type, sqlType SQLType, a Adapter) {
	Default.Register(typ, sqlType, a)
}

// Lookup returns the adapter for the pair. Pointer types are served by the
// adapter of their element type and read SQL NULL as a nil pointer.
func (r *Registry) Lookup(typ reflect.Type, sqlType SQLType) (Adapter, error) {
	if typ.Kind() == reflect.Ptr {
		a, err := r.Lookup(typ.Elem(), sqlType)
		if err != nil {
			return Adapter{}, &UnsupportedTypeError{GoType: typ, SQLType: sqlType}
		}
		return nullable(typ, a), nil
	}

	r.mu.RLock()
	a, ok := r.exact[exactKey{typ, sqlType}]
	f := r.kinds[kindKey{typ.Kind(), sqlType}]
	r.mu.RUnlock()

	if ok {
		return a, nil
	}
	if f != nil {
		if a, ok := f(typ, sqlType); ok {
			return a, nil
		}
	}
	return Adapter{}, &UnsupportedTypeError{GoType: typ, SQLType: sqlType}
}

// Reader returns the column reader for the pair.
func (r *Registry) Reader(typ reflect.Type, sqlType SQLType) (ColumnReader, error) {
	a, err := r.Lookup(typ, sqlType)
	if err != nil {
		return nil, err
	}
	return a.Read, nil
}

// Writer returns the parameter writer for the pair.
func (r *Registry) Writer(typ reflect.Type, sqlType SQLType) (ParamWriter, error) {
	a, err := r.Lookup(typ, sqlType)
	if err != nil {
		return nil, err
	}
	return a.Write, nil
}

func nullable(typ reflect.Type, elem Adapter) Adapter {
	return Adapter{
		Read: func(src any) (any, error) {
			if src == nil {
				return reflect.Zero(typ).Interface(), nil
			}
			v, err := elem.Read(src)
			if err != nil {
				return nil, err
			}
			p := reflect.New(typ.Elem())
			p.Elem().Set(reflect.ValueOf(v))
			return p.Interface(), nil
		},
		Write: func(v any) (driver.Value, error) {
			rv := reflect.ValueOf(v)
			if !rv.IsValid() || rv.IsNil() {
				return nil, nil
			}
			return elem.Write(rv.Elem().Interface())
		},
	}
}
