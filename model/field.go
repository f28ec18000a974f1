package model

import (
	"reflect"

	"github.com/shrek82/tabula/types"
)

// Field represents a database column mapped from a struct field
type Field struct {
	Name      string        // Struct field name
	Column    string        // DB column name
	Type      reflect.Type  // Field type
	Index     []int         // Struct field index path, embedded structs included
	SQLType   types.SQLType // Declared or derived SQL type
	Size      int           // Length, or total digits for decimals
	Precision int           // Fractional digits for decimals
	Nullable  bool
	ReadOnly  bool // Never written by inserts or updates
	IsPK      bool
	IsAuto    bool // Identity column filled by the database
	Unique    bool
	Adapter   types.Adapter
	Generator *GeneratorBinding
	Tag       string // Raw tag string
}

// Value returns the field of entity, which must be a struct value of the
// model's type.
func (f *Field) Value(entity reflect.Value) reflect.Value {
	return entity.FieldByIndex(f.Index)
}

// Writable reports whether inserts and updates bind this column.
func (f *Field) Writable() bool {
	return !f.IsAuto && !f.ReadOnly
}
