package model

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/shrek82/tabula/types"
)

// DefaultScope is the scope used by GetModel.
const DefaultScope = ""

// Model represents table metadata
type Model struct {
	Type      reflect.Type
	TableName string
	Fields    []*Field
	FieldMap  map[string]*Field // upper-case column name -> field
	PKField   *Field
	Indexes   []*Index

	byName map[string]*Field
}

// Tabler overrides the table name derived from the struct name.
type Tabler interface {
	TableName() string
}

// Indexer declares indexes on the entity type.
type Indexer interface {
	Indexes() []IndexDecl
}

type cacheKey struct {
	scope string
	typ   reflect.Type
}

var (
	modelCache sync.Map // cacheKey -> *Model
	buildGroup singleflight.Group
)

// GetModel returns the model metadata for a given value under DefaultScope
func GetModel(value any) (*Model, error) {
	if value == nil {
		return nil, fmt.Errorf("value is nil: %w", ErrInvalidEntity)
	}
	return Resolve(DefaultScope, reflect.TypeOf(value))
}

// Resolve returns the metadata of typ under scope, building it on first use.
// Concurrent first calls for the same key share one build; failed builds are
// not cached.
func Resolve(scope string, typ reflect.Type) (*Model, error) {
	for typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("got %v: %w", typ, ErrInvalidEntity)
	}

	key := cacheKey{scope: scope, typ: typ}
	if cached, ok := modelCache.Load(key); ok {
		return cached.(*Model), nil
	}

	v, err, _ := buildGroup.Do(fmt.Sprintf("%s\x00%p", scope, typ), func() (any, error) {
		if cached, ok := modelCache.Load(key); ok {
			return cached, nil
		}
		m, err := parseModel(typ, types.Default)
		if err != nil {
			return nil, err
		}
		modelCache.Store(key, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

// FieldByColumn looks up a field by column name, ignoring case.
func (m *Model) FieldByColumn(column string) *Field {
	return m.FieldMap[strings.ToUpper(column)]
}

// FieldByName looks up a field by struct field name.
func (m *Model) FieldByName(name string) *Field {
	return m.byName[name]
}

// Columns returns the column names in declaration order.
func (m *Model) Columns() []string {
	cols := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		cols[i] = f.Column
	}
	return cols
}

// Name returns the Go type name used in error messages.
func (m *Model) Name() string {
	return m.Type.String()
}

type pendingGenerator struct {
	field *Field
	raw   string
}

type parser struct {
	m          *Model
	registry   *types.Registry
	indexes    map[string]*Index
	generators []pendingGenerator
}

func parseModel(typ reflect.Type, registry *types.Registry) (*Model, error) {
	m := &Model{
		Type:      typ,
		TableName: camelToSnake(typ.Name()),
		FieldMap:  make(map[string]*Field),
		byName:    make(map[string]*Field),
	}
	if t, ok := reflect.New(typ).Interface().(Tabler); ok {
		if name := t.TableName(); name != "" {
			m.TableName = name
		}
	}

	p := &parser{m: m, registry: registry, indexes: make(map[string]*Index)}
	if err := p.walk(typ, nil); err != nil {
		return nil, err
	}
	if len(m.Fields) == 0 {
		return nil, &AnnotationError{Entity: m.Name(), Reason: "no mapped fields"}
	}
	if err := p.declaredIndexes(); err != nil {
		return nil, err
	}
	if err := p.bindGenerators(); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *parser) walk(typ reflect.Type, prefix []int) error {
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		tagStr := sf.Tag.Get(TagKey)

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && tagStr == "" {
			if err := p.walk(sf.Type, appendIndex(prefix, i)); err != nil {
				return err
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}

		tag, err := ParseTag(tagStr)
		if err != nil {
			return &AnnotationError{Entity: p.m.Name(), Field: sf.Name, Err: err}
		}
		if tag.Ignore {
			continue
		}
		if err := p.addField(sf, tag, tagStr, appendIndex(prefix, i)); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) addField(sf reflect.StructField, tag *Tag, tagStr string, index []int) error {
	m := p.m
	columnName := tag.Column
	if columnName == "" {
		columnName = camelToSnake(sf.Name)
	}

	field := &Field{
		Name:      sf.Name,
		Column:    columnName,
		Type:      sf.Type,
		Index:     index,
		Size:      tag.Size,
		Precision: tag.Precision,
		ReadOnly:  tag.ReadOnly,
		IsPK:      tag.PrimaryKey,
		IsAuto:    tag.AutoInc,
		Unique:    tag.Unique,
		Tag:       tagStr,
	}
	field.Nullable = !tag.NotNull && !tag.PrimaryKey
	if field.IsAuto && !field.IsPK {
		return &AnnotationError{Entity: m.Name(), Field: sf.Name, Reason: "auto requires pk"}
	}

	if tag.Type != "" {
		st, size, precision, ok := types.ParseSQLType(tag.Type)
		if !ok {
			return &AnnotationError{Entity: m.Name(), Field: sf.Name, Reason: fmt.Sprintf("unknown SQL type %q", tag.Type)}
		}
		field.SQLType = st
		if field.Size == 0 {
			field.Size = size
		}
		if field.Precision == 0 {
			field.Precision = precision
		}
	} else {
		st, ok := types.DefaultSQLType(sf.Type)
		if !ok {
			return &AnnotationError{Entity: m.Name(), Field: sf.Name, Reason: fmt.Sprintf("no SQL type for Go type %v", sf.Type)}
		}
		field.SQLType = st
	}
	if field.SQLType.Sized() && field.Size == 0 {
		field.Size = defaultSize(sf.Type)
	}

	adapter, err := p.registry.Lookup(sf.Type, field.SQLType)
	if err != nil {
		return &AnnotationError{Entity: m.Name(), Field: sf.Name, Err: err}
	}
	field.Adapter = adapter

	upper := strings.ToUpper(columnName)
	if other, exists := m.FieldMap[upper]; exists {
		return &AnnotationError{Entity: m.Name(), Field: sf.Name, Reason: fmt.Sprintf("column %q already mapped by field %s", columnName, other.Name)}
	}
	if field.IsPK {
		if m.PKField != nil {
			return &AnnotationError{Entity: m.Name(), Field: sf.Name, Reason: fmt.Sprintf("second primary key, %s is already the primary key", m.PKField.Name)}
		}
		m.PKField = field
	}

	m.Fields = append(m.Fields, field)
	m.FieldMap[upper] = field
	m.byName[field.Name] = field

	for _, name := range tag.Index {
		p.tagIndex(name, field, false)
	}
	for _, name := range tag.UniqueIndex {
		p.tagIndex(name, field, true)
	}
	if tag.Generated != "" {
		p.generators = append(p.generators, pendingGenerator{field: field, raw: tag.Generated})
	}
	return nil
}

func (p *parser) bindGenerators() error {
	m := p.m
	for _, pg := range p.generators {
		decl, err := ParseGeneratorDecl(pg.raw)
		if err != nil {
			return &AnnotationError{Entity: m.Name(), Field: pg.field.Name, Err: err}
		}
		if !pg.field.SQLType.IsIntegral() {
			return &AnnotationError{Entity: m.Name(), Field: pg.field.Name, Reason: fmt.Sprintf("generator %q needs an integral column, got %s", decl.Strategy, pg.field.SQLType)}
		}
		factory, ok := LookupGenerator(decl.Strategy)
		if !ok {
			return &AnnotationError{Entity: m.Name(), Field: pg.field.Name, Reason: fmt.Sprintf("unknown generator %q", decl.Strategy)}
		}
		g := factory()
		if err := g.Init(decl, pg.field, m); err != nil {
			return &AnnotationError{Entity: m.Name(), Field: pg.field.Name, Reason: "generator init", Err: err}
		}
		pg.field.Generator = &GeneratorBinding{
			Strategy:  decl.Strategy,
			Generator: g,
			Step:      decl.Step,
			Cached:    decl.Cached,
		}
	}
	return nil
}

func defaultSize(typ reflect.Type) int {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.PkgPath() == "github.com/google/uuid" && typ.Name() == "UUID" {
		return 36
	}
	return 255
}

func appendIndex(prefix []int, i int) []int {
	out := make([]int, len(prefix)+1)
	copy(out, prefix)
	out[len(prefix)] = i
	return out
}

func camelToSnake(s string) string {
	if s == "ID" {
		return "id"
	}
	var res []rune
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(rune(s[i-1])) || (i+1 < len(s) && unicode.IsLower(rune(s[i+1])))) {
				res = append(res, '_')
			}
			res = append(res, unicode.ToLower(r))
		} else {
			res = append(res, r)
		}
	}
	return string(res)
}
