package model

import (
	"fmt"
	"reflect"
	"strings"
)

// Index describes one declared index.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// IndexDecl is returned by Indexer implementations. Fields may name struct
// fields or columns.
type IndexDecl struct {
	Name   string
	Fields []string
	Unique bool
}

func (p *parser) tagIndex(name string, field *Field, unique bool) {
	if name == "" {
		name = indexName(p.m.TableName, []string{field.Column})
	}
	idx, ok := p.indexes[name]
	if !ok {
		idx = &Index{Name: name, Unique: unique}
		p.indexes[name] = idx
		p.m.Indexes = append(p.m.Indexes, idx)
	}
	idx.Unique = idx.Unique || unique
	idx.Columns = append(idx.Columns, field.Column)
}

func (p *parser) declaredIndexes() error {
	m := p.m
	indexer, ok := reflect.New(m.Type).Interface().(Indexer)
	if !ok {
		return nil
	}
	for _, decl := range indexer.Indexes() {
		if len(decl.Fields) == 0 {
			return &AnnotationError{Entity: m.Name(), Reason: fmt.Sprintf("index %q has no fields", decl.Name)}
		}
		idx := &Index{Name: decl.Name, Unique: decl.Unique}
		for _, ref := range decl.Fields {
			f := m.FieldByName(ref)
			if f == nil {
				f = m.FieldByColumn(ref)
			}
			if f == nil {
				return &AnnotationError{Entity: m.Name(), Reason: fmt.Sprintf("index %q references unknown field %q", decl.Name, ref)}
			}
			idx.Columns = append(idx.Columns, f.Column)
		}
		if idx.Name == "" {
			idx.Name = indexName(m.TableName, idx.Columns)
		}
		if _, exists := p.indexes[idx.Name]; exists {
			return &AnnotationError{Entity: m.Name(), Reason: fmt.Sprintf("index %q declared twice", idx.Name)}
		}
		p.indexes[idx.Name] = idx
		m.Indexes = append(m.Indexes, idx)
	}
	return nil
}

func indexName(table string, columns []string) string {
	return "idx_" + table + "_" + strings.Join(columns, "_")
}
