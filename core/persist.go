package core

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shrek82/tabula/model"
)

// Insert inserts entity, which must be a pointer to struct. Generator-bound
// fields holding their zero value are stamped first; a database identity is
// written back into the primary key afterwards.
func (db *DB) Insert(ctx context.Context, entity any) error {
	return insert(ctx, db, entity)
}

// Update writes every writable column of entity, matched by primary key,
// and returns the number of affected rows.
func (db *DB) Update(ctx context.Context, entity any) (int64, error) {
	return update(ctx, db, entity)
}

// Delete removes the row of entity by primary key.
func (db *DB) Delete(ctx context.Context, entity any) (int64, error) {
	return remove(ctx, db, entity)
}

func entityValue(db *DB, entity any) (*model.Model, reflect.Value, error) {
	val := reflect.ValueOf(entity)
	if val.Kind() != reflect.Ptr || val.IsNil() || val.Elem().Kind() != reflect.Struct {
		return nil, reflect.Value{}, fmt.Errorf("%w: expected pointer to struct, got %T", ErrInvalidModel, entity)
	}
	m, err := db.Metadata(entity)
	if err != nil {
		return nil, reflect.Value{}, err
	}
	return m, val.Elem(), nil
}

func bindValue(m *model.Model, f *model.Field, val reflect.Value) (driver.Value, error) {
	if f.Adapter.Write == nil {
		return nil, &PersistenceError{Op: "bind", Table: m.TableName, Column: f.Column, Field: f.Name, Err: fmt.Errorf("no writer")}
	}
	arg, err := f.Adapter.Write(f.Value(val).Interface())
	if err != nil {
		return nil, &PersistenceError{Op: "bind", Table: m.TableName, Column: f.Column, Field: f.Name, Err: err}
	}
	return arg, nil
}

func insert(ctx context.Context, s Session, entity any) error {
	db, exec := s.session()
	m, val, err := entityValue(db, entity)
	if err != nil {
		return err
	}

	// BeforeInsert hook
	if h, ok := entity.(BeforeInserter); ok {
		if err := h.BeforeInsert(); err != nil {
			return err
		}
	}

	for _, field := range m.Fields {
		if field.Generator == nil || !field.Value(val).IsZero() {
			continue
		}
		next, err := field.Generator.Generator.NextValue(ctx, exec, db.dialect)
		if err != nil {
			return &PersistenceError{Op: "generate key", Table: m.TableName, Column: field.Column, Field: field.Name, Err: err}
		}
		if err := assign(field.Value(val), next); err != nil {
			return &PersistenceError{Op: "generate key", Table: m.TableName, Column: field.Column, Field: field.Name, Err: err}
		}
	}

	var columns []string
	var args []any
	for _, field := range m.Fields {
		if !field.Writable() {
			continue
		}
		arg, err := bindValue(m, field, val)
		if err != nil {
			return err
		}
		columns = append(columns, field.Column)
		args = append(args, arg)
	}

	pk := m.PKField
	identity := pk != nil && pk.IsAuto
	returning := ""
	if identity && db.dialect.SupportsReturning() {
		returning = pk.Column
	}
	sqlStr, _ := db.dialect.InsertSQL(m.TableName, columns, returning)

	start := time.Now()
	var id any
	if returning != "" {
		err = exec.QueryRowContext(ctx, sqlStr, args...).Scan(&id)
	} else {
		var res sql.Result
		res, err = exec.ExecContext(ctx, sqlStr, args...)
		if err == nil && identity {
			id, err = res.LastInsertId()
		}
	}
	db.logSQL(sqlStr, time.Since(start), args...)
	if err != nil {
		return &PersistenceError{Op: "insert", Table: m.TableName, Statement: sqlStr, Err: err}
	}

	if identity && pk.Adapter.Read != nil {
		v, err := pk.Adapter.Read(id)
		if err == nil {
			err = assign(pk.Value(val), v)
		}
		if err != nil {
			return &PersistenceError{Op: "insert", Table: m.TableName, Column: pk.Column, Field: pk.Name, Err: err}
		}
	}

	// AfterInsert hook
	if h, ok := entity.(AfterInserter); ok {
		if err := h.AfterInsert(); err != nil {
			return err
		}
	}
	return nil
}

func update(ctx context.Context, s Session, entity any) (int64, error) {
	db, exec := s.session()
	m, val, err := entityValue(db, entity)
	if err != nil {
		return 0, err
	}
	if m.PKField == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoPrimaryKey, m.Name())
	}

	// BeforeUpdate hook
	if h, ok := entity.(BeforeUpdater); ok {
		if err := h.BeforeUpdate(); err != nil {
			return 0, err
		}
	}

	var columns []string
	var args []any
	for _, field := range m.Fields {
		if field.IsPK || !field.Writable() {
			continue
		}
		arg, err := bindValue(m, field, val)
		if err != nil {
			return 0, err
		}
		columns = append(columns, field.Column)
		args = append(args, arg)
	}
	if len(columns) == 0 {
		return 0, nil
	}
	pkArg, err := bindValue(m, m.PKField, val)
	if err != nil {
		return 0, err
	}
	args = append(args, pkArg)

	sqlStr, _ := db.dialect.UpdateSQL(m.TableName, columns, m.PKField.Column)
	affected, err := execAffected(ctx, db, exec, "update", m.TableName, sqlStr, args)
	if err != nil {
		return 0, err
	}

	// AfterUpdate hook
	if h, ok := entity.(AfterUpdater); ok {
		if err := h.AfterUpdate(); err != nil {
			return affected, err
		}
	}
	return affected, nil
}

func remove(ctx context.Context, s Session, entity any) (int64, error) {
	db, exec := s.session()
	m, val, err := entityValue(db, entity)
	if err != nil {
		return 0, err
	}
	if m.PKField == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoPrimaryKey, m.Name())
	}

	// BeforeDelete hook
	if h, ok := entity.(BeforeDeleter); ok {
		if err := h.BeforeDelete(); err != nil {
			return 0, err
		}
	}

	pkArg, err := bindValue(m, m.PKField, val)
	if err != nil {
		return 0, err
	}
	sqlStr, _ := db.dialect.DeleteSQL(m.TableName, m.PKField.Column)
	affected, err := execAffected(ctx, db, exec, "delete", m.TableName, sqlStr, []any{pkArg})
	if err != nil {
		return 0, err
	}

	// AfterDelete hook
	if h, ok := entity.(AfterDeleter); ok {
		if err := h.AfterDelete(); err != nil {
			return affected, err
		}
	}
	return affected, nil
}

func execAffected(ctx context.Context, db *DB, exec Executor, op, table, sqlStr string, args []any) (int64, error) {
	start := time.Now()
	res, err := exec.ExecContext(ctx, sqlStr, args...)
	db.logSQL(sqlStr, time.Since(start), args...)
	if err != nil {
		return 0, &PersistenceError{Op: op, Table: table, Statement: sqlStr, Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, &PersistenceError{Op: op, Table: table, Statement: sqlStr, Err: err}
	}
	return affected, nil
}

// Get loads the T whose primary key equals pk.
func Get[T any](ctx context.Context, s Session, pk any) (*T, error) {
	db, _ := s.session()
	m, err := db.Metadata(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	if m.PKField == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPrimaryKey, m.Name())
	}

	arg := pk
	if m.PKField.Adapter.Write != nil && pk != nil {
		pv := reflect.ValueOf(pk)
		if pv.Type() != m.PKField.Type && pv.Kind() != reflect.String && m.PKField.Type.Kind() != reflect.String && pv.Type().ConvertibleTo(m.PKField.Type) {
			pv = pv.Convert(m.PKField.Type)
		}
		if pv.Type() == m.PKField.Type {
			if arg, err = m.PKField.Adapter.Write(pv.Interface()); err != nil {
				return nil, &PersistenceError{Op: "bind", Table: m.TableName, Column: m.PKField.Column, Field: m.PKField.Name, Err: err}
			}
		}
	}

	where := db.dialect.Quote(m.PKField.Column) + " = " + db.dialect.Placeholder(1)
	cur, err := Select[T](ctx, s, where, arg)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	if !cur.HasNext() {
		if err := cur.Err(); err != nil {
			return nil, &PersistenceError{Op: "get", Table: m.TableName, Err: err}
		}
		return nil, ErrRecordNotFound
	}
	return cur.Next()
}

// Select returns a cursor over the rows of T's table matching where, which
// is raw SQL in the dialect's placeholder style. An empty where selects all.
func Select[T any](ctx context.Context, s Session, where string, args ...any) (*Cursor[T], error) {
	db, _ := s.session()
	m, err := db.Metadata(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	sqlStr, _ := db.dialect.SelectSQL(m.TableName, m.Columns(), where)
	return Query[T](ctx, s, sqlStr, args...)
}

// Query prepares and runs sqlStr and returns a cursor that owns both the
// statement and its rows.
func Query[T any](ctx context.Context, s Session, sqlStr string, args ...any) (*Cursor[T], error) {
	if strings.TrimSpace(sqlStr) == "" {
		return nil, ErrInvalidSQL
	}
	db, exec := s.session()
	mapper, err := NewRecordMapper[T](db)
	if err != nil {
		return nil, err
	}
	table := mapper.Metadata().TableName

	stmt, err := exec.PrepareContext(ctx, sqlStr)
	if err != nil {
		return nil, &PersistenceError{Op: "prepare", Table: table, Statement: sqlStr, Err: err}
	}
	start := time.Now()
	rows, err := stmt.QueryContext(ctx, args...)
	db.logSQL(sqlStr, time.Since(start), args...)
	if err != nil {
		if cerr := stmt.Close(); cerr != nil {
			db.logger.Warn("closing statement: %v", cerr)
		}
		return nil, &PersistenceError{Op: "query", Table: table, Statement: sqlStr, Err: err}
	}
	return NewCursor(rows, stmt, mapper), nil
}
