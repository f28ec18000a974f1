package core

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shrek82/tabula/types"
)

// LiveColumn describes a column as the database reports it for a zero-row
// probe. It is rebuilt on every call.
type LiveColumn struct {
	Name         string
	Nullable     bool
	ReadOnly     bool
	SQLType      types.SQLType
	DatabaseType string
	Size         int
	Precision    int
}

// Schema inspects the live catalog and runs DDL derived from entity
// metadata. Every check re-queries the database.
type Schema struct {
	db *DB
}

// Schema returns the schema reconciler of db.
func (db *DB) Schema() *Schema {
	return &Schema{db: db}
}

// Tables returns the base tables as the database spells them.
func (s *Schema) Tables(ctx context.Context) ([]string, error) {
	db := s.db
	sqlStr, args := db.dialect.ListTablesSQL()
	start := time.Now()
	rows, err := db.pool.QueryContext(ctx, sqlStr, args...)
	db.logSQL(sqlStr, time.Since(start), args...)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer s.release(rows, "catalog rows")

	var names []string
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		if db.dialect.IsBaseTable(kind) {
			names = append(names, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return names, nil
}

// TableNames lists the base tables, upper-cased and sorted.
func (s *Schema) TableNames(ctx context.Context) ([]string, error) {
	names, err := s.Tables(ctx)
	if err != nil {
		return nil, err
	}
	for i, n := range names {
		names[i] = strings.ToUpper(n)
	}
	sort.Strings(names)
	return names, nil
}

// lookup returns the catalog spelling of name, matched case-insensitively.
func (s *Schema) lookup(ctx context.Context, name string) (string, bool, error) {
	names, err := s.Tables(ctx)
	if err != nil {
		return "", false, err
	}
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return n, true, nil
		}
	}
	return "", false, nil
}

// TableNameExists reports whether a base table called name exists, ignoring case.
func (s *Schema) TableNameExists(ctx context.Context, name string) (bool, error) {
	_, ok, err := s.lookup(ctx, name)
	return ok, err
}

// TableExists reports whether the table of entity exists.
func (s *Schema) TableExists(ctx context.Context, entity any) (bool, error) {
	m, err := s.db.Metadata(entity)
	if err != nil {
		return false, err
	}
	return s.TableNameExists(ctx, m.TableName)
}

// CreateTable runs CREATE TABLE and then one CREATE INDEX per declared
// index. A failing statement does not undo the ones before it.
func (s *Schema) CreateTable(ctx context.Context, entity any) error {
	m, err := s.db.Metadata(entity)
	if err != nil {
		return err
	}

	sqlStr, args := s.db.dialect.CreateTableSQL(m)
	if err := s.execDDL(ctx, "create table", m.TableName, sqlStr, args); err != nil {
		return err
	}
	for _, idx := range m.Indexes {
		sqlStr, args := s.db.dialect.CreateIndexSQL(m.TableName, idx)
		if err := s.execDDL(ctx, "create index", m.TableName, sqlStr, args); err != nil {
			return err
		}
	}
	return nil
}

// CreateTableIfNotExisting creates the table of entity unless it exists.
func (s *Schema) CreateTableIfNotExisting(ctx context.Context, entity any) error {
	m, err := s.db.Metadata(entity)
	if err != nil {
		return err
	}
	exists, err := s.TableNameExists(ctx, m.TableName)
	if err != nil {
		return err
	}
	if exists {
		s.db.logger.Info("table %s already exists", m.TableName)
		return nil
	}
	return s.CreateTable(ctx, entity)
}

// AddField adds the column of one declared field to the table of entity.
func (s *Schema) AddField(ctx context.Context, entity any, column string) error {
	m, err := s.db.Metadata(entity)
	if err != nil {
		return err
	}
	field := m.FieldByColumn(column)
	if field == nil {
		field = m.FieldByName(column)
	}
	if field == nil {
		return fmt.Errorf("%w: %s has no field for column %q", ErrInvalidModel, m.Name(), column)
	}
	sqlStr, args := s.db.dialect.AddColumnSQL(m.TableName, field)
	return s.execDDL(ctx, "add column", m.TableName, sqlStr, args)
}

// AddMissingFields adds every declared column the live table lacks and
// returns the columns it added.
func (s *Schema) AddMissingFields(ctx context.Context, entity any) ([]string, error) {
	m, err := s.db.Metadata(entity)
	if err != nil {
		return nil, err
	}
	live := s.LiveColumns(ctx, m.TableName)
	if len(live) == 0 {
		return nil, &PersistenceError{Op: "add missing fields", Table: m.TableName, Err: fmt.Errorf("no live columns found")}
	}

	var added []string
	for _, field := range m.Fields {
		if _, ok := live[strings.ToUpper(field.Column)]; ok {
			continue
		}
		sqlStr, args := s.db.dialect.AddColumnSQL(m.TableName, field)
		if err := s.execDDL(ctx, "add column", m.TableName, sqlStr, args); err != nil {
			return added, err
		}
		added = append(added, field.Column)
	}
	return added, nil
}

// DropTable drops the table of entity.
func (s *Schema) DropTable(ctx context.Context, entity any) error {
	m, err := s.db.Metadata(entity)
	if err != nil {
		return err
	}
	return s.DropTableName(ctx, m.TableName)
}

// DropTableName drops the table called name, matched case-insensitively
// against the catalog when possible.
func (s *Schema) DropTableName(ctx context.Context, name string) error {
	if actual, ok, err := s.lookup(ctx, name); err == nil && ok {
		name = actual
	}
	sqlStr, args := s.db.dialect.DropTableSQL(name)
	return s.execDDL(ctx, "drop table", name, sqlStr, args)
}

// CanRead reports whether the table of entity answers a trivial select.
func (s *Schema) CanRead(ctx context.Context, entity any) bool {
	m, err := s.db.Metadata(entity)
	if err != nil {
		s.db.logger.Warn("can read: %v", err)
		return false
	}
	return s.CanReadTable(ctx, m.TableName)
}

// CanReadTable reports whether table answers a trivial select. Failures
// are logged, never returned.
func (s *Schema) CanReadTable(ctx context.Context, table string) bool {
	db := s.db
	sqlStr, args := db.dialect.ProbeSQL(table)
	start := time.Now()
	rows, err := db.pool.QueryContext(ctx, sqlStr, args...)
	db.logSQL(sqlStr, time.Since(start), args...)
	if err != nil {
		s.probeFailed(table, err)
		return false
	}
	s.release(rows, "probe rows")
	return true
}

// LiveColumns describes the columns of table keyed by upper-case name. A
// failed probe is logged and yields an empty map.
func (s *Schema) LiveColumns(ctx context.Context, table string) map[string]LiveColumn {
	cols := s.OrderedColumns(ctx, table)
	columns := make(map[string]LiveColumn, len(cols))
	for _, col := range cols {
		columns[strings.ToUpper(col.Name)] = col
	}
	return columns
}

// OrderedColumns is LiveColumns in the order the database reports them.
func (s *Schema) OrderedColumns(ctx context.Context, table string) []LiveColumn {
	db := s.db

	sqlStr, args := db.dialect.ProbeSQL(table)
	start := time.Now()
	rows, err := db.pool.QueryContext(ctx, sqlStr, args...)
	db.logSQL(sqlStr, time.Since(start), args...)
	if err != nil {
		s.probeFailed(table, err)
		return nil
	}
	defer s.release(rows, "probe rows")

	cts, err := rows.ColumnTypes()
	if err != nil {
		s.probeFailed(table, err)
		return nil
	}
	columns := make([]LiveColumn, 0, len(cts))
	for _, ct := range cts {
		col := LiveColumn{
			Name:         ct.Name(),
			DatabaseType: ct.DatabaseTypeName(),
			Nullable:     true,
		}
		if nullable, ok := ct.Nullable(); ok {
			col.Nullable = nullable
		}
		st, size, precision, ok := types.ParseSQLType(col.DatabaseType)
		if ok {
			col.SQLType = st
		}
		if length, ok := ct.Length(); ok && length > 0 && length < 1<<31 {
			col.Size = int(length)
		} else if p, sc, ok := ct.DecimalSize(); ok {
			col.Size, col.Precision = int(p), int(sc)
		} else {
			col.Size, col.Precision = size, precision
		}
		columns = append(columns, col)
	}
	return columns
}

// FieldExists reports whether table has column, ignoring case.
func (s *Schema) FieldExists(ctx context.Context, table, column string) bool {
	_, ok := s.LiveColumns(ctx, table)[strings.ToUpper(column)]
	return ok
}

// Sync creates each entity's table if missing and adds missing columns.
func (s *Schema) Sync(ctx context.Context, entities ...any) error {
	for _, entity := range entities {
		if err := s.CreateTableIfNotExisting(ctx, entity); err != nil {
			return err
		}
		added, err := s.AddMissingFields(ctx, entity)
		if err != nil {
			return err
		}
		if len(added) > 0 {
			m, _ := s.db.Metadata(entity)
			s.db.logger.Info("added columns %s to %s", strings.Join(added, ", "), m.TableName)
		}
	}
	return nil
}

// execDDL runs one statement. With manual commit the statement gets its own
// transaction, committed on success and rolled back on failure.
func (s *Schema) execDDL(ctx context.Context, op, table, sqlStr string, args []any) error {
	db := s.db
	wrap := func(err error) error {
		return &PersistenceError{Op: op, Table: table, Statement: sqlStr, Err: err}
	}

	if !db.manualCommit {
		start := time.Now()
		_, err := db.pool.ExecContext(ctx, sqlStr, args...)
		db.logSQL(sqlStr, time.Since(start), args...)
		if err != nil {
			return wrap(err)
		}
		return nil
	}

	tx, err := db.pool.BeginTx(ctx, nil)
	if err != nil {
		return wrap(err)
	}
	start := time.Now()
	_, err = tx.ExecContext(ctx, sqlStr, args...)
	db.logSQL(sqlStr, time.Since(start), args...)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Warn("rollback after failed %s on %s: %v", op, table, rbErr)
		}
		return wrap(err)
	}
	if err := tx.Commit(); err != nil {
		return wrap(err)
	}
	return nil
}

func (s *Schema) probeFailed(table string, err error) {
	l := s.db.logger.WithFields(map[string]any{"table": table})
	if s.db.dialect.IsMissingTable(err) {
		l.Debug("table is not readable: %v", err)
		return
	}
	l.Warn("table is not readable: %v", err)
}

func (s *Schema) release(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		s.db.logger.Warn("closing %s: %v", what, err)
	}
}
