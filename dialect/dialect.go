package dialect

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shrek82/tabula/model"
	"github.com/shrek82/tabula/types"
)

// Dialect renders the SQL text that differs between databases and
// classifies driver errors.
type Dialect interface {
	// Name is the driver name the dialect is registered under
	Name() string
	// DataTypeOf returns the column type used in DDL for a field
	DataTypeOf(field *model.Field) string
	// Quote wraps a name (table or column) in database-specific quotes
	Quote(name string) string
	// Placeholder returns the bind marker for the 1-based parameter index
	Placeholder(index int) string
	// CreateTableSQL generates the CREATE TABLE statement for the given model
	CreateTableSQL(m *model.Model) (string, []any)
	// AddColumnSQL generates ALTER TABLE ... ADD COLUMN for one field
	AddColumnSQL(table string, field *model.Field) (string, []any)
	// CreateIndexSQL generates CREATE [UNIQUE] INDEX
	CreateIndexSQL(table string, idx *model.Index) (string, []any)
	// DropTableSQL generates DROP TABLE
	DropTableSQL(table string) (string, []any)
	// ListTablesSQL lists the catalog as (name, type) rows
	ListTablesSQL() (string, []any)
	// ProbeSQL selects every column of table without returning rows
	ProbeSQL(table string) (string, []any)
	// InsertSQL generates INSERT; returning names a column to read back, if supported
	InsertSQL(table string, columns []string, returning string) (string, []any)
	// UpdateSQL generates UPDATE ... WHERE pk = ?
	UpdateSQL(table string, columns []string, pk string) (string, []any)
	// DeleteSQL generates DELETE ... WHERE pk = ?
	DeleteSQL(table string, pk string) (string, []any)
	// SelectSQL generates SELECT columns FROM table [WHERE where]
	SelectSQL(table string, columns []string, where string) (string, []any)
	// SupportsReturning reports whether InsertSQL honours returning
	SupportsReturning() bool
	// IsBaseTable reports whether a catalog type value names a plain table
	IsBaseTable(kind string) bool
	// IsMissingTable reports whether err says the table does not exist
	IsMissingTable(err error) bool
}

var (
	dialects   = make(map[string]Dialect)
	dialectsMu sync.RWMutex
)

// Register registers a new dialect for a given driver name
func Register(name string, d Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[name] = d
}

// Get retrieves a registered dialect by driver name
func Get(name string) (Dialect, bool) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[name]
	return d, ok
}

// Names lists the registered driver names.
func Names() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// base carries the statement shapes shared by every dialect. Concrete
// dialects embed it and override what differs.
type base struct {
	name        string
	quote       byte
	placeholder func(index int) string
	typeOf      func(field *model.Field) string
	autoClause  func(field *model.Field) string
}

func (d *base) Name() string { return d.name }

func (d *base) Quote(name string) string {
	q := string(d.quote)
	return q + strings.ReplaceAll(name, q, q+q) + q
}

func (d *base) Placeholder(index int) string {
	if d.placeholder == nil {
		return "?"
	}
	return d.placeholder(index)
}

func (d *base) DataTypeOf(field *model.Field) string {
	return d.typeOf(field)
}

func (d *base) columnDef(field *model.Field) string {
	def := d.Quote(field.Column) + " " + d.typeOf(field)
	if field.IsPK {
		def += " PRIMARY KEY"
	} else if !field.Nullable {
		def += " NOT NULL"
	}
	if field.IsAuto && d.autoClause != nil {
		def += d.autoClause(field)
	}
	if field.Unique && !field.IsPK {
		def += " UNIQUE"
	}
	return def
}

func (d *base) CreateTableSQL(m *model.Model) (string, []any) {
	columns := make([]string, 0, len(m.Fields))
	for _, field := range m.Fields {
		columns = append(columns, d.columnDef(field))
	}
	sql := fmt.Sprintf("CREATE TABLE %s (%s)", d.Quote(m.TableName), strings.Join(columns, ", "))
	return sql, nil
}

func (d *base) AddColumnSQL(table string, field *model.Field) (string, []any) {
	def := d.Quote(field.Column) + " " + d.typeOf(field)
	if field.Unique {
		def += " UNIQUE"
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.Quote(table), def), nil
}

func (d *base) CreateIndexSQL(table string, idx *model.Index) (string, []any) {
	uniqueStr := ""
	if idx.Unique {
		uniqueStr = "UNIQUE "
	}
	sql := fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		uniqueStr,
		d.Quote(idx.Name),
		d.Quote(table),
		d.quoteAll(idx.Columns),
	)
	return sql, nil
}

func (d *base) DropTableSQL(table string) (string, []any) {
	return "DROP TABLE " + d.Quote(table), nil
}

func (d *base) ProbeSQL(table string) (string, []any) {
	return fmt.Sprintf("SELECT * FROM %s WHERE 1=0", d.Quote(table)), nil
}

func (d *base) InsertSQL(table string, columns []string, returning string) (string, []any) {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = d.Placeholder(i + 1)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Quote(table),
		d.quoteAll(columns),
		strings.Join(placeholders, ", "),
	)
	return sql, nil
}

func (d *base) UpdateSQL(table string, columns []string, pk string) (string, []any) {
	sets := make([]string, len(columns))
	for i, col := range columns {
		sets[i] = fmt.Sprintf("%s = %s", d.Quote(col), d.Placeholder(i+1))
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		d.Quote(table),
		strings.Join(sets, ", "),
		d.Quote(pk),
		d.Placeholder(len(columns)+1),
	)
	return sql, nil
}

func (d *base) DeleteSQL(table string, pk string) (string, []any) {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = %s", d.Quote(table), d.Quote(pk), d.Placeholder(1)), nil
}

func (d *base) SelectSQL(table string, columns []string, where string) (string, []any) {
	sql := fmt.Sprintf("SELECT %s FROM %s", d.quoteAll(columns), d.Quote(table))
	if where = strings.TrimSpace(where); where != "" {
		sql += " WHERE " + where
	}
	return sql, nil
}

func (d *base) SupportsReturning() bool { return false }

func (d *base) IsBaseTable(kind string) bool {
	switch strings.ToUpper(strings.TrimSpace(kind)) {
	case "TABLE", "BASE TABLE":
		return true
	}
	return false
}

func (d *base) quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.Quote(n)
	}
	return strings.Join(quoted, ", ")
}

// sized renders NAME(size) or NAME(size,precision), falling back to def
// when the field carries no size.
func sized(name string, field *model.Field, defSize, defPrecision int) string {
	size, precision := field.Size, field.Precision
	if size == 0 {
		size, precision = defSize, defPrecision
	}
	if field.SQLType == types.Decimal {
		return fmt.Sprintf("%s(%d,%d)", name, size, precision)
	}
	return fmt.Sprintf("%s(%d)", name, size)
}

// Decimal columns declared without a size get DECIMAL(19,4).
const (
	defaultDecimalSize      = 19
	defaultDecimalPrecision = 4
	defaultLength           = 255
)
