package dialect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/shrek82/tabula/model"
	"github.com/shrek82/tabula/types"
)

// SQLite dialect implementation
type sqlite struct {
	base
}

func init() {
	d := &sqlite{}
	d.base = base{
		name:       "sqlite3",
		quote:      '`',
		typeOf:     sqliteType,
		autoClause: func(*model.Field) string { return " AUTOINCREMENT" },
	}
	Register("sqlite3", d)
}

func sqliteType(field *model.Field) string {
	switch field.SQLType {
	case types.SmallInt, types.Integer, types.BigInt:
		return "INTEGER"
	case types.Decimal:
		return sized("NUMERIC", field, defaultDecimalSize, defaultDecimalPrecision)
	case types.Real:
		return "REAL"
	case types.Double:
		return "DOUBLE"
	case types.Char:
		return sized("CHAR", field, defaultLength, 0)
	case types.Varchar:
		return sized("VARCHAR", field, defaultLength, 0)
	case types.Text:
		return "TEXT"
	case types.Boolean:
		return "BOOLEAN"
	case types.Date:
		return "DATE"
	case types.Time:
		return "TIME"
	case types.Timestamp:
		return "DATETIME"
	case types.Binary, types.Blob:
		return "BLOB"
	}
	panic(fmt.Sprintf("invalid sql type %s for field %s", field.SQLType, field.Name))
}

// SQLite cannot add a UNIQUE column with ALTER TABLE.
func (d *sqlite) AddColumnSQL(table string, field *model.Field) (string, []any) {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.Quote(table), d.Quote(field.Column), d.typeOf(field)), nil
}

func (d *sqlite) ListTablesSQL() (string, []any) {
	return "SELECT name, type FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'", nil
}

func (d *sqlite) IsMissingTable(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrError && strings.Contains(se.Error(), "no such table")
	}
	return err != nil && strings.Contains(err.Error(), "no such table")
}
