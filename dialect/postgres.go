package dialect

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/shrek82/tabula/model"
	"github.com/shrek82/tabula/types"
)

// undefined_table
const pgUndefinedTable = "42P01"

// PostgreSQL dialect implementation. The same SQL serves lib/pq ("postgres")
// and pgx's database/sql driver ("pgx"); only error types differ.
type postgres struct {
	base
}

func init() {
	Register("postgres", newPostgres("postgres"))
	Register("pgx", newPostgres("pgx"))
}

func newPostgres(name string) *postgres {
	d := &postgres{}
	d.base = base{
		name:  name,
		quote: '"',
		// PostgreSQL uses $1, $2, $3... for placeholders
		placeholder: func(index int) string { return fmt.Sprintf("$%d", index) },
		typeOf:      postgresType,
	}
	return d
}

func postgresType(field *model.Field) string {
	if field.IsAuto {
		switch field.SQLType {
		case types.SmallInt:
			return "SMALLSERIAL"
		case types.Integer:
			return "SERIAL"
		case types.BigInt:
			return "BIGSERIAL"
		}
	}
	switch field.SQLType {
	case types.SmallInt:
		return "SMALLINT"
	case types.Integer:
		return "INTEGER"
	case types.BigInt:
		return "BIGINT"
	case types.Decimal:
		return sized("NUMERIC", field, defaultDecimalSize, defaultDecimalPrecision)
	case types.Real:
		return "REAL"
	case types.Double:
		return "DOUBLE PRECISION"
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
		return "TIMESTAMP WITH TIME ZONE"
	case types.Binary, types.Blob:
		return "BYTEA"
	}
	panic(fmt.Sprintf("invalid sql type %s for field %s", field.SQLType, field.Name))
}

func (d *postgres) InsertSQL(table string, columns []string, returning string) (string, []any) {
	sql, args := d.base.InsertSQL(table, columns, "")
	if returning != "" {
		sql += " RETURNING " + d.Quote(returning)
	}
	return sql, args
}

func (d *postgres) SupportsReturning() bool { return true }

func (d *postgres) ListTablesSQL() (string, []any) {
	return "SELECT table_name, table_type FROM information_schema.tables WHERE table_schema = current_schema()", nil
}

func (d *postgres) IsMissingTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUndefinedTable
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}
