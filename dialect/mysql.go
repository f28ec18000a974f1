package dialect

import (
	"errors"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/shrek82/tabula/model"
	"github.com/shrek82/tabula/types"
)

// ER_NO_SUCH_TABLE
const mysqlNoSuchTable = 1146

// MySQL dialect implementation
type mysql struct {
	base
}

func init() {
	d := &mysql{}
	d.base = base{
		name:       "mysql",
		quote:      '`',
		typeOf:     mysqlType,
		autoClause: func(*model.Field) string { return " AUTO_INCREMENT" },
	}
	Register("mysql", d)
}

func mysqlType(field *model.Field) string {
	switch field.SQLType {
	case types.SmallInt:
		return "SMALLINT"
	case types.Integer:
		return "INT"
	case types.BigInt:
		return "BIGINT"
	case types.Decimal:
		return sized("DECIMAL", field, defaultDecimalSize, defaultDecimalPrecision)
	case types.Real:
		return "FLOAT"
	case types.Double:
		return "DOUBLE"
	case types.Char:
		return sized("CHAR", field, defaultLength, 0)
	case types.Varchar:
		return sized("VARCHAR", field, defaultLength, 0)
	case types.Text:
		return "LONGTEXT"
	case types.Boolean:
		return "BOOLEAN"
	case types.Date:
		return "DATE"
	case types.Time:
		return "TIME(6)"
	case types.Timestamp:
		return "DATETIME(6)"
	case types.Binary:
		return sized("VARBINARY", field, defaultLength, 0)
	case types.Blob:
		return "LONGBLOB"
	}
	panic(fmt.Sprintf("invalid sql type %s for field %s", field.SQLType, field.Name))
}

func (d *mysql) ListTablesSQL() (string, []any) {
	return "SELECT table_name, table_type FROM information_schema.tables WHERE table_schema = DATABASE()", nil
}

func (d *mysql) IsMissingTable(err error) bool {
	var me *mysqldriver.MySQLError
	return errors.As(err, &me) && me.Number == mysqlNoSuchTable
}
