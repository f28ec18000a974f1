package types

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SQLType is a vendor-neutral SQL type code.
type SQLType int

const (
	Null SQLType = iota
	SmallInt
	Integer
	BigInt
	Decimal
	Real
	Double
	Char
	Varchar
	Text
	Boolean
	Date
	Time
	Timestamp
	Binary
	Blob
)

var sqlTypeNames = [...]string{
	Null:      "NULL",
	SmallInt:  "SMALLINT",
	Integer:   "INTEGER",
	BigInt:    "BIGINT",
	Decimal:   "DECIMAL",
	Real:      "REAL",
	Double:    "DOUBLE",
	Char:      "CHAR",
	Varchar:   "VARCHAR",
	Text:      "TEXT",
	Boolean:   "BOOLEAN",
	Date:      "DATE",
	Time:      "TIME",
	Timestamp: "TIMESTAMP",
	Binary:    "BINARY",
	Blob:      "BLOB",
}

func (t SQLType) String() string {
	if t >= 0 && int(t) < len(sqlTypeNames) {
		return sqlTypeNames[t]
	}
	return fmt.Sprintf("SQLType(%d)", int(t))
}

// IsIntegral reports whether the type holds whole numbers.
func (t SQLType) IsIntegral() bool {
	return t == SmallInt || t == Integer || t == BigInt
}

// Sized reports whether DDL for the type carries a length.
func (t SQLType) Sized() bool {
	return t == Char || t == Varchar || t == Binary
}

// aliases maps vendor spellings (upper case, without size) to type codes.
var aliases = map[string]SQLType{
	"TINYINT":                     SmallInt,
	"SMALLINT":                    SmallInt,
	"INT2":                        SmallInt,
	"SMALLSERIAL":                 SmallInt,
	"MEDIUMINT":                   Integer,
	"INT":                         Integer,
	"INT4":                        Integer,
	"INTEGER":                     Integer,
	"SERIAL":                      Integer,
	"BIGINT":                      BigInt,
	"INT8":                        BigInt,
	"BIGSERIAL":                   BigInt,
	"DECIMAL":                     Decimal,
	"NUMERIC":                     Decimal,
	"NUMBER":                      Decimal,
	"REAL":                        Real,
	"FLOAT":                       Real,
	"FLOAT4":                      Real,
	"DOUBLE":                      Double,
	"DOUBLE PRECISION":            Double,
	"FLOAT8":                      Double,
	"CHAR":                        Char,
	"CHARACTER":                   Char,
	"BPCHAR":                      Char,
	"UUID":                        Char,
	"VARCHAR":                     Varchar,
	"CHARACTER VARYING":           Varchar,
	"NVARCHAR":                    Varchar,
	"VARCHAR2":                    Varchar,
	"TEXT":                        Text,
	"TINYTEXT":                    Text,
	"MEDIUMTEXT":                  Text,
	"LONGTEXT":                    Text,
	"CLOB":                        Text,
	"JSON":                        Text,
	"JSONB":                       Text,
	"BOOL":                        Boolean,
	"BOOLEAN":                     Boolean,
	"BIT":                         Boolean,
	"DATE":                        Date,
	"TIME":                        Time,
	"TIMETZ":                      Time,
	"TIME WITHOUT TIME ZONE":      Time,
	"DATETIME":                    Timestamp,
	"TIMESTAMP":                   Timestamp,
	"TIMESTAMPTZ":                 Timestamp,
	"TIMESTAMP WITH TIME ZONE":    Timestamp,
	"TIMESTAMP WITHOUT TIME ZONE": Timestamp,
	"BINARY":                      Binary,
	"VARBINARY":                   Binary,
	"BLOB":                        Blob,
	"TINYBLOB":                    Blob,
	"MEDIUMBLOB":                  Blob,
	"LONGBLOB":                    Blob,
	"BYTEA":                       Blob,
}

// ParseSQLType resolves a vendor type name such as "VARCHAR(100)" or
// "NUMERIC(10,2)". Size and precision are the numbers found in parentheses,
// zero when absent. Non-numeric arguments make the name unknown.
func ParseSQLType(name string) (t SQLType, size, precision int, ok bool) {
	s := strings.ToUpper(strings.TrimSpace(name))
	if idx := strings.Index(s, "("); idx >= 0 {
		args := s[idx+1:]
		if end := strings.Index(args, ")"); end >= 0 {
			args = args[:end]
		}
		parts := strings.Split(args, ",")
		var err error
		if size, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil || size < 0 {
			return Null, 0, 0, false
		}
		if len(parts) > 1 {
			if precision, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil || precision < 0 {
				return Null, 0, 0, false
			}
		}
		s = strings.TrimSpace(s[:idx])
	}
	s = strings.TrimSuffix(s, " UNSIGNED")
	t, ok = aliases[s]
	return t, size, precision, ok
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	bytesType   = reflect.TypeOf([]byte(nil))
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
)

// DefaultSQLType picks the SQL type used for a Go type when the declaration
// names none.
func DefaultSQLType(typ reflect.Type) (SQLType, bool) {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	switch typ {
	case timeType:
		return Timestamp, true
	case bytesType:
		return Blob, true
	case decimalType:
		return Decimal, true
	case uuidType:
		return Char, true
	}
	switch typ.Kind() {
	case reflect.Bool:
		return Boolean, true
	case reflect.Int8, reflect.Int16, reflect.Uint8:
		return SmallInt, true
	case reflect.Int32, reflect.Uint16:
		return Integer, true
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return BigInt, true
	case reflect.Float32:
		return Real, true
	case reflect.Float64:
		return Double, true
	case reflect.String:
		return Varchar, true
	case reflect.Slice:
		if typ.Elem().Kind() == reflect.Uint8 {
			return Blob, true
		}
	}
	return Null, false
}
