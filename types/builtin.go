package types

import (
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	intKinds   = []reflect.Kind{reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64}
	uintKinds  = []reflect.Kind{reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64}
	floatKinds = []reflect.Kind{reflect.Float32, reflect.Float64}
)

func registerBuiltins(r *Registry) {
	for _, st := range []SQLType{SmallInt, Integer, BigInt} {
		for _, k := range intKinds {
			r.RegisterKind(k, st, intAdapter)
		}
		for _, k := range uintKinds {
			r.RegisterKind(k, st, uintAdapter)
		}
	}
	for _, st := range []SQLType{Real, Double, Decimal} {
		for _, k := range floatKinds {
			r.RegisterKind(k, st, floatAdapter)
		}
	}
	for _, st := range []SQLType{Char, Varchar, Text} {
		r.RegisterKind(reflect.String, st, stringAdapter)
	}
	for _, st := range []SQLType{Boolean, SmallInt, Integer} {
		r.RegisterKind(reflect.Bool, st, boolAdapter)
	}
	for _, st := range []SQLType{Binary, Blob} {
		r.RegisterKind(reflect.Slice, st, bytesAdapter)
	}

	r.Register(timeType, Timestamp, timeAdapter(Timestamp))
	r.Register(timeType, Date, timeAdapter(Date))
	r.Register(timeType, Time, timeAdapter(Time))

	r.Register(decimalType, Decimal, decimalAdapter)
	r.Register(decimalType, Varchar, decimalAdapter)
	r.Register(decimalType, Text, decimalAdapter)

	r.Register(uuidType, Char, uuidAdapter(false))
	r.Register(uuidType, Varchar, uuidAdapter(false))
	r.Register(uuidType, Binary, uuidAdapter(true))
}

func intAdapter(typ reflect.Type, _ SQLType) (Adapter, bool) {
	return Adapter{
		Read: func(src any) (any, error) {
			i, err := asInt64(src)
			if err != nil {
				return nil, err
			}
			v := reflect.New(typ).Elem()
			if v.OverflowInt(i) {
				return nil, fmt.Errorf("value %d overflows %v", i, typ)
			}
			v.SetInt(i)
			return v.Interface(), nil
		},
		Write: func(v any) (driver.Value, error) {
			return reflect.ValueOf(v).Int(), nil
		},
	}, true
}

func uintAdapter(typ reflect.Type, _ SQLType) (Adapter, bool) {
	return Adapter{
		Read: func(src any) (any, error) {
			u, err := asUint64(src)
			if err != nil {
				return nil, err
			}
			v := reflect.New(typ).Elem()
			if v.OverflowUint(u) {
				return nil, fmt.Errorf("value %d overflows %v", u, typ)
			}
			v.SetUint(u)
			return v.Interface(), nil
		},
		Write: func(v any) (driver.Value, error) {
			u := reflect.ValueOf(v).Uint()
			if u > math.MaxInt64 {
				return nil, fmt.Errorf("value %d cannot be bound as a signed 64-bit integer", u)
			}
			return int64(u), nil
		},
	}, true
}

func floatAdapter(typ reflect.Type, _ SQLType) (Adapter, bool) {
	return Adapter{
		Read: func(src any) (any, error) {
			f, err := asFloat64(src)
			if err != nil {
				return nil, err
			}
			v := reflect.New(typ).Elem()
			if v.OverflowFloat(f) {
				return nil, fmt.Errorf("value %v overflows %v", f, typ)
			}
			v.SetFloat(f)
			return v.Interface(), nil
		},
		Write: func(v any) (driver.Value, error) {
			return reflect.ValueOf(v).Float(), nil
		},
	}, true
}

func stringAdapter(typ reflect.Type, _ SQLType) (Adapter, bool) {
	return Adapter{
		Read: func(src any) (any, error) {
			s, err := asString(src)
			if err != nil {
				return nil, err
			}
			v := reflect.New(typ).Elem()
			v.SetString(s)
			return v.Interface(), nil
		},
		Write: func(v any) (driver.Value, error) {
			return reflect.ValueOf(v).String(), nil
		},
	}, true
}

func boolAdapter(typ reflect.Type, sqlType SQLType) (Adapter, bool) {
	return Adapter{
		Read: func(src any) (any, error) {
			b, err := asBool(src)
			if err != nil {
				return nil, err
			}
			v := reflect.New(typ).Elem()
			v.SetBool(b)
			return v.Interface(), nil
		},
		Write: func(v any) (driver.Value, error) {
			b := reflect.ValueOf(v).Bool()
			if sqlType == Boolean {
				return b, nil
			}
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		},
	}, true
}

func bytesAdapter(typ reflect.Type, _ SQLType) (Adapter, bool) {
	if typ.Elem().Kind() != reflect.Uint8 {
		return Adapter{}, false
	}
	return Adapter{
		Read: func(src any) (any, error) {
			b, err := asBytes(src)
			if err != nil {
				return nil, err
			}
			if b == nil {
				return reflect.Zero(typ).Interface(), nil
			}
			return reflect.ValueOf(b).Convert(typ).Interface(), nil
		},
		Write: func(v any) (driver.Value, error) {
			return reflect.ValueOf(v).Bytes(), nil
		},
	}, true
}

func timeAdapter(sqlType SQLType) Adapter {
	return Adapter{
		Read: func(src any) (any, error) {
			return asTime(src)
		},
		Write: func(v any) (driver.Value, error) {
			t := v.(time.Time)
			if sqlType == Time {
				return t.Format("15:04:05.999999999"), nil
			}
			return t, nil
		},
	}
}

var decimalAdapter = Adapter{
	Read: func(src any) (any, error) {
		switch v := src.(type) {
		case nil:
			return decimal.Zero, nil
		case float64:
			return decimal.NewFromFloat(v), nil
		case int64:
			return decimal.NewFromInt(v), nil
		}
		s, err := asString(src)
		if err != nil {
			return nil, err
		}
		return decimal.NewFromString(s)
	},
	Write: func(v any) (driver.Value, error) {
		return v.(decimal.Decimal).String(), nil
	},
}

func uuidAdapter(binary bool) Adapter {
	return Adapter{
		Read: func(src any) (any, error) {
			switch v := src.(type) {
			case nil:
				return uuid.Nil, nil
			case []byte:
				if len(v) == 16 {
					return uuid.FromBytes(v)
				}
				return uuid.ParseBytes(v)
			case string:
				return uuid.Parse(v)
			}
			return nil, fmt.Errorf("cannot convert %T to a uuid", src)
		},
		Write: func(v any) (driver.Value, error) {
			u := v.(uuid.UUID)
			if binary {
				b := make([]byte, len(u))
				copy(b, u[:])
				return b, nil
			}
			return u.String(), nil
		},
	}
}
