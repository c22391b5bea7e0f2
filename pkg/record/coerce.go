package record

import (
	"fmt"
	"strconv"
	"strings"
)

// Coerce converts value into the Go representation stores use for col:
// string, int64, float64 or bool. Nil passes through; anything that cannot be
// converted yields an error wrapping ErrInvalidValue.
func Coerce(col Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if rec, ok := value.(*Record); ok {
		value = rec.PK()
		if value == nil {
			return nil, fmt.Errorf("%w: %s references an unsaved record", ErrInvalidValue, col.Name)
		}
	}

	switch col.Type {
	case ColumnString, ColumnText, "":
		switch v := value.(type) {
		case string:
			return v, nil
		case fmt.Stringer:
			return v.String(), nil
		default:
			return fmt.Sprint(v), nil
		}
	case ColumnInteger, ColumnReference:
		n, ok := Int64(value)
		if !ok {
			return nil, fmt.Errorf("%w: %s expects an integer, got %T", ErrInvalidValue, col.Name, value)
		}
		return n, nil
	case ColumnFloat:
		switch v := value.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case interface{ Float64() (float64, error) }:
			f, err := v.Float64()
			if err != nil {
				return nil, fmt.Errorf("%w: %s expects a number", ErrInvalidValue, col.Name)
			}
			return f, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s expects a number", ErrInvalidValue, col.Name)
			}
			return f, nil
		default:
			if n, ok := Int64(v); ok {
				return float64(n), nil
			}
			return nil, fmt.Errorf("%w: %s expects a number, got %T", ErrInvalidValue, col.Name, value)
		}
	case ColumnBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("%w: %s expects a boolean", ErrInvalidValue, col.Name)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("%w: %s expects a boolean, got %T", ErrInvalidValue, col.Name, value)
		}
	default:
		return nil, fmt.Errorf("%w: %s has unsupported column type %q", ErrInvalidValue, col.Name, col.Type)
	}
}

// CoerceValues returns the declared column values of rec in column order,
// coerced for storage.
func CoerceValues(rec *Record) ([]any, error) {
	values := make([]any, 0, len(rec.Meta.Columns))
	for _, col := range rec.Meta.Columns {
		v, err := Coerce(col, rec.Get(col.Name))
		if err != nil {
			return nil, err
		}
		if v == nil && !col.Nullable {
			return nil, fmt.Errorf("%w: %s.%s may not be null", ErrIntegrity, rec.Meta.Name, col.Name)
		}
		values = append(values, v)
	}
	return values, nil
}
