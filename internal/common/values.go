// Package common provides shared helpers for coercing and describing the
// scalar cell values that flow through keyword data.
package common

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// TimestampLayout is the layout used to write and recognise date-time cells.
const TimestampLayout = "2006-01-02 15:04:05-0700"

// ToInt64 converts integer types, integral floats and numeric strings to int64.
func ToInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, fmt.Errorf("uint value %d overflows int64 range", v)
		}
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("uint64 value %d overflows int64 range", v)
		}
		return int64(v), nil
	case float32:
		return floatToInt64(float64(v))
	case float64:
		return floatToInt64(v)
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

func floatToInt64(v float64) (int64, error) {
	if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
		return 0, fmt.Errorf("float value %g is not an integer", v)
	}
	return int64(v), nil
}

// ToFloat64 converts numeric types and numeric strings to float64.
func ToFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		if IsIntegerType(value) {
			i, err := ToInt64(value)
			return float64(i), err
		}
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}

// IsIntegerType checks if a value is of an integer type.
func IsIntegerType(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

// IsFloatType checks if a value is of a floating-point type.
func IsFloatType(value any) bool {
	switch value.(type) {
	case float32, float64:
		return true
	default:
		return false
	}
}

// FormatValue renders a cell value the way it is written to delimited text.
// Nil renders as the empty string.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case time.Time:
		return v.Format(TimestampLayout)
	case fmt.Stringer:
		return v.String()
	default:
		if IsIntegerType(v) {
			return fmt.Sprintf("%d", v)
		}
		return fmt.Sprintf("%v", v)
	}
}

// TypeName describes a value's type for error messages.
func TypeName(value any) string {
	switch value.(type) {
	case nil:
		return "nil"
	case string:
		return "string"
	case bool:
		return "bool"
	case time.Time:
		return "datetime"
	case []any, []string:
		return "list"
	case map[string]any:
		return "mapping"
	default:
		switch {
		case IsIntegerType(value):
			return "int"
		case IsFloatType(value):
			return "float"
		}
		return fmt.Sprintf("%T", value)
	}
}
