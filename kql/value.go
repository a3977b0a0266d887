package kql

import (
	"fmt"
	"strconv"
	"time"
)

// Value is a single cell. Valid dynamic types:
//   - nil (the null marker)
//   - int64 (int)
//   - float64 (real)
//   - bool
//   - string
//   - time.Time (datetime, always UTC)
//   - time.Duration (timespan)
type Value interface{}

// TypeOf returns the scalar type tag for a cell.
func TypeOf(v Value) Type {
	switch v.(type) {
	case nil:
		return TypeNull
	case int64:
		return TypeInt
	case float64:
		return TypeReal
	case bool:
		return TypeBool
	case string:
		return TypeString
	case time.Time:
		return TypeDateTime
	case time.Duration:
		return TypeTimespan
	}
	return TypeNull
}

// FormatValue renders a cell for display and for make_list output.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case string:
		return val
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case time.Duration:
		return val.String()
	}
	return fmt.Sprintf("%v", v)
}
