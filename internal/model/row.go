package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RowSource is anything that can be flattened into a store row
type RowSource interface {
	FieldNames() []string
	Values() map[string]any
}

// Stringify coerces a field value to its store representation.
// Lists are joined with "; ".
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, "; ")
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = Stringify(item)
		}
		return strings.Join(parts, "; ")
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(TimestampLayout)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Flatten renders src as a row in header order. Fields missing from src
// become empty strings.
func Flatten(src RowSource, headers []string) []string {
	values := src.Values()
	row := make([]string, len(headers))
	for i, h := range headers {
		row[i] = Stringify(values[h])
	}
	return row
}

// MapRecord is a RowSource backed by plain strings, used for rows loaded
// from an earlier export
type MapRecord struct {
	Fields []string
	Data   map[string]string
}

// FieldNames implements RowSource
func (m MapRecord) FieldNames() []string {
	out := make([]string, len(m.Fields))
	copy(out, m.Fields)
	return out
}

// Values implements RowSource
func (m MapRecord) Values() map[string]any {
	out := make(map[string]any, len(m.Data))
	for k, v := range m.Data {
		out[k] = v
	}
	return out
}
