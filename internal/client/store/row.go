package store

import (
	"fmt"
	"strconv"
	"time"

	"github.com/akvo/dws-datapro-sub000/internal/timex"
)

// Typed accessors over generic rows. SQLite is dynamically typed, so each
// accessor coerces the storage classes a column can realistically hold and
// returns the zero value for NULL.

func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

func (r Row) Float64(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (r Row) Bool(col string) bool {
	return r.Int64(col) != 0
}

func (r Row) OptionalInt64(col string) *int64 {
	if r[col] == nil {
		return nil
	}
	v := r.Int64(col)
	return &v
}

// Time parses a DATETIME column; NULL or unparseable values yield the zero
// time.
func (r Row) Time(col string) time.Time {
	if v, ok := r[col].(time.Time); ok {
		return v
	}
	t, err := timex.ParseTimestamp(r.String(col))
	if err != nil {
		return time.Time{}
	}
	return t
}

// OptionalTime parses a nullable DATETIME column.
func (r Row) OptionalTime(col string) *time.Time {
	if r[col] == nil || r.String(col) == "" {
		return nil
	}
	t := r.Time(col)
	if t.IsZero() {
		return nil
	}
	return &t
}
