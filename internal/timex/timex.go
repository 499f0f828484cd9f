// Package timex provides small time helpers shared by config parsing and the
// SQLite repositories: a JSON-friendly Duration wrapper and the canonical
// DATETIME column format.
package timex

import (
	"encoding/json"
	"errors"
	"time"
)

// TimestampLayout is the format used for DATETIME columns in the local
// store ("YYYY-MM-DD HH:MM:SS", always UTC).
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders t in the canonical column format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a DATETIME column value. An empty string yields the
// zero time without error so nullable columns scan cleanly.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(TimestampLayout, s)
}

// Duration wraps time.Duration so JSON config files can specify intervals
// either as strings like "5m" or as integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return errors.New("invalid duration")
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
