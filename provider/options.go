package provider

import (
	"fmt"
	"strconv"
	"time"
)

// String reads a string option, falling back to def when absent or empty.
func String(opts map[string]any, key, def string) string {
	if v, ok := opts[key]; ok {
		if s := fmt.Sprint(v); s != "" && v != nil {
			return s
		}
	}
	return def
}

// Duration reads a duration option given as time.Duration, a parseable
// string ("90s") or a number of seconds.
func Duration(opts map[string]any, key string, def time.Duration) time.Duration {
	switch v := opts[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	}
	return def
}

// Int reads an integer option.
func Int(opts map[string]any, key string, def int) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			return n
		}
	}
	return def
}

// Bool reads a boolean option given as bool or a parseable string.
func Bool(opts map[string]any, key string, def bool) bool {
	switch v := opts[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
