package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Options is a free-form option bag attached to a source. Values arrive from
// JSON or YAML, so numbers may be float64, int or string; accessors coerce
// and fall back to the supplied default on missing or malformed values.
type Options map[string]any

// String returns the option as a trimmed string.
func (o Options) String(key, def string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return def
	}
	return s
}

// Bool returns the option as a bool. Strings "true"/"false"/"1"/"0" are accepted.
func (o Options) Bool(key string, def bool) bool {
	switch t := o[key].(type) {
	case bool:
		return t
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// Int returns the option as an int.
func (o Options) Int(key string, def int) int {
	switch t := o[key].(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return def
		}
		return n
	default:
		return def
	}
}

// DurationMS reads an integer millisecond option.
func (o Options) DurationMS(key string, def time.Duration) time.Duration {
	ms := o.Int(key, -1)
	if ms < 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
