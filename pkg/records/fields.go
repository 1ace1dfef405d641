package records

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xorcare/pointer"
)

// Field readers over raw Firestore data. None of them fail: a missing or
// mistyped value reads as the zero value and callers apply their fallback.

func str(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// firstStr returns the first non-empty string among keys.
func firstStr(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := str(m, k); s != "" {
			return s
		}
	}
	return ""
}

func strOr(m map[string]interface{}, key, def string) string {
	if s := str(m, key); s != "" {
		return s
	}
	return def
}

func nested(m map[string]interface{}, key string) map[string]interface{} {
	if n, ok := m[key].(map[string]interface{}); ok {
		return n
	}
	return map[string]interface{}{}
}

func num(m map[string]interface{}, key string) (float64, bool) {
	var f float64
	switch v := m[key].(type) {
	case int64:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case float64:
		f = v
	case float32:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// floatOr returns the numeric value at key, or def when it is missing or zero.
func floatOr(m map[string]interface{}, def float64, keys ...string) float64 {
	for _, k := range keys {
		if f, ok := num(m, k); ok && f != 0 {
			return f
		}
	}
	return def
}

func intOr(m map[string]interface{}, key string, def int) int {
	return int(floatOr(m, float64(def), key))
}

func optInt(m map[string]interface{}, keys ...string) *int {
	for _, k := range keys {
		if f, ok := num(m, k); ok && f != 0 {
			return pointer.Int(int(f))
		}
	}
	return nil
}

func boolOr(m map[string]interface{}, key string, def bool) bool {
	if b, ok := m[key].(bool); ok {
		return b
	}
	return def
}

func strSlice(m map[string]interface{}, key string) []string {
	out := []string{}
	switch v := m[key].(type) {
	case []string:
		out = append(out, v...)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}

func mapSlice(m map[string]interface{}, key string) []map[string]interface{} {
	var out []map[string]interface{}
	items, _ := m[key].([]interface{})
	for _, item := range items {
		if n, ok := item.(map[string]interface{}); ok {
			out = append(out, n)
		}
	}
	return out
}

func timeAt(m map[string]interface{}, keys ...string) *time.Time {
	for _, k := range keys {
		switch v := m[k].(type) {
		case time.Time:
			if !v.IsZero() {
				return pointer.Time(v)
			}
		case *time.Time:
			if v != nil && !v.IsZero() {
				return pointer.Time(*v)
			}
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return pointer.Time(t)
			}
		}
	}
	return nil
}
