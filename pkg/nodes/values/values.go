// Package values implements the loose value semantics shared by node handlers:
// numeric coercion, equality, containment and emptiness over JSON-like data.
package values

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dukex/nodeflow/pkg/state"
)

// ToFloat converts numbers and numeric strings to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}

		return f, true
	default:
		return 0, false
	}
}

// ToInt converts a numeric value to int, saturating at the int range. NaN is
// not a number.
func ToInt(v any) (int, bool) {
	f, ok := ToFloat(v)
	if !ok || math.IsNaN(f) {
		return 0, false
	}

	switch {
	case f >= math.MaxInt:
		return math.MaxInt, true
	case f <= math.MinInt:
		return math.MinInt, true
	}

	return int(f), true
}

// Equal compares numerically when both sides are numeric, then by string form.
func Equal(a, b any) bool {
	if af, ok := ToFloat(a); ok {
		if bf, ok := ToFloat(b); ok {
			return af == bf
		}
	}

	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
	}

	return state.Stringify(a) == state.Stringify(b)
}

// Contains reports whether haystack contains needle: substring for strings,
// element for lists, key for maps.
func Contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case nil:
		return false
	case string:
		return strings.Contains(h, state.Stringify(needle))
	case []any:
		for _, item := range h {
			if Equal(item, needle) {
				return true
			}
		}

		return false
	case map[string]any:
		_, ok := h[state.Stringify(needle)]

		return ok
	}

	rv := reflect.ValueOf(haystack)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		for i := range rv.Len() {
			if Equal(rv.Index(i).Interface(), needle) {
				return true
			}
		}

		return false
	}

	return strings.Contains(fmt.Sprint(haystack), state.Stringify(needle))
}

// Length returns the length of strings (in runes), lists and maps.
func Length(v any) (int, bool) {
	switch t := v.(type) {
	case string:
		return utf8.RuneCountInString(t), true
	case []any:
		return len(t), true
	case map[string]any:
		return len(t), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len(), true
	default:
		return 0, false
	}
}

// IsEmpty reports nil, empty strings (after trimming), and empty collections.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}

	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}

	if n, ok := Length(v); ok {
		return n == 0
	}

	return false
}

// ToSlice converts list-like values to []any. ok is false for scalars.
func ToSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case []any:
		return t, true
	case string, map[string]any:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := range rv.Len() {
		out[i] = rv.Index(i).Interface()
	}

	return out, true
}

// TypeName returns the JSON type name of a value.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int32, int64, uint, uint64:
		return "integer"
	case float32, float64:
		return "number"
	case map[string]any:
		return "object"
	}

	if _, ok := ToSlice(v); ok {
		return "array"
	}

	return fmt.Sprintf("%T", v)
}
