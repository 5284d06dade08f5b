package sandbox

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"go.starlark.net/starlark"
)

// toStarlark converts a JSON-like Go value into a fresh Starlark value.
func toStarlark(value any) (starlark.Value, error) {
	switch v := value.(type) {
	case nil:
		return starlark.None, nil
	case starlark.Value:
		return v, nil
	case bool:
		return starlark.Bool(v), nil
	case string:
		return starlark.String(v), nil
	case int:
		return starlark.MakeInt(v), nil
	case int8:
		return starlark.MakeInt64(int64(v)), nil
	case int16:
		return starlark.MakeInt64(int64(v)), nil
	case int32:
		return starlark.MakeInt64(int64(v)), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case uint:
		return starlark.MakeUint(v), nil
	case uint8:
		return starlark.MakeUint64(uint64(v)), nil
	case uint16:
		return starlark.MakeUint64(uint64(v)), nil
	case uint32:
		return starlark.MakeUint64(uint64(v)), nil
	case uint64:
		return starlark.MakeUint64(v), nil
	case float32:
		return starlark.Float(v), nil
	case float64:
		// JSON decoding loses the int/float distinction; whole values become ints.
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return starlark.MakeInt64(int64(v)), nil
		}

		return starlark.Float(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return starlark.MakeInt64(i), nil
		}

		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", v, err)
		}

		return starlark.Float(f), nil
	case []any:
		items := make([]starlark.Value, 0, len(v))
		for _, item := range v {
			converted, err := toStarlark(item)
			if err != nil {
				return nil, err
			}

			items = append(items, converted)
		}

		return starlark.NewList(items), nil
	case map[string]any:
		dict := starlark.NewDict(len(v))
		for key, item := range v {
			converted, err := toStarlark(item)
			if err != nil {
				return nil, err
			}

			if err := dict.SetKey(starlark.String(key), converted); err != nil {
				return nil, err
			}
		}

		return dict, nil
	}

	return viaJSON(value)
}

// viaJSON normalises arbitrary Go values (typed slices, structs) through their
// JSON form before conversion.
func viaJSON(value any) (starlark.Value, error) {
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Func || rv.Kind() == reflect.Chan {
		return nil, fmt.Errorf("cannot convert %T", value)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("cannot convert %T: %w", value, err)
	}

	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("cannot convert %T: %w", value, err)
	}

	return toStarlark(generic)
}

// fromStarlark converts a Starlark value back into a JSON-like Go value.
func fromStarlark(value starlark.Value) (any, error) {
	switch v := value.(type) {
	case nil, starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(v), nil
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return i, nil
		}

		f := v.Float()

		return float64(f), nil
	case starlark.Float:
		return float64(v), nil
	case starlark.String:
		return string(v), nil
	case *starlark.List:
		return iterableToSlice(v, v.Len())
	case starlark.Tuple:
		return iterableToSlice(v, v.Len())
	case *starlark.Set:
		return iterableToSlice(v, v.Len())
	case *starlark.Dict:
		out := make(map[string]any, v.Len())

		for _, item := range v.Items() {
			key := item[0].String()
			if s, ok := item[0].(starlark.String); ok {
				key = string(s)
			}

			converted, err := fromStarlark(item[1])
			if err != nil {
				return nil, err
			}

			out[key] = converted
		}

		return out, nil
	default:
		return nil, fmt.Errorf("unsupported result type %s", value.Type())
	}
}

func iterableToSlice(iterable starlark.Iterable, size int) ([]any, error) {
	out := make([]any, 0, size)

	iter := iterable.Iterate()
	defer iter.Done()

	var item starlark.Value
	for iter.Next(&item) {
		converted, err := fromStarlark(item)
		if err != nil {
			return nil, err
		}

		out = append(out, converted)
	}

	return out, nil
}
