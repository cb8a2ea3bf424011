package starlark

import (
	"fmt"

	"go.starlark.net/starlark"
)

// toStarlark converts a Go value built from JSON/YAML-compatible types into
// a Starlark value.
func toStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case string:
		return starlark.String(val), nil
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}

		return starlark.NewList(list), nil
	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}

			list[i] = sv
		}

		return starlark.NewList(list), nil
	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}

			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
		}

		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlark converts a Starlark value back into generic Go data.
func fromStarlark(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.String:
		return string(val), nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer out of range: %s", val.String())
		}

		return i64, nil
	case starlark.Float:
		return float64(val), nil
	case *starlark.List:
		result := make([]any, val.Len())
		for i := range val.Len() {
			gv, err := fromStarlark(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}

			result[i] = gv
		}

		return result, nil
	case starlark.Tuple:
		result := make([]any, val.Len())
		for i := range val.Len() {
			gv, err := fromStarlark(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("tuple index %d: %w", i, err)
			}

			result[i] = gv
		}

		return result, nil
	case *starlark.Dict:
		result := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}

			gv, err := fromStarlark(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", key, err)
			}

			result[string(key)] = gv
		}

		return result, nil
	default:
		return nil, fmt.Errorf("unsupported result type: %s", v.Type())
	}
}

// stringList converts a Starlark list of strings into a Go slice.
func stringList(v starlark.Value) ([]string, error) {
	list, ok := v.(*starlark.List)
	if !ok {
		return nil, fmt.Errorf("expected list, got %s", v.Type())
	}

	result := make([]string, 0, list.Len())
	for i := range list.Len() {
		s, ok := list.Index(i).(starlark.String)
		if !ok {
			return nil, fmt.Errorf("expected string at index %d, got %s", i, list.Index(i).Type())
		}

		result = append(result, string(s))
	}

	return result, nil
}
