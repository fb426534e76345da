package starlark

import (
	"fmt"

	starlarkLib "go.starlark.net/starlark"
)

// toStarlark converts a Go value into a Starlark value for host bindings.
// Functions and arbitrary structs are not supported; the host bridges rich
// behavior through the JavaScript engine instead.
func toStarlark(value any) (starlarkLib.Value, error) {
	switch v := value.(type) {
	case nil:
		return starlarkLib.None, nil
	case bool:
		return starlarkLib.Bool(v), nil
	case int:
		return starlarkLib.MakeInt(v), nil
	case int64:
		return starlarkLib.MakeInt64(v), nil
	case float64:
		return starlarkLib.Float(v), nil
	case string:
		return starlarkLib.String(v), nil
	case []any:
		elems := make([]starlarkLib.Value, 0, len(v))
		for _, item := range v {
			converted, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			elems = append(elems, converted)
		}
		return starlarkLib.NewList(elems), nil
	case map[string]any:
		dict := starlarkLib.NewDict(len(v))
		for key, item := range v {
			converted, err := toStarlark(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlarkLib.String(key), converted); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case starlarkLib.Value:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedBinding, value)
	}
}

// fromStarlark converts a Starlark value into a plain Go value for returning
// evaluation results to the host.
func fromStarlark(value starlarkLib.Value) any {
	switch v := value.(type) {
	case nil, starlarkLib.NoneType:
		return nil
	case starlarkLib.Bool:
		return bool(v)
	case starlarkLib.Int:
		if i, ok := v.Int64(); ok {
			return i
		}
		return v.String()
	case starlarkLib.Float:
		return float64(v)
	case starlarkLib.String:
		return string(v)
	case *starlarkLib.List:
		out := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			out = append(out, fromStarlark(v.Index(i)))
		}
		return out
	case starlarkLib.Tuple:
		out := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			out = append(out, fromStarlark(v.Index(i)))
		}
		return out
	case *starlarkLib.Dict:
		out := make(map[string]any, v.Len())
		for _, item := range v.Items() {
			key, ok := item[0].(starlarkLib.String)
			if !ok {
				out[item[0].String()] = fromStarlark(item[1])
				continue
			}
			out[string(key)] = fromStarlark(item[1])
		}
		return out
	default:
		return v.String()
	}
}
