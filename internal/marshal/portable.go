package marshal

import "math"

// Portable rewrites a host value produced by ToHost so that JSON encoders
// accept it. Non-finite numbers are spelled out and script handles become
// {"function": name}. Other values are returned unchanged.
func Portable(v any) any {
	switch x := v.(type) {
	case ScriptValuer:
		name := ""
		if n, ok := x.(interface{ Name() string }); ok {
			name = n.Name()
		}
		return map[string]any{"function": name}
	case float64:
		switch {
		case math.IsNaN(x):
			return "NaN"
		case math.IsInf(x, 1):
			return "Infinity"
		case math.IsInf(x, -1):
			return "-Infinity"
		}
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Portable(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Portable(e)
		}
		return out
	}
	return v
}
