package stream

// Lookup walks nested objects along path.
func Lookup(obj map[string]any, path ...string) (any, bool) {
	if obj == nil {
		return nil, false
	}
	var current any = obj
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Truthy mirrors JSON truthiness: null, false, 0, "" and empty containers are false.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// HasField matches objects with a non-null value at path.
func HasField(path ...string) Predicate {
	return func(obj map[string]any) bool {
		v, ok := Lookup(obj, path...)
		return ok && v != nil
	}
}

// FieldTruthy matches objects whose value at path is truthy.
func FieldTruthy(path ...string) Predicate {
	return func(obj map[string]any) bool {
		v, ok := Lookup(obj, path...)
		return ok && Truthy(v)
	}
}
