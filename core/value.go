package core

import "fmt"

// Value holds a JSON-serializable payload: nil, bool, a number (any Go
// integer or floating-point type), a string, a []any of Values, or a
// map[string]any of Values.
//
// Go has no sum-type syntax, so rather than invent a tagged-union wrapper
// (awkward to construct and pattern-match against in idiomatic Go, and not
// how this kind of payload is represented anywhere in the reference corpus)
// the substrate represents Value as `any` and enforces the JSON-serializable
// shape with ValidateValue at every boundary crossing. CopyValue performs
// the structural deep copy; nothing here should ever alias a caller's slice
// or map.
type Value = any

// ValidateValue reports whether v is a JSON-serializable shape: nil, bool,
// an integer or floating-point numeric type, string, []any, or map[string]any,
// recursively. Any other concrete type (channels, funcs, structs, pointers)
// is rejected with INVALID_VALUE.
func ValidateValue(v any) error {
	switch x := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return nil
	case []any:
		for i, elem := range x {
			if err := ValidateValue(elem); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		return nil
	case map[string]any:
		for k, elem := range x {
			if err := ValidateValue(elem); err != nil {
				return fmt.Errorf("key %q: %w", k, err)
			}
		}
		return nil
	default:
		return NewError(ErrInvalidValue, fmt.Sprintf("value of type %T is not JSON-serializable", v), nil)
	}
}

// CopyValue produces a deep, alias-free copy of v. Composite values
// ([]any, map[string]any) are traversed and rebuilt; scalars are copied by
// value already. Both `set` and `get` cross this boundary so that mutating
// a caller's container after set, or the container returned from get, can
// never reach back into the session's stored state.
func CopyValue(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, elem := range x {
			out[i] = CopyValue(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, elem := range x {
			out[k] = CopyValue(elem)
		}
		return out
	default:
		return x
	}
}

// EqualValue performs a structural deep-equality check over two Values,
// normalizing integer and float types so that 1 and 1.0 compare equal —
// the same normalization encoding/json applies when a number round-trips
// through Marshal/Unmarshal, which is the equality the persistence
// round-trip law in the specification actually needs.
func EqualValue(a, b any) bool {
	return equalNormalized(a, b)
}

func equalNormalized(a, b any) bool {
	af, aIsNum := asFloat(a)
	bf, bIsNum := asFloat(b)
	if aIsNum && bIsNum {
		return af == bf
	}
	if aIsNum != bIsNum {
		return false
	}

	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalNormalized(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, ok := bv[k]
			if !ok || !equalNormalized(v, bvv) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
