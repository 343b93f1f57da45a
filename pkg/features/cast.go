package features

import (
	"github.com/leadblacktech/datasets/pkg/dserrors"
)

// CastValue coerces a single value to the target feature type. Coercions
// that cannot represent the value fail with a type_coercion error carrying
// the offending value.
func CastValue(v interface{}, target Feature) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch f := target.(type) {
	case Value:
		return castScalar(v, f.Dtype)
	case ClassLabel:
		return castClassLabel(v, f)
	case Sequence:
		seq, ok := toAnySlice(v)
		if !ok {
			return nil, coercionErr(v, target)
		}
		out := make([]interface{}, len(seq))
		for i, elem := range seq {
			cast, err := CastValue(elem, f.Inner)
			if err != nil {
				return nil, err
			}
			out[i] = cast
		}
		return out, nil
	case Struct:
		rec, ok := v.(map[string]interface{})
		if !ok {
			return nil, coercionErr(v, target)
		}
		out := make(map[string]interface{}, len(f.Fields))
		for _, field := range f.Fields {
			cast, err := CastValue(rec[field.Name], field.Feature)
			if err != nil {
				return nil, err
			}
			out[field.Name] = cast
		}
		return out, nil
	case External:
		// Encoded payloads pass through untouched.
		if _, ok := v.([]byte); ok {
			return v, nil
		}
		return nil, coercionErr(v, target)
	default:
		return nil, dserrors.Newf(dserrors.ErrorTypeValidation,
			"unknown feature %T", target)
	}
}

func castScalar(v interface{}, k Kind) (interface{}, error) {
	switch k {
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindInt64:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case float64:
			if n == float64(int64(n)) {
				return int64(n), nil
			}
		case bool:
			if n {
				return int64(1), nil
			}
			return int64(0), nil
		}
	case KindFloat64:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	case KindBool:
		switch n := v.(type) {
		case bool:
			return n, nil
		case int64:
			if n == 0 {
				return false, nil
			}
			if n == 1 {
				return true, nil
			}
		case int:
			if n == 0 {
				return false, nil
			}
			if n == 1 {
				return true, nil
			}
		}
	case KindBytes:
		if b, ok := v.([]byte); ok {
			return b, nil
		}
		if s, ok := v.(string); ok {
			return []byte(s), nil
		}
	}
	return nil, coercionErr(v, Value{Dtype: k})
}

// castClassLabel accepts a stored label index or a label name. Casting a
// class-label column to a different name list remaps by index, so an index
// stays an index and only has to fit the new list.
func castClassLabel(v interface{}, f ClassLabel) (interface{}, error) {
	var idx int64
	switch n := v.(type) {
	case int64:
		idx = n
	case int:
		idx = int64(n)
	case string:
		i, err := f.IndexOf(n)
		if err != nil {
			return nil, coercionErr(v, f)
		}
		return i, nil
	default:
		return nil, coercionErr(v, f)
	}
	if idx < 0 || idx >= int64(f.NumClasses()) {
		return nil, dserrors.Newf(dserrors.ErrorTypeTypeCoercion,
			"label index %d out of range for %d classes", idx, f.NumClasses())
	}
	return idx, nil
}

// toAnySlice widens the typed slices user callbacks commonly return.
func toAnySlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	case []string:
		out := make([]interface{}, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int64:
		out := make([]interface{}, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []int:
		out := make([]interface{}, len(s))
		for i, e := range s {
			out[i] = int64(e)
		}
		return out, true
	case []float64:
		out := make([]interface{}, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	case []bool:
		out := make([]interface{}, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}

func coercionErr(v interface{}, target Feature) *dserrors.Error {
	return dserrors.Newf(dserrors.ErrorTypeTypeCoercion,
		"cannot represent %T(%v) as %s", v, v, target).
		WithDetail("value", v)
}
