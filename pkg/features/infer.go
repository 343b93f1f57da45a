package features

import "sort"

// Infer derives a feature from a sample value. It is used when a transform
// produces columns the caller did not declare. Nested values recurse;
// structs order their fields alphabetically since map iteration order
// carries no declaration order to preserve.
func Infer(v interface{}) Feature {
	switch n := v.(type) {
	case string:
		return Value{Dtype: KindString}
	case int, int32, int64:
		return Value{Dtype: KindInt64}
	case float32, float64:
		return Value{Dtype: KindFloat64}
	case bool:
		return Value{Dtype: KindBool}
	case []byte:
		return Value{Dtype: KindBytes}
	case map[string]interface{}:
		names := make([]string, 0, len(n))
		for k := range n {
			names = append(names, k)
		}
		sort.Strings(names)
		fields := make([]Field, len(names))
		for i, name := range names {
			fields[i] = Field{Name: name, Feature: Infer(n[name])}
		}
		return Struct{Fields: fields}
	default:
		if seq, ok := toAnySlice(v); ok {
			if len(seq) == 0 {
				return Sequence{Inner: Value{Dtype: KindString}}
			}
			return Sequence{Inner: Infer(seq[0])}
		}
		// Opaque values fall back to string rendering at cast time.
		return Value{Dtype: KindString}
	}
}
