package features

// FlattenedField is one leaf produced by flattening a struct feature.
type FlattenedField struct {
	// Path holds the struct field names from the root column down to this
	// leaf, excluding the column name itself.
	Path    []string
	Feature Feature
}

// FlattenFeature expands a feature into its flattened leaves. Struct
// features recurse; every other feature is a single leaf with an empty path.
// Order follows the original field declaration order.
func FlattenFeature(f Feature) []FlattenedField {
	st, ok := f.(Struct)
	if !ok {
		return []FlattenedField{{Feature: f}}
	}
	var out []FlattenedField
	for _, field := range st.Fields {
		for _, leaf := range FlattenFeature(field.Feature) {
			path := append([]string{field.Name}, leaf.Path...)
			out = append(out, FlattenedField{Path: path, Feature: leaf.Feature})
		}
	}
	return out
}

// ExtractPath walks a nested struct value along a flattened path.
func ExtractPath(v interface{}, path []string) interface{} {
	for _, p := range path {
		rec, ok := v.(map[string]interface{})
		if !ok {
			return nil
		}
		v = rec[p]
	}
	return v
}
