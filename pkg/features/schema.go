package features

import (
	"github.com/leadblacktech/datasets/pkg/dserrors"
)

// Schema is an ordered mapping from column name to Feature. Schemas are
// immutable values; every operation returns a new Schema.
type Schema struct {
	names []string
	feats map[string]Feature
}

// NewSchema builds a schema from ordered fields. Duplicate names are a
// name-collision error.
func NewSchema(fields []Field) (*Schema, error) {
	s := &Schema{
		names: make([]string, 0, len(fields)),
		feats: make(map[string]Feature, len(fields)),
	}
	for _, f := range fields {
		if _, exists := s.feats[f.Name]; exists {
			return nil, dserrors.Newf(dserrors.ErrorTypeNameCollision,
				"duplicate column %q", f.Name)
		}
		s.names = append(s.names, f.Name)
		s.feats[f.Name] = f.Feature
	}
	return s, nil
}

// MustNewSchema is NewSchema for statically known field lists.
func MustNewSchema(fields []Field) *Schema {
	s, err := NewSchema(fields)
	if err != nil {
		panic(err)
	}
	return s
}

// Names returns the column names in declaration order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of columns.
func (s *Schema) Len() int { return len(s.names) }

// Has reports whether the schema contains a column.
func (s *Schema) Has(name string) bool {
	_, ok := s.feats[name]
	return ok
}

// Get returns the feature of a column.
func (s *Schema) Get(name string) (Feature, error) {
	f, ok := s.feats[name]
	if !ok {
		return nil, dserrors.Newf(dserrors.ErrorTypeNotFound, "no column %q", name)
	}
	return f, nil
}

// Fields returns the ordered (name, feature) pairs.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.names))
	for i, n := range s.names {
		out[i] = Field{Name: n, Feature: s.feats[n]}
	}
	return out
}

// Rename returns a schema with a column renamed in place (same position,
// same feature).
func (s *Schema) Rename(old, new string) (*Schema, error) {
	if _, ok := s.feats[old]; !ok {
		return nil, dserrors.Newf(dserrors.ErrorTypeNotFound, "no column %q", old)
	}
	if _, ok := s.feats[new]; ok {
		return nil, dserrors.Newf(dserrors.ErrorTypeNameCollision,
			"column %q already exists", new)
	}
	fields := s.Fields()
	for i := range fields {
		if fields[i].Name == old {
			fields[i].Name = new
		}
	}
	return NewSchema(fields)
}

// Remove returns a schema without the given columns. Unknown names fail.
func (s *Schema) Remove(names ...string) (*Schema, error) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := s.feats[n]; !ok {
			return nil, dserrors.Newf(dserrors.ErrorTypeNotFound, "no column %q", n)
		}
		drop[n] = true
	}
	fields := make([]Field, 0, len(s.names)-len(drop))
	for _, f := range s.Fields() {
		if !drop[f.Name] {
			fields = append(fields, f)
		}
	}
	return NewSchema(fields)
}

// Select returns a schema containing only the given columns, in the given
// order.
func (s *Schema) Select(names ...string) (*Schema, error) {
	fields := make([]Field, 0, len(names))
	for _, n := range names {
		f, ok := s.feats[n]
		if !ok {
			return nil, dserrors.Newf(dserrors.ErrorTypeNotFound, "no column %q", n)
		}
		fields = append(fields, Field{Name: n, Feature: f})
	}
	return NewSchema(fields)
}

// WithFeature returns a schema with one column's feature replaced.
func (s *Schema) WithFeature(name string, f Feature) (*Schema, error) {
	if _, ok := s.feats[name]; !ok {
		return nil, dserrors.Newf(dserrors.ErrorTypeNotFound, "no column %q", name)
	}
	fields := s.Fields()
	for i := range fields {
		if fields[i].Name == name {
			fields[i].Feature = f
		}
	}
	return NewSchema(fields)
}

// Equal reports full type equality: same names in the same order with equal
// features.
func (s *Schema) Equal(other *Schema) bool {
	if len(s.names) != len(other.names) {
		return false
	}
	for i, n := range s.names {
		if other.names[i] != n {
			return false
		}
		if !s.feats[n].Equal(other.feats[n]) {
			return false
		}
	}
	return true
}
