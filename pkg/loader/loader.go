// Package loader builds typed columnar storage from in-memory values and
// row-oriented text inputs. Loaders satisfy the engine's loading contract:
// given a source they deliver a schema-typed Storage ready to be wrapped in
// a logical dataset.
package loader

import (
	"sort"

	"github.com/leadblacktech/datasets/pkg/columnar"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
)

// FromColumns builds a storage from column-name keyed slices, inferring a
// feature per column from its first value. Column order in the schema is
// the lexicographic name order, since Go maps carry none.
func FromColumns(columns map[string][]interface{}) (*columnar.Storage, error) {
	if len(columns) == 0 {
		return nil, dserrors.New(dserrors.ErrorTypeValidation, "no columns")
	}
	n := -1
	for name, vals := range columns {
		if n == -1 {
			n = len(vals)
		} else if len(vals) != n {
			return nil, dserrors.Newf(dserrors.ErrorTypeValidation,
				"ragged input: column %q has %d values, want %d", name, len(vals), n)
		}
	}

	names := sortedKeys(columns)
	fields := make([]features.Field, len(names))
	for i, name := range names {
		f := features.Feature(features.Value{Dtype: features.KindString})
		if len(columns[name]) > 0 {
			f = features.Infer(columns[name][0])
		}
		fields[i] = features.Field{Name: name, Feature: f}
	}
	schema, err := features.NewSchema(fields)
	if err != nil {
		return nil, err
	}
	return FromColumnsWithSchema(columns, schema)
}

// FromColumnsWithSchema builds a storage against a declared schema, casting
// every value to its feature.
func FromColumnsWithSchema(columns map[string][]interface{}, schema *features.Schema) (*columnar.Storage, error) {
	b := columnar.NewBuilder(schema)
	if err := b.AppendColumns(columns); err != nil {
		return nil, err
	}
	return b.Build()
}

// FromRows builds a storage from ordered row maps against a declared schema.
func FromRows(rows []map[string]interface{}, schema *features.Schema) (*columnar.Storage, error) {
	b := columnar.NewBuilder(schema)
	for _, row := range rows {
		if err := b.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

func sortedKeys(m map[string][]interface{}) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
