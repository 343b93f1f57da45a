package dataset

import (
	"strings"

	"github.com/leadblacktech/datasets/pkg/columnar"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
	"github.com/leadblacktech/datasets/pkg/fingerprint"
	"github.com/leadblacktech/datasets/pkg/metrics"
)

// RenameColumn returns a view with one column renamed. No data moves: the
// view keeps translating the new name to the old storage column.
func (d *Dataset) RenameColumn(old, new string) (*Dataset, error) {
	schema, err := d.schema.Rename(old, new)
	if err != nil {
		return nil, err
	}
	colMap := make(map[string]string, len(d.colMap))
	for k, v := range d.colMap {
		colMap[k] = v
	}
	colMap[new] = colMap[old]
	delete(colMap, old)

	out := d.derive()
	out.schema = schema
	out.colMap = colMap
	out.fp = fingerprint.Update(d.fp, "rename_column", old, new)
	return out, nil
}

// RemoveColumns returns a view without the given columns. Column data stays
// in storage; the view simply stops exposing it.
func (d *Dataset) RemoveColumns(names ...string) (*Dataset, error) {
	schema, err := d.schema.Remove(names...)
	if err != nil {
		return nil, err
	}
	out := d.derive()
	out.schema = schema
	out.colMap = subsetColMap(d.colMap, schema)
	out.fp = fingerprint.Update(d.fp, "remove_columns", strings.Join(names, ","))
	return out, nil
}

// SelectColumns returns a view exposing only the given columns, in the
// given order.
func (d *Dataset) SelectColumns(names ...string) (*Dataset, error) {
	schema, err := d.schema.Select(names...)
	if err != nil {
		return nil, err
	}
	out := d.derive()
	out.schema = schema
	out.colMap = subsetColMap(d.colMap, schema)
	out.fp = fingerprint.Update(d.fp, "select_columns", strings.Join(names, ","))
	return out, nil
}

func subsetColMap(colMap map[string]string, schema *features.Schema) map[string]string {
	out := make(map[string]string, schema.Len())
	for _, n := range schema.Names() {
		out[n] = colMap[n]
	}
	return out
}

// Cast coerces every column to the features of newSchema and materializes
// the result. The new schema must declare exactly the current columns.
// Coercion failures abort before any dataset is produced.
func (d *Dataset) Cast(newSchema *features.Schema) (*Dataset, error) {
	curNames := d.schema.Names()
	newNames := newSchema.Names()
	if len(curNames) != len(newNames) {
		return nil, dserrors.Newf(dserrors.ErrorTypeSchemaMismatch,
			"cast schema has %d columns, dataset has %d", len(newNames), len(curNames))
	}
	for i, n := range curNames {
		if newNames[i] != n {
			return nil, dserrors.Newf(dserrors.ErrorTypeSchemaMismatch,
				"cast schema column %q does not match dataset column %q", newNames[i], n)
		}
	}

	// The builder casts each appended value against the new schema, so a
	// single pass both validates and rewrites.
	b := columnar.NewBuilder(newSchema)
	n := d.Len()
	for i := 0; i < n; i++ {
		row, err := d.Row(i)
		if err != nil {
			return nil, err
		}
		if err := b.AppendRow(row); err != nil {
			return nil, err
		}
	}
	storage, err := b.Build()
	if err != nil {
		return nil, err
	}
	metrics.Materializations.WithLabelValues("cast").Inc()

	out := d.derive()
	out.storage = storage
	out.indices = nil
	out.schema = newSchema
	out.colMap = identityColMap(newSchema)
	out.fp = fingerprint.Update(d.fp, "cast", schemaDesc(newSchema))
	return out, nil
}

// CastColumn coerces a single column to a new feature.
func (d *Dataset) CastColumn(name string, f features.Feature) (*Dataset, error) {
	newSchema, err := d.schema.WithFeature(name, f)
	if err != nil {
		return nil, err
	}
	return d.Cast(newSchema)
}

// Flatten replaces every struct column with one column per subfield, named
// parent.child, recursing while subfields remain structs. New columns keep
// the original subfield declaration order. Non-struct columns pass through.
func (d *Dataset) Flatten() (*Dataset, error) {
	type flatCol struct {
		source string
		path   []string
	}
	var fields []features.Field
	var sources []flatCol
	flattened := false
	for _, f := range d.schema.Fields() {
		leaves := features.FlattenFeature(f.Feature)
		if len(leaves) == 1 && len(leaves[0].Path) == 0 {
			fields = append(fields, f)
			sources = append(sources, flatCol{source: f.Name})
			continue
		}
		flattened = true
		for _, leaf := range leaves {
			name := f.Name + "." + strings.Join(leaf.Path, ".")
			fields = append(fields, features.Field{Name: name, Feature: leaf.Feature})
			sources = append(sources, flatCol{source: f.Name, path: leaf.Path})
		}
	}
	if !flattened {
		return d, nil
	}

	schema, err := features.NewSchema(fields)
	if err != nil {
		return nil, err
	}
	b := columnar.NewBuilder(schema)
	n := d.Len()
	for i := 0; i < n; i++ {
		row, err := d.Row(i)
		if err != nil {
			return nil, err
		}
		flat := make(map[string]interface{}, len(fields))
		for j, f := range fields {
			src := sources[j]
			if len(src.path) == 0 {
				flat[f.Name] = row[src.source]
			} else {
				flat[f.Name] = features.ExtractPath(row[src.source], src.path)
			}
		}
		if err := b.AppendRow(flat); err != nil {
			return nil, err
		}
	}
	storage, err := b.Build()
	if err != nil {
		return nil, err
	}
	metrics.Materializations.WithLabelValues("flatten").Inc()

	out := d.derive()
	out.storage = storage
	out.indices = nil
	out.schema = schema
	out.colMap = identityColMap(schema)
	out.fp = fingerprint.Update(d.fp, "flatten")
	return out, nil
}
