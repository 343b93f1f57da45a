package dataset

import (
	"github.com/leadblacktech/datasets/pkg/columnar"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
	"github.com/leadblacktech/datasets/pkg/fingerprint"
	"github.com/leadblacktech/datasets/pkg/metrics"
)

// Concatenate joins datasets row-wise. Every input must resolve to exactly
// the same schema (type equality, not just matching names), checked before
// any storage is written. The result is a fresh identity view whose rows
// are the inputs' rows in input order.
func Concatenate(datasets ...*Dataset) (*Dataset, error) {
	if len(datasets) == 0 {
		return nil, dserrors.New(dserrors.ErrorTypeValidation, "nothing to concatenate")
	}
	ref := datasets[0]
	for i, d := range datasets[1:] {
		if !d.schema.Equal(ref.schema) {
			return nil, dserrors.Newf(dserrors.ErrorTypeSchemaMismatch,
				"dataset %d schema %s does not match %s", i+1, schemaDesc(d.schema), schemaDesc(ref.schema))
		}
	}

	b := columnar.NewBuilder(ref.schema)
	fps := make([]fingerprint.Fingerprint, len(datasets))
	for i, d := range datasets {
		fps[i] = d.fp
		n := d.Len()
		for j := 0; j < n; j++ {
			row, err := d.Row(j)
			if err != nil {
				return nil, err
			}
			if err := b.AppendRow(row); err != nil {
				return nil, err
			}
		}
	}
	storage, err := b.Build()
	if err != nil {
		return nil, err
	}
	metrics.Materializations.WithLabelValues("concatenate").Inc()

	out := FromStorageWithConfig(storage, ref.cfg)
	out.fp = fingerprint.Combine("concatenate", fps...)
	return out, nil
}

// ConcatenateColumns joins datasets column-wise. All inputs must have the
// same row count, and no two inputs may declare the same column name. The
// result schema is the ordered union of the input schemas.
func ConcatenateColumns(datasets ...*Dataset) (*Dataset, error) {
	if len(datasets) == 0 {
		return nil, dserrors.New(dserrors.ErrorTypeValidation, "nothing to concatenate")
	}
	rows := datasets[0].Len()
	var fields []features.Field
	seen := make(map[string]bool)
	for i, d := range datasets {
		if d.Len() != rows {
			return nil, dserrors.Newf(dserrors.ErrorTypeSchemaMismatch,
				"dataset %d has %d rows, want %d", i, d.Len(), rows)
		}
		for _, f := range d.schema.Fields() {
			if seen[f.Name] {
				return nil, dserrors.Newf(dserrors.ErrorTypeNameCollision,
					"column %q declared by more than one input", f.Name)
			}
			seen[f.Name] = true
			fields = append(fields, f)
		}
	}
	schema, err := features.NewSchema(fields)
	if err != nil {
		return nil, err
	}

	b := columnar.NewBuilder(schema)
	fps := make([]fingerprint.Fingerprint, len(datasets))
	for i, d := range datasets {
		fps[i] = d.fp
	}
	for j := 0; j < rows; j++ {
		row := make(map[string]interface{}, len(fields))
		for _, d := range datasets {
			part, err := d.Row(j)
			if err != nil {
				return nil, err
			}
			for k, v := range part {
				row[k] = v
			}
		}
		if err := b.AppendRow(row); err != nil {
			return nil, err
		}
	}
	storage, err := b.Build()
	if err != nil {
		return nil, err
	}
	metrics.Materializations.WithLabelValues("concatenate_columns").Inc()

	out := FromStorageWithConfig(storage, datasets[0].cfg)
	out.fp = fingerprint.Combine("concatenate_columns", fps...)
	return out, nil
}
