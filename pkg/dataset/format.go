package dataset

import (
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/fingerprint"
	"github.com/leadblacktech/datasets/pkg/format"
)

// FormatKind distinguishes the three formatting states of a view.
type FormatKind int

const (
	// FormatNone returns native in-memory values.
	FormatNone FormatKind = iota
	// FormatNamed converts accessed rows and batches into a registered
	// target representation at read time.
	FormatNamed
	// FormatTransform invokes a user function on the raw accessed batch
	// and returns its result verbatim, superseding any named format.
	FormatTransform
)

// TransformFunc receives the raw accessed batch and produces the formatted
// output verbatim.
type TransformFunc func(batch map[string][]interface{}) (interface{}, error)

type formatState struct {
	kind             FormatKind
	name             string
	columns          []string
	outputAllColumns bool
	transform        TransformFunc
}

// FormatOptions narrows a named format or custom transform to a column
// subset. With OutputAllColumns set, columns outside the subset are still
// returned, natively.
type FormatOptions struct {
	Columns          []string
	OutputAllColumns bool
}

// knownFormats are the named targets the engine can convert to.
func knownFormat(name string) bool {
	switch name {
	case "", "native", "arrow":
		return true
	default:
		return false
	}
}

// WithFormat returns a view carrying a named output format; the receiver is
// unchanged. Formatting applies at read time only.
func (d *Dataset) WithFormat(name string, opts FormatOptions) (*Dataset, error) {
	if !knownFormat(name) {
		return nil, dserrors.Newf(dserrors.ErrorTypeValidation, "unknown format %q", name)
	}
	for _, c := range opts.Columns {
		if !d.schema.Has(c) {
			return nil, dserrors.Newf(dserrors.ErrorTypeNotFound, "no column %q", c)
		}
	}
	out := d.derive()
	if name == "" || name == "native" {
		out.format = formatState{}
	} else {
		out.format = formatState{
			kind:             FormatNamed,
			name:             name,
			columns:          opts.Columns,
			outputAllColumns: opts.OutputAllColumns,
		}
	}
	out.fp = fingerprint.Update(d.fp, "with_format", name)
	return out, nil
}

// SetFormat is the in-place variant of WithFormat: it replaces this view's
// format field. Storage and indices are untouched either way.
func (d *Dataset) SetFormat(name string, opts FormatOptions) error {
	nd, err := d.WithFormat(name, opts)
	if err != nil {
		return err
	}
	d.format = nd.format
	d.fp = nd.fp
	return nil
}

// ResetFormat restores native output in place.
func (d *Dataset) ResetFormat() {
	d.format = formatState{}
	d.fp = fingerprint.Update(d.fp, "reset_format")
}

// WithTransform returns a view whose reads pass through a custom transform.
func (d *Dataset) WithTransform(fn TransformFunc, opts FormatOptions) (*Dataset, error) {
	if fn == nil {
		return nil, dserrors.New(dserrors.ErrorTypeValidation, "nil transform")
	}
	for _, c := range opts.Columns {
		if !d.schema.Has(c) {
			return nil, dserrors.Newf(dserrors.ErrorTypeNotFound, "no column %q", c)
		}
	}
	out := d.derive()
	out.format = formatState{
		kind:             FormatTransform,
		columns:          opts.Columns,
		outputAllColumns: opts.OutputAllColumns,
		transform:        fn,
	}
	out.fp = fingerprint.Update(d.fp, "with_transform")
	return out, nil
}

// SetTransform is the in-place variant of WithTransform.
func (d *Dataset) SetTransform(fn TransformFunc, opts FormatOptions) error {
	nd, err := d.WithTransform(fn, opts)
	if err != nil {
		return err
	}
	d.format = nd.format
	d.fp = nd.fp
	return nil
}

// Get returns one logical row through the view's output format. Without a
// format this is the native row map; with a named format it is a
// *format.Formatted; with a transform it is whatever the transform returns.
func (d *Dataset) Get(i int) (interface{}, error) {
	return d.GetBatch(i, i+1)
}

// GetBatch returns the formatted batch covering logical rows [lo, hi).
func (d *Dataset) GetBatch(lo, hi int) (interface{}, error) {
	batch, err := d.Rows(lo, hi)
	if err != nil {
		return nil, err
	}
	switch d.format.kind {
	case FormatNone:
		return batch, nil
	case FormatNamed:
		return format.RecordFromBatch(d.schema, d.applySubset(batch),
			d.format.columns, d.format.outputAllColumns)
	case FormatTransform:
		out, err := d.format.transform(d.applySubset(batch))
		if err != nil {
			return nil, dserrors.Wrap(err, dserrors.ErrorTypeCallback, "format transform failed")
		}
		return out, nil
	default:
		return nil, dserrors.Newf(dserrors.ErrorTypeValidation,
			"unknown format kind %d", d.format.kind)
	}
}

// applySubset trims a batch for a custom transform's column subset. Named
// formats receive the full batch since RecordFromBatch selects itself.
func (d *Dataset) applySubset(batch map[string][]interface{}) map[string][]interface{} {
	if d.format.kind != FormatTransform || d.format.columns == nil {
		return batch
	}
	out := make(map[string][]interface{}, len(d.format.columns))
	for _, c := range d.format.columns {
		out[c] = batch[c]
	}
	if d.format.outputAllColumns {
		for k, v := range batch {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
	}
	return out
}
