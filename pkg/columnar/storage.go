package columnar

import (
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
)

// Storage is an immutable columnar table: an ordered set of equal-length
// typed columns plus the schema they were built against. Many logical
// datasets may hold the same *Storage; none of them may mutate it.
type Storage struct {
	names    []string
	columns  map[string]Column
	schema   *features.Schema
	rowCount int
}

// Schema returns the schema the storage was built with.
func (s *Storage) Schema() *features.Schema { return s.schema }

// NumRows returns the number of rows.
func (s *Storage) NumRows() int { return s.rowCount }

// ColumnNames returns the column names in schema order.
func (s *Storage) ColumnNames() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Column returns a column by name.
func (s *Storage) Column(name string) (Column, error) {
	col, ok := s.columns[name]
	if !ok {
		return nil, dserrors.Newf(dserrors.ErrorTypeNotFound, "no column %q", name)
	}
	return col, nil
}

// Value returns a single cell.
func (s *Storage) Value(name string, row int) (interface{}, error) {
	col, err := s.Column(name)
	if err != nil {
		return nil, err
	}
	if row < 0 || row >= s.rowCount {
		return nil, dserrors.Newf(dserrors.ErrorTypeIndexOutOfRange,
			"row %d out of range [0, %d)", row, s.rowCount)
	}
	return col.Get(row), nil
}

// Row materializes one row as a column-name keyed map.
func (s *Storage) Row(i int) (map[string]interface{}, error) {
	if i < 0 || i >= s.rowCount {
		return nil, dserrors.Newf(dserrors.ErrorTypeIndexOutOfRange,
			"row %d out of range [0, %d)", i, s.rowCount)
	}
	row := make(map[string]interface{}, len(s.names))
	for _, name := range s.names {
		row[name] = s.columns[name].Get(i)
	}
	return row, nil
}

// Project returns a storage exposing only the given columns. Column data is
// shared, not copied; the projected schema keeps the requested order.
func (s *Storage) Project(schema *features.Schema) (*Storage, error) {
	names := schema.Names()
	cols := make(map[string]Column, len(names))
	for _, n := range names {
		col, ok := s.columns[n]
		if !ok {
			return nil, dserrors.Newf(dserrors.ErrorTypeNotFound, "no column %q", n)
		}
		cols[n] = col
	}
	return &Storage{
		names:    names,
		columns:  cols,
		schema:   schema,
		rowCount: s.rowCount,
	}, nil
}

// Take materializes a new storage containing exactly the given rows, in
// order. Indices may repeat and need not cover the full range.
func (s *Storage) Take(indices []int) (*Storage, error) {
	b := NewBuilder(s.schema)
	for _, idx := range indices {
		if idx < 0 || idx >= s.rowCount {
			return nil, dserrors.Newf(dserrors.ErrorTypeIndexOutOfRange,
				"row %d out of range [0, %d)", idx, s.rowCount)
		}
		for _, name := range s.names {
			if err := b.columns[name].Append(s.columns[name].Get(idx)); err != nil {
				return nil, dserrors.Wrap(err, dserrors.ErrorTypeTypeCoercion, "take")
			}
		}
		b.rows++
	}
	return b.Build()
}

// Builder accumulates rows and seals them into an immutable Storage.
type Builder struct {
	schema  *features.Schema
	names   []string
	columns map[string]Column
	rows    int
}

// NewBuilder creates a builder whose columns follow the schema's features.
func NewBuilder(schema *features.Schema) *Builder {
	names := schema.Names()
	cols := make(map[string]Column, len(names))
	for _, f := range schema.Fields() {
		cols[f.Name] = NewColumn(ColumnTypeFor(f.Feature))
	}
	return &Builder{
		schema:  schema,
		names:   names,
		columns: cols,
	}
}

// AppendRow coerces each value to its declared feature and appends it.
// Missing columns are an error; storage columns have no holes.
func (b *Builder) AppendRow(row map[string]interface{}) error {
	for _, name := range b.names {
		v, ok := row[name]
		if !ok {
			return dserrors.Newf(dserrors.ErrorTypeValidation,
				"row is missing column %q", name)
		}
		f, err := b.schema.Get(name)
		if err != nil {
			return err
		}
		cast, err := features.CastValue(v, f)
		if err != nil {
			return err
		}
		if err := b.columns[name].Append(cast); err != nil {
			return dserrors.Wrap(err, dserrors.ErrorTypeTypeCoercion, "append")
		}
	}
	b.rows++
	return nil
}

// AppendColumns appends a batch given as column-name keyed slices. Every
// slice must have the same length.
func (b *Builder) AppendColumns(batch map[string][]interface{}) error {
	n := -1
	for _, name := range b.names {
		vals, ok := batch[name]
		if !ok {
			return dserrors.Newf(dserrors.ErrorTypeValidation,
				"batch is missing column %q", name)
		}
		if n == -1 {
			n = len(vals)
		} else if len(vals) != n {
			return dserrors.Newf(dserrors.ErrorTypeValidation,
				"ragged batch: column %q has %d values, want %d", name, len(vals), n)
		}
	}
	for i := 0; i < n; i++ {
		row := make(map[string]interface{}, len(b.names))
		for _, name := range b.names {
			row[name] = batch[name][i]
		}
		if err := b.AppendRow(row); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of rows appended so far.
func (b *Builder) Len() int { return b.rows }

// Build seals the builder into an immutable Storage. The builder must not
// be used afterwards.
func (b *Builder) Build() (*Storage, error) {
	for _, name := range b.names {
		if b.columns[name].Len() != b.rows {
			return nil, dserrors.Newf(dserrors.ErrorTypeValidation,
				"column %q has %d values, want %d", name, b.columns[name].Len(), b.rows)
		}
	}
	return &Storage{
		names:    b.names,
		columns:  b.columns,
		schema:   b.schema,
		rowCount: b.rows,
	}, nil
}
