// Package dataset implements the logical dataset layer: a cheap, immutable
// view over shared columnar storage. A Dataset pairs a Storage handle with
// an optional index mapping, a visible schema and an output format. All
// structural and schema operations return a new Dataset; the underlying
// Storage is never touched.
package dataset

import (
	"github.com/leadblacktech/datasets/pkg/columnar"
	"github.com/leadblacktech/datasets/pkg/config"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
	"github.com/leadblacktech/datasets/pkg/fingerprint"
	"github.com/leadblacktech/datasets/pkg/metrics"
)

// Dataset is a logical view over an immutable Storage.
//
// indices, when non-nil, maps logical row i to storage row indices[i];
// nil means identity. colMap translates visible column names to storage
// column names so renames never rewrite data.
type Dataset struct {
	storage *columnar.Storage
	indices []int
	schema  *features.Schema
	colMap  map[string]string
	format  formatState
	fp      fingerprint.Fingerprint
	cfg     *config.EngineConfig
}

// FromStorage wraps a storage in an identity view.
func FromStorage(storage *columnar.Storage) *Dataset {
	return FromStorageWithConfig(storage, config.Default())
}

// FromStorageWithConfig wraps a storage using an injected engine config.
func FromStorageWithConfig(storage *columnar.Storage, cfg *config.EngineConfig) *Dataset {
	schema := storage.Schema()
	colMap := make(map[string]string, schema.Len())
	for _, n := range schema.Names() {
		colMap[n] = n
	}
	return &Dataset{
		storage: storage,
		schema:  schema,
		colMap:  colMap,
		fp:      fingerprint.Root(schemaDesc(schema), storage.NumRows()),
		cfg:     cfg,
	}
}

func schemaDesc(s *features.Schema) string {
	desc := ""
	for _, f := range s.Fields() {
		desc += f.Name + ":" + f.Feature.String() + ";"
	}
	return desc
}

// derive copies the view so an operation can change some fields without
// disturbing the receiver.
func (d *Dataset) derive() *Dataset {
	out := *d
	return &out
}

// Len returns the number of logical rows.
func (d *Dataset) Len() int {
	if d.indices != nil {
		return len(d.indices)
	}
	return d.storage.NumRows()
}

// Schema returns the visible schema.
func (d *Dataset) Schema() *features.Schema { return d.schema }

// ColumnNames returns the visible column names in order.
func (d *Dataset) ColumnNames() []string { return d.schema.Names() }

// Fingerprint returns the deterministic identity of this dataset state.
func (d *Dataset) Fingerprint() fingerprint.Fingerprint { return d.fp }

// Config returns the engine config this dataset was built with.
func (d *Dataset) Config() *config.EngineConfig { return d.cfg }

// RestoreFingerprint reinstates a persisted identity after loading, so a
// save/load round trip keeps pointing at the same cached artifacts.
func (d *Dataset) RestoreFingerprint(fp fingerprint.Fingerprint) { d.fp = fp }

// resolve maps a logical row to its storage row.
func (d *Dataset) resolve(i int) (int, error) {
	if i < 0 || i >= d.Len() {
		return 0, dserrors.Newf(dserrors.ErrorTypeIndexOutOfRange,
			"row %d out of range [0, %d)", i, d.Len())
	}
	if d.indices != nil {
		return d.indices[i], nil
	}
	return i, nil
}

// Row returns one logical row as native values, ignoring any output format.
func (d *Dataset) Row(i int) (map[string]interface{}, error) {
	storageRow, err := d.resolve(i)
	if err != nil {
		return nil, err
	}
	row := make(map[string]interface{}, d.schema.Len())
	for _, name := range d.schema.Names() {
		v, err := d.storage.Value(d.colMap[name], storageRow)
		if err != nil {
			return nil, err
		}
		row[name] = v
	}
	metrics.RowsRead.WithLabelValues("row").Inc()
	return row, nil
}

// Rows returns the native batch covering logical rows [lo, hi).
func (d *Dataset) Rows(lo, hi int) (map[string][]interface{}, error) {
	if lo < 0 || hi > d.Len() || lo > hi {
		return nil, dserrors.Newf(dserrors.ErrorTypeIndexOutOfRange,
			"range [%d, %d) out of range [0, %d)", lo, hi, d.Len())
	}
	batch := make(map[string][]interface{}, d.schema.Len())
	for _, name := range d.schema.Names() {
		vals := make([]interface{}, 0, hi-lo)
		for i := lo; i < hi; i++ {
			storageRow, err := d.resolve(i)
			if err != nil {
				return nil, err
			}
			v, err := d.storage.Value(d.colMap[name], storageRow)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		batch[name] = vals
	}
	metrics.RowsRead.WithLabelValues("batch").Add(float64(hi - lo))
	return batch, nil
}

// Column returns all values of one column in logical order.
func (d *Dataset) Column(name string) ([]interface{}, error) {
	if !d.schema.Has(name) {
		return nil, dserrors.Newf(dserrors.ErrorTypeNotFound, "no column %q", name)
	}
	n := d.Len()
	out := make([]interface{}, n)
	for i := 0; i < n; i++ {
		storageRow, err := d.resolve(i)
		if err != nil {
			return nil, err
		}
		v, err := d.storage.Value(d.colMap[name], storageRow)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// materialize writes a brand-new storage holding exactly the rows of this
// view, in logical order, under the visible schema.
func (d *Dataset) materialize() (*columnar.Storage, error) {
	b := columnar.NewBuilder(d.schema)
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
	return b.Build()
}
