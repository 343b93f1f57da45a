package dataset

import (
	"github.com/leadblacktech/datasets/pkg/columnar"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
	"github.com/leadblacktech/datasets/pkg/fingerprint"
	"github.com/leadblacktech/datasets/pkg/metrics"
)

// Batch groups consecutive rows: logical row i of the result holds the
// ordered values of input rows [i*batchSize, (i+1)*batchSize) as nested
// sequences. Unlike batched Map, the output stays nested instead of being
// flattened back to one row per example. The final partial batch is kept
// unless dropLastBatch is set. Grouping is a cheap sequential reshape and
// takes no worker count.
func (d *Dataset) Batch(batchSize int, dropLastBatch bool) (*Dataset, error) {
	if batchSize <= 0 {
		return nil, dserrors.Newf(dserrors.ErrorTypeValidation,
			"batch_size must be positive, got %d", batchSize)
	}

	fields := d.schema.Fields()
	for i := range fields {
		fields[i].Feature = features.Sequence{Inner: fields[i].Feature}
	}
	schema, err := features.NewSchema(fields)
	if err != nil {
		return nil, err
	}

	n := d.Len()
	numBatches := n / batchSize
	if !dropLastBatch && n%batchSize != 0 {
		numBatches++
	}

	b := columnar.NewBuilder(schema)
	for bi := 0; bi < numBatches; bi++ {
		lo := bi * batchSize
		hi := lo + batchSize
		if hi > n {
			hi = n
		}
		batch, err := d.Rows(lo, hi)
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(batch))
		for name, vals := range batch {
			row[name] = vals
		}
		if err := b.AppendRow(row); err != nil {
			return nil, err
		}
	}
	storage, err := b.Build()
	if err != nil {
		return nil, err
	}
	metrics.Materializations.WithLabelValues("batch").Inc()

	out := d.derive()
	out.storage = storage
	out.indices = nil
	out.schema = schema
	out.colMap = identityColMap(schema)
	out.fp = fingerprint.Update(d.fp, "batch", batchSize, dropLastBatch)
	return out, nil
}
