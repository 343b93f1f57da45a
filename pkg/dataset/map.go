package dataset

import (
	"context"
	"errors"
	"sort"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leadblacktech/datasets/pkg/columnar"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
	"github.com/leadblacktech/datasets/pkg/fingerprint"
	"github.com/leadblacktech/datasets/pkg/logger"
	"github.com/leadblacktech/datasets/pkg/metrics"
)

// CallInfo carries the optional extra arguments of a user callback: the
// logical index (or indices, in batched mode) of the rows being processed
// and the stable rank of the worker executing the call. Fields are only
// populated when the corresponding option is set.
type CallInfo struct {
	Index   int
	Indices []int
	Rank    int
}

// RowFunc transforms one row. The returned map is merged into the input
// row: new keys add columns, existing keys overwrite them.
type RowFunc func(row map[string]interface{}, info CallInfo) (map[string]interface{}, error)

// BatchFunc transforms a batch given as column-name keyed slices. Every
// returned slice must have one common length, which may differ from the
// input batch length: a batch may expand into more rows or contract into
// fewer.
type BatchFunc func(batch map[string][]interface{}, info CallInfo) (map[string][]interface{}, error)

// MapOptions configures Map and MapBatches.
type MapOptions struct {
	// BatchSize is the number of consecutive logical rows per callback in
	// batched mode. Zero means the engine config default.
	BatchSize int
	// WithIndices populates CallInfo.Index / CallInfo.Indices.
	WithIndices bool
	// WithRank populates CallInfo.Rank.
	WithRank bool
	// RemoveColumns are dropped from the output after the callback ran, so
	// the callback may still read them.
	RemoveColumns []string
	// NumProc > 1 splits the logical rows into that many contiguous shards
	// processed by parallel workers with ranks 0..NumProc-1.
	NumProc int
	// Features fixes the output schema. When nil it is inferred from the
	// first transformed row.
	Features *features.Schema
}

// shardResult is the ordered output of one worker.
type shardResult struct {
	rows   []map[string]interface{}
	fnKeys map[string]bool
}

// Map applies fn to every row and materializes the transformed rows into a
// new storage. The result is a fresh identity view; the input dataset and
// its storage are untouched. A failing callback aborts the whole operation,
// discarding rows computed so far.
func (d *Dataset) Map(fn RowFunc, opts MapOptions) (*Dataset, error) {
	if err := validateRemoveColumns(d.schema, opts.RemoveColumns); err != nil {
		return nil, err
	}
	removeSet := toSet(opts.RemoveColumns)
	run := func(ctx context.Context, rank, lo, hi int) (*shardResult, error) {
		res := &shardResult{fnKeys: make(map[string]bool)}
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			row, err := d.Row(i)
			if err != nil {
				return nil, err
			}
			info := CallInfo{}
			if opts.WithIndices {
				info.Index = i
			}
			if opts.WithRank {
				info.Rank = rank
			}
			timer := metrics.NewTimer("map")
			out, err := fn(row, info)
			timer.Stop()
			if err != nil {
				metrics.CallbacksExecuted.WithLabelValues("map", "error").Inc()
				return nil, dserrors.Wrap(err, dserrors.ErrorTypeCallback, "map callback failed").
					WithDetail("index", i).
					WithDetail("rank", rank)
			}
			metrics.CallbacksExecuted.WithLabelValues("map", "ok").Inc()
			for k := range out {
				res.fnKeys[k] = true
			}
			res.rows = append(res.rows, mergeRow(row, out, removeSet))
		}
		return res, nil
	}
	return d.runMap("map", opts, run)
}

// MapBatches applies fn to consecutive batches of rows. Output batches are
// concatenated in input order, so a row-count-preserving batched transform
// yields the same row order as the non-batched form.
func (d *Dataset) MapBatches(fn BatchFunc, opts MapOptions) (*Dataset, error) {
	if err := validateRemoveColumns(d.schema, opts.RemoveColumns); err != nil {
		return nil, err
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = d.cfg.DefaultBatchSize
	}
	removeSet := toSet(opts.RemoveColumns)
	run := func(ctx context.Context, rank, lo, hi int) (*shardResult, error) {
		res := &shardResult{fnKeys: make(map[string]bool)}
		for bLo := lo; bLo < hi; bLo += batchSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			bHi := bLo + batchSize
			if bHi > hi {
				bHi = hi
			}
			batch, err := d.Rows(bLo, bHi)
			if err != nil {
				return nil, err
			}
			info := CallInfo{}
			if opts.WithIndices {
				indices := make([]int, 0, bHi-bLo)
				for i := bLo; i < bHi; i++ {
					indices = append(indices, i)
				}
				info.Indices = indices
			}
			if opts.WithRank {
				info.Rank = rank
			}
			timer := metrics.NewTimer("map_batched")
			out, err := fn(batch, info)
			timer.Stop()
			if err != nil {
				metrics.CallbacksExecuted.WithLabelValues("map_batched", "error").Inc()
				return nil, dserrors.Wrap(err, dserrors.ErrorTypeCallback, "map callback failed").
					WithDetail("batch_start", bLo).
					WithDetail("rank", rank)
			}
			metrics.CallbacksExecuted.WithLabelValues("map_batched", "ok").Inc()
			rows, err := batchToRows(batch, out, bHi-bLo, removeSet, d.schema.Names())
			if err != nil {
				return nil, err
			}
			for k := range out {
				res.fnKeys[k] = true
			}
			res.rows = append(res.rows, rows...)
		}
		return res, nil
	}
	return d.runMap("map_batched", opts, run)
}

// runMap fans a shard function out over NumProc workers, joins them, and
// materializes the concatenated results in shard order.
func (d *Dataset) runMap(op string, opts MapOptions,
	run func(ctx context.Context, rank, lo, hi int) (*shardResult, error)) (*Dataset, error) {

	n := d.Len()
	procs := opts.NumProc
	if procs <= 1 {
		procs = 1
	}
	if max := d.cfg.Procs(); procs > max {
		procs = max
	}
	if procs > n && n > 0 {
		procs = n
	}

	logger.Debug("running transform",
		zap.String("operation", op),
		zap.Int("rows", n),
		zap.Int("num_proc", procs))

	results := make([]*shardResult, procs)
	if procs == 1 {
		res, err := run(context.Background(), 0, 0, n)
		if err != nil {
			return nil, err
		}
		results[0] = res
	} else {
		g, ctx := errgroup.WithContext(context.Background())
		errs := make([]error, procs)
		for rank := 0; rank < procs; rank++ {
			rank := rank
			lo, hi := shardBounds(n, procs, rank)
			g.Go(func() error {
				metrics.ActiveWorkers.Inc()
				defer metrics.ActiveWorkers.Dec()
				res, err := run(ctx, rank, lo, hi)
				if err != nil {
					errs[rank] = err
					return err
				}
				results[rank] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			// Surface every worker failure, first one first.
			var agg *multierror.Error
			for _, e := range errs {
				if e != nil && !errors.Is(e, context.Canceled) {
					agg = multierror.Append(agg, e)
				}
			}
			if agg == nil {
				return nil, err
			}
			return nil, dserrors.Wrap(agg.ErrorOrNil(), dserrors.ErrorTypeCallback,
				"transform workers failed")
		}
	}

	schema, err := d.outputSchema(opts, results)
	if err != nil {
		return nil, err
	}
	b := columnar.NewBuilder(schema)
	for _, res := range results {
		if res == nil {
			continue
		}
		for _, row := range res.rows {
			if err := b.AppendRow(row); err != nil {
				return nil, err
			}
		}
	}
	storage, err := b.Build()
	if err != nil {
		return nil, err
	}
	metrics.Materializations.WithLabelValues(op).Inc()
	metrics.RowsRead.WithLabelValues("map").Add(float64(n))

	out := d.derive()
	out.storage = storage
	out.indices = nil
	out.schema = schema
	out.colMap = identityColMap(schema)
	out.format = formatState{}
	out.fp = fingerprint.Update(d.fp, op, n, opts.BatchSize, len(opts.RemoveColumns))
	return out, nil
}

// outputSchema fixes the schema of a transform's result: declared features
// win; otherwise surviving input columns keep their feature unless the
// callback overwrote them, and brand-new columns are inferred from the
// first transformed row and appended in name order.
func (d *Dataset) outputSchema(opts MapOptions, results []*shardResult) (*features.Schema, error) {
	if opts.Features != nil {
		return opts.Features, nil
	}
	removeSet := toSet(opts.RemoveColumns)

	var first map[string]interface{}
	fnKeys := make(map[string]bool)
	for _, res := range results {
		if res == nil {
			continue
		}
		for k := range res.fnKeys {
			fnKeys[k] = true
		}
		if first == nil && len(res.rows) > 0 {
			first = res.rows[0]
		}
	}
	if first == nil {
		// Nothing produced; the surviving input columns are the best guess.
		return d.schema.Remove(opts.RemoveColumns...)
	}

	var fields []features.Field
	seen := make(map[string]bool)
	for _, f := range d.schema.Fields() {
		if removeSet[f.Name] {
			continue
		}
		seen[f.Name] = true
		if fnKeys[f.Name] {
			fields = append(fields, features.Field{Name: f.Name, Feature: features.Infer(first[f.Name])})
		} else {
			fields = append(fields, f)
		}
	}
	var newNames []string
	for k := range first {
		if !seen[k] {
			newNames = append(newNames, k)
		}
	}
	sort.Strings(newNames)
	for _, k := range newNames {
		fields = append(fields, features.Field{Name: k, Feature: features.Infer(first[k])})
	}
	return features.NewSchema(fields)
}

// batchToRows merges a callback's output batch with the surviving input
// columns and splits it into rows. The output length rules the batch: input
// columns are only carried over when the callback kept the row count.
func batchToRows(in, out map[string][]interface{}, inLen int,
	removeSet map[string]bool, inOrder []string) ([]map[string]interface{}, error) {

	outLen := -1
	for name, vals := range out {
		if outLen == -1 {
			outLen = len(vals)
		} else if len(vals) != outLen {
			return nil, dserrors.Newf(dserrors.ErrorTypeCallback,
				"ragged output batch: column %q has %d values, want %d", name, len(vals), outLen)
		}
	}
	if outLen == -1 {
		outLen = inLen
	}

	for _, name := range inOrder {
		if removeSet[name] {
			continue
		}
		if _, ok := out[name]; ok {
			continue
		}
		if outLen != inLen {
			return nil, dserrors.Newf(dserrors.ErrorTypeCallback,
				"batch changed row count from %d to %d but did not return column %q; remove it or return it",
				inLen, outLen, name)
		}
	}

	rows := make([]map[string]interface{}, outLen)
	for i := 0; i < outLen; i++ {
		row := make(map[string]interface{})
		for _, name := range inOrder {
			if removeSet[name] {
				continue
			}
			if vals, ok := out[name]; ok {
				row[name] = vals[i]
			} else {
				row[name] = in[name][i]
			}
		}
		for name, vals := range out {
			if _, done := row[name]; !done && !removeSet[name] {
				row[name] = vals[i]
			}
		}
		rows[i] = row
	}
	return rows, nil
}

// mergeRow overlays a callback's output onto the input row, then drops the
// removed columns.
func mergeRow(in, out map[string]interface{}, removeSet map[string]bool) map[string]interface{} {
	merged := make(map[string]interface{}, len(in)+len(out))
	for k, v := range in {
		merged[k] = v
	}
	for k, v := range out {
		merged[k] = v
	}
	for k := range removeSet {
		delete(merged, k)
	}
	return merged
}

func validateRemoveColumns(schema *features.Schema, names []string) error {
	for _, n := range names {
		if !schema.Has(n) {
			return dserrors.Newf(dserrors.ErrorTypeNotFound,
				"remove_columns: no column %q", n)
		}
	}
	return nil
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
