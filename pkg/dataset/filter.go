package dataset

import (
	"context"
	"errors"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/fingerprint"
	"github.com/leadblacktech/datasets/pkg/metrics"
)

// FilterRowFunc decides whether one row is kept.
type FilterRowFunc func(row map[string]interface{}, info CallInfo) (bool, error)

// FilterBatchFunc decides for a whole batch at once; the returned slice
// must have one entry per input row.
type FilterBatchFunc func(batch map[string][]interface{}, info CallInfo) ([]bool, error)

// FilterOptions configures Filter and FilterBatches.
type FilterOptions struct {
	BatchSize   int
	WithIndices bool
	WithRank    bool
	NumProc     int
}

// Filter returns a view containing the rows for which the predicate is
// true, preserving order. Only the index mapping changes; no storage is
// written.
func (d *Dataset) Filter(pred FilterRowFunc, opts FilterOptions) (*Dataset, error) {
	run := func(ctx context.Context, rank, lo, hi int, keep []bool) error {
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			row, err := d.Row(i)
			if err != nil {
				return err
			}
			info := CallInfo{}
			if opts.WithIndices {
				info.Index = i
			}
			if opts.WithRank {
				info.Rank = rank
			}
			timer := metrics.NewTimer("filter")
			ok, err := pred(row, info)
			timer.Stop()
			if err != nil {
				metrics.CallbacksExecuted.WithLabelValues("filter", "error").Inc()
				return dserrors.Wrap(err, dserrors.ErrorTypeCallback, "filter predicate failed").
					WithDetail("index", i).
					WithDetail("rank", rank)
			}
			metrics.CallbacksExecuted.WithLabelValues("filter", "ok").Inc()
			keep[i] = ok
		}
		return nil
	}
	return d.runFilter(opts.NumProc, run)
}

// FilterBatches is the batched form of Filter.
func (d *Dataset) FilterBatches(pred FilterBatchFunc, opts FilterOptions) (*Dataset, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = d.cfg.DefaultBatchSize
	}
	run := func(ctx context.Context, rank, lo, hi int, keep []bool) error {
		for bLo := lo; bLo < hi; bLo += batchSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			bHi := bLo + batchSize
			if bHi > hi {
				bHi = hi
			}
			batch, err := d.Rows(bLo, bHi)
			if err != nil {
				return err
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
			timer := metrics.NewTimer("filter_batched")
			mask, err := pred(batch, info)
			timer.Stop()
			if err != nil {
				metrics.CallbacksExecuted.WithLabelValues("filter_batched", "error").Inc()
				return dserrors.Wrap(err, dserrors.ErrorTypeCallback, "filter predicate failed").
					WithDetail("batch_start", bLo).
					WithDetail("rank", rank)
			}
			metrics.CallbacksExecuted.WithLabelValues("filter_batched", "ok").Inc()
			if len(mask) != bHi-bLo {
				return dserrors.Newf(dserrors.ErrorTypeCallback,
					"predicate returned %d decisions for %d rows", len(mask), bHi-bLo)
			}
			copy(keep[bLo:bHi], mask)
		}
		return nil
	}
	return d.runFilter(opts.NumProc, run)
}

// runFilter evaluates the predicate over disjoint shards into a shared keep
// mask (no overlap, so no locking), then builds the filtered index mapping.
func (d *Dataset) runFilter(numProc int,
	run func(ctx context.Context, rank, lo, hi int, keep []bool) error) (*Dataset, error) {

	n := d.Len()
	procs := numProc
	if procs <= 1 {
		procs = 1
	}
	if max := d.cfg.Procs(); procs > max {
		procs = max
	}
	if procs > n && n > 0 {
		procs = n
	}

	keep := make([]bool, n)
	if procs == 1 {
		if err := run(context.Background(), 0, 0, n, keep); err != nil {
			return nil, err
		}
	} else {
		g, ctx := errgroup.WithContext(context.Background())
		errs := make([]error, procs)
		for rank := 0; rank < procs; rank++ {
			rank := rank
			lo, hi := shardBounds(n, procs, rank)
			g.Go(func() error {
				metrics.ActiveWorkers.Inc()
				defer metrics.ActiveWorkers.Dec()
				if err := run(ctx, rank, lo, hi, keep); err != nil {
					errs[rank] = err
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
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
				"filter workers failed")
		}
	}

	cur := d.currentIndices()
	var indices []int
	for i, ok := range keep {
		if ok {
			indices = append(indices, cur[i])
		}
	}
	if indices == nil {
		indices = []int{}
	}
	metrics.RowsRead.WithLabelValues("filter").Add(float64(n))

	out := d.derive()
	out.indices = indices
	out.fp = fingerprint.Update(d.fp, "filter", n, len(indices))
	return out, nil
}
