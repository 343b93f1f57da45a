package dataset

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/leadblacktech/datasets/pkg/columnar"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/fingerprint"
	"github.com/leadblacktech/datasets/pkg/metrics"
)

// AsyncRowFunc is a suspend-capable row transform, typically performing
// network calls. The engine drives many invocations concurrently on the
// cooperative scheduler; no extra OS-level workers are spawned.
type AsyncRowFunc func(ctx context.Context, row map[string]interface{}, info CallInfo) (map[string]interface{}, error)

// MapAsync applies an asynchronous callback to every row, driving at most
// the configured number of invocations at once (MaxAsyncConcurrency,
// default 1000). Completion order is arbitrary but output rows are always
// emitted in logical index order. Callbacks that talk to rate-limited
// services should additionally gate their own outbound calls; the engine
// bound only caps in-flight invocations.
func (d *Dataset) MapAsync(ctx context.Context, fn AsyncRowFunc, opts MapOptions) (*Dataset, error) {
	if err := validateRemoveColumns(d.schema, opts.RemoveColumns); err != nil {
		return nil, err
	}
	bound := int64(d.cfg.MaxAsyncConcurrency)
	if bound <= 0 {
		bound = 1000
	}
	removeSet := toSet(opts.RemoveColumns)

	n := d.Len()
	ordered := make([]map[string]interface{}, n)
	fnKeys := make(map[string]bool)
	var fnKeysMu sync.Mutex

	sem := semaphore.NewWeighted(bound)
	g, gctx := errgroup.WithContext(ctx)

	var acquireErr error
	for i := 0; i < n; i++ {
		i := i
		if err := sem.Acquire(gctx, 1); err != nil {
			acquireErr = err // a failed callback or outside cancellation
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			row, err := d.Row(i)
			if err != nil {
				return err
			}
			info := CallInfo{}
			if opts.WithIndices {
				info.Index = i
			}
			timer := metrics.NewTimer("map_async")
			out, err := fn(gctx, row, info)
			timer.Stop()
			if err != nil {
				metrics.CallbacksExecuted.WithLabelValues("map_async", "error").Inc()
				return dserrors.Wrap(err, dserrors.ErrorTypeCallback, "async callback failed").
					WithDetail("index", i)
			}
			metrics.CallbacksExecuted.WithLabelValues("map_async", "ok").Inc()
			fnKeysMu.Lock()
			for k := range out {
				fnKeys[k] = true
			}
			fnKeysMu.Unlock()
			ordered[i] = mergeRow(row, out, removeSet)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if acquireErr != nil {
		return nil, acquireErr
	}

	res := &shardResult{rows: ordered, fnKeys: fnKeys}
	schema, err := d.outputSchema(opts, []*shardResult{res})
	if err != nil {
		return nil, err
	}
	b := columnar.NewBuilder(schema)
	for _, row := range ordered {
		if err := b.AppendRow(row); err != nil {
			return nil, err
		}
	}
	storage, err := b.Build()
	if err != nil {
		return nil, err
	}
	metrics.Materializations.WithLabelValues("map_async").Inc()
	metrics.RowsRead.WithLabelValues("map").Add(float64(n))

	out := d.derive()
	out.storage = storage
	out.indices = nil
	out.schema = schema
	out.colMap = identityColMap(schema)
	out.format = formatState{}
	out.fp = fingerprint.Update(d.fp, "map_async", n, len(opts.RemoveColumns))
	return out, nil
}
