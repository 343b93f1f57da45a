package dataset

import (
	"math/rand"

	"github.com/leadblacktech/datasets/pkg/columnar"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/fingerprint"
	"github.com/leadblacktech/datasets/pkg/metrics"
)

// StoppingStrategy controls when interleaving ends.
type StoppingStrategy string

const (
	// FirstExhausted stops the first time any source is exhausted.
	FirstExhausted StoppingStrategy = "first_exhausted"
	// AllExhausted wraps exhausted sources back to their start and stops
	// once every source has emitted each of its rows at least once.
	AllExhausted StoppingStrategy = "all_exhausted"
)

// InterleaveOptions configures Interleave.
type InterleaveOptions struct {
	// Probabilities weights the per-draw source choice. Nil alternates the
	// sources round-robin.
	Probabilities []float64
	Seed          int64
	Strategy      StoppingStrategy
}

// Interleave composes datasets row-wise, emitting the next unconsumed row of
// one source per draw. With explicit probabilities the source is drawn from a
// seeded categorical distribution; with nil probabilities sources alternate
// round-robin and the seed has no effect. Each source's cursor advances
// monotonically and independently. All inputs must share one schema. Under
// FirstExhausted the output never exceeds k times the shortest input.
func Interleave(datasets []*Dataset, opts InterleaveOptions) (*Dataset, error) {
	k := len(datasets)
	if k == 0 {
		return nil, dserrors.New(dserrors.ErrorTypeValidation, "nothing to interleave")
	}
	ref := datasets[0]
	for i, d := range datasets[1:] {
		if !d.schema.Equal(ref.schema) {
			return nil, dserrors.Newf(dserrors.ErrorTypeSchemaMismatch,
				"dataset %d schema %s does not match %s", i+1, schemaDesc(d.schema), schemaDesc(ref.schema))
		}
	}
	for i, d := range datasets {
		if d.Len() == 0 {
			return nil, dserrors.Newf(dserrors.ErrorTypeValidation,
				"dataset %d is empty", i)
		}
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = FirstExhausted
	}

	var next func() int
	if opts.Probabilities == nil {
		turn := 0
		next = func() int {
			src := turn
			turn = (turn + 1) % k
			return src
		}
	} else {
		cum, err := cumulative(opts.Probabilities, k)
		if err != nil {
			return nil, err
		}
		rng := rand.New(rand.NewSource(opts.Seed))
		next = func() int { return drawSource(rng, cum, k) }
	}

	cursors := make([]int, k)
	completed := make([]bool, k)
	remaining := k
	b := columnar.NewBuilder(ref.schema)

draw:
	for {
		src := next()
		d := datasets[src]
		if cursors[src] >= d.Len() {
			// Only AllExhausted wraps; FirstExhausted stops below, the
			// moment a cursor reaches its source length.
			cursors[src] = 0
		}
		row, err := d.Row(cursors[src])
		if err != nil {
			return nil, err
		}
		if err := b.AppendRow(row); err != nil {
			return nil, err
		}
		cursors[src]++
		if cursors[src] < d.Len() {
			continue
		}
		if strategy == FirstExhausted {
			break draw
		}
		if !completed[src] {
			completed[src] = true
			remaining--
			if remaining == 0 {
				break draw
			}
		}
	}

	storage, err := b.Build()
	if err != nil {
		return nil, err
	}
	metrics.Materializations.WithLabelValues("interleave").Inc()

	fps := make([]fingerprint.Fingerprint, k)
	for i, d := range datasets {
		fps[i] = d.fp
	}
	out := FromStorageWithConfig(storage, ref.cfg)
	combined := fingerprint.Combine("interleave", fps...)
	if opts.Probabilities == nil {
		out.fp = fingerprint.Update(combined, string(strategy))
	} else {
		out.fp = fingerprint.Update(combined, string(strategy), opts.Seed, opts.Probabilities)
	}
	return out, nil
}

// cumulative validates the probabilities and turns them into a normalized
// cumulative distribution.
func cumulative(probs []float64, k int) ([]float64, error) {
	cum := make([]float64, k)
	if len(probs) != k {
		return nil, dserrors.Newf(dserrors.ErrorTypeValidation,
			"%d probabilities for %d datasets", len(probs), k)
	}
	sum := 0.0
	for i, p := range probs {
		if p < 0 {
			return nil, dserrors.Newf(dserrors.ErrorTypeValidation,
				"negative probability %f at %d", p, i)
		}
		sum += p
	}
	if sum <= 0 {
		return nil, dserrors.New(dserrors.ErrorTypeValidation, "probabilities sum to zero")
	}
	acc := 0.0
	for i, p := range probs {
		acc += p / sum
		cum[i] = acc
	}
	cum[k-1] = 1.0
	return cum, nil
}

func drawSource(rng *rand.Rand, cum []float64, k int) int {
	x := rng.Float64()
	for i, c := range cum {
		if x < c {
			return i
		}
	}
	return k - 1
}
