package dataset

import (
	"math/rand"
	"sort"

	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
	"github.com/leadblacktech/datasets/pkg/fingerprint"
)

// currentIndices returns the resolved index mapping, materializing the
// identity mapping when none is set.
func (d *Dataset) currentIndices() []int {
	if d.indices != nil {
		out := make([]int, len(d.indices))
		copy(out, d.indices)
		return out
	}
	out := make([]int, d.storage.NumRows())
	for i := range out {
		out[i] = i
	}
	return out
}

// Sort returns a view sorted by one column. The sort is stable: ties keep
// their current relative order. Only totally orderable scalar columns can
// be sorted.
func (d *Dataset) Sort(column string, descending bool) (*Dataset, error) {
	f, err := d.schema.Get(column)
	if err != nil {
		return nil, err
	}
	if err := checkOrderable(f); err != nil {
		return nil, err
	}
	values, err := d.Column(column)
	if err != nil {
		return nil, err
	}

	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	var sortErr error
	sort.SliceStable(order, func(a, b int) bool {
		less, err := lessValue(values[order[a]], values[order[b]])
		if err != nil && sortErr == nil {
			sortErr = err
		}
		if descending {
			return !less && !equalValue(values[order[a]], values[order[b]])
		}
		return less
	})
	if sortErr != nil {
		return nil, sortErr
	}

	cur := d.currentIndices()
	indices := make([]int, len(order))
	for i, pos := range order {
		indices[i] = cur[pos]
	}

	out := d.derive()
	out.indices = indices
	out.fp = fingerprint.Update(d.fp, "sort", column, descending)
	return out, nil
}

func checkOrderable(f features.Feature) error {
	switch v := f.(type) {
	case features.Value:
		switch v.Dtype {
		case features.KindString, features.KindInt64, features.KindFloat64, features.KindBool:
			return nil
		}
	case features.ClassLabel:
		return nil
	}
	return dserrors.Newf(dserrors.ErrorTypeValidation,
		"column of type %s is not totally orderable", f)
}

func lessValue(a, b interface{}) (bool, error) {
	switch av := a.(type) {
	case int64:
		bv, ok := b.(int64)
		if !ok {
			break
		}
		return av < bv, nil
	case float64:
		bv, ok := b.(float64)
		if !ok {
			break
		}
		return av < bv, nil
	case string:
		bv, ok := b.(string)
		if !ok {
			break
		}
		return av < bv, nil
	case bool:
		bv, ok := b.(bool)
		if !ok {
			break
		}
		return !av && bv, nil
	}
	return false, dserrors.Newf(dserrors.ErrorTypeValidation,
		"cannot compare %T with %T", a, b)
}

func equalValue(a, b interface{}) bool {
	return a == b
}

// Shuffle returns a view whose rows are a seeded random permutation of the
// current view. The same seed always yields the same mapping.
func (d *Dataset) Shuffle(seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	return d.shuffleWith(rng, fingerprint.Update(d.fp, "shuffle", seed))
}

// ShuffleWithRand shuffles using a caller-supplied generator. Determinism is
// then the caller's responsibility.
func (d *Dataset) ShuffleWithRand(rng *rand.Rand) *Dataset {
	return d.shuffleWith(rng, fingerprint.Update(d.fp, "shuffle_rand"))
}

func (d *Dataset) shuffleWith(rng *rand.Rand, fp fingerprint.Fingerprint) *Dataset {
	cur := d.currentIndices()
	perm := rng.Perm(len(cur))
	indices := make([]int, len(cur))
	for i, p := range perm {
		indices[i] = cur[p]
	}
	out := d.derive()
	out.indices = indices
	out.fp = fp
	return out
}

// Select returns a view containing the given logical rows, in the given
// order. Entries may repeat. Out-of-range entries fail before any mapping
// is produced.
func (d *Dataset) Select(logical []int) (*Dataset, error) {
	n := d.Len()
	for _, idx := range logical {
		if idx < 0 || idx >= n {
			return nil, dserrors.Newf(dserrors.ErrorTypeIndexOutOfRange,
				"index %d out of range [0, %d)", idx, n)
		}
	}
	cur := d.currentIndices()
	indices := make([]int, len(logical))
	for i, idx := range logical {
		indices[i] = cur[idx]
	}
	out := d.derive()
	out.indices = indices
	out.fp = fingerprint.Update(d.fp, "select", len(logical), hashInts(logical))
	return out, nil
}

func hashInts(xs []int) uint64 {
	// FNV-1a keeps the fingerprint argument compact for long selections.
	var h uint64 = 14695981039346656037
	for _, x := range xs {
		h ^= uint64(x)
		h *= 1099511628211
	}
	return h
}

// Shard partitions the view into numShards near-equal parts and returns
// part index. With contiguous (the default elsewhere), shards are blocks
// with the remainder spread over the first shards; otherwise shard i takes
// every numShards-th row starting at i.
func (d *Dataset) Shard(numShards, index int, contiguous bool) (*Dataset, error) {
	if numShards <= 0 {
		return nil, dserrors.Newf(dserrors.ErrorTypeValidation,
			"num_shards must be positive, got %d", numShards)
	}
	if index < 0 || index >= numShards {
		return nil, dserrors.Newf(dserrors.ErrorTypeValidation,
			"shard index %d out of range [0, %d)", index, numShards)
	}
	n := d.Len()
	var logical []int
	if contiguous {
		lo, hi := shardBounds(n, numShards, index)
		logical = make([]int, 0, hi-lo)
		for i := lo; i < hi; i++ {
			logical = append(logical, i)
		}
	} else {
		for i := index; i < n; i += numShards {
			logical = append(logical, i)
		}
	}
	out, err := d.Select(logical)
	if err != nil {
		return nil, err
	}
	out.fp = fingerprint.Update(d.fp, "shard", numShards, index, contiguous)
	return out, nil
}

// shardBounds computes the [lo, hi) block of shard index when n rows are
// split into numShards contiguous near-equal parts, remainder to the first.
func shardBounds(n, numShards, index int) (int, int) {
	base := n / numShards
	rem := n % numShards
	lo := index*base + min(index, rem)
	size := base
	if index < rem {
		size++
	}
	return lo, lo + size
}

// SplitOptions configures TrainTestSplit.
type SplitOptions struct {
	// TestSize is an absolute row count when >= 1, a fraction of the
	// dataset when in (0, 1).
	TestSize float64
	// Shuffle controls whether rows are permuted before splitting.
	// Splitting without shuffling yields two contiguous blocks.
	Shuffle bool
	Seed    int64
}

// DefaultSplitOptions splits off a quarter after shuffling.
func DefaultSplitOptions() SplitOptions {
	return SplitOptions{TestSize: 0.25, Shuffle: true}
}

// TrainTestSplit partitions the view into a train and a test dataset.
func (d *Dataset) TrainTestSplit(opts SplitOptions) (train, test *Dataset, err error) {
	n := d.Len()
	var testRows int
	switch {
	case opts.TestSize <= 0:
		return nil, nil, dserrors.Newf(dserrors.ErrorTypeValidation,
			"test_size must be positive, got %f", opts.TestSize)
	case opts.TestSize < 1:
		testRows = int(float64(n) * opts.TestSize)
	default:
		testRows = int(opts.TestSize)
	}
	if testRows > n {
		return nil, nil, dserrors.Newf(dserrors.ErrorTypeIndexOutOfRange,
			"test size %d exceeds dataset length %d", testRows, n)
	}

	base := d
	if opts.Shuffle {
		base = d.Shuffle(opts.Seed)
	}
	cur := base.currentIndices()

	trainDS := d.derive()
	trainDS.indices = cur[:n-testRows]
	trainDS.fp = fingerprint.Update(d.fp, "split_train", opts.TestSize, opts.Shuffle, opts.Seed)

	testDS := d.derive()
	testDS.indices = cur[n-testRows:]
	testDS.fp = fingerprint.Update(d.fp, "split_test", opts.TestSize, opts.Shuffle, opts.Seed)

	return trainDS, testDS, nil
}

// FlattenIndices materializes a new storage containing exactly the rows of
// this view, in order, and drops the index mapping. This restores O(1)
// contiguous access at the cost of one full copy; it is the only index
// operation that rewrites storage.
func (d *Dataset) FlattenIndices() (*Dataset, error) {
	storage, err := d.materialize()
	if err != nil {
		return nil, err
	}
	out := d.derive()
	out.storage = storage
	out.indices = nil
	out.schema = storage.Schema()
	out.colMap = identityColMap(storage.Schema())
	out.fp = fingerprint.Update(d.fp, "flatten_indices")
	return out, nil
}

func identityColMap(s *features.Schema) map[string]string {
	m := make(map[string]string, s.Len())
	for _, n := range s.Names() {
		m[n] = n
	}
	return m
}
