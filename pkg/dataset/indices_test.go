package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadblacktech/datasets/pkg/dataset"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
)

func TestSort(t *testing.T) {
	d := buildDataset(t, []features.Field{
		{Name: "name", Feature: features.Value{Dtype: features.KindString}},
		{Name: "rank", Feature: features.Value{Dtype: features.KindInt64}},
	}, []map[string]interface{}{
		{"name": "c", "rank": int64(2)},
		{"name": "a", "rank": int64(3)},
		{"name": "b", "rank": int64(2)},
		{"name": "d", "rank": int64(1)},
	})

	t.Run("ascending", func(t *testing.T) {
		sorted, err := d.Sort("rank", false)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 2, 3}, intColumn(t, sorted, "rank"))
	})

	t.Run("stable ties", func(t *testing.T) {
		sorted, err := d.Sort("rank", false)
		require.NoError(t, err)
		names, err := sorted.Column("name")
		require.NoError(t, err)
		// rank 2 appears twice; "c" came before "b" and must stay there.
		assert.Equal(t, []interface{}{"d", "c", "b", "a"}, names)
	})

	t.Run("descending", func(t *testing.T) {
		sorted, err := d.Sort("rank", true)
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 2, 2, 1}, intColumn(t, sorted, "rank"))
	})

	t.Run("unorderable column", func(t *testing.T) {
		seq := buildDataset(t, []features.Field{
			{Name: "xs", Feature: features.Sequence{Inner: features.Value{Dtype: features.KindInt64}}},
		}, []map[string]interface{}{
			{"xs": []interface{}{int64(1)}},
		})
		_, err := seq.Sort("xs", false)
		require.Error(t, err)
		assert.True(t, dserrors.IsType(err, dserrors.ErrorTypeValidation))
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := d.Sort("missing", false)
		assert.Error(t, err)
	})
}

func TestShuffleDeterminism(t *testing.T) {
	d := intDataset(t, 100)

	a := d.Shuffle(42)
	b := d.Shuffle(42)
	assert.Equal(t, intColumn(t, a, "a"), intColumn(t, b, "a"))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c := d.Shuffle(43)
	assert.NotEqual(t, intColumn(t, a, "a"), intColumn(t, c, "a"))

	want := make([]int64, 100)
	for i := range want {
		want[i] = int64(i)
	}
	assert.ElementsMatch(t, want, intColumn(t, a, "a"))
}

func TestSelect(t *testing.T) {
	d := intDataset(t, 5)

	t.Run("order and repeats", func(t *testing.T) {
		sel, err := d.Select([]int{4, 0, 4, 2})
		require.NoError(t, err)
		assert.Equal(t, []int64{4, 0, 4, 2}, intColumn(t, sel, "a"))
	})

	t.Run("composes through prior views", func(t *testing.T) {
		rev, err := d.Select([]int{4, 3, 2, 1, 0})
		require.NoError(t, err)
		sel, err := rev.Select([]int{0, 1})
		require.NoError(t, err)
		assert.Equal(t, []int64{4, 3}, intColumn(t, sel, "a"))
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := d.Select([]int{0, 5})
		require.Error(t, err)
		assert.True(t, dserrors.IsType(err, dserrors.ErrorTypeIndexOutOfRange))
	})

	t.Run("empty selection", func(t *testing.T) {
		sel, err := d.Select(nil)
		require.NoError(t, err)
		assert.Equal(t, 0, sel.Len())
	})
}

func TestShard(t *testing.T) {
	d := intDataset(t, 6)

	t.Run("contiguous middle shard", func(t *testing.T) {
		s, err := d.Shard(3, 1, true)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 3}, intColumn(t, s, "a"))
	})

	t.Run("contiguous remainder goes first", func(t *testing.T) {
		d7 := intDataset(t, 7)
		s0, err := d7.Shard(3, 0, true)
		require.NoError(t, err)
		s1, err := d7.Shard(3, 1, true)
		require.NoError(t, err)
		s2, err := d7.Shard(3, 2, true)
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1, 2}, intColumn(t, s0, "a"))
		assert.Equal(t, []int64{3, 4}, intColumn(t, s1, "a"))
		assert.Equal(t, []int64{5, 6}, intColumn(t, s2, "a"))
	})

	t.Run("strided", func(t *testing.T) {
		s, err := d.Shard(3, 1, false)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 4}, intColumn(t, s, "a"))
	})

	t.Run("shards cover the dataset", func(t *testing.T) {
		var got []int64
		for i := 0; i < 4; i++ {
			s, err := d.Shard(4, i, true)
			require.NoError(t, err)
			got = append(got, intColumn(t, s, "a")...)
		}
		assert.Equal(t, []int64{0, 1, 2, 3, 4, 5}, got)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		_, err := d.Shard(0, 0, true)
		assert.Error(t, err)
		_, err = d.Shard(3, 3, true)
		assert.Error(t, err)
		_, err = d.Shard(3, -1, true)
		assert.Error(t, err)
	})
}

func TestTrainTestSplit(t *testing.T) {
	d := intDataset(t, 20)

	t.Run("fractional size", func(t *testing.T) {
		train, test, err := d.TrainTestSplit(dataset.SplitOptions{TestSize: 0.25, Shuffle: true, Seed: 1})
		require.NoError(t, err)
		assert.Equal(t, 15, train.Len())
		assert.Equal(t, 5, test.Len())

		both := append(intColumn(t, train, "a"), intColumn(t, test, "a")...)
		want := make([]int64, 20)
		for i := range want {
			want[i] = int64(i)
		}
		assert.ElementsMatch(t, want, both)
	})

	t.Run("absolute size", func(t *testing.T) {
		train, test, err := d.TrainTestSplit(dataset.SplitOptions{TestSize: 3})
		require.NoError(t, err)
		assert.Equal(t, 17, train.Len())
		assert.Equal(t, 3, test.Len())
	})

	t.Run("unshuffled split is contiguous", func(t *testing.T) {
		train, test, err := d.TrainTestSplit(dataset.SplitOptions{TestSize: 5, Shuffle: false})
		require.NoError(t, err)
		assert.Equal(t, []int64{15, 16, 17, 18, 19}, intColumn(t, test, "a"))
		assert.Equal(t, int64(0), intColumn(t, train, "a")[0])
	})

	t.Run("seeded split is reproducible", func(t *testing.T) {
		opts := dataset.SplitOptions{TestSize: 0.5, Shuffle: true, Seed: 9}
		_, test1, err := d.TrainTestSplit(opts)
		require.NoError(t, err)
		_, test2, err := d.TrainTestSplit(opts)
		require.NoError(t, err)
		assert.Equal(t, intColumn(t, test1, "a"), intColumn(t, test2, "a"))
	})

	t.Run("invalid sizes", func(t *testing.T) {
		_, _, err := d.TrainTestSplit(dataset.SplitOptions{TestSize: 0})
		assert.Error(t, err)
		_, _, err = d.TrainTestSplit(dataset.SplitOptions{TestSize: 21})
		assert.Error(t, err)
	})
}

func TestFlattenIndices(t *testing.T) {
	d := intDataset(t, 8)
	shuffled := d.Shuffle(5)
	want := intColumn(t, shuffled, "a")

	flat, err := shuffled.FlattenIndices()
	require.NoError(t, err)
	assert.Equal(t, want, intColumn(t, flat, "a"))

	// Flattening an already contiguous view changes nothing visible.
	again, err := flat.FlattenIndices()
	require.NoError(t, err)
	assert.Equal(t, want, intColumn(t, again, "a"))
}
