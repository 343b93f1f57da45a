package dataset_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadblacktech/datasets/pkg/columnar"
	"github.com/leadblacktech/datasets/pkg/config"
	"github.com/leadblacktech/datasets/pkg/dataset"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
)

func double(row map[string]interface{}, _ dataset.CallInfo) (map[string]interface{}, error) {
	return map[string]interface{}{"a": row["a"].(int64) * 2}, nil
}

func TestMap(t *testing.T) {
	d := intDataset(t, 6)

	t.Run("sequential", func(t *testing.T) {
		out, err := d.Map(double, dataset.MapOptions{})
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 2, 4, 6, 8, 10}, intColumn(t, out, "a"))
	})

	t.Run("parallel preserves order", func(t *testing.T) {
		out, err := d.Map(double, dataset.MapOptions{NumProc: 3})
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 2, 4, 6, 8, 10}, intColumn(t, out, "a"))
	})

	t.Run("input untouched", func(t *testing.T) {
		_, err := d.Map(double, dataset.MapOptions{})
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1, 2, 3, 4, 5}, intColumn(t, d, "a"))
	})

	t.Run("over a shuffled view", func(t *testing.T) {
		shuffled := d.Shuffle(11)
		want := intColumn(t, shuffled, "a")
		out, err := shuffled.Map(double, dataset.MapOptions{NumProc: 2})
		require.NoError(t, err)
		got := intColumn(t, out, "a")
		for i := range want {
			assert.Equal(t, want[i]*2, got[i])
		}
	})
}

func TestMapAddsColumn(t *testing.T) {
	d := intDataset(t, 4)
	out, err := d.Map(func(row map[string]interface{}, _ dataset.CallInfo) (map[string]interface{}, error) {
		return map[string]interface{}{"squared": row["a"].(int64) * row["a"].(int64)}, nil
	}, dataset.MapOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "squared"}, out.ColumnNames())
	assert.Equal(t, []int64{0, 1, 4, 9}, intColumn(t, out, "squared"))
	assert.Equal(t, []int64{0, 1, 2, 3}, intColumn(t, out, "a"))
}

func TestMapRemoveColumns(t *testing.T) {
	d := buildDataset(t, []features.Field{
		{Name: "text", Feature: features.Value{Dtype: features.KindString}},
		{Name: "raw", Feature: features.Value{Dtype: features.KindString}},
	}, []map[string]interface{}{
		{"text": "", "raw": "keep me readable"},
	})

	out, err := d.Map(func(row map[string]interface{}, _ dataset.CallInfo) (map[string]interface{}, error) {
		// The callback still sees the column being removed.
		return map[string]interface{}{"text": row["raw"].(string)}, nil
	}, dataset.MapOptions{RemoveColumns: []string{"raw"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"text"}, out.ColumnNames())
	row, err := out.Row(0)
	require.NoError(t, err)
	assert.Equal(t, "keep me readable", row["text"])

	_, err = d.Map(double, dataset.MapOptions{RemoveColumns: []string{"missing"}})
	require.Error(t, err)
	assert.True(t, dserrors.IsType(err, dserrors.ErrorTypeNotFound))
}

func TestMapWithIndicesAndRank(t *testing.T) {
	cfg := config.Default()
	cfg.MaxProcs = 2

	schema := features.MustNewSchema([]features.Field{
		{Name: "a", Feature: features.Value{Dtype: features.KindInt64}},
	})
	b := columnar.NewBuilder(schema)
	for i := 0; i < 8; i++ {
		require.NoError(t, b.AppendRow(map[string]interface{}{"a": int64(i)}))
	}
	storage, err := b.Build()
	require.NoError(t, err)
	d := dataset.FromStorageWithConfig(storage, cfg)

	out, err := d.Map(func(row map[string]interface{}, info dataset.CallInfo) (map[string]interface{}, error) {
		return map[string]interface{}{
			"idx":  int64(info.Index),
			"rank": int64(info.Rank),
		}, nil
	}, dataset.MapOptions{WithIndices: true, WithRank: true, NumProc: 2})
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7}, intColumn(t, out, "idx"))
	ranks := intColumn(t, out, "rank")
	assert.Equal(t, []int64{0, 0, 0, 0, 1, 1, 1, 1}, ranks)
}

func TestMapCallbackError(t *testing.T) {
	d := intDataset(t, 10)
	boom := fmt.Errorf("bad row")

	_, err := d.Map(func(row map[string]interface{}, _ dataset.CallInfo) (map[string]interface{}, error) {
		if row["a"].(int64) == 7 {
			return nil, boom
		}
		return row, nil
	}, dataset.MapOptions{NumProc: 2})
	require.Error(t, err)
	assert.True(t, dserrors.IsType(err, dserrors.ErrorTypeCallback))

	// The failed operation produced nothing; the input is intact.
	assert.Equal(t, 10, d.Len())
}

func TestMapDeclaredFeatures(t *testing.T) {
	d := intDataset(t, 3)
	declared := features.MustNewSchema([]features.Field{
		{Name: "a", Feature: features.Value{Dtype: features.KindFloat64}},
	})
	out, err := d.Map(func(row map[string]interface{}, _ dataset.CallInfo) (map[string]interface{}, error) {
		return map[string]interface{}{"a": row["a"]}, nil
	}, dataset.MapOptions{Features: declared})
	require.NoError(t, err)

	assert.True(t, out.Schema().Equal(declared))
	vals, err := out.Column("a")
	require.NoError(t, err)
	assert.Equal(t, float64(2), vals[2])
}

func TestMapBatches(t *testing.T) {
	d := intDataset(t, 10)

	t.Run("doubling keeps order", func(t *testing.T) {
		out, err := d.MapBatches(func(batch map[string][]interface{}, _ dataset.CallInfo) (map[string][]interface{}, error) {
			doubled := make([]interface{}, len(batch["a"]))
			for i, v := range batch["a"] {
				doubled[i] = v.(int64) * 2
			}
			return map[string][]interface{}{"a": doubled}, nil
		}, dataset.MapOptions{BatchSize: 3, NumProc: 2})
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}, intColumn(t, out, "a"))
	})

	t.Run("expanding batch", func(t *testing.T) {
		out, err := d.MapBatches(func(batch map[string][]interface{}, _ dataset.CallInfo) (map[string][]interface{}, error) {
			var expanded []interface{}
			for _, v := range batch["a"] {
				expanded = append(expanded, v, v)
			}
			return map[string][]interface{}{"a": expanded}, nil
		}, dataset.MapOptions{BatchSize: 5})
		require.NoError(t, err)
		assert.Equal(t, 20, out.Len())
		assert.Equal(t, []int64{0, 0, 1, 1}, intColumn(t, out, "a")[:4])
	})

	t.Run("row count change must cover all columns", func(t *testing.T) {
		two := buildDataset(t, []features.Field{
			{Name: "a", Feature: features.Value{Dtype: features.KindInt64}},
			{Name: "b", Feature: features.Value{Dtype: features.KindInt64}},
		}, []map[string]interface{}{
			{"a": int64(1), "b": int64(10)},
			{"a": int64(2), "b": int64(20)},
		})
		_, err := two.MapBatches(func(batch map[string][]interface{}, _ dataset.CallInfo) (map[string][]interface{}, error) {
			return map[string][]interface{}{"a": {int64(1)}}, nil
		}, dataset.MapOptions{BatchSize: 2})
		require.Error(t, err)
		assert.True(t, dserrors.IsType(err, dserrors.ErrorTypeCallback))
	})

	t.Run("ragged output", func(t *testing.T) {
		_, err := d.MapBatches(func(batch map[string][]interface{}, _ dataset.CallInfo) (map[string][]interface{}, error) {
			return map[string][]interface{}{
				"a": batch["a"],
				"b": {int64(1)},
			}, nil
		}, dataset.MapOptions{BatchSize: 5})
		require.Error(t, err)
		assert.True(t, dserrors.IsType(err, dserrors.ErrorTypeCallback))
	})

	t.Run("indices cover the batch", func(t *testing.T) {
		out, err := d.MapBatches(func(batch map[string][]interface{}, info dataset.CallInfo) (map[string][]interface{}, error) {
			idx := make([]interface{}, len(info.Indices))
			for i, v := range info.Indices {
				idx[i] = int64(v)
			}
			return map[string][]interface{}{"idx": idx}, nil
		}, dataset.MapOptions{BatchSize: 4, WithIndices: true})
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, intColumn(t, out, "idx"))
	})
}

func TestMapHonorsMaxProcs(t *testing.T) {
	cfg := config.Default()
	cfg.MaxProcs = 2

	schema := features.MustNewSchema([]features.Field{
		{Name: "a", Feature: features.Value{Dtype: features.KindInt64}},
	})
	b := columnar.NewBuilder(schema)
	for i := 0; i < 12; i++ {
		require.NoError(t, b.AppendRow(map[string]interface{}{"a": int64(i)}))
	}
	storage, err := b.Build()
	require.NoError(t, err)
	d := dataset.FromStorageWithConfig(storage, cfg)

	var mu sync.Mutex
	ranks := map[int]bool{}
	record := func(rank int) {
		mu.Lock()
		ranks[rank] = true
		mu.Unlock()
	}

	out, err := d.Map(func(row map[string]interface{}, info dataset.CallInfo) (map[string]interface{}, error) {
		record(info.Rank)
		return nil, nil
	}, dataset.MapOptions{NumProc: 8, WithRank: true})
	require.NoError(t, err)
	assert.Equal(t, 12, out.Len())
	assert.LessOrEqual(t, len(ranks), 2)
	for rank := range ranks {
		assert.Less(t, rank, 2)
	}

	kept, err := d.Filter(func(row map[string]interface{}, info dataset.CallInfo) (bool, error) {
		record(info.Rank)
		return true, nil
	}, dataset.FilterOptions{NumProc: 8, WithRank: true})
	require.NoError(t, err)
	assert.Equal(t, 12, kept.Len())
	assert.LessOrEqual(t, len(ranks), 2)
}
