package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadblacktech/datasets/pkg/columnar"
	"github.com/leadblacktech/datasets/pkg/dataset"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
)

// buildDataset constructs a dataset from ordered fields and row maps.
func buildDataset(t *testing.T, fields []features.Field, rows []map[string]interface{}) *dataset.Dataset {
	t.Helper()
	schema, err := features.NewSchema(fields)
	require.NoError(t, err)
	b := columnar.NewBuilder(schema)
	for _, r := range rows {
		require.NoError(t, b.AppendRow(r))
	}
	storage, err := b.Build()
	require.NoError(t, err)
	return dataset.FromStorage(storage)
}

// intDataset builds a single int64 column "a" holding 0..n-1.
func intDataset(t *testing.T, n int) *dataset.Dataset {
	t.Helper()
	rows := make([]map[string]interface{}, n)
	for i := 0; i < n; i++ {
		rows[i] = map[string]interface{}{"a": int64(i)}
	}
	return buildDataset(t, []features.Field{
		{Name: "a", Feature: features.Value{Dtype: features.KindInt64}},
	}, rows)
}

// intColumn reads column "a" as int64 values.
func intColumn(t *testing.T, d *dataset.Dataset, name string) []int64 {
	t.Helper()
	vals, err := d.Column(name)
	require.NoError(t, err)
	out := make([]int64, len(vals))
	for i, v := range vals {
		out[i] = v.(int64)
	}
	return out
}

func TestRowAccess(t *testing.T) {
	d := buildDataset(t, []features.Field{
		{Name: "text", Feature: features.Value{Dtype: features.KindString}},
		{Name: "score", Feature: features.Value{Dtype: features.KindFloat64}},
	}, []map[string]interface{}{
		{"text": "alpha", "score": 0.5},
		{"text": "beta", "score": 1.5},
	})

	require.Equal(t, 2, d.Len())
	assert.Equal(t, []string{"text", "score"}, d.ColumnNames())

	row, err := d.Row(1)
	require.NoError(t, err)
	assert.Equal(t, "beta", row["text"])
	assert.Equal(t, 1.5, row["score"])

	_, err = d.Row(2)
	require.Error(t, err)
	assert.True(t, dserrors.IsType(err, dserrors.ErrorTypeIndexOutOfRange))

	_, err = d.Row(-1)
	assert.Error(t, err)
}

func TestRowsRange(t *testing.T) {
	d := intDataset(t, 5)

	batch, err := d.Rows(1, 4)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), int64(2), int64(3)}, batch["a"])

	empty, err := d.Rows(2, 2)
	require.NoError(t, err)
	assert.Len(t, empty["a"], 0)

	_, err = d.Rows(3, 6)
	require.Error(t, err)
	assert.True(t, dserrors.IsType(err, dserrors.ErrorTypeIndexOutOfRange))
}

func TestColumnUnknown(t *testing.T) {
	d := intDataset(t, 3)
	_, err := d.Column("missing")
	require.Error(t, err)
	assert.True(t, dserrors.IsType(err, dserrors.ErrorTypeNotFound))
}

func TestFingerprintDeterminism(t *testing.T) {
	build := func() *dataset.Dataset {
		d := intDataset(t, 10).Shuffle(7)
		d, err := d.Shard(2, 0, true)
		require.NoError(t, err)
		return d
	}
	a := build()
	b := build()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c := intDataset(t, 10).Shuffle(8)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestViewDoesNotMutateBase(t *testing.T) {
	d := intDataset(t, 6)
	shuffled := d.Shuffle(3)

	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5}, intColumn(t, d, "a"))
	assert.ElementsMatch(t, []int64{0, 1, 2, 3, 4, 5}, intColumn(t, shuffled, "a"))
	assert.NotEqual(t, d.Fingerprint(), shuffled.Fingerprint())
}
