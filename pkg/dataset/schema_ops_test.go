package dataset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
)

func TestRenameColumn(t *testing.T) {
	d := buildDataset(t, []features.Field{
		{Name: "old", Feature: features.Value{Dtype: features.KindString}},
		{Name: "other", Feature: features.Value{Dtype: features.KindInt64}},
	}, []map[string]interface{}{
		{"old": "x", "other": int64(1)},
	})

	renamed, err := d.RenameColumn("old", "new")
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "other"}, renamed.ColumnNames())

	row, err := renamed.Row(0)
	require.NoError(t, err)
	assert.Equal(t, "x", row["new"])
	_, hasOld := row["old"]
	assert.False(t, hasOld)

	// The source view keeps its name.
	assert.Equal(t, []string{"old", "other"}, d.ColumnNames())

	t.Run("collision", func(t *testing.T) {
		_, err := d.RenameColumn("old", "other")
		require.Error(t, err)
		assert.True(t, dserrors.IsType(err, dserrors.ErrorTypeNameCollision))
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := d.RenameColumn("missing", "whatever")
		require.Error(t, err)
		assert.True(t, dserrors.IsType(err, dserrors.ErrorTypeNotFound))
	})

	t.Run("rename chain", func(t *testing.T) {
		twice, err := renamed.RenameColumn("new", "newest")
		require.NoError(t, err)
		row, err := twice.Row(0)
		require.NoError(t, err)
		assert.Equal(t, "x", row["newest"])
	})
}

func TestRemoveAndSelectColumns(t *testing.T) {
	d := buildDataset(t, []features.Field{
		{Name: "a", Feature: features.Value{Dtype: features.KindInt64}},
		{Name: "b", Feature: features.Value{Dtype: features.KindInt64}},
		{Name: "c", Feature: features.Value{Dtype: features.KindInt64}},
	}, []map[string]interface{}{
		{"a": int64(1), "b": int64(2), "c": int64(3)},
	})

	removed, err := d.RemoveColumns("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, removed.ColumnNames())

	selected, err := d.SelectColumns("c", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, selected.ColumnNames())

	_, err = d.RemoveColumns("nope")
	assert.Error(t, err)
	_, err = d.SelectColumns("a", "nope")
	assert.Error(t, err)
}

func TestCastColumn(t *testing.T) {
	t.Run("binary ints to bool", func(t *testing.T) {
		d := buildDataset(t, []features.Field{
			{Name: "flag", Feature: features.Value{Dtype: features.KindInt64}},
		}, []map[string]interface{}{
			{"flag": int64(0)}, {"flag": int64(1)}, {"flag": int64(0)}, {"flag": int64(1)},
		})
		out, err := d.CastColumn("flag", features.Value{Dtype: features.KindBool})
		require.NoError(t, err)
		vals, err := out.Column("flag")
		require.NoError(t, err)
		assert.Equal(t, []interface{}{false, true, false, true}, vals)
	})

	t.Run("non-binary int to bool fails", func(t *testing.T) {
		d := buildDataset(t, []features.Field{
			{Name: "flag", Feature: features.Value{Dtype: features.KindInt64}},
		}, []map[string]interface{}{
			{"flag": int64(0)}, {"flag": int64(1)}, {"flag": int64(2)},
		})
		_, err := d.CastColumn("flag", features.Value{Dtype: features.KindBool})
		require.Error(t, err)
		assert.True(t, dserrors.IsType(err, dserrors.ErrorTypeTypeCoercion))

		// A failed cast leaves the input readable.
		vals, err := d.Column("flag")
		require.NoError(t, err)
		assert.Len(t, vals, 3)
	})

	t.Run("int to class label", func(t *testing.T) {
		d := buildDataset(t, []features.Field{
			{Name: "label", Feature: features.Value{Dtype: features.KindInt64}},
		}, []map[string]interface{}{
			{"label": int64(0)}, {"label": int64(1)},
		})
		out, err := d.CastColumn("label", features.ClassLabel{Names: []string{"neg", "pos"}})
		require.NoError(t, err)
		f, err := out.Schema().Get("label")
		require.NoError(t, err)
		assert.True(t, f.Equal(features.ClassLabel{Names: []string{"neg", "pos"}}))
	})

	t.Run("label index out of range", func(t *testing.T) {
		d := buildDataset(t, []features.Field{
			{Name: "label", Feature: features.Value{Dtype: features.KindInt64}},
		}, []map[string]interface{}{
			{"label": int64(2)},
		})
		_, err := d.CastColumn("label", features.ClassLabel{Names: []string{"neg", "pos"}})
		require.Error(t, err)
		assert.True(t, dserrors.IsType(err, dserrors.ErrorTypeTypeCoercion))
	})
}

func TestCastSchemaShape(t *testing.T) {
	d := buildDataset(t, []features.Field{
		{Name: "a", Feature: features.Value{Dtype: features.KindInt64}},
		{Name: "b", Feature: features.Value{Dtype: features.KindInt64}},
	}, []map[string]interface{}{
		{"a": int64(1), "b": int64(2)},
	})

	t.Run("column count mismatch", func(t *testing.T) {
		s := features.MustNewSchema([]features.Field{
			{Name: "a", Feature: features.Value{Dtype: features.KindInt64}},
		})
		_, err := d.Cast(s)
		require.Error(t, err)
		assert.True(t, dserrors.IsType(err, dserrors.ErrorTypeSchemaMismatch))
	})

	t.Run("column order mismatch", func(t *testing.T) {
		s := features.MustNewSchema([]features.Field{
			{Name: "b", Feature: features.Value{Dtype: features.KindInt64}},
			{Name: "a", Feature: features.Value{Dtype: features.KindInt64}},
		})
		_, err := d.Cast(s)
		require.Error(t, err)
		assert.True(t, dserrors.IsType(err, dserrors.ErrorTypeSchemaMismatch))
	})
}

func TestFlatten(t *testing.T) {
	addr := features.Struct{Fields: []features.Field{
		{Name: "city", Feature: features.Value{Dtype: features.KindString}},
		{Name: "geo", Feature: features.Struct{Fields: []features.Field{
			{Name: "lat", Feature: features.Value{Dtype: features.KindFloat64}},
			{Name: "lon", Feature: features.Value{Dtype: features.KindFloat64}},
		}}},
	}}
	d := buildDataset(t, []features.Field{
		{Name: "name", Feature: features.Value{Dtype: features.KindString}},
		{Name: "addr", Feature: addr},
	}, []map[string]interface{}{
		{
			"name": "hq",
			"addr": map[string]interface{}{
				"city": "berlin",
				"geo":  map[string]interface{}{"lat": 52.5, "lon": 13.4},
			},
		},
	})

	flat, err := d.Flatten()
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "addr.city", "addr.geo.lat", "addr.geo.lon"}, flat.ColumnNames())

	row, err := flat.Row(0)
	require.NoError(t, err)
	assert.Equal(t, "berlin", row["addr.city"])
	assert.Equal(t, 52.5, row["addr.geo.lat"])
	assert.Equal(t, "hq", row["name"])

	t.Run("no structs is a no-op", func(t *testing.T) {
		plain := intDataset(t, 2)
		out, err := plain.Flatten()
		require.NoError(t, err)
		assert.Equal(t, plain.ColumnNames(), out.ColumnNames())
	})
}
