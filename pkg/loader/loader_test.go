package loader_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadblacktech/datasets/pkg/features"
	"github.com/leadblacktech/datasets/pkg/loader"
)

func TestFromColumns(t *testing.T) {
	s, err := loader.FromColumns(map[string][]interface{}{
		"b": {int64(1), int64(2)},
		"a": {"x", "y"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, s.NumRows())
	// No declared order exists, so names sort lexicographically.
	assert.Equal(t, []string{"a", "b"}, s.ColumnNames())

	f, err := s.Schema().Get("b")
	require.NoError(t, err)
	assert.True(t, f.Equal(features.Value{Dtype: features.KindInt64}))

	t.Run("ragged columns", func(t *testing.T) {
		_, err := loader.FromColumns(map[string][]interface{}{
			"a": {1, 2},
			"b": {1},
		})
		assert.Error(t, err)
	})

	t.Run("no columns", func(t *testing.T) {
		_, err := loader.FromColumns(nil)
		assert.Error(t, err)
	})
}

func TestFromColumnsWithSchema(t *testing.T) {
	schema := features.MustNewSchema([]features.Field{
		{Name: "score", Feature: features.Value{Dtype: features.KindFloat64}},
	})
	s, err := loader.FromColumnsWithSchema(map[string][]interface{}{
		"score": {int64(1), 2.5},
	}, schema)
	require.NoError(t, err)

	v, err := s.Value("score", 0)
	require.NoError(t, err)
	assert.Equal(t, float64(1), v)
}

func TestFromRows(t *testing.T) {
	schema := features.MustNewSchema([]features.Field{
		{Name: "n", Feature: features.Value{Dtype: features.KindInt64}},
	})
	s, err := loader.FromRows([]map[string]interface{}{
		{"n": 1}, {"n": 2}, {"n": 3},
	}, schema)
	require.NoError(t, err)
	assert.Equal(t, 3, s.NumRows())
}

func TestFromCSV(t *testing.T) {
	t.Run("inferred types", func(t *testing.T) {
		input := "name,age,score,active\nalice,30,1.5,true\nbob,25,2.5,false\n"
		s, err := loader.FromCSV(strings.NewReader(input), nil)
		require.NoError(t, err)

		require.Equal(t, 2, s.NumRows())
		assert.Equal(t, []string{"name", "age", "score", "active"}, s.ColumnNames())

		row, err := s.Row(0)
		require.NoError(t, err)
		assert.Equal(t, "alice", row["name"])
		assert.Equal(t, int64(30), row["age"])
		assert.Equal(t, 1.5, row["score"])
		assert.Equal(t, true, row["active"])
	})

	t.Run("declared schema with class labels", func(t *testing.T) {
		schema := features.MustNewSchema([]features.Field{
			{Name: "text", Feature: features.Value{Dtype: features.KindString}},
			{Name: "label", Feature: features.ClassLabel{Names: []string{"neg", "pos"}}},
		})
		input := "text,label\ngreat,pos\nawful,neg\n"
		s, err := loader.FromCSV(strings.NewReader(input), schema)
		require.NoError(t, err)

		v, err := s.Value("label", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), v)
	})

	t.Run("unparsable cell", func(t *testing.T) {
		schema := features.MustNewSchema([]features.Field{
			{Name: "n", Feature: features.Value{Dtype: features.KindInt64}},
		})
		_, err := loader.FromCSV(strings.NewReader("n\nnot-a-number\n"), schema)
		assert.Error(t, err)
	})

	t.Run("empty body", func(t *testing.T) {
		s, err := loader.FromCSV(strings.NewReader("a,b\n"), nil)
		require.NoError(t, err)
		assert.Equal(t, 0, s.NumRows())
	})
}

func TestFromJSONLines(t *testing.T) {
	t.Run("inferred schema", func(t *testing.T) {
		input := `{"text":"one","n":1}
{"text":"two","n":2}
`
		s, err := loader.FromJSONLines(strings.NewReader(input), nil)
		require.NoError(t, err)

		require.Equal(t, 2, s.NumRows())
		assert.Equal(t, []string{"n", "text"}, s.ColumnNames())

		// JSON numbers decode as float64.
		v, err := s.Value("n", 1)
		require.NoError(t, err)
		assert.Equal(t, float64(2), v)
	})

	t.Run("declared schema coerces", func(t *testing.T) {
		schema := features.MustNewSchema([]features.Field{
			{Name: "n", Feature: features.Value{Dtype: features.KindInt64}},
		})
		s, err := loader.FromJSONLines(strings.NewReader(`{"n":3}`), schema)
		require.NoError(t, err)
		v, err := s.Value("n", 0)
		require.NoError(t, err)
		assert.Equal(t, int64(3), v)
	})

	t.Run("nested values", func(t *testing.T) {
		input := `{"tags":["a","b"],"meta":{"lang":"en"}}`
		s, err := loader.FromJSONLines(strings.NewReader(input), nil)
		require.NoError(t, err)
		row, err := s.Row(0)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"a", "b"}, row["tags"])
		assert.Equal(t, map[string]interface{}{"lang": "en"}, row["meta"])
	})

	t.Run("skips blank lines", func(t *testing.T) {
		input := "{\"n\":1}\n\n{\"n\":2}\n"
		s, err := loader.FromJSONLines(strings.NewReader(input), nil)
		require.NoError(t, err)
		assert.Equal(t, 2, s.NumRows())
	})

	t.Run("malformed line", func(t *testing.T) {
		_, err := loader.FromJSONLines(strings.NewReader("{bad json"), nil)
		assert.Error(t, err)
	})

	t.Run("empty without schema", func(t *testing.T) {
		_, err := loader.FromJSONLines(strings.NewReader(""), nil)
		assert.Error(t, err)
	})
}
