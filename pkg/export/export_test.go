package export_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadblacktech/datasets/pkg/columnar"
	"github.com/leadblacktech/datasets/pkg/dataset"
	"github.com/leadblacktech/datasets/pkg/export"
	"github.com/leadblacktech/datasets/pkg/features"
)

func fixture(t *testing.T) *dataset.Dataset {
	t.Helper()
	schema := features.MustNewSchema([]features.Field{
		{Name: "text", Feature: features.Value{Dtype: features.KindString}},
		{Name: "n", Feature: features.Value{Dtype: features.KindInt64}},
		{Name: "tags", Feature: features.Sequence{Inner: features.Value{Dtype: features.KindString}}},
	})
	b := columnar.NewBuilder(schema)
	require.NoError(t, b.AppendRow(map[string]interface{}{
		"text": "one", "n": int64(1), "tags": []interface{}{"a"},
	}))
	require.NoError(t, b.AppendRow(map[string]interface{}{
		"text": "two", "n": int64(2), "tags": []interface{}{"b", "c"},
	}))
	storage, err := b.Build()
	require.NoError(t, err)
	return dataset.FromStorage(storage)
}

func TestToCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.ToCSV(fixture(t), &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "text,n,tags", lines[0])
	assert.Equal(t, `one,1,"[""a""]"`, lines[1])
	assert.Equal(t, `two,2,"[""b"",""c""]"`, lines[2])
}

func TestToJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.ToJSON(fixture(t), &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"text":"one"`)
	assert.Contains(t, lines[0], `"n":1`)
	assert.Contains(t, lines[1], `"tags":["b","c"]`)
}

func TestToParquet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, export.ToParquet(fixture(t), &buf))

	require.Greater(t, buf.Len(), 8)
	data := buf.Bytes()
	assert.Equal(t, "PAR1", string(data[:4]))
	assert.Equal(t, "PAR1", string(data[len(data)-4:]))
}

// fakeBatchResults acknowledges every queued statement.
type fakeBatchResults struct {
	remaining int
}

func (f *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	f.remaining--
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}
func (f *fakeBatchResults) Query() (pgx.Rows, error) { return nil, nil }
func (f *fakeBatchResults) QueryRow() pgx.Row        { return nil }
func (f *fakeBatchResults) Close() error             { return nil }

type fakeConn struct {
	execs   []string
	batches []*pgx.Batch
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	c.execs = append(c.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (c *fakeConn) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	c.batches = append(c.batches, b)
	return &fakeBatchResults{remaining: b.Len()}
}

func TestToSQL(t *testing.T) {
	t.Run("creates table and batches inserts", func(t *testing.T) {
		conn := &fakeConn{}
		err := export.ToSQL(context.Background(), fixture(t), conn, "reviews", export.SQLOptions{
			CreateTable: true,
			BatchSize:   1,
		})
		require.NoError(t, err)

		require.Len(t, conn.execs, 1)
		assert.Contains(t, conn.execs[0], `CREATE TABLE IF NOT EXISTS "reviews"`)
		assert.Contains(t, conn.execs[0], `"text" TEXT`)
		assert.Contains(t, conn.execs[0], `"n" BIGINT`)
		assert.Contains(t, conn.execs[0], `"tags" JSONB`)

		require.Len(t, conn.batches, 2)
		assert.Equal(t, 1, conn.batches[0].Len())
	})

	t.Run("single batch", func(t *testing.T) {
		conn := &fakeConn{}
		err := export.ToSQL(context.Background(), fixture(t), conn, "reviews", export.SQLOptions{})
		require.NoError(t, err)
		require.Len(t, conn.batches, 1)
		assert.Equal(t, 2, conn.batches[0].Len())
	})

	t.Run("missing table name", func(t *testing.T) {
		err := export.ToSQL(context.Background(), fixture(t), &fakeConn{}, "", export.SQLOptions{})
		assert.Error(t, err)
	})
}
