package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/leadblacktech/datasets/pkg/dataset"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
	"github.com/leadblacktech/datasets/pkg/metrics"
)

// PgxConn is the slice of a pgx connection the SQL export needs, satisfied
// by *pgx.Conn and pgxpool connections alike.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// SQLOptions configures ToSQL.
type SQLOptions struct {
	// CreateTable issues CREATE TABLE IF NOT EXISTS before inserting.
	CreateTable bool
	// BatchSize is the number of INSERTs sent per round trip.
	BatchSize int
}

// ToSQL streams the dataset into a relational table, one INSERT per row,
// batched per round trip. Nested values are stored as JSONB.
func ToSQL(ctx context.Context, d *dataset.Dataset, conn PgxConn, table string, opts SQLOptions) error {
	if table == "" {
		return dserrors.New(dserrors.ErrorTypeValidation, "table name is required")
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	names := d.ColumnNames()

	if opts.CreateTable {
		ddl, err := createTableDDL(d.Schema(), table)
		if err != nil {
			return err
		}
		if _, err := conn.Exec(ctx, ddl); err != nil {
			return dserrors.Wrap(err, dserrors.ErrorTypeIO, "creating table")
		}
	}

	insert := insertStatement(table, names)
	n := d.Len()
	for lo := 0; lo < n; lo += batchSize {
		hi := lo + batchSize
		if hi > n {
			hi = n
		}
		b := &pgx.Batch{}
		for i := lo; i < hi; i++ {
			row, err := d.Row(i)
			if err != nil {
				return err
			}
			args := make([]interface{}, len(names))
			for j, name := range names {
				arg, err := sqlValue(row[name])
				if err != nil {
					return err
				}
				args[j] = arg
			}
			b.Queue(insert, args...)
		}
		br := conn.SendBatch(ctx, b)
		for i := lo; i < hi; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return dserrors.Wrap(err, dserrors.ErrorTypeIO, "inserting row").
					WithDetail("index", i)
			}
		}
		if err := br.Close(); err != nil {
			return dserrors.Wrap(err, dserrors.ErrorTypeIO, "closing batch")
		}
	}
	metrics.RowsRead.WithLabelValues("export").Add(float64(n))
	return nil
}

func insertStatement(table string, names []string) string {
	cols := make([]string, len(names))
	params := make([]string, len(names))
	for i, n := range names {
		cols[i] = quoteIdent(n)
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), strings.Join(cols, ", "), strings.Join(params, ", "))
}

func createTableDDL(schema *features.Schema, table string) (string, error) {
	cols := make([]string, 0, schema.Len())
	for _, f := range schema.Fields() {
		cols = append(cols, fmt.Sprintf("%s %s", quoteIdent(f.Name), sqlType(f.Feature)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		quoteIdent(table), strings.Join(cols, ", ")), nil
}

func sqlType(f features.Feature) string {
	switch v := f.(type) {
	case features.Value:
		switch v.Dtype {
		case features.KindString:
			return "TEXT"
		case features.KindInt64:
			return "BIGINT"
		case features.KindFloat64:
			return "DOUBLE PRECISION"
		case features.KindBool:
			return "BOOLEAN"
		case features.KindBytes:
			return "BYTEA"
		}
	case features.ClassLabel:
		return "BIGINT"
	}
	return "JSONB"
}

func sqlValue(v interface{}) (interface{}, error) {
	switch v.(type) {
	case nil, string, int64, float64, bool, []byte:
		return v, nil
	default:
		enc, err := json.Marshal(v)
		if err != nil {
			return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "encoding nested value")
		}
		return string(enc), nil
	}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
