// Package export streams datasets into row-oriented output formats:
// delimited text, line-delimited JSON, Parquet and a relational sink.
// Exports read the native-value view; output formats set on the dataset do
// not apply here.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/leadblacktech/datasets/pkg/dataset"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/metrics"
)

const exportBatchSize = 1024

// ToCSV writes the dataset as delimited text with a header row. Nested
// values are rendered as JSON.
func ToCSV(d *dataset.Dataset, w io.Writer) error {
	cw := csv.NewWriter(w)
	names := d.ColumnNames()
	if err := cw.Write(names); err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "writing CSV header")
	}

	n := d.Len()
	record := make([]string, len(names))
	for lo := 0; lo < n; lo += exportBatchSize {
		hi := lo + exportBatchSize
		if hi > n {
			hi = n
		}
		batch, err := d.Rows(lo, hi)
		if err != nil {
			return err
		}
		for i := 0; i < hi-lo; i++ {
			for j, name := range names {
				cell, err := renderCell(batch[name][i])
				if err != nil {
					return err
				}
				record[j] = cell
			}
			if err := cw.Write(record); err != nil {
				return dserrors.Wrap(err, dserrors.ErrorTypeIO, "writing CSV row")
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "flushing CSV")
	}
	metrics.RowsRead.WithLabelValues("export").Add(float64(n))
	return nil
}

func renderCell(v interface{}) (string, error) {
	switch n := v.(type) {
	case nil:
		return "", nil
	case string:
		return n, nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(n), nil
	case []byte:
		return string(n), nil
	default:
		enc, err := json.Marshal(v)
		if err != nil {
			return "", dserrors.Wrap(err, dserrors.ErrorTypeIO, "encoding nested value")
		}
		return string(enc), nil
	}
}
