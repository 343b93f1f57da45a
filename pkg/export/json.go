package export

import (
	"io"

	"github.com/goccy/go-json"

	"github.com/leadblacktech/datasets/pkg/dataset"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/metrics"
)

// ToJSON writes the dataset as line-delimited JSON records, one row per
// line, in logical row order.
func ToJSON(d *dataset.Dataset, w io.Writer) error {
	enc := json.NewEncoder(w)
	n := d.Len()
	for i := 0; i < n; i++ {
		row, err := d.Row(i)
		if err != nil {
			return err
		}
		if err := enc.Encode(row); err != nil {
			return dserrors.Wrap(err, dserrors.ErrorTypeIO, "encoding JSON row")
		}
	}
	metrics.RowsRead.WithLabelValues("export").Add(float64(n))
	return nil
}
