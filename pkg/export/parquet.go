package export

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/goccy/go-json"

	"github.com/leadblacktech/datasets/pkg/dataset"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/format"
	"github.com/leadblacktech/datasets/pkg/metrics"
)

// ToParquet writes the dataset as one Parquet file. Strictly typed columns
// use their native Arrow type; nested features become JSON text columns.
func ToParquet(d *dataset.Dataset, w io.Writer) error {
	schema := d.Schema()
	fields := make([]arrow.Field, 0, schema.Len())
	jsonCols := make(map[string]bool)
	for _, f := range schema.Fields() {
		dt, ok := format.ArrowType(f.Feature)
		if !ok {
			dt = arrow.BinaryTypes.String
			jsonCols[f.Name] = true
		}
		fields = append(fields, arrow.Field{Name: f.Name, Type: dt})
	}
	arrowSchema := arrow.NewSchema(fields, nil)

	pool := memory.NewGoAllocator()
	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(pool))
	fw, err := pqarrow.NewFileWriter(arrowSchema, w, props, arrowProps)
	if err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "creating Parquet writer")
	}

	rb := array.NewRecordBuilder(pool, arrowSchema)
	defer rb.Release()

	n := d.Len()
	for lo := 0; lo < n; lo += exportBatchSize {
		hi := lo + exportBatchSize
		if hi > n {
			hi = n
		}
		batch, err := d.Rows(lo, hi)
		if err != nil {
			return err
		}
		for i, f := range arrowSchema.Fields() {
			builder := rb.Field(i)
			for _, v := range batch[f.Name] {
				if jsonCols[f.Name] {
					enc, err := json.Marshal(v)
					if err != nil {
						return dserrors.Wrap(err, dserrors.ErrorTypeIO, "encoding nested value")
					}
					v = string(enc)
				}
				if err := format.AppendValue(builder, v); err != nil {
					return err
				}
			}
		}
		record := rb.NewRecord()
		err = fw.Write(record)
		record.Release()
		if err != nil {
			return dserrors.Wrap(err, dserrors.ErrorTypeIO, "writing Parquet row group")
		}
	}
	if err := fw.Close(); err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "closing Parquet writer")
	}
	metrics.RowsRead.WithLabelValues("export").Add(float64(n))
	return nil
}
