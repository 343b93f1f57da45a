// Package persist serializes datasets to a self-describing on-disk layout
// and loads them back. A saved dataset is a directory holding the row data
// as an Arrow IPC file (optionally zstd-compressed), the schema as JSON and
// a small state file carrying the fingerprint and row count. The index
// mapping is flattened before saving, so a loaded dataset is always a
// contiguous identity view.
package persist

import (
	"bytes"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/leadblacktech/datasets/pkg/columnar"
	"github.com/leadblacktech/datasets/pkg/dataset"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
	"github.com/leadblacktech/datasets/pkg/fingerprint"
	"github.com/leadblacktech/datasets/pkg/format"
	"github.com/leadblacktech/datasets/pkg/logger"
	"github.com/leadblacktech/datasets/pkg/mmap"
)

const (
	dataFile       = "data.arrow"
	dataFileZstd   = "data.arrow.zst"
	schemaFile     = "schema.json"
	stateFile      = "state.json"
	writeBatchSize = 1024
)

// state is the persisted dataset identity.
type state struct {
	Fingerprint string `json:"fingerprint"`
	NumRows     int    `json:"num_rows"`
	Compressed  bool   `json:"compressed"`
}

// Options configures Save.
type Options struct {
	// Compress wraps the Arrow payload in zstd.
	Compress bool
}

// Save writes the dataset to dir. Nested features that Arrow cannot carry
// strictly are stored as JSON text columns; the schema file preserves their
// true feature so Load restores them losslessly.
func Save(d *dataset.Dataset, dir string, opts Options) error {
	flat, err := d.FlattenIndices()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "creating dataset directory")
	}

	schemaJSON, err := json.Marshal(flat.Schema())
	if err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "encoding schema")
	}
	if err := os.WriteFile(filepath.Join(dir, schemaFile), schemaJSON, 0o644); err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "writing schema")
	}

	name := dataFile
	if opts.Compress {
		name = dataFileZstd
	}
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "creating data file")
	}
	defer f.Close()

	var w io.Writer = f
	var zw *zstd.Encoder
	if opts.Compress {
		zw, err = zstd.NewWriter(f)
		if err != nil {
			return dserrors.Wrap(err, dserrors.ErrorTypeIO, "creating zstd writer")
		}
		w = zw
	}

	if err := writeArrow(flat, w); err != nil {
		return err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return dserrors.Wrap(err, dserrors.ErrorTypeIO, "flushing zstd writer")
		}
	}

	st := state{
		Fingerprint: d.Fingerprint().String(),
		NumRows:     flat.Len(),
		Compressed:  opts.Compress,
	}
	stateJSON, err := json.Marshal(st)
	if err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "encoding state")
	}
	if err := os.WriteFile(filepath.Join(dir, stateFile), stateJSON, 0o644); err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "writing state")
	}

	logger.Info("dataset saved",
		zap.String("dir", dir),
		zap.Int("rows", flat.Len()),
		zap.Bool("compressed", opts.Compress))
	return nil
}

// writeArrow streams the dataset into one Arrow IPC file. Strictly typed
// columns use their native Arrow type; everything else becomes a JSON text
// column.
func writeArrow(d *dataset.Dataset, w io.Writer) error {
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
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(arrowSchema), ipc.WithAllocator(pool))
	if err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "creating Arrow writer")
	}

	rb := array.NewRecordBuilder(pool, arrowSchema)
	defer rb.Release()

	n := d.Len()
	for lo := 0; lo < n; lo += writeBatchSize {
		hi := lo + writeBatchSize
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
			return dserrors.Wrap(err, dserrors.ErrorTypeIO, "writing record batch")
		}
	}
	if err := fw.Close(); err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeIO, "closing Arrow writer")
	}
	return nil
}

// Load reads a dataset saved by Save.
func Load(dir string) (*dataset.Dataset, error) {
	schemaJSON, err := os.ReadFile(filepath.Join(dir, schemaFile))
	if err != nil {
		return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "reading schema")
	}
	schema := &features.Schema{}
	if err := json.Unmarshal(schemaJSON, schema); err != nil {
		return nil, err
	}

	stateJSON, err := os.ReadFile(filepath.Join(dir, stateFile))
	if err != nil {
		return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "reading state")
	}
	var st state
	if err := json.Unmarshal(stateJSON, &st); err != nil {
		return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "decoding state")
	}

	var storage *columnar.Storage
	if st.Compressed {
		raw, err := os.ReadFile(filepath.Join(dir, dataFileZstd))
		if err != nil {
			return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "reading data")
		}
		zr, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "creating zstd reader")
		}
		raw, err = io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "decompressing data")
		}
		storage, err = readArrow(raw, schema)
		if err != nil {
			return nil, err
		}
	} else {
		// Uncompressed payloads are memory-mapped; readArrow copies every
		// value into typed storage before the mapping is released.
		mr, err := mmap.Open(filepath.Join(dir, dataFile))
		if err != nil {
			return nil, err
		}
		storage, err = readArrow(mr.Bytes(), schema)
		if closeErr := mr.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
		if err != nil {
			return nil, err
		}
	}
	d := dataset.FromStorage(storage)
	if fp, err := strconv.ParseUint(st.Fingerprint, 16, 64); err == nil {
		d.RestoreFingerprint(fingerprint.Fingerprint(fp))
	}
	return d, nil
}

// readArrow rebuilds typed storage from an Arrow IPC payload, decoding
// JSON text columns back into their nested features.
func readArrow(raw []byte, schema *features.Schema) (*columnar.Storage, error) {
	fr, err := ipc.NewFileReader(bytes.NewReader(raw), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "creating Arrow reader")
	}
	defer fr.Close()

	jsonCols := make(map[string]bool)
	for _, f := range schema.Fields() {
		if _, ok := format.ArrowType(f.Feature); !ok {
			jsonCols[f.Name] = true
		}
	}

	b := columnar.NewBuilder(schema)
	for ri := 0; ri < fr.NumRecords(); ri++ {
		record, err := fr.Record(ri)
		if err != nil {
			return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "reading record batch")
		}
		rows := int(record.NumRows())
		for r := 0; r < rows; r++ {
			row := make(map[string]interface{}, schema.Len())
			for c := 0; c < int(record.NumCols()); c++ {
				name := record.Schema().Field(c).Name
				v := format.ValueFromArrow(record.Column(c), r)
				if jsonCols[name] {
					f, err := schema.Get(name)
					if err != nil {
						return nil, err
					}
					v, err = decodeJSONValue(v, f)
					if err != nil {
						return nil, err
					}
				}
				row[name] = v
			}
			if err := b.AppendRow(row); err != nil {
				return nil, err
			}
		}
	}
	return b.Build()
}

// decodeJSONValue parses a JSON text cell and repairs the representations
// JSON cannot keep: bytes arrive base64-encoded and numbers arrive as
// float64; the builder's cast handles the latter, this handles the former.
func decodeJSONValue(v interface{}, f features.Feature) (interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	var decoded interface{}
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "decoding nested value")
	}
	return repairBytes(decoded, f)
}

func repairBytes(v interface{}, f features.Feature) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch ft := f.(type) {
	case features.Value:
		if ft.Dtype == features.KindBytes {
			if s, ok := v.(string); ok {
				raw, err := base64.StdEncoding.DecodeString(s)
				if err != nil {
					return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "decoding bytes")
				}
				return raw, nil
			}
		}
		return v, nil
	case features.External:
		if s, ok := v.(string); ok {
			raw, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "decoding bytes")
			}
			return raw, nil
		}
		return v, nil
	case features.Sequence:
		seq, ok := v.([]interface{})
		if !ok {
			return v, nil
		}
		for i, e := range seq {
			repaired, err := repairBytes(e, ft.Inner)
			if err != nil {
				return nil, err
			}
			seq[i] = repaired
		}
		return seq, nil
	case features.Struct:
		rec, ok := v.(map[string]interface{})
		if !ok {
			return v, nil
		}
		for _, field := range ft.Fields {
			repaired, err := repairBytes(rec[field.Name], field.Feature)
			if err != nil {
				return nil, err
			}
			rec[field.Name] = repaired
		}
		return rec, nil
	default:
		return v, nil
	}
}
