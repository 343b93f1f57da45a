package loader

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/leadblacktech/datasets/pkg/columnar"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
)

// FromCSV reads a delimited file with a header row. Without a declared
// schema, column types are inferred from the first data row: values that
// parse as integers become int64, as floats float64, as true/false bool,
// everything else string.
func FromCSV(r io.Reader, schema *features.Schema) (*columnar.Storage, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "reading CSV header")
	}

	var records [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "reading CSV row")
		}
		records = append(records, rec)
	}

	if schema == nil {
		fields := make([]features.Field, len(header))
		for i, name := range header {
			kind := features.KindString
			if len(records) > 0 {
				kind = inferCSVKind(records[0][i])
			}
			fields[i] = features.Field{Name: name, Feature: features.Value{Dtype: kind}}
		}
		var err error
		schema, err = features.NewSchema(fields)
		if err != nil {
			return nil, err
		}
	}

	b := columnar.NewBuilder(schema)
	for _, rec := range records {
		if len(rec) != len(header) {
			return nil, dserrors.Newf(dserrors.ErrorTypeValidation,
				"row has %d fields, header has %d", len(rec), len(header))
		}
		row := make(map[string]interface{}, len(header))
		for i, name := range header {
			f, err := schema.Get(name)
			if err != nil {
				return nil, err
			}
			v, err := parseCSVValue(rec[i], f)
			if err != nil {
				return nil, err
			}
			row[name] = v
		}
		if err := b.AppendRow(row); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

func inferCSVKind(s string) features.Kind {
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return features.KindInt64
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return features.KindFloat64
	}
	if s == "true" || s == "false" {
		return features.KindBool
	}
	return features.KindString
}

func parseCSVValue(s string, f features.Feature) (interface{}, error) {
	v, ok := f.(features.Value)
	if !ok {
		// Class labels arrive as names; other nested features cannot come
		// from flat CSV.
		if _, isLabel := f.(features.ClassLabel); isLabel {
			return s, nil
		}
		return nil, dserrors.Newf(dserrors.ErrorTypeTypeCoercion,
			"CSV cannot carry feature %s", f)
	}
	switch v.Dtype {
	case features.KindString:
		return s, nil
	case features.KindInt64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, dserrors.Newf(dserrors.ErrorTypeTypeCoercion, "%q is not an integer", s)
		}
		return n, nil
	case features.KindFloat64:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, dserrors.Newf(dserrors.ErrorTypeTypeCoercion, "%q is not a float", s)
		}
		return n, nil
	case features.KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, dserrors.Newf(dserrors.ErrorTypeTypeCoercion, "%q is not a bool", s)
		}
		return b, nil
	case features.KindBytes:
		return []byte(s), nil
	default:
		return nil, dserrors.Newf(dserrors.ErrorTypeTypeCoercion, "unknown dtype %s", v.Dtype)
	}
}
