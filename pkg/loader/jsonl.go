package loader

import (
	"bufio"
	"io"

	"github.com/goccy/go-json"

	"github.com/leadblacktech/datasets/pkg/columnar"
	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
)

// FromJSONLines reads line-delimited JSON records. Without a declared
// schema, features are inferred from the first record; JSON numbers decode
// as float64 and infer as float64 columns unless a schema says otherwise.
func FromJSONLines(r io.Reader, schema *features.Schema) (*columnar.Storage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var rows []map[string]interface{}
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row map[string]interface{}
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "malformed JSON line")
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "reading JSON lines")
	}

	if schema == nil {
		if len(rows) == 0 {
			return nil, dserrors.New(dserrors.ErrorTypeValidation, "empty input and no schema")
		}
		names := make([]string, 0, len(rows[0]))
		for k := range rows[0] {
			names = append(names, k)
		}
		cols := make(map[string][]interface{}, len(names))
		for _, n := range names {
			cols[n] = []interface{}{rows[0][n]}
		}
		// Reuse the column loader's ordering and inference rules.
		fields := make([]features.Field, 0, len(names))
		for _, n := range sortedKeys(cols) {
			fields = append(fields, features.Field{Name: n, Feature: features.Infer(rows[0][n])})
		}
		var err error
		schema, err = features.NewSchema(fields)
		if err != nil {
			return nil, err
		}
	}

	return FromRows(rows, schema)
}
