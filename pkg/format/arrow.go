// Package format converts native dataset values into target in-memory
// representations at the read boundary. Conversion never touches the
// underlying storage; it happens per accessed row or batch.
package format

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/leadblacktech/datasets/pkg/dserrors"
	"github.com/leadblacktech/datasets/pkg/features"
)

// Formatted is the result of applying a named format to a batch: the
// converted columns as an Arrow record plus the columns that were passed
// through natively because the target cannot represent them (or because
// they were outside the requested subset but output_all_columns was set).
type Formatted struct {
	Record arrow.Record
	Native map[string][]interface{}
}

// Release frees the Arrow record, if any.
func (f *Formatted) Release() {
	if f.Record != nil {
		f.Record.Release()
	}
}

// ArrowType maps a feature to its Arrow data type. The second return is
// false when the feature has no strict Arrow representation, in which case
// the column is passed through natively.
func ArrowType(f features.Feature) (arrow.DataType, bool) {
	switch v := f.(type) {
	case features.Value:
		switch v.Dtype {
		case features.KindString:
			return arrow.BinaryTypes.String, true
		case features.KindInt64:
			return arrow.PrimitiveTypes.Int64, true
		case features.KindFloat64:
			return arrow.PrimitiveTypes.Float64, true
		case features.KindBool:
			return arrow.FixedWidthTypes.Boolean, true
		case features.KindBytes:
			return arrow.BinaryTypes.Binary, true
		}
	case features.ClassLabel:
		return arrow.PrimitiveTypes.Int64, true
	}
	return nil, false
}

// RecordFromBatch converts the selected columns of a native batch into one
// Arrow record. columns narrows the conversion to a subset; nil means all.
// With outputAll set, unselected and unconvertible columns are returned
// natively instead of being dropped.
func RecordFromBatch(schema *features.Schema, batch map[string][]interface{},
	columns []string, outputAll bool) (*Formatted, error) {

	selected := make(map[string]bool)
	if columns == nil {
		for _, n := range schema.Names() {
			selected[n] = true
		}
	} else {
		for _, n := range columns {
			if !schema.Has(n) {
				return nil, dserrors.Newf(dserrors.ErrorTypeNotFound, "no column %q", n)
			}
			selected[n] = true
		}
	}

	var fields []arrow.Field
	var fieldNames []string
	native := make(map[string][]interface{})
	for _, name := range schema.Names() {
		f, err := schema.Get(name)
		if err != nil {
			return nil, err
		}
		if !selected[name] {
			if outputAll {
				native[name] = batch[name]
			}
			continue
		}
		dt, ok := ArrowType(f)
		if !ok {
			// No strict representation; pass through unconverted.
			native[name] = batch[name]
			continue
		}
		fields = append(fields, arrow.Field{Name: name, Type: dt})
		fieldNames = append(fieldNames, name)
	}

	if len(fields) == 0 {
		return &Formatted{Native: native}, nil
	}

	arrowSchema := arrow.NewSchema(fields, nil)
	pool := memory.NewGoAllocator()
	rb := array.NewRecordBuilder(pool, arrowSchema)
	defer rb.Release()

	for i, name := range fieldNames {
		builder := rb.Field(i)
		for _, v := range batch[name] {
			if err := AppendValue(builder, v); err != nil {
				return nil, dserrors.Wrap(err, dserrors.ErrorTypeTypeCoercion, "arrow conversion").
					WithDetail("column", name)
			}
		}
	}

	return &Formatted{Record: rb.NewRecord(), Native: native}, nil
}

// AppendValue appends one native value to an Arrow builder.
func AppendValue(builder array.Builder, value interface{}) error {
	if value == nil {
		builder.AppendNull()
		return nil
	}
	switch b := builder.(type) {
	case *array.BooleanBuilder:
		if v, ok := value.(bool); ok {
			b.Append(v)
		} else {
			b.AppendNull()
		}
	case *array.Int64Builder:
		switch v := value.(type) {
		case int:
			b.Append(int64(v))
		case int32:
			b.Append(int64(v))
		case int64:
			b.Append(v)
		default:
			b.AppendNull()
		}
	case *array.Float64Builder:
		switch v := value.(type) {
		case float32:
			b.Append(float64(v))
		case float64:
			b.Append(v)
		default:
			b.AppendNull()
		}
	case *array.StringBuilder:
		if v, ok := value.(string); ok {
			b.Append(v)
		} else {
			b.AppendNull()
		}
	case *array.BinaryBuilder:
		switch v := value.(type) {
		case []byte:
			b.Append(v)
		case string:
			b.Append([]byte(v))
		default:
			b.AppendNull()
		}
	default:
		return dserrors.Newf(dserrors.ErrorTypeValidation,
			"unsupported builder type %T", builder)
	}
	return nil
}

// ValueFromArrow reads one cell back out of an Arrow column.
func ValueFromArrow(col arrow.Array, rowIdx int) interface{} {
	if col.IsNull(rowIdx) {
		return nil
	}
	switch c := col.(type) {
	case *array.Boolean:
		return c.Value(rowIdx)
	case *array.Int64:
		return c.Value(rowIdx)
	case *array.Float64:
		return c.Value(rowIdx)
	case *array.String:
		return c.Value(rowIdx)
	case *array.Binary:
		return c.Value(rowIdx)
	default:
		return nil
	}
}
