// Package columnar provides the immutable columnar storage backing every
// logical dataset. A Storage is produced once, by a loader or by a
// materializing transformation, and is never mutated afterwards; all higher
// layers are views over it and share it by reference.
package columnar

import (
	"fmt"

	"github.com/leadblacktech/datasets/pkg/features"
)

// ColumnType represents the physical type of a column
type ColumnType int

const (
	ColumnTypeString ColumnType = iota
	ColumnTypeInt64
	ColumnTypeFloat64
	ColumnTypeBool
	ColumnTypeBytes
	ColumnTypeAny // nested sequences, structs, external payloads
)

// Column is the base interface for all column types. Append is only legal
// while the column is owned by a Builder; a column reachable through a
// Storage is read-only.
type Column interface {
	Type() ColumnType
	Len() int
	Get(i int) interface{}
	Append(value interface{}) error
}

// ColumnTypeFor maps a schema feature to its physical column type.
func ColumnTypeFor(f features.Feature) ColumnType {
	switch v := f.(type) {
	case features.Value:
		switch v.Dtype {
		case features.KindString:
			return ColumnTypeString
		case features.KindInt64:
			return ColumnTypeInt64
		case features.KindFloat64:
			return ColumnTypeFloat64
		case features.KindBool:
			return ColumnTypeBool
		case features.KindBytes:
			return ColumnTypeBytes
		}
	case features.ClassLabel:
		return ColumnTypeInt64
	}
	return ColumnTypeAny
}

// NewColumn creates an empty column of the given physical type.
func NewColumn(colType ColumnType) Column {
	switch colType {
	case ColumnTypeString:
		return &StringColumn{values: make([]string, 0, 1024)}
	case ColumnTypeInt64:
		return &Int64Column{values: make([]int64, 0, 1024)}
	case ColumnTypeFloat64:
		return &Float64Column{values: make([]float64, 0, 1024)}
	case ColumnTypeBool:
		return &BoolColumn{values: make([]bool, 0, 1024)}
	case ColumnTypeBytes:
		return &BytesColumn{values: make([][]byte, 0, 1024)}
	default:
		return &AnyColumn{values: make([]interface{}, 0, 1024)}
	}
}

// StringColumn stores string values
type StringColumn struct {
	values []string
}

func (c *StringColumn) Type() ColumnType     { return ColumnTypeString }
func (c *StringColumn) Len() int             { return len(c.values) }
func (c *StringColumn) Get(i int) interface{} { return c.values[i] }

func (c *StringColumn) Append(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	c.values = append(c.values, s)
	return nil
}

// Int64Column stores 64-bit integers, including class-label indexes
type Int64Column struct {
	values []int64
}

func (c *Int64Column) Type() ColumnType      { return ColumnTypeInt64 }
func (c *Int64Column) Len() int              { return len(c.values) }
func (c *Int64Column) Get(i int) interface{} { return c.values[i] }

func (c *Int64Column) Append(value interface{}) error {
	switch n := value.(type) {
	case int64:
		c.values = append(c.values, n)
	case int:
		c.values = append(c.values, int64(n))
	case int32:
		c.values = append(c.values, int64(n))
	default:
		return fmt.Errorf("expected integer, got %T", value)
	}
	return nil
}

// Float64Column stores 64-bit floats
type Float64Column struct {
	values []float64
}

func (c *Float64Column) Type() ColumnType      { return ColumnTypeFloat64 }
func (c *Float64Column) Len() int              { return len(c.values) }
func (c *Float64Column) Get(i int) interface{} { return c.values[i] }

func (c *Float64Column) Append(value interface{}) error {
	switch n := value.(type) {
	case float64:
		c.values = append(c.values, n)
	case float32:
		c.values = append(c.values, float64(n))
	case int64:
		c.values = append(c.values, float64(n))
	case int:
		c.values = append(c.values, float64(n))
	default:
		return fmt.Errorf("expected float, got %T", value)
	}
	return nil
}

// BoolColumn stores booleans
type BoolColumn struct {
	values []bool
}

func (c *BoolColumn) Type() ColumnType      { return ColumnTypeBool }
func (c *BoolColumn) Len() int              { return len(c.values) }
func (c *BoolColumn) Get(i int) interface{} { return c.values[i] }

func (c *BoolColumn) Append(value interface{}) error {
	b, ok := value.(bool)
	if !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	c.values = append(c.values, b)
	return nil
}

// BytesColumn stores raw byte payloads
type BytesColumn struct {
	values [][]byte
}

func (c *BytesColumn) Type() ColumnType      { return ColumnTypeBytes }
func (c *BytesColumn) Len() int              { return len(c.values) }
func (c *BytesColumn) Get(i int) interface{} { return c.values[i] }

func (c *BytesColumn) Append(value interface{}) error {
	switch b := value.(type) {
	case []byte:
		c.values = append(c.values, b)
	case string:
		c.values = append(c.values, []byte(b))
	default:
		return fmt.Errorf("expected bytes, got %T", value)
	}
	return nil
}

// AnyColumn stores nested values: sequences, structs and external payloads
type AnyColumn struct {
	values []interface{}
}

func (c *AnyColumn) Type() ColumnType      { return ColumnTypeAny }
func (c *AnyColumn) Len() int              { return len(c.values) }
func (c *AnyColumn) Get(i int) interface{} { return c.values[i] }

func (c *AnyColumn) Append(value interface{}) error {
	c.values = append(c.values, value)
	return nil
}
