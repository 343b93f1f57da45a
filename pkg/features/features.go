// Package features defines the typed schema layer of the dataset engine.
//
// A Feature describes the type of a single column as a tagged variant tree:
// scalar values, class-label enumerations, homogeneous sequences, named
// structs and externally encoded blobs (raw bytes plus decode parameters).
// Nesting is tree-shaped by construction, so recursive operations such as
// cast and flatten terminate without cycle checks.
package features

import (
	"fmt"
	"strings"

	"github.com/leadblacktech/datasets/pkg/dserrors"
)

// Kind is the primitive type of a scalar Value feature.
type Kind int

const (
	KindString Kind = iota
	KindInt64
	KindFloat64
	KindBool
	KindBytes
)

// String returns the dtype name used in serialized schemas.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// KindFromString parses a dtype name.
func KindFromString(s string) (Kind, error) {
	switch s {
	case "string":
		return KindString, nil
	case "int64":
		return KindInt64, nil
	case "float64":
		return KindFloat64, nil
	case "bool":
		return KindBool, nil
	case "bytes":
		return KindBytes, nil
	default:
		return 0, dserrors.Newf(dserrors.ErrorTypeValidation, "unknown dtype %q", s)
	}
}

// Feature is one node of the schema type tree.
type Feature interface {
	// Equal reports type equality, the relation used when concatenating
	// datasets row-wise.
	Equal(other Feature) bool
	String() string

	isFeature()
}

// Value is a scalar feature.
type Value struct {
	Dtype Kind
}

func (v Value) isFeature() {}

func (v Value) Equal(other Feature) bool {
	o, ok := other.(Value)
	return ok && o.Dtype == v.Dtype
}

func (v Value) String() string { return v.Dtype.String() }

// ClassLabel is an integer feature semantically labeled with a fixed,
// ordered name list. Stored values are indexes into Names.
type ClassLabel struct {
	Names []string
}

func (c ClassLabel) isFeature() {}

func (c ClassLabel) Equal(other Feature) bool {
	o, ok := other.(ClassLabel)
	if !ok || len(o.Names) != len(c.Names) {
		return false
	}
	for i, n := range c.Names {
		if o.Names[i] != n {
			return false
		}
	}
	return true
}

func (c ClassLabel) String() string {
	return fmt.Sprintf("label(%s)", strings.Join(c.Names, ","))
}

// NumClasses returns the number of labels.
func (c ClassLabel) NumClasses() int { return len(c.Names) }

// IndexOf returns the index of a label name.
func (c ClassLabel) IndexOf(name string) (int64, error) {
	for i, n := range c.Names {
		if n == name {
			return int64(i), nil
		}
	}
	return 0, dserrors.Newf(dserrors.ErrorTypeNotFound, "unknown label %q", name)
}

// Sequence is a homogeneous nested list feature.
type Sequence struct {
	Inner Feature
}

func (s Sequence) isFeature() {}

func (s Sequence) Equal(other Feature) bool {
	o, ok := other.(Sequence)
	return ok && s.Inner.Equal(o.Inner)
}

func (s Sequence) String() string { return fmt.Sprintf("seq<%s>", s.Inner) }

// Field is one named member of a Struct feature.
type Field struct {
	Name    string
	Feature Feature
}

// Struct is a nested record feature with ordered fields.
type Struct struct {
	Fields []Field
}

func (s Struct) isFeature() {}

func (s Struct) Equal(other Feature) bool {
	o, ok := other.(Struct)
	if !ok || len(o.Fields) != len(s.Fields) {
		return false
	}
	for i, f := range s.Fields {
		if o.Fields[i].Name != f.Name || !o.Fields[i].Feature.Equal(f.Feature) {
			return false
		}
	}
	return true
}

func (s Struct) String() string {
	parts := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		parts[i] = fmt.Sprintf("%s:%s", f.Name, f.Feature)
	}
	return fmt.Sprintf("struct<%s>", strings.Join(parts, ","))
}

// External is a lazily decoded feature: raw bytes plus the parameters a
// decoder needs (for example an image or audio codec). The engine never
// decodes these itself; decoding happens at the format boundary or inside a
// user callback.
type External struct {
	Codec  string
	Params map[string]string
}

func (e External) isFeature() {}

func (e External) Equal(other Feature) bool {
	o, ok := other.(External)
	if !ok || o.Codec != e.Codec || len(o.Params) != len(e.Params) {
		return false
	}
	for k, v := range e.Params {
		if o.Params[k] != v {
			return false
		}
	}
	return true
}

func (e External) String() string { return fmt.Sprintf("external<%s>", e.Codec) }
