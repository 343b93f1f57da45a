package features

import (
	"github.com/goccy/go-json"

	"github.com/leadblacktech/datasets/pkg/dserrors"
)

// featureJSON is the tagged wire form of a Feature.
type featureJSON struct {
	Type   string            `json:"_type"`
	Dtype  string            `json:"dtype,omitempty"`
	Names  []string          `json:"names,omitempty"`
	Inner  *featureJSON      `json:"feature,omitempty"`
	Fields []fieldJSON       `json:"fields,omitempty"`
	Codec  string            `json:"codec,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

type fieldJSON struct {
	Name    string      `json:"name"`
	Feature featureJSON `json:"feature"`
}

func toJSON(f Feature) featureJSON {
	switch v := f.(type) {
	case Value:
		return featureJSON{Type: "value", Dtype: v.Dtype.String()}
	case ClassLabel:
		return featureJSON{Type: "class_label", Names: v.Names}
	case Sequence:
		inner := toJSON(v.Inner)
		return featureJSON{Type: "sequence", Inner: &inner}
	case Struct:
		fields := make([]fieldJSON, len(v.Fields))
		for i, fl := range v.Fields {
			fields[i] = fieldJSON{Name: fl.Name, Feature: toJSON(fl.Feature)}
		}
		return featureJSON{Type: "struct", Fields: fields}
	case External:
		return featureJSON{Type: "external", Codec: v.Codec, Params: v.Params}
	default:
		return featureJSON{}
	}
}

func fromJSON(j featureJSON) (Feature, error) {
	switch j.Type {
	case "value":
		k, err := KindFromString(j.Dtype)
		if err != nil {
			return nil, err
		}
		return Value{Dtype: k}, nil
	case "class_label":
		return ClassLabel{Names: j.Names}, nil
	case "sequence":
		if j.Inner == nil {
			return nil, dserrors.New(dserrors.ErrorTypeValidation, "sequence without inner feature")
		}
		inner, err := fromJSON(*j.Inner)
		if err != nil {
			return nil, err
		}
		return Sequence{Inner: inner}, nil
	case "struct":
		fields := make([]Field, len(j.Fields))
		for i, fl := range j.Fields {
			inner, err := fromJSON(fl.Feature)
			if err != nil {
				return nil, err
			}
			fields[i] = Field{Name: fl.Name, Feature: inner}
		}
		return Struct{Fields: fields}, nil
	case "external":
		return External{Codec: j.Codec, Params: j.Params}, nil
	default:
		return nil, dserrors.Newf(dserrors.ErrorTypeValidation, "unknown feature tag %q", j.Type)
	}
}

// MarshalJSON serializes the schema to its self-describing wire form.
func (s *Schema) MarshalJSON() ([]byte, error) {
	fields := make([]fieldJSON, len(s.names))
	for i, n := range s.names {
		fields[i] = fieldJSON{Name: n, Feature: toJSON(s.feats[n])}
	}
	return json.Marshal(struct {
		Fields []fieldJSON `json:"fields"`
	}{Fields: fields})
}

// UnmarshalJSON rebuilds a schema from its wire form.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var wire struct {
		Fields []fieldJSON `json:"fields"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeValidation, "malformed schema JSON")
	}
	fields := make([]Field, len(wire.Fields))
	for i, fl := range wire.Fields {
		f, err := fromJSON(fl.Feature)
		if err != nil {
			return err
		}
		fields[i] = Field{Name: fl.Name, Feature: f}
	}
	parsed, err := NewSchema(fields)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}
