package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SchemaType names the shape of a schema node.
type SchemaType string

const (
	TypeAny       SchemaType = "any"
	TypeObject    SchemaType = "object"
	TypeArray     SchemaType = "array"
	TypeString    SchemaType = "string"
	TypeNumber    SchemaType = "number"
	TypeBoolean   SchemaType = "boolean"
	TypeTimestamp SchemaType = "timestamp"
)

// Valid returns true for a recognised type, including "" (treated as any).
func (t SchemaType) Valid() bool {
	switch t {
	case TypeAny, TypeObject, TypeArray, TypeString, TypeNumber, TypeBoolean, TypeTimestamp, "":
		return true
	}
	return false
}

func (t SchemaType) primitive() bool {
	switch t {
	case TypeString, TypeNumber, TypeBoolean, TypeTimestamp:
		return true
	}
	return false
}

// Schema describes the expected shape of documents a rule set targets.
// It is used only to check rule keys, never to validate data.
type Schema struct {
	Type   SchemaType         `json:"type" yaml:"type"`
	Fields map[string]*Schema `json:"fields,omitempty" yaml:"fields,omitempty"`
	Items  *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
}

// Check resolves p against the schema. Descending into a primitive, an
// undeclared object field or a non-numeric array segment is an error.
func (s *Schema) Check(p Path) error {
	cur := s
	for i, seg := range p {
		at := strings.Join(p[:i+1], ".")
		switch cur.Type {
		case TypeAny, "":
			return nil
		case TypeObject:
			next, ok := cur.Fields[seg]
			if !ok || next == nil {
				return &PathError{Path: p.String(), Reason: fmt.Sprintf("no field %q at %q", seg, at)}
			}
			cur = next
		case TypeArray:
			if !isIndex(seg) {
				return &PathError{Path: p.String(), Reason: fmt.Sprintf("segment %q at %q is not an array index", seg, at)}
			}
			if cur.Items == nil {
				return nil
			}
			cur = cur.Items
		default:
			return &PathError{Path: p.String(), Reason: fmt.Sprintf("cannot descend into %s at %q", cur.Type, strings.Join(p[:i], "."))}
		}
	}
	return nil
}

// Validate reports unknown types anywhere in the tree.
func (s *Schema) Validate() error {
	return s.validate("$")
}

func (s *Schema) validate(at string) error {
	if !s.Type.Valid() {
		return fmt.Errorf("schema %s: unknown type %q", at, s.Type)
	}
	if s.Type.primitive() && (len(s.Fields) > 0 || s.Items != nil) {
		return fmt.Errorf("schema %s: %s cannot declare fields or items", at, s.Type)
	}
	for name, f := range s.Fields {
		if f == nil {
			return fmt.Errorf("schema %s.%s: empty field schema", at, name)
		}
		if err := f.validate(at + "." + name); err != nil {
			return err
		}
	}
	if s.Items != nil {
		return s.Items.validate(at + "[]")
	}
	return nil
}

// Paths lists every leaf path of the schema, array items addressed as "0".
func (s *Schema) Paths() []string {
	var out []string
	s.collect("", &out)
	sort.Strings(out)
	return out
}

func (s *Schema) collect(prefix string, out *[]string) {
	join := func(seg string) string {
		if prefix == "" {
			return seg
		}
		return prefix + "." + seg
	}
	switch s.Type {
	case TypeObject:
		for name, f := range s.Fields {
			f.collect(join(name), out)
		}
	case TypeArray:
		if s.Items != nil {
			s.Items.collect(join("0"), out)
			return
		}
		*out = append(*out, prefix)
	default:
		if prefix != "" {
			*out = append(*out, prefix)
		}
	}
}

// InferSchema derives a schema from a sample document. Array item schemas
// merge the fields of every element.
func InferSchema(v any) *Schema {
	switch t := v.(type) {
	case map[string]any:
		s := &Schema{Type: TypeObject, Fields: make(map[string]*Schema, len(t))}
		for k, val := range t {
			s.Fields[k] = InferSchema(val)
		}
		return s
	case []any:
		s := &Schema{Type: TypeArray}
		for _, item := range t {
			s.Items = mergeSchema(s.Items, InferSchema(item))
		}
		return s
	case string:
		return &Schema{Type: TypeString}
	case bool:
		return &Schema{Type: TypeBoolean}
	case nil:
		return &Schema{Type: TypeAny}
	case time.Time, *time.Time:
		return &Schema{Type: TypeTimestamp}
	default:
		if IsPrimitive(v) {
			return &Schema{Type: TypeNumber}
		}
		return &Schema{Type: TypeAny}
	}
}

func mergeSchema(a, b *Schema) *Schema {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Type == TypeAny:
		return b
	case b.Type == TypeAny:
		return a
	case a.Type != b.Type:
		return &Schema{Type: TypeAny}
	}
	switch a.Type {
	case TypeObject:
		merged := &Schema{Type: TypeObject, Fields: make(map[string]*Schema, len(a.Fields))}
		for k, f := range a.Fields {
			merged.Fields[k] = f
		}
		for k, f := range b.Fields {
			merged.Fields[k] = mergeSchema(merged.Fields[k], f)
		}
		return merged
	case TypeArray:
		return &Schema{Type: TypeArray, Items: mergeSchema(a.Items, b.Items)}
	default:
		return a
	}
}
