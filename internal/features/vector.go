// Package features maps raw URLs and email text to fixed-schema numeric
// feature vectors shared by the heuristic rules and the model predictor.
package features

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Kind identifies which schema a vector follows.
type Kind string

const (
	KindURL   Kind = "url"
	KindEmail Kind = "email"
)

// Schema is the fixed, ordered list of feature names for one input kind.
type Schema struct {
	kind  Kind
	names []string
	index map[string]int
}

func newSchema(kind Kind, names ...string) *Schema {
	s := &Schema{kind: kind, names: names, index: make(map[string]int, len(names))}
	for i, n := range names {
		if _, dup := s.index[n]; dup {
			panic(fmt.Sprintf("features: duplicate feature %q in %s schema", n, kind))
		}
		s.index[n] = i
	}
	return s
}

// Kind returns the input kind the schema describes.
func (s *Schema) Kind() Kind { return s.kind }

// Len returns the number of features.
func (s *Schema) Len() int { return len(s.names) }

// Names returns a copy of the ordered feature names.
func (s *Schema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Has reports whether name belongs to the schema.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// SchemaFor returns the schema for kind.
func SchemaFor(kind Kind) (*Schema, bool) {
	switch kind {
	case KindURL:
		return URLSchema, true
	case KindEmail:
		return EmailSchema, true
	}
	return nil, false
}

// Vector is an immutable, ordered feature vector. The zero value is empty.
type Vector struct {
	schema *Schema
	values []float64
}

// Kind returns the vector's schema kind, or "" for the empty vector.
func (v Vector) Kind() Kind {
	if v.schema == nil {
		return ""
	}
	return v.schema.kind
}

// Len returns the number of features.
func (v Vector) Len() int { return len(v.values) }

// Names returns the feature names in schema order.
func (v Vector) Names() []string {
	if v.schema == nil {
		return nil
	}
	return v.schema.Names()
}

// Values returns a copy of the values in schema order.
func (v Vector) Values() []float64 {
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

// Lookup returns the value of a named feature.
func (v Vector) Lookup(name string) (float64, bool) {
	if v.schema == nil {
		return 0, false
	}
	i, ok := v.schema.index[name]
	if !ok {
		return 0, false
	}
	return v.values[i], true
}

// Get returns the value of a named feature, or 0 when absent.
func (v Vector) Get(name string) float64 {
	f, _ := v.Lookup(name)
	return f
}

// With returns a copy of v with one feature replaced. It panics when name is
// not part of the schema.
func (v Vector) With(name string, value float64) Vector {
	if v.schema == nil {
		panic("features: With on empty vector")
	}
	i, ok := v.schema.index[name]
	if !ok {
		panic(fmt.Sprintf("features: unknown %s feature %q", v.schema.kind, name))
	}
	values := v.Values()
	values[i] = value
	return Vector{schema: v.schema, values: values}
}

// MarshalJSON encodes the vector as a JSON object in schema order.
func (v Vector) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range v.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(v.values[i], 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML encodes the vector as a mapping in schema order.
func (v Vector) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for i, name := range v.Names() {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: name},
			&yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatFloat(v.values[i], 'f', -1, 64)},
		)
	}
	return node, nil
}

// builder fills a vector in schema order; every set must name a schema field.
type builder struct {
	schema *Schema
	values []float64
}

func (s *Schema) builder() *builder {
	return &builder{schema: s, values: make([]float64, len(s.names))}
}

func (b *builder) set(name string, value float64) {
	i, ok := b.schema.index[name]
	if !ok {
		panic(fmt.Sprintf("features: unknown %s feature %q", b.schema.kind, name))
	}
	b.values[i] = value
}

func (b *builder) setInt(name string, n int) { b.set(name, float64(n)) }

func (b *builder) setBool(name string, ok bool) {
	if ok {
		b.set(name, 1)
		return
	}
	b.set(name, 0)
}

func (b *builder) vector() Vector {
	return Vector{schema: b.schema, values: b.values}
}
