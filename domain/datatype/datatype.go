// Package datatype provides the data type catalog lookup.
// The catalog itself is owned by a remote service; this package only
// answers "what JSON Schema type does this data type value produce".
package datatype

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// JSON Schema types with structural meaning for the field tree.
const (
	TypeObject = "object"
	TypeArray  = "array"
)

// AutoIncrement is the data type whose start value lives in the field description.
const AutoIncrement = "autoIncrement"

// DataType is one catalog entry.
type DataType struct {
	Value  string `json:"value" yaml:"value"`
	Type   string `json:"type" yaml:"type"`
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Catalog is an immutable lookup table of data types keyed by value.
// The zero value is an empty catalog.
type Catalog struct {
	list    []DataType
	byValue map[string]int
}

// NewCatalog builds a catalog. When values repeat, the first entry wins.
func NewCatalog(types []DataType) Catalog {
	c := Catalog{
		list:    make([]DataType, 0, len(types)),
		byValue: make(map[string]int, len(types)),
	}
	for _, t := range types {
		if _, seen := c.byValue[t.Value]; seen {
			continue
		}
		c.byValue[t.Value] = len(c.list)
		c.list = append(c.list, t)
	}
	return c
}

// Parse decodes a catalog from a YAML or JSON list of entries.
func Parse(data []byte) (Catalog, error) {
	var types []DataType
	if err := yaml.Unmarshal(data, &types); err != nil {
		return Catalog{}, fmt.Errorf("parse data types: %w", err)
	}
	return NewCatalog(types), nil
}

// Lookup returns the entry for value.
func (c Catalog) Lookup(value string) (DataType, bool) {
	i, ok := c.byValue[value]
	if !ok {
		return DataType{}, false
	}
	return c.list[i], true
}

// Resolve returns the JSON Schema type for value, or value itself when the
// catalog has no entry for it.
func (c Catalog) Resolve(value string) string {
	if t, ok := c.Lookup(value); ok {
		return t.Type
	}
	return value
}

// Types returns the entries in catalog order.
func (c Catalog) Types() []DataType {
	return append([]DataType(nil), c.list...)
}

// Len returns the number of entries.
func (c Catalog) Len() int {
	return len(c.list)
}
