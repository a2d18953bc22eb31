// Package field provides the field tree model and its mutation algebra.
// A Forest is an immutable value: every command returns a new Forest that
// shares all untouched subtrees with the one it was applied to.
package field

import (
	"sort"
)

// Node is one user-defined schema field.
//
// Nodes reachable from a Forest must be treated as read-only. Edits go
// through Forest.Apply, which copies the nodes on the path it changes.
type Node struct {
	// ID addresses the node for mutations. Assigned at creation, never reassigned.
	ID string `json:"id" yaml:"id,omitempty" jsonschema:"description=Opaque identifier unique across the whole tree. Generated when omitted."`

	// KeyTitle becomes the JSON object property name.
	KeyTitle string `json:"keyTitle" yaml:"keyTitle" jsonschema:"description=Property name in the generated schema. Must be non-empty and contain no whitespace."`

	// DataType references a data type catalog entry by value.
	DataType string `json:"dataType" yaml:"dataType" jsonschema:"description=Catalog data type value such as string or object or autoIncrement."`

	// Description is free text, or the start value when DataType is autoIncrement.
	Description string `json:"description" yaml:"description,omitempty" jsonschema:"description=Free text description. Holds the numeric start value for autoIncrement fields."`

	// Attributes holds sparse schema keywords such as minLength or maximum.
	Attributes Attributes `json:"attributes,omitempty" yaml:"attributes,omitempty" jsonschema:"description=Extra schema keywords. minLength maxLength minimum and maximum are emitted as integers."`

	// Properties are the children of an object-typed node.
	Properties []*Node `json:"properties,omitempty" yaml:"properties,omitempty" jsonschema:"description=Nested fields of an object-typed field."`

	// Items is the element definition of an array-typed node.
	Items *Node `json:"items,omitempty" yaml:"items,omitempty" jsonschema:"description=Element field of an array-typed field."`
}

// Blank returns a new empty node with the given id.
func Blank(id string) *Node {
	return &Node{
		ID:         id,
		Attributes: Attributes{},
	}
}

// clone returns a shallow copy. Child slices are shared until replaced.
func (n *Node) clone() *Node {
	c := *n
	return &c
}

// Attributes maps attribute names to their raw string values.
type Attributes map[string]string

// With returns a copy of a with name set to value.
// An empty value removes the attribute.
func (a Attributes) With(name, value string) Attributes {
	out := make(Attributes, len(a)+1)
	for k, v := range a {
		out[k] = v
	}
	if value == "" {
		delete(out, name)
	} else {
		out[name] = value
	}
	return out
}

// Names returns the attribute names in sorted order.
func (a Attributes) Names() []string {
	names := make([]string, 0, len(a))
	for k := range a {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of a.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// AssignIDs returns a deep copy of n in which every node without an id
// receives one from newID. n is not modified.
func AssignIDs(n *Node, newID func() string) *Node {
	if n == nil {
		return nil
	}
	c := *n
	if c.ID == "" {
		c.ID = newID()
	}
	if len(n.Properties) > 0 {
		c.Properties = make([]*Node, len(n.Properties))
		for i, p := range n.Properties {
			c.Properties[i] = AssignIDs(p, newID)
		}
	}
	c.Items = AssignIDs(n.Items, newID)
	return &c
}
