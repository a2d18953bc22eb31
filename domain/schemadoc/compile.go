// Package schemadoc compiles a field tree into a JSON Schema document and
// the generation request that carries it.
package schemadoc

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/artpar/dinogen/domain/datatype"
	"github.com/artpar/dinogen/domain/field"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Fragment is one compiled JSON Schema object. Keys keep insertion order.
type Fragment = *orderedmap.OrderedMap[string, any]

// NewFragment returns an empty fragment.
func NewFragment() Fragment {
	return orderedmap.New[string, any]()
}

// AttrKind is how an attribute value is emitted.
type AttrKind int

const (
	AttrString AttrKind = iota
	AttrInteger
	AttrBoolean
)

// attrKinds enumerates the attributes that are not emitted verbatim.
var attrKinds = map[string]AttrKind{
	"minLength":   AttrInteger,
	"maxLength":   AttrInteger,
	"minimum":     AttrInteger,
	"maximum":     AttrInteger,
	"uniqueItems": AttrBoolean,
}

// KindOf returns the emitted kind of the named attribute.
func KindOf(name string) AttrKind {
	return attrKinds[name]
}

// Miss records a field whose data type is not in the catalog.
type Miss struct {
	Path     string `json:"path"`
	DataType string `json:"data_type"`
}

// AttributeIssue records an attribute value that could not be coerced.
type AttributeIssue struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Report lists the non-fatal problems found while compiling.
type Report struct {
	Misses          []Miss           `json:"misses,omitempty"`
	AttributeIssues []AttributeIssue `json:"attribute_issues,omitempty"`
}

// Clean reports whether nothing was degraded.
func (r Report) Clean() bool {
	return len(r.Misses) == 0 && len(r.AttributeIssues) == 0
}

// Compile builds the properties object for nodes. Nodes without a key title
// or data type are skipped.
func Compile(nodes []*field.Node, catalog datatype.Catalog) (Fragment, Report) {
	c := &compiler{catalog: catalog}
	return c.properties(nodes, ""), c.report
}

// ProcessField compiles a single node. An unknown data type yields an empty fragment.
func ProcessField(n *field.Node, catalog datatype.Catalog) (Fragment, Report) {
	c := &compiler{catalog: catalog}
	return c.field(n, n.KeyTitle), c.report
}

type compiler struct {
	catalog datatype.Catalog
	report  Report
}

func (c *compiler) properties(nodes []*field.Node, parent string) Fragment {
	props := NewFragment()
	for _, n := range nodes {
		if n.KeyTitle == "" || n.DataType == "" {
			continue
		}
		props.Set(n.KeyTitle, c.field(n, joinPath(parent, n.KeyTitle)))
	}
	return props
}

func (c *compiler) field(n *field.Node, path string) Fragment {
	dt, ok := c.catalog.Lookup(n.DataType)
	if !ok {
		c.report.Misses = append(c.report.Misses, Miss{Path: path, DataType: n.DataType})
		return NewFragment()
	}

	out := NewFragment()
	out.Set("type", dt.Type)
	out.Set("description", n.Description)
	// The raw data type lets the generator special-case autoIncrement.
	out.Set("dataType", n.DataType)
	if dt.Format != "" {
		out.Set("format", dt.Format)
	}

	for _, name := range n.Attributes.Names() {
		raw := n.Attributes[name]
		if raw == "" {
			continue
		}
		switch KindOf(name) {
		case AttrInteger:
			v, ok := parseLeadingInt(raw)
			if !ok {
				c.report.AttributeIssues = append(c.report.AttributeIssues, AttributeIssue{Path: path, Name: name, Value: raw})
				continue
			}
			out.Set(name, v)
		case AttrBoolean:
			v, err := strconv.ParseBool(strings.TrimSpace(raw))
			if err != nil {
				c.report.AttributeIssues = append(c.report.AttributeIssues, AttributeIssue{Path: path, Name: name, Value: raw})
				continue
			}
			out.Set(name, v)
		default:
			out.Set(name, raw)
		}
	}

	switch dt.Type {
	case datatype.TypeObject:
		if len(n.Properties) > 0 {
			out.Set("properties", c.properties(n.Properties, path))
		}
	case datatype.TypeArray:
		if n.Items != nil {
			out.Set("items", c.field(n.Items, path+"[]"))
		}
	}
	return out
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// parseLeadingInt reads an optionally signed base-10 integer prefix,
// ignoring leading whitespace and any trailing text. Prefixes outside the int
// range come back as an exact json.Number.
func parseLeadingInt(s string) (any, bool) {
	s = strings.TrimLeftFunc(s, isJSSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return nil, false
	}
	if v, err := strconv.Atoi(s[:end]); err == nil {
		return v, true
	}

	n := strings.TrimLeft(s[digits:end], "0")
	if s[0] == '-' {
		n = "-" + n
	}
	return json.Number(n), true
}

func isJSSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\v', '\f', '\r', 0xa0, 0xfeff, 0x2028, 0x2029:
		return true
	}
	return false
}
