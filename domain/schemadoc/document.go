package schemadoc

import (
	"github.com/artpar/dinogen/domain/datatype"
	"github.com/artpar/dinogen/domain/field"
)

// Draft07 is the $schema value of every generated document.
const Draft07 = "http://json-schema.org/draft-07/schema#"

// Defaults used when the header is left blank.
const (
	DefaultTitle       = "Generated Schema"
	DefaultDescription = "This schema was generated by the user"
)

// Output formats understood by the generation service.
const FormatJSON = "json"

// DefaultSamples is the sample count of a fresh session.
const DefaultSamples = 3

// Document is a complete JSON Schema document.
type Document struct {
	Schema      string   `json:"$schema"`
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Properties  Fragment `json:"properties"`
}

// Build compiles nodes and wraps them in a draft-07 object schema.
func Build(title, description string, nodes []*field.Node, catalog datatype.Catalog) (Document, Report) {
	if title == "" {
		title = DefaultTitle
	}
	if description == "" {
		description = DefaultDescription
	}
	props, report := Compile(nodes, catalog)
	return Document{
		Schema:      Draft07,
		Type:        datatype.TypeObject,
		Title:       title,
		Description: description,
		Properties:  props,
	}, report
}

// Request is the body of a generate-documents call.
type Request struct {
	Schema     Document `json:"schema"`
	Format     string   `json:"format"`
	NumSamples int      `json:"num_samples"`
}

// NewRequest pairs a document with its output format and sample count.
// An empty format means JSON.
func NewRequest(doc Document, format string, numSamples int) Request {
	if format == "" {
		format = FormatJSON
	}
	return Request{Schema: doc, Format: format, NumSamples: numSamples}
}
