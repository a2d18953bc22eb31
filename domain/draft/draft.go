// Package draft defines the serialised form of an editing session: a schema
// header, a sample count and the field tree. Drafts are read by the CLI and
// exported by the server.
package draft

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/artpar/dinogen/domain/field"
	"github.com/artpar/dinogen/domain/schemadoc"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Draft is a schema under construction.
type Draft struct {
	Title       string        `json:"title" yaml:"title" jsonschema:"required,description=Schema title."`
	Description string        `json:"description" yaml:"description" jsonschema:"required,description=Schema description."`
	NumSamples  int           `json:"num_samples,omitempty" yaml:"num_samples,omitempty" jsonschema:"minimum=1,description=Number of sample documents to generate. Defaults to 3."`
	Format      string        `json:"format,omitempty" yaml:"format,omitempty" jsonschema:"enum=json,description=Output format of the generated documents."`
	Fields      []*field.Node `json:"fields" yaml:"fields" jsonschema:"description=Top-level fields in row order."`
}

// Parse decodes a draft from YAML or JSON and applies defaults.
func Parse(data []byte) (*Draft, error) {
	var d Draft
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse draft: %w", err)
	}
	if d.NumSamples == 0 {
		d.NumSamples = schemadoc.DefaultSamples
	}
	if d.NumSamples < 0 {
		return nil, fmt.Errorf("parse draft: num_samples must be positive, got %d", d.NumSamples)
	}
	if d.Format == "" {
		d.Format = schemadoc.FormatJSON
	}
	return &d, nil
}

// Load reads and parses a draft file.
func Load(path string) (*Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read draft: %w", err)
	}
	return Parse(data)
}

// Forest assigns ids to nodes that have none and returns the resulting tree.
func (d *Draft) Forest(newID func() string) (*field.Forest, error) {
	roots := make([]*field.Node, len(d.Fields))
	for i, n := range d.Fields {
		roots[i] = field.AssignIDs(n, newID)
	}
	f, err := field.NewForest(roots...)
	if err != nil {
		return nil, fmt.Errorf("draft fields: %w", err)
	}
	return f, nil
}

// JSONSchema returns the JSON Schema of the draft file format, for editor
// completion and validation.
func JSONSchema() ([]byte, error) {
	r := &jsonschema.Reflector{
		FieldNameTag: "yaml",
	}

	s := r.Reflect(&Draft{})
	s.Title = "dinogen draft"
	s.Description = "Field tree and schema header compiled by dinogen into a JSON Schema document"

	return json.MarshalIndent(s, "", "  ")
}
