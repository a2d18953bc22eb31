package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/artpar/dinogen/domain/schemadoc"
	"github.com/artpar/dinogen/ports"
	gojson "github.com/goccy/go-json"
)

// DefaultGeneratePath is the document generation endpoint.
const DefaultGeneratePath = "/api/generate-documents/"

// Generator submits compiled schemas for sample generation.
//
// API Contract:
//
//	POST /api/generate-documents/
//	Request:  {"schema": {...}, "format": "json", "num_samples": 3}
//	Response: any JSON value, returned to the caller unchanged
type Generator struct {
	client *Client
	path   string
}

// NewGenerator creates a generator. An empty path uses DefaultGeneratePath.
func NewGenerator(client *Client, path string) *Generator {
	if path == "" {
		path = DefaultGeneratePath
	}
	return &Generator{client: client, path: path}
}

// Generate posts the request and returns the response body. A body that is
// not valid JSON is returned as a JSON string.
func (g *Generator) Generate(ctx context.Context, req schemadoc.Request) (json.RawMessage, error) {
	data, err := g.client.Do(ctx, http.MethodPost, g.path, req)
	if err != nil {
		return nil, fmt.Errorf("generate documents: %w", err)
	}
	if gojson.Valid(data) {
		return json.RawMessage(data), nil
	}
	quoted, err := gojson.Marshal(string(data))
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return json.RawMessage(quoted), nil
}

var _ ports.DocumentGenerator = (*Generator)(nil)
