package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/artpar/dinogen/domain/datatype"
	"github.com/artpar/dinogen/ports"
)

// DefaultDataTypesPath is the catalog endpoint of the generation service.
const DefaultDataTypesPath = "/api/data-types/"

// CatalogSource fetches the data type catalog.
//
// API Contract:
//
//	GET /api/data-types/
//	Response: [{"value": "email", "type": "string", "format": "email"}, ...]
type CatalogSource struct {
	client *Client
	path   string
}

// NewCatalogSource creates a catalog source. An empty path uses DefaultDataTypesPath.
func NewCatalogSource(client *Client, path string) *CatalogSource {
	if path == "" {
		path = DefaultDataTypesPath
	}
	return &CatalogSource{client: client, path: path}
}

// DataTypes fetches every catalog entry.
func (s *CatalogSource) DataTypes(ctx context.Context) ([]datatype.DataType, error) {
	var types []datatype.DataType
	if err := s.client.Request(ctx, http.MethodGet, s.path, nil, &types); err != nil {
		return nil, fmt.Errorf("fetch data types: %w", err)
	}
	return types, nil
}

// HealthCheck reports whether the catalog endpoint answers.
func (s *CatalogSource) HealthCheck(ctx context.Context) error {
	_, err := s.client.Do(ctx, http.MethodGet, s.path, nil)
	return err
}

var _ ports.DataTypeSource = (*CatalogSource)(nil)
