package memory

import (
	"context"
	"sync"

	"github.com/artpar/dinogen/domain/datatype"
	"github.com/artpar/dinogen/ports"
)

// CatalogSource serves a fixed data type list. Err, when set, is returned
// instead of the list.
type CatalogSource struct {
	mu    sync.Mutex
	types []datatype.DataType
	Err   error
	calls int
}

// NewCatalogSource creates a catalog source serving types.
func NewCatalogSource(types []datatype.DataType) *CatalogSource {
	return &CatalogSource{types: types}
}

// DataTypes returns a copy of the configured list.
func (s *CatalogSource) DataTypes(ctx context.Context) ([]datatype.DataType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]datatype.DataType(nil), s.types...), nil
}

// Calls reports how many times DataTypes was called.
func (s *CatalogSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var _ ports.DataTypeSource = (*CatalogSource)(nil)
