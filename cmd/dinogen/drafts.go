package main

import (
	"context"
	"fmt"
	"os"

	"github.com/artpar/dinogen/adapters/idgen"
	"github.com/artpar/dinogen/adapters/remote"
	"github.com/artpar/dinogen/config"
	"github.com/artpar/dinogen/domain/datatype"
	"github.com/artpar/dinogen/domain/draft"
	"github.com/artpar/dinogen/domain/field"
)

var (
	// Shared by validate, compile and submit
	catalogFile string
)

// openDraft loads a draft file and keys its field tree.
func openDraft(path string) (*draft.Draft, *field.Forest, error) {
	d, err := draft.Load(path)
	if err != nil {
		return nil, nil, err
	}
	forest, err := d.Forest(idgen.NewSequential("fld_").New)
	if err != nil {
		return nil, nil, err
	}
	return d, forest, nil
}

// loadCatalog reads --catalog when set, otherwise fetches the data types
// from the configured generation service.
func loadCatalog(ctx context.Context) (datatype.Catalog, error) {
	if catalogFile != "" {
		data, err := os.ReadFile(catalogFile)
		if err != nil {
			return datatype.Catalog{}, fmt.Errorf("read catalog: %w", err)
		}
		return datatype.Parse(data)
	}

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return datatype.Catalog{}, fmt.Errorf("no --catalog given and %w", err)
	}
	types, err := remote.NewCatalogSource(newRemoteClient(cfg), cfg.Remote.DataTypesPath).DataTypes(ctx)
	if err != nil {
		return datatype.Catalog{}, err
	}
	return datatype.NewCatalog(types), nil
}

func newRemoteClient(cfg *config.Config) *remote.Client {
	return remote.NewClient(remote.ClientConfig{
		BaseURL:         cfg.Remote.URL,
		APIKey:          cfg.Remote.APIKey,
		Timeout:         cfg.Remote.Timeout,
		MaxIdleConns:    cfg.Remote.MaxIdleConns,
		IdleConnTimeout: cfg.Remote.IdleConnTimeout,
		Headers:         cfg.Remote.Headers,
	})
}
