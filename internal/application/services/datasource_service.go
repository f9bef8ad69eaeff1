package services

import (
	"context"
	"fmt"

	"github.com/pagecanvas/pagecanvas-go/internal/domain/entities/datasource"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/registry"
	"github.com/pagecanvas/pagecanvas-go/internal/domain/resolver"
)

// DataSourceService fronts the data-source registry for the HTTP layer and
// offers one-shot resolution of ad-hoc descriptors.
type DataSourceService struct {
	registry *registry.Registry
	resolver *resolver.Resolver
}

func NewDataSourceService(reg *registry.Registry, res *resolver.Resolver) *DataSourceService {
	return &DataSourceService{registry: reg, resolver: res}
}

// List returns every registered data source with its cached dataset.
func (s *DataSourceService) List() []*registry.Entry {
	return s.registry.List()
}

// Get returns one registered data source.
func (s *DataSourceService) Get(id string) (*registry.Entry, error) {
	entry := s.registry.Get(id)
	if entry == nil {
		return nil, fmt.Errorf("data source %s not found", id)
	}
	return entry, nil
}

// Add registers a new data source and triggers its first resolution.
func (s *DataSourceService) Add(d *datasource.Descriptor) (string, error) {
	if d == nil {
		return "", fmt.Errorf("descriptor cannot be nil")
	}
	if err := d.Validate(); err != nil {
		return "", err
	}
	return s.registry.Add(d)
}

// Update patches a registered descriptor.
func (s *DataSourceService) Update(id string, patch *registry.Patch) error {
	if patch == nil {
		return fmt.Errorf("patch cannot be nil")
	}
	return s.registry.Update(id, patch)
}

// Remove unregisters a data source.
func (s *DataSourceService) Remove(id string) error {
	return s.registry.Remove(id)
}

// Refresh forces a re-resolution of one data source.
func (s *DataSourceService) Refresh(ctx context.Context, id string) (*registry.Entry, error) {
	if err := s.registry.Refresh(ctx, id); err != nil {
		return nil, err
	}
	return s.Get(id)
}

// ResolveOnce resolves an ad-hoc descriptor without registering it. Used by
// the builder to preview a configuration before saving.
func (s *DataSourceService) ResolveOnce(ctx context.Context, d *datasource.Descriptor) (*datasource.Dataset, error) {
	if d == nil {
		return nil, fmt.Errorf("descriptor cannot be nil")
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, d), nil
}
