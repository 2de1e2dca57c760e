// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry holds the static source catalog: the mapping from source
// identifier to endpoint descriptor. The catalog is fixed at construction;
// unknown identifiers are filtered out by callers rather than rejected.
package registry

import (
	"github.com/pdiddy/research-pilot/pkg/types"
)

// Registry resolves source identifiers to endpoint descriptors.
type Registry struct {
	endpoints map[string]types.SourceEndpoint
	order     []string
}

// New builds a registry from the configured catalog. Catalog order is
// preserved for listing and fan-out.
func New(cfg types.RegistryConfig) *Registry {
	r := &Registry{
		endpoints: make(map[string]types.SourceEndpoint, len(cfg.Sources)),
	}
	for _, ep := range cfg.Sources {
		if _, ok := r.endpoints[ep.ID]; ok {
			continue
		}
		r.endpoints[ep.ID] = ep
		r.order = append(r.order, ep.ID)
	}
	return r
}

// Resolve returns the endpoint for id, or false if the id is unknown.
func (r *Registry) Resolve(id string) (types.SourceEndpoint, bool) {
	ep, ok := r.endpoints[id]
	return ep, ok
}

// Known reports whether id is in the catalog.
func (r *Registry) Known(id string) bool {
	_, ok := r.endpoints[id]
	return ok
}

// IDs returns all source identifiers in catalog order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Catalog returns all endpoint descriptors in catalog order.
func (r *Registry) Catalog() []types.SourceEndpoint {
	out := make([]types.SourceEndpoint, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.endpoints[id])
	}
	return out
}

// Filter returns ids with unknown identifiers and duplicates silently
// dropped. An empty input means "all sources".
func (r *Registry) Filter(ids []string) []string {
	if len(ids) == 0 {
		return r.IDs()
	}
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if !r.Known(id) || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
