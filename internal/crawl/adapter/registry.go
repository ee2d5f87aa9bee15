// Copyright (c) 2026 MangaTrack. All rights reserved.

package adapter

import (
	"fmt"
	"strings"
)

// Registry resolves a SeriesSource's source_name to its adapter. Lookups
// are case-insensitive; registration happens once at startup, so the map
// is read-only afterwards and needs no locking.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	registry := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, item := range adapters {
		registry.adapters[strings.ToLower(item.Name())] = item
	}
	return registry
}

// Get resolves a source name.
func (registry *Registry) Get(sourceName string) (Adapter, error) {
	item, ok := registry.adapters[strings.ToLower(sourceName)]
	if !ok {
		return nil, fmt.Errorf("adapter: no adapter registered for source %q", sourceName)
	}
	return item, nil
}

// Names lists the registered source names.
func (registry *Registry) Names() []string {
	names := make([]string, 0, len(registry.adapters))
	for name := range registry.adapters {
		names = append(names, name)
	}
	return names
}
