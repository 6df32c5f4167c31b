package zcl

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds the cluster definitions the light endpoint serves.
type Registry struct {
	mu       sync.RWMutex
	clusters map[uint16]ClusterDef
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		clusters: make(map[uint16]ClusterDef),
		logger:   logger,
	}
}

// Register adds a cluster definition, replacing any previous one with the same ID.
func (r *Registry) Register(c ClusterDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attrs := make([]AttributeDef, len(c.Attributes))
	copy(attrs, c.Attributes)
	c.Attributes = attrs
	r.clusters[c.ID] = c
	r.logger.Debug("cluster registered", "id", fmt.Sprintf("0x%04X", c.ID), "name", c.Name)
}

// Get returns a cluster definition by ID.
func (r *Registry) Get(id uint16) (ClusterDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clusters[id]
	return c, ok
}

// Attribute returns the definition of one attribute of a registered cluster.
func (r *Registry) Attribute(clusterID, attrID uint16) (AttributeDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clusters[clusterID]
	if !ok {
		return AttributeDef{}, false
	}
	a := c.FindAttribute(attrID)
	if a == nil {
		return AttributeDef{}, false
	}
	return *a, true
}

// All returns all registered clusters ordered by ID.
func (r *Registry) All() []ClusterDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]ClusterDef, 0, len(r.clusters))
	for _, c := range r.clusters {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
